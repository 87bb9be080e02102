package reactive

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReactiveCycleNonBlocking(t *testing.T) {
	obs := New[int](2)
	sub := obs.Subscribe()
	defer sub.Cancel()
	assert.Equal(t, 1, obs.Publish(1))
	v := <-sub.Channel()
	assert.Equal(t, 1, v)
}

func TestReactiveCycleNonBlockingMultipleSubscribers(t *testing.T) {
	obs := New[int](2)
	sub1 := obs.Subscribe()
	defer sub1.Cancel()
	sub2 := obs.Subscribe()
	defer sub2.Cancel()
	obs.Publish(1)
	obs.Publish(2)
	v := <-sub1.Channel()
	assert.Equal(t, 1, v)
	v = <-sub2.Channel()
	assert.Equal(t, 1, v)
	v = <-sub1.Channel()
	assert.Equal(t, 2, v)
	v = <-sub2.Channel()
	assert.Equal(t, 2, v)
}

func TestReactiveFullSubscriberDoesNotBlock(t *testing.T) {
	obs := New[int](1)
	slow := obs.Subscribe()
	defer slow.Cancel()

	assert.Equal(t, 1, obs.Publish(1))
	assert.Equal(t, 0, obs.Publish(2))

	v := <-slow.Channel()
	assert.Equal(t, 1, v)
	assert.Equal(t, 1, obs.Publish(3))
	v = <-slow.Channel()
	assert.Equal(t, 3, v)
}

func TestReactiveCancelIsIdempotent(t *testing.T) {
	obs := New[int](2)
	sub1 := obs.Subscribe()
	sub2 := obs.Subscribe()
	sub1.Cancel()
	sub1.Cancel()
	assert.Equal(t, 1, obs.Len())

	obs.Publish(1)
	v := <-sub2.Channel()
	assert.Equal(t, 1, v)

	_, ok := <-sub1.Channel()
	assert.False(t, ok)
	sub2.Cancel()
	assert.Equal(t, 0, obs.Len())
}

func FuzzTestDataIntegrity(f *testing.F) {
	obs := New[string](100)

	sub1 := obs.Subscribe()
	c1 := sub1.Channel()
	defer sub1.Cancel()
	sub2 := obs.Subscribe()
	c2 := sub2.Channel()
	defer sub2.Cancel()

	for _, v := range []string{"a", "b", "c", "1", "12a", "p45", "qwerty"} {
		f.Add(v)
	}

	f.Fuzz(func(t *testing.T, a string) {
		obs.Publish(a)
		v := <-c1
		assert.Equal(t, a, v)
		v = <-c2
		assert.Equal(t, a, v)
	})
}
