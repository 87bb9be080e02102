package units

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bartossh/Paygate/emulator"
)

func TestZeroIsAnsweredLocally(t *testing.T) {
	ctx := context.Background()
	node, client := emulator.Start(t, emulator.Config{Multiplier: "1000000"})
	c := New(client)

	for _, s := range []string{"0", "0.0", " 0 ", "0.000"} {
		raw, err := c.ToRaw(ctx, s)
		require.NoError(t, err)
		assert.Equal(t, 0, raw.Sign(), s)
	}
	display, err := c.ToDisplay(ctx, new(big.Int))
	require.NoError(t, err)
	assert.Equal(t, "0", display)

	assert.Equal(t, 0, node.Calls("rai_to_raw"))
	assert.Equal(t, 0, node.Calls("rai_from_raw"))
}

func TestRoundTripThroughNode(t *testing.T) {
	ctx := context.Background()
	node, client := emulator.Start(t, emulator.Config{Multiplier: "1000000"})
	c := New(client)

	raw, err := c.ToRaw(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "1000000", raw.String())

	display, err := c.ToDisplay(ctx, raw)
	require.NoError(t, err)
	assert.Equal(t, "1", display)

	again, err := c.ToRaw(ctx, display)
	require.NoError(t, err)
	assert.Equal(t, 0, raw.Cmp(again))

	assert.Equal(t, 2, node.Calls("rai_to_raw"))
	assert.Equal(t, 1, node.Calls("rai_from_raw"))
}

func TestInvalidAmounts(t *testing.T) {
	ctx := context.Background()
	node, client := emulator.Start(t, emulator.Config{})
	c := New(client)

	for _, s := range []string{"", "-1", "abc", "1,5", "1/2", "3/4", "1e-6", "1E3", "+1", ".5", "1.", "0x10"} {
		_, err := c.ToRaw(ctx, s)
		assert.ErrorIs(t, err, ErrInvalidAmount, s)
	}
	assert.Equal(t, 0, node.Calls("rai_to_raw"))
	_, err := c.ToDisplay(ctx, big.NewInt(-1))
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = ParseRaw("12x")
	assert.ErrorIs(t, err, ErrInvalidAmount)
	v, err := ParseRaw("")
	require.NoError(t, err)
	assert.Equal(t, 0, v.Sign())
}
