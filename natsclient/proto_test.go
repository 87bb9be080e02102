package natsclient

import (
	"testing"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"gotest.tools/assert"

	"github.com/bartossh/Paygate/webhooks"
)

func TestActivityConversion(t *testing.T) {
	n := webhooks.Notification{
		Hash:    "991CF190094C00F0B68E2E5F75F6BEE95A2E0BD93CEAA4A6734DB9F19B728948",
		Account: "nano_1ipx847tk8o46pwxt5qjdbncjqcbwcc1rrmqnkztrfjy5k7z4imsrata9est",
		Link:    "nano_3t6k35gi95xu6tergt6p69ck76ogmitsa8mnijtpxm9fkcm736xtoncuohr3",
		Amount:  "1000000",
		Subtype: "send",
		Time:    time.Date(2023, 5, 1, 12, 0, 0, 123456789, time.UTC),
	}

	msg, err := encode(n)
	assert.NilError(t, err)

	got, err := decode(msg)
	assert.NilError(t, err)
	assert.DeepEqual(t, n, got)
}

func TestActivityWithoutAddressIsRejected(t *testing.T) {
	s, err := structpb.NewStruct(map[string]any{"hash": "ABC"})
	assert.NilError(t, err)
	msg, err := proto.Marshal(s)
	assert.NilError(t, err)

	_, err = decode(msg)
	assert.ErrorContains(t, err, "no address")
}

func TestActivityGarbageIsRejected(t *testing.T) {
	_, err := decode([]byte{0xff, 0xff, 0xff})
	assert.ErrorContains(t, err, ErrMalformedMessage.Error())
}

func TestConfigEnabled(t *testing.T) {
	assert.Assert(t, !Config{}.Enabled())
	assert.Assert(t, Config{Address: "nats://127.0.0.1:4222"}.Enabled())
}
