package natsclient

import (
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/bartossh/Paygate/webhooks"
)

// encode packs the notification in a structpb.Struct. Time travels as RFC 3339 text since
// struct numbers are float64 and would lose nanoseconds.
func encode(n webhooks.Notification) ([]byte, error) {
	s, err := structpb.NewStruct(map[string]any{
		"hash":            n.Hash,
		"account":         n.Account,
		"link_as_account": n.Link,
		"amount":          n.Amount,
		"subtype":         n.Subtype,
		"time":            n.Time.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

func decode(msg []byte) (webhooks.Notification, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(msg, &s); err != nil {
		return webhooks.Notification{}, errors.Join(ErrMalformedMessage, err)
	}
	f := s.GetFields()
	n := webhooks.Notification{
		Hash:    f["hash"].GetStringValue(),
		Account: f["account"].GetStringValue(),
		Link:    f["link_as_account"].GetStringValue(),
		Amount:  f["amount"].GetStringValue(),
		Subtype: f["subtype"].GetStringValue(),
	}
	if n.Account == "" && n.Link == "" {
		return n, errors.Join(ErrMalformedMessage, fmt.Errorf("notification %q has no address", n.Hash))
	}
	if raw := f["time"].GetStringValue(); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return n, errors.Join(ErrMalformedMessage, err)
		}
		n.Time = t
	}
	return n, nil
}
