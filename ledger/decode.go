package ledger

import (
	"bytes"
	"encoding/json"
	"sort"
)

// The node answers with an empty string instead of an empty list or object.

type hashList []string

func (l *hashList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case isEmpty(b):
		*l = nil
		return nil
	case b[0] == '{':
		var m map[string]json.RawMessage
		if err := json.Unmarshal(b, &m); err != nil {
			return err
		}
		hashes := make([]string, 0, len(m))
		for h := range m {
			hashes = append(hashes, h)
		}
		sort.Strings(hashes)
		*l = hashes
		return nil
	}
	var hashes []string
	if err := json.Unmarshal(b, &hashes); err != nil {
		return err
	}
	*l = hashes
	return nil
}

type entry struct {
	Type    string `json:"type"`
	Account string `json:"account"`
	Amount  string `json:"amount"`
	Hash    string `json:"hash"`
}

type entryList []entry

func (l *entryList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if isEmpty(b) {
		*l = nil
		return nil
	}
	var entries []entry
	if err := json.Unmarshal(b, &entries); err != nil {
		return err
	}
	*l = entries
	return nil
}

func isEmpty(b []byte) bool {
	return len(b) == 0 || bytes.Equal(b, []byte(`""`)) || bytes.Equal(b, []byte("null"))
}

// DecodeBlock accepts the block as a JSON object or as a string holding one.
func DecodeBlock(raw json.RawMessage) (Block, error) {
	var blk Block
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return blk, err
		}
		raw = []byte(s)
	}
	err := json.Unmarshal(raw, &blk)
	return blk, err
}
