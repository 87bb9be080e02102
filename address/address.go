package address

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/blake2b"
)

const (
	alphabet       = "13456789abcdefghijkmnopqrstuwxyz"
	keyChars       = 52
	checksumChars  = 8
	checksumSize   = 5
	publicKeySize  = 32
	DefaultPrefix  = "nano_"
	legacyPrefix   = "xrb_"
	bitsPerSymbol  = 5
	symbolBitsMask = 31
)

var (
	ErrPrefix    = errors.New("address prefix is not supported")
	ErrLength    = errors.New("address has invalid length")
	ErrAlphabet  = errors.New("address contains invalid character")
	ErrChecksum  = errors.New("address checksum mismatch")
	ErrPublicKey = errors.New("public key must be 32 bytes")
)

var symbols = func() map[rune]int64 {
	m := make(map[rune]int64, len(alphabet))
	for i, r := range alphabet {
		m[r] = int64(i)
	}
	return m
}()

// Encode encodes the 32 bytes public key in to the nano_ prefixed address.
func Encode(publicKey []byte) (string, error) {
	if len(publicKey) != publicKeySize {
		return "", ErrPublicKey
	}
	var b strings.Builder
	b.WriteString(DefaultPrefix)
	b.WriteString(encode(new(big.Int).SetBytes(publicKey), keyChars))
	b.WriteString(encode(new(big.Int).SetBytes(checksum(publicKey)), checksumChars))
	return b.String(), nil
}

// Decode validates the address and returns the public key it encodes.
func Decode(addr string) ([]byte, error) {
	var body string
	switch {
	case strings.HasPrefix(addr, DefaultPrefix):
		body = addr[len(DefaultPrefix):]
	case strings.HasPrefix(addr, legacyPrefix):
		body = addr[len(legacyPrefix):]
	default:
		return nil, ErrPrefix
	}
	if len(body) != keyChars+checksumChars {
		return nil, errors.Join(ErrLength, fmt.Errorf("got %d symbols", len(body)))
	}

	key, err := decode(body[:keyChars])
	if err != nil {
		return nil, err
	}
	if key.BitLen() > publicKeySize*8 {
		return nil, ErrAlphabet
	}
	sum, err := decode(body[keyChars:])
	if err != nil {
		return nil, err
	}

	publicKey := key.FillBytes(make([]byte, publicKeySize))
	if !bytes.Equal(sum.FillBytes(make([]byte, checksumSize)), checksum(publicKey)) {
		return nil, ErrChecksum
	}
	return publicKey, nil
}

// Validate returns nil if the address is well formed and its checksum matches.
func Validate(addr string) error {
	_, err := Decode(addr)
	return err
}

// checksum is the reversed 5 bytes blake2b digest of the public key.
func checksum(publicKey []byte) []byte {
	h, _ := blake2b.New(checksumSize, nil)
	h.Write(publicKey)
	sum := h.Sum(nil)
	for i, j := 0, len(sum)-1; i < j; i, j = i+1, j-1 {
		sum[i], sum[j] = sum[j], sum[i]
	}
	return sum
}

func encode(n *big.Int, size int) string {
	out := make([]byte, size)
	v := new(big.Int).Set(n)
	mask := big.NewInt(symbolBitsMask)
	for i := size - 1; i >= 0; i-- {
		out[i] = alphabet[new(big.Int).And(v, mask).Int64()]
		v.Rsh(v, bitsPerSymbol)
	}
	return string(out)
}

func decode(s string) (*big.Int, error) {
	n := new(big.Int)
	for _, r := range s {
		idx, ok := symbols[r]
		if !ok {
			return nil, errors.Join(ErrAlphabet, fmt.Errorf("symbol %q", r))
		}
		n.Lsh(n, bitsPerSymbol)
		n.Or(n, big.NewInt(idx))
	}
	return n, nil
}
