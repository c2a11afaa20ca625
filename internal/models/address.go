package models

import (
	"encoding/hex"
	"errors"
	"strings"
)

// Address identifies a participant or a contract component. 20 bytes, rendered as 0x-prefixed hex.
type Address [20]byte

// Hash is a fixed-size result commitment.
type Hash [32]byte

var errMalformedHex = errors.New("malformed hex value")

// ParseAddress accepts a 0x-prefixed (or bare) 40 character hex string.
func ParseAddress(s string) (Address, error) {
	var a Address
	if err := decodeFixed(s, a[:]); err != nil {
		return Address{}, ErrInvalidAddress
	}
	return a, nil
}

// MustParseAddress is ParseAddress for package-level constants.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic("models: bad address literal " + s)
	}
	return a
}

func (a Address) IsZero() bool { return a == Address{} }

func (a Address) String() string { return "0x" + hex.EncodeToString(a[:]) }

func (a Address) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Address) UnmarshalText(b []byte) error {
	v, err := ParseAddress(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// ParseHash accepts a 0x-prefixed (or bare) 64 character hex string.
func ParseHash(s string) (Hash, error) {
	var h Hash
	if err := decodeFixed(s, h[:]); err != nil {
		return Hash{}, err
	}
	return h, nil
}

func MustParseHash(s string) Hash {
	h, err := ParseHash(s)
	if err != nil {
		panic(err)
	}
	return h
}

func (h Hash) IsZero() bool { return h == Hash{} }

func (h Hash) String() string { return "0x" + hex.EncodeToString(h[:]) }

func (h Hash) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

func (h *Hash) UnmarshalText(b []byte) error {
	v, err := ParseHash(string(b))
	if err != nil {
		return err
	}
	*h = v
	return nil
}

func decodeFixed(s string, dst []byte) error {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if len(s) != 2*len(dst) {
		return errMalformedHex
	}
	if _, err := hex.Decode(dst, []byte(s)); err != nil {
		return errMalformedHex
	}
	return nil
}
