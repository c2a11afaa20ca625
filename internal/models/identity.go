package models

import (
	"slices"
	"time"
)

// Identity is a participant account held by the stake ledger.
type Identity struct {
	Address      Address   `json:"address"`
	Metadata     string    `json:"metadata"`
	Capabilities []string  `json:"capabilities"`
	Endpoint     string    `json:"endpoint"`
	Stake        int64     `json:"stake"`
	Active       bool      `json:"active"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Clone returns a copy that shares no memory with i.
func (i Identity) Clone() Identity {
	i.Capabilities = slices.Clone(i.Capabilities)
	return i
}
