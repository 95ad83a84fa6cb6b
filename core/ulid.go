package core

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// NewULID mints a fresh, timestamp-ordered identifier using the process's
// cryptographic entropy source.
func NewULID() ulid.ULID {
	return ulid.MustNew(ulid.Now(), rand.Reader)
}
