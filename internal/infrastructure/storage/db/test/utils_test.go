package db_test

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// randomKey returns a key unique to the calling test, so that adapters can
// share a single database across tests.
func randomKey() []string {
	return []string{"watchdescriptor", "test", uuid.New().String()}
}

func randomHex(size int) string {
	return hex.EncodeToString(randomBytes(size))
}

func randomBytes(size int) []byte {
	buf := make([]byte, size)
	//nolint
	rand.Read(buf)
	return buf
}
