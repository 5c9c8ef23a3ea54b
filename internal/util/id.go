package util

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// NewID returns a time-ordered identifier derived from the current timestamp,
// optionally prefixed ("cmt_...").
func NewID(prefix string) string {
	id, err := uuid.NewV7()
	if err != nil {
		return fallbackID(prefix)
	}
	if prefix == "" {
		return id.String()
	}
	return prefix + "_" + id.String()
}

func fallbackID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}
