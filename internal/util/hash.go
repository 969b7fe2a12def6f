package util

import (
	"hash/fnv"

	"github.com/google/uuid"
)

// NewSenderID returns a random 32-bit sender identifier. Persist it (for
// example in the config file) so receivers recognise the stream across
// restarts and renames.
func NewSenderID() uint32 {
	id := uuid.New()
	h := fnv.New32a()
	h.Write(id[:])
	return h.Sum32()
}
