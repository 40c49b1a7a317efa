package xid

import (
	"strings"

	"github.com/google/uuid"
)

// New returns a time-ordered identifier such as "prd_0192f1c4-...".
func New(prefix string) string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	if prefix == "" {
		return id.String()
	}
	return prefix + "_" + id.String()
}

// HasPrefix reports whether id was minted by New with the given prefix.
func HasPrefix(id string, prefix string) bool {
	return strings.HasPrefix(id, prefix+"_")
}
