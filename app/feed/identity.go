package feed

import (
	"github.com/google/uuid"
)

// DeriveID maps a natural key (feed source URL, article link) to a stable
// identifier using a name-based UUID (version 5 over the URL namespace).
// The same input always yields the same ID, so re-ingesting a source
// resolves to the existing record via the unique index instead of creating
// a duplicate.
func DeriveID(natural string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(natural)).String()
}
