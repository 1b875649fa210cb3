package ids

import "github.com/segmentio/ksuid"

// New returns a URL-safe, sortable, unguessable identifier.
func New() string {
	return ksuid.New().String()
}
