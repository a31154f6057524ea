// Package agentid models hierarchical agent identifiers.
//
// A primary id identifies one external task. A derived id identifies a
// sub-agent spawned (directly or transitively) by that task and is rendered
// as the primary id followed by one suffix per nesting level:
//
//	agent-6f1c...            primary
//	agent-6f1c...::01J9Z...  sub-agent
//	agent-6f1c...::01J9Z...::01J9Z...  sub-sub-agent
//
// The string form is what travels on events and in logs; ID is the
// structured form used to reason about ancestry. IsPrimary and PrimaryOf are
// total: any string is accepted and a string without a separator is treated
// as a primary id.
package agentid

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Separator joins the primary id and the derived suffixes.
const Separator = "::"

// PrimaryPrefix prefixes every generated primary id.
const PrimaryPrefix = "agent-"

// ErrInvalidSuffix is returned when a suffix is empty or contains Separator.
var ErrInvalidSuffix = errors.New("agentid: invalid suffix")

// ID is the structured form of an agent id.
type ID struct {
	Primary string
	Path    []string
}

// New returns a fresh primary id string.
func New() string {
	id, err := uuid.NewV7()
	if err != nil {
		return PrimaryPrefix + uuid.NewString()
	}
	return PrimaryPrefix + id.String()
}

// Parse splits s into its primary id and suffix path. It never fails.
func Parse(s string) ID {
	parts := strings.Split(s, Separator)
	id := ID{Primary: parts[0]}
	if len(parts) > 1 {
		id.Path = parts[1:]
	}
	return id
}

// String renders the id in its wire form.
func (id ID) String() string {
	if len(id.Path) == 0 {
		return id.Primary
	}
	return id.Primary + Separator + strings.Join(id.Path, Separator)
}

// IsPrimary reports whether the id has no derived suffixes.
func (id ID) IsPrimary() bool { return len(id.Path) == 0 }

// Depth returns the number of derived levels below the primary.
func (id ID) Depth() int { return len(id.Path) }

// Parent returns the id one level up. The parent of a primary id is itself.
func (id ID) Parent() ID {
	if len(id.Path) == 0 {
		return id
	}
	path := make([]string, len(id.Path)-1)
	copy(path, id.Path)
	return ID{Primary: id.Primary, Path: path}
}

// Child returns a derived id one level below id using the given suffix.
func (id ID) Child(suffix string) (ID, error) {
	if suffix == "" || strings.Contains(suffix, Separator) {
		return ID{}, ErrInvalidSuffix
	}
	path := make([]string, len(id.Path), len(id.Path)+1)
	copy(path, id.Path)
	return ID{Primary: id.Primary, Path: append(path, suffix)}, nil
}

// Derive returns a new sub-agent id below parent with a ULID suffix.
func Derive(parent string) string {
	// ULIDs are Crockford base32 and can never contain the separator.
	child, _ := Parse(parent).Child(ulid.Make().String())
	return child.String()
}

// IsPrimary reports whether s is a primary id.
func IsPrimary(s string) bool {
	return !strings.Contains(s, Separator)
}

// PrimaryOf returns the primary id that s resolves to.
func PrimaryOf(s string) string {
	if i := strings.Index(s, Separator); i >= 0 {
		return s[:i]
	}
	return s
}

// IsDescendant reports whether s belongs to the task identified by primary.
func IsDescendant(s, primary string) bool {
	return PrimaryOf(s) == primary
}
