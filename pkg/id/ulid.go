// Package id generates identifiers for records and conversations.
package id

import (
	"crypto/rand"
	"io"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ULIDGenerator generates monotonic ULIDs. Ids produced within the same
// millisecond sort in generation order.
type ULIDGenerator struct {
	mu      sync.Mutex
	entropy io.Reader
}

// ULIDOption is a functional option for ULIDGenerator.
type ULIDOption func(*ULIDGenerator)

// WithULIDReader sets a custom random reader for ULID generation.
func WithULIDReader(r io.Reader) ULIDOption {
	return func(g *ULIDGenerator) {
		g.entropy = ulid.Monotonic(r, 0)
	}
}

// NewULIDGenerator creates a new ULID generator.
func NewULIDGenerator(opts ...ULIDOption) *ULIDGenerator {
	g := &ULIDGenerator{entropy: ulid.Monotonic(rand.Reader, 0)}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate creates a new ULID string.
func (g *ULIDGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy).String()
}

// GenerateN creates n ULID strings.
func (g *ULIDGenerator) GenerateN(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = g.Generate()
	}
	return ids
}

// IsValidULID reports whether s parses as a ULID.
func IsValidULID(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}

var defaultULID = NewULIDGenerator()

// NewULID returns a ULID from the shared generator.
func NewULID() string {
	return defaultULID.Generate()
}

// NewObjectID returns a hex ObjectID string, the id format used for conversations.
func NewObjectID() string {
	return primitive.NewObjectID().Hex()
}
