package id

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestULIDGenerator(t *testing.T) {
	gen := NewULIDGenerator()

	id := gen.Generate()
	assert.Len(t, id, 26)
	assert.True(t, IsValidULID(id))
	assert.False(t, IsValidULID("not-a-ulid"))

	ids := gen.GenerateN(100)
	seen := make(map[string]struct{}, len(ids))
	for _, v := range ids {
		seen[v] = struct{}{}
	}
	assert.Len(t, seen, 100)
	assert.True(t, sort.StringsAreSorted(ids), "ids must be monotonic")
}

func TestNewObjectID(t *testing.T) {
	_, err := primitive.ObjectIDFromHex(NewObjectID())
	assert.NoError(t, err)
}
