package storage

import (
	"testing"

	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"
)

func TestNextIdUnique(t *testing.T) {
	t.Parallel()

	numIds := 100000
	seen := make(map[string]bool)
	for i := range numIds {
		id := NextId()
		if seen[id] {
			t.Errorf("ID %s is repeated on loop %d", id, i)
		}
		seen[id] = true
	}
}

func TestNextIdIsKsuid(t *testing.T) {
	t.Parallel()

	id := NextId()
	assert.Len(t, id, 27)
	parsed, err := ksuid.Parse(id)
	assert.NoError(t, err)
	assert.False(t, parsed.IsNil())
}
