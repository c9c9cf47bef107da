package changeset

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChangeSet(t *testing.T) {
	var empty ChangeSet
	assert.True(t, empty.Empty())
	assert.Equal(t, 0, empty.Len())
	assert.Empty(t, empty.Names())

	cs := ChangeSet{Table: "t", Columns: map[string]any{"text": "a", "count": int64(1)}}
	assert.False(t, cs.Empty())
	assert.Equal(t, 2, cs.Len())
	assert.Equal(t, []string{"count", "text"}, cs.Names())
	assert.True(t, cs.Has("text"))
	assert.False(t, cs.Has("other"))
}
