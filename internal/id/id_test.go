package id

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Uniqueness(t *testing.T) {
	ids := make(map[string]bool)
	count := 1000

	for i := 0; i < count; i++ {
		id, err := Generate("test")
		require.NoError(t, err)
		assert.False(t, ids[id], "ID should be unique: %s", id)
		ids[id] = true
	}

	assert.Len(t, ids, count)
}

func TestNewCheckID_Format(t *testing.T) {
	id, err := NewCheckID()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(id, "chk-"))
	assert.Len(t, id, len("chk-")+21)
}

func TestFileToken_Alphabet(t *testing.T) {
	for i := 0; i < 50; i++ {
		tok, err := FileToken()
		require.NoError(t, err)
		require.Len(t, tok, fileTokenLen)

		for _, c := range tok {
			assert.True(t, (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z'), "unexpected %q in %s", c, tok)
		}
	}
}
