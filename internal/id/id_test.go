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

	for range count {
		v, err := Generate("tag")
		require.NoError(t, err)
		assert.False(t, ids[v], "ID should be unique: %s", v)
		ids[v] = true
	}

	assert.Len(t, ids, count)
}

func TestGenerate_Format(t *testing.T) {
	v, err := Generate("tag")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(v, "tag-"))
	assert.Len(t, strings.TrimPrefix(v, "tag-"), 21)
}

func TestGenerate_EmptyPrefix(t *testing.T) {
	v, err := Generate("")
	require.NoError(t, err)

	assert.Len(t, v, 21)
	assert.False(t, strings.HasPrefix(v, "-"))
}

func TestForDocumentType(t *testing.T) {
	tests := []struct {
		docType string
		prefix  string
	}{
		{"media.tag", "tag-"},
		{"sanity.imageAsset", "imageAsset-"},
		{"sanity.fileAsset", "fileAsset-"},
		{"plain", "plain-"},
	}

	for _, tt := range tests {
		t.Run(tt.docType, func(t *testing.T) {
			v, err := ForDocumentType(tt.docType)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(v, tt.prefix), "ID: %s", v)
		})
	}
}

func TestRevision(t *testing.T) {
	a := Revision()
	b := Revision()

	assert.Len(t, a, 32)
	assert.NotContains(t, a, "-")
	assert.NotEqual(t, a, b)
}

func TestMustGenerate_Format(t *testing.T) {
	v := MustGenerate("test")

	assert.True(t, strings.HasPrefix(v, "test-"))
	assert.Equal(t, len("test")+1+21, len(v))
}

func BenchmarkGenerate(b *testing.B) {
	for b.Loop() {
		_, _ = Generate("bench")
	}
}
