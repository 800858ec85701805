package textid_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukewwww/community-intern/pkg/textid"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		in   string
		want string
	}{
		{"crlf", "Hello\r\nWorld\n", "Hello\nWorld"},
		{"cr only", "Hello\rWorld\r", "Hello\nWorld"},
		{"trailing whitespace", "Hello \t\nWorld\t\n", "Hello\nWorld"},
		{"leading and trailing blank lines", "\n\nHello\nWorld\n\n\n", "Hello\nWorld"},
		{"already normalized is a no-op", "Hello\nWorld", "Hello\nWorld"},
		{"all blank", "\n\n\n", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, textid.Normalize(tc.in))
		})
	}
}

func TestContentHash(t *testing.T) {
	t.Parallel()

	h1 := textid.ContentHash("Hello\nWorld")
	h2 := textid.ContentHash("Hello\nWorld")
	h3 := textid.ContentHash("Hello\nWorld!")

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Len(t, h1, 64)
}

func TestFormatAndParseTime(t *testing.T) {
	t.Parallel()

	tm := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	formatted := textid.FormatTime(tm)
	assert.Equal(t, "2024-01-01T00:00:00Z", formatted)

	parsed, err := textid.ParseTime(formatted)
	require.NoError(t, err)
	assert.True(t, tm.Equal(parsed))
	assert.Equal(t, time.UTC, parsed.Location())
}

func TestFileSourceID(t *testing.T) {
	t.Parallel()

	id, err := textid.FileSourceID("/sources", "/sources/sub/a.md")
	require.NoError(t, err)
	assert.Equal(t, "sub/a.md", id)
}
