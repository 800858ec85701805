package fileprovider_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lukewwww/community-intern/pkg/index"
	"github.com/lukewwww/community-intern/pkg/index/fileprovider"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestProvider_DiscoverSkipsDotfiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.md"), "A")
	writeFile(t, filepath.Join(dir, ".hidden"), "H")
	writeFile(t, filepath.Join(dir, "sub", "b.md"), "B")

	p := fileprovider.New(dir)

	discovered, err := p.Discover(context.Background(), time.Now())
	require.NoError(t, err)

	assert.Contains(t, discovered, "a.md")
	assert.Contains(t, discovered, "sub/b.md")
	assert.NotContains(t, discovered, ".hidden")
	assert.Len(t, discovered, 2)
}

func TestProvider_InitRecordSetsHashAndPending(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.md"), "Hello\r\nWorld\n")

	p := fileprovider.New(dir)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	rec, err := p.InitRecord(context.Background(), "a.md", now)
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, index.SourceTypeFile, rec.SourceType)
	assert.True(t, rec.SummaryPending)
	assert.NotEmpty(t, rec.ContentHash)
	require.NotNil(t, rec.File)
	assert.Equal(t, "a.md", rec.File.RelPath)
}

func TestProvider_RefreshDetectsNoChangeOnIdenticalStat(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "a.md")
	writeFile(t, path, "Hello\nWorld")

	p := fileprovider.New(dir)
	now := time.Now()

	rec, err := p.InitRecord(context.Background(), "a.md", now)
	require.NoError(t, err)
	rec.SummaryPending = false

	cache := index.NewCacheState()
	cache.Sources["a.md"] = rec

	changed, err := p.Refresh(context.Background(), cache, now)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.False(t, cache.Sources["a.md"].SummaryPending)
}

func TestProvider_RefreshDetectsContentChangeViaStat(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "a.md")
	writeFile(t, path, "Hello\nWorld")

	p := fileprovider.New(dir)
	now := time.Now()

	rec, err := p.InitRecord(context.Background(), "a.md", now)
	require.NoError(t, err)
	rec.SummaryPending = false

	cache := index.NewCacheState()
	cache.Sources["a.md"] = rec

	// Force a different mtime and size so the stat comparison fires.
	later := now.Add(time.Hour)
	writeFile(t, path, "Hello\nWorld!!")
	require.NoError(t, os.Chtimes(path, later, later))

	changed, err := p.Refresh(context.Background(), cache, later)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, cache.Sources["a.md"].SummaryPending)
}

func TestProvider_LoadTextReadsCurrentContent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.md"), "hello")

	p := fileprovider.New(dir)

	text, ok, err := p.LoadText(context.Background(), "a.md")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "hello", text)
}

func TestProvider_LoadTextMissingFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := fileprovider.New(dir)

	_, ok, err := p.LoadText(context.Background(), "missing.md")
	require.NoError(t, err)
	assert.False(t, ok)
}
