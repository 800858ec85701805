// Package fileprovider implements index.Provider over a directory tree of
// local text files, change-detected by (size, mtime) and read as UTF-8.
package fileprovider

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/lukewwww/community-intern/pkg/index"
	"github.com/lukewwww/community-intern/pkg/textid"
)

// Provider discovers and refreshes file sources under Root.
type Provider struct {
	root string
}

// New returns a Provider rooted at root.
func New(root string) *Provider {
	return &Provider{root: root}
}

// SourceType implements index.Provider.
func (p *Provider) SourceType() index.SourceType { return index.SourceTypeFile }

// Discover walks Root recursively, including every regular file whose
// basename does not start with ".".
func (p *Provider) Discover(ctx context.Context, _ time.Time) (map[string]index.SourceType, error) {
	out := make(map[string]index.SourceType)

	err := filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}

			return err
		}

		if d.IsDir() {
			return nil
		}

		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}

		id, err := textid.FileSourceID(p.root, path)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("path", path).Msg("failed to compute source id, skipping")

			return nil
		}

		out[id] = index.SourceTypeFile

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// InitRecord reads the file and creates its first CacheRecord. A decode
// failure or vanished file returns (nil, nil): skip this cycle, retry
// later.
func (p *Provider) InitRecord(ctx context.Context, sourceID string, now time.Time) (*index.CacheRecord, error) {
	path := filepath.Join(p.root, filepath.FromSlash(sourceID))

	info, err := os.Stat(path)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("source_id", sourceID).Msg("file vanished before init, skipping")

		return nil, nil //nolint:nilnil
	}

	text, ok := p.readText(ctx, path, sourceID)
	if !ok {
		return nil, nil //nolint:nilnil
	}

	normalized := textid.Normalize(text)

	return &index.CacheRecord{
		SourceType:     index.SourceTypeFile,
		ContentHash:    textid.ContentHash(normalized),
		SummaryPending: true,
		LastIndexedAt:  textid.FormatTime(now),
		File: &index.FileMetadata{
			RelPath:   sourceID,
			SizeBytes: info.Size(),
			MtimeNs:   info.ModTime().UnixNano(),
		},
	}, nil
}

// Refresh compares cached (size, mtime) against the current stat for every
// file record and re-hashes changed files.
func (p *Provider) Refresh(ctx context.Context, cache *index.CacheState, now time.Time) (bool, error) {
	cache.Lock()
	ids := make([]string, 0, len(cache.Sources))

	for id, rec := range cache.Sources {
		if rec.SourceType == index.SourceTypeFile {
			ids = append(ids, id)
		}
	}

	cache.Unlock()

	changed := false

	for _, id := range ids {
		if p.refreshOne(ctx, cache, id, now) {
			changed = true
		}
	}

	return changed, nil
}

func (p *Provider) refreshOne(ctx context.Context, cache *index.CacheState, sourceID string, now time.Time) bool {
	path := filepath.Join(p.root, filepath.FromSlash(sourceID))

	info, err := os.Stat(path)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("source_id", sourceID).Msg("failed to stat file during refresh")

		return false
	}

	cache.Lock()
	rec, ok := cache.Sources[sourceID]
	if !ok || rec.SourceType != index.SourceTypeFile {
		cache.Unlock()

		return false
	}

	unchangedStat := rec.File != nil &&
		rec.File.SizeBytes == info.Size() &&
		rec.File.MtimeNs == info.ModTime().UnixNano()
	cache.Unlock()

	if unchangedStat {
		return false
	}

	text, ok := p.readText(ctx, path, sourceID)
	if !ok {
		return false
	}

	hash := textid.ContentHash(textid.Normalize(text))

	cache.Lock()
	defer cache.Unlock()

	rec, ok = cache.Sources[sourceID]
	if !ok || rec.SourceType != index.SourceTypeFile {
		return false
	}

	if hash != rec.ContentHash || rec.SummaryPending {
		rec.SummaryPending = true
	}

	rec.ContentHash = hash
	rec.File = &index.FileMetadata{
		RelPath:   sourceID,
		SizeBytes: info.Size(),
		MtimeNs:   info.ModTime().UnixNano(),
	}
	rec.LastIndexedAt = textid.FormatTime(now)

	return true
}

// LoadText re-reads the file from disk; file sources have no separate
// extractor cache.
func (p *Provider) LoadText(ctx context.Context, sourceID string) (string, bool, error) {
	path := filepath.Join(p.root, filepath.FromSlash(sourceID))

	text, ok := p.readText(ctx, path, sourceID)

	return text, ok, nil
}

func (p *Provider) readText(ctx context.Context, path, sourceID string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("source_id", sourceID).Msg("failed to read file")

		return "", false
	}

	if !utf8.Valid(data) {
		zerolog.Ctx(ctx).Warn().Str("source_id", sourceID).Msg("file is not valid UTF-8, skipping")

		return "", false
	}

	return string(data), true
}
