package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

// Store encodes and decodes CacheState to a single JSON file with the
// atomic-write discipline shared by Writer.
type Store struct {
	path string
}

// NewStore returns a Store backed by path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads and decodes the cache file. A missing file, a parse failure,
// or a schema_version mismatch all yield an empty state with a warning log
// rather than an error; losing the cache only forces re-summarization, it
// is never fatal.
func (s *Store) Load(ctx context.Context) *CacheState {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			zerolog.Ctx(ctx).Warn().
				Err(err).
				Str("path", s.path).
				Msg("failed to read cache file, starting with empty state")
		}

		return NewCacheState()
	}

	var state CacheState

	if err := json.Unmarshal(data, &state); err != nil {
		zerolog.Ctx(ctx).Warn().
			Err(err).
			Str("path", s.path).
			Msg("failed to parse cache file, starting with empty state")

		return NewCacheState()
	}

	if state.SchemaVersion != SchemaVersion {
		zerolog.Ctx(ctx).Warn().
			Int("found_schema_version", state.SchemaVersion).
			Int("want_schema_version", SchemaVersion).
			Str("path", s.path).
			Msg("cache schema version mismatch, starting with empty state")

		return NewCacheState()
	}

	if state.Sources == nil {
		state.Sources = make(map[string]*CacheRecord)
	}

	return &state
}

// Save encodes cache as indented, key-sorted JSON and writes it
// atomically. encoding/json already sorts map[string]T keys on marshal;
// that built-in behavior is what gives the on-disk file a stable diff, no
// separate sort step is implemented here.
//
// Callers that mutate cache concurrently with other goroutines (the
// summarizer gate, provider refreshes) must hold cache.Lock() for the
// whole check-mutate-persist sequence; Save does not lock internally so
// that it composes into that sequence without double-locking.
func (s *Store) Save(cache *CacheState) error {
	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding cache state: %w", err)
	}

	return writeFileAtomic(s.path, data, 0o644)
}
