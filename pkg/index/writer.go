package index

import (
	"sort"
	"strings"
)

// Writer renders CacheState into the human-readable index artifact and
// writes it atomically.
type Writer struct {
	path   string
	prefix string
	order  []SourceType
}

// NewWriter returns a Writer. An empty order defaults to [file, url].
func NewWriter(path, prefix string, order []SourceType) *Writer {
	if len(order) == 0 {
		order = []SourceType{SourceTypeFile, SourceTypeURL}
	}

	return &Writer{path: path, prefix: prefix, order: order}
}

// Render produces the artifact text for the current cache contents. Only
// records with summary_pending=false and a non-empty summary_text
// contribute a block. Blocks are grouped by source type in configured
// order, then sorted byte-wise ascending by source id within each group.
//
// Callers racing provider refreshes or summarizer commits must hold
// cache.Lock() around Render, same as Save.
func (w *Writer) Render(cache *CacheState) string {
	byType := make(map[SourceType][]string, len(w.order))

	for id, rec := range cache.Sources {
		if rec.SummaryPending || rec.SummaryText == "" {
			continue
		}

		byType[rec.SourceType] = append(byType[rec.SourceType], id)
	}

	var blocks []string

	for _, st := range w.order {
		ids := byType[st]
		sort.Strings(ids)

		for _, id := range ids {
			rec := cache.Sources[id]
			blocks = append(blocks, id+"\n"+strings.TrimSpace(rec.SummaryText))
		}
	}

	var b strings.Builder

	if w.prefix != "" {
		b.WriteString(w.prefix)
		b.WriteString("\n\n")
	}

	b.WriteString(strings.Join(blocks, "\n\n"))

	return b.String()
}

// Write renders and atomically persists the index artifact.
func (w *Writer) Write(cache *CacheState) error {
	return writeFileAtomic(w.path, []byte(w.Render(cache)), 0o644)
}
