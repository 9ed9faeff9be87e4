package search

import (
	"sort"
	"strings"
	"sync"
)

// Memory is the fallback backend: a case-insensitive substring match over
// indexed records, always available.
type Memory struct {
	mu      sync.RWMutex
	records map[string]DocumentRecord
}

func NewMemory() *Memory {
	return &Memory{records: map[string]DocumentRecord{}}
}

// Healthy always reports true; the in-memory index cannot go away.
func (m *Memory) Healthy() bool {
	return true
}

// IndexDocument adds or updates a record.
func (m *Memory) IndexDocument(doc DocumentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[doc.ID] = doc
	return nil
}

// DeleteDocument removes a record.
func (m *Memory) DeleteDocument(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}

// Clear drops every record. Used when the whole state is replaced.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = map[string]DocumentRecord{}
}

// Search matches the query as a substring of title, client name or text.
func (m *Memory) Search(q Query) ([]Result, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(q.Text))
	matches := []Result{}
	for _, rec := range m.records {
		if needle != "" &&
			!strings.Contains(strings.ToLower(rec.Title), needle) &&
			!strings.Contains(strings.ToLower(rec.ClientName), needle) &&
			!strings.Contains(strings.ToLower(rec.Text), needle) {
			continue
		}
		matches = append(matches, Result{
			ID:         rec.ID,
			Title:      rec.Title,
			ClientName: rec.ClientName,
			Snippet:    snippet(rec.Text, needle),
		})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Title < matches[j].Title })

	total := len(matches)
	if q.Offset > 0 {
		if q.Offset >= len(matches) {
			matches = []Result{}
		} else {
			matches = matches[q.Offset:]
		}
	}
	limit := q.Limit
	if limit == 0 {
		limit = 20
	}
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, total, nil
}

// snippet returns a short window of text around the first match.
func snippet(text, needle string) string {
	const window = 80
	if text == "" {
		return ""
	}
	idx := 0
	if needle != "" {
		idx = strings.Index(strings.ToLower(text), needle)
		if idx < 0 {
			idx = 0
		}
	}
	start := idx - window/2
	if start < 0 {
		start = 0
	}
	end := start + window
	if end > len(text) {
		end = len(text)
	}
	return strings.TrimSpace(text[start:end])
}
