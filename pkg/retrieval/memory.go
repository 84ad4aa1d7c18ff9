package retrieval

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Document is one indexable passage.
type Document struct {
	Content string
	Source  string
	Kind    string
}

// MemoryIndex is the reference Index implementation: tenant-scoped keyword
// scoring over in-memory documents. Production deployments swap in a real
// hybrid search service behind the same interface.
type MemoryIndex struct {
	mu   sync.RWMutex
	docs map[string][]Document
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{docs: make(map[string][]Document)}
}

func (m *MemoryIndex) Add(tenantID string, docs ...Document) {
	m.mu.Lock()
	m.docs[tenantID] = append(m.docs[tenantID], docs...)
	m.mu.Unlock()
}

// Search scores each document by the fraction of distinct query terms it
// contains. Documents below threshold are skipped.
func (m *MemoryIndex) Search(ctx context.Context, tenantID, query string, limit int, threshold float64) ([]Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	terms := queryTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}
	m.mu.RLock()
	docs := m.docs[tenantID]
	m.mu.RUnlock()

	var hits []Hit
	for _, doc := range docs {
		content := strings.ToLower(doc.Content)
		matched := 0
		for _, term := range terms {
			if strings.Contains(content, term) {
				matched++
			}
		}
		score := float64(matched) / float64(len(terms))
		if matched == 0 || score < threshold {
			continue
		}
		kind := doc.Kind
		if kind == "" {
			kind = KindDocument
		}
		hits = append(hits, Hit{Content: doc.Content, Score: score, Source: doc.Source, Kind: kind})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func queryTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	seen := make(map[string]struct{}, len(fields))
	var terms []string
	for _, f := range fields {
		f = strings.Trim(f, ".,!?\"'()")
		if len(f) < 3 {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		terms = append(terms, f)
	}
	return terms
}
