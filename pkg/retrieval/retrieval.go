package retrieval

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/rahmatgani/aruna/pkg/errorsx"
)

// Hit is one grounding passage returned by the search index. Transient —
// produced fresh per request, never persisted.
type Hit struct {
	Content string
	Score   float64
	Source  string
	Kind    string
}

// Hit kinds.
const (
	KindDocument  = "document"
	KindInventory = "inventory"
)

// Index is the narrow boundary to the tenant-scoped hybrid search service.
type Index interface {
	// Search runs a hybrid (vector + keyword) query.
	Search(ctx context.Context, tenantID, query string, limit int, threshold float64) ([]Hit, error)
}

// FallbackIndex is an optional secondary, less-structured search used when
// the hybrid query fails.
type FallbackIndex interface {
	FallbackSearch(ctx context.Context, tenantID, query string, limit int) ([]Hit, error)
}

// Translator produces a query variant in another language. Implementations
// may be LLM-backed; errors skip the variant rather than failing retrieval.
type Translator interface {
	Translate(ctx context.Context, text, targetLanguage string) (string, error)
}

// Sentinel is returned instead of passages when nothing could be retrieved.
const Sentinel = "no data found"

const (
	maxCandidates = 15
	maxResults    = 8
)

// Result carries the ranked, deduplicated passages. When Hits is empty,
// Note holds the sentinel.
type Result struct {
	Hits []Hit
	Note string
}

type Options struct {
	Industry       string
	Limit          int
	ScoreThreshold float64
	// Languages beyond the query language known to exist in the tenant
	// corpus; each adds a translated query variant.
	CorpusLanguages []string
	QueryLanguage   string
}

// Retriever fans queries out to the index, merges and dedups the hits.
type Retriever struct {
	index      Index
	translator Translator
	logger     *slog.Logger
	simThresh  float64
}

func NewRetriever(index Index, translator Translator, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		index:      index,
		translator: translator,
		logger:     logger,
		simThresh:  0.7,
	}
}

// Retrieve never returns an error: every failure degrades to the sentinel.
func (r *Retriever) Retrieve(ctx context.Context, tenantID, query string, opts Options) Result {
	if r.index == nil || strings.TrimSpace(query) == "" {
		return Result{Note: Sentinel}
	}
	limit := opts.Limit
	if limit <= 0 || limit > maxResults {
		limit = maxResults
	}

	var merged []Hit
	for _, variant := range r.expandQuery(ctx, query, opts) {
		hits, err := r.index.Search(ctx, tenantID, variant, maxCandidates, opts.ScoreThreshold)
		if err != nil {
			r.logger.Warn("hybrid_search_failed",
				"reason", errorsx.ReasonRetrievalQuery, "tenant_id", tenantID, "error", err)
			hits = r.fallback(ctx, tenantID, variant)
		}
		merged = append(merged, hits...)
	}
	if len(merged) == 0 {
		return Result{Note: Sentinel}
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	if len(merged) > maxCandidates {
		merged = merged[:maxCandidates]
	}
	deduped := Dedup(merged, r.simThresh)
	if len(deduped) > limit {
		deduped = deduped[:limit]
	}
	return Result{Hits: deduped}
}

func (r *Retriever) fallback(ctx context.Context, tenantID, query string) []Hit {
	fb, ok := r.index.(FallbackIndex)
	if !ok {
		return nil
	}
	hits, err := fb.FallbackSearch(ctx, tenantID, query, maxCandidates)
	if err != nil {
		r.logger.Warn("fallback_search_failed",
			"reason", errorsx.ReasonRetrievalFallback, "tenant_id", tenantID, "error", err)
		return nil
	}
	return hits
}

// expandQuery returns the query plus one translated variant per corpus
// language that differs from the query language.
func (r *Retriever) expandQuery(ctx context.Context, query string, opts Options) []string {
	variants := []string{query}
	if r.translator == nil {
		return variants
	}
	seen := map[string]struct{}{strings.ToLower(opts.QueryLanguage): {}}
	for _, lang := range opts.CorpusLanguages {
		lang = strings.ToLower(strings.TrimSpace(lang))
		if lang == "" {
			continue
		}
		if _, dup := seen[lang]; dup {
			continue
		}
		seen[lang] = struct{}{}
		translated, err := r.translator.Translate(ctx, query, lang)
		if err != nil || strings.TrimSpace(translated) == "" {
			continue
		}
		variants = append(variants, translated)
	}
	return variants
}
