package retrieval

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
)

type stubIndex struct {
	hits       []Hit
	err        error
	fbHits     []Hit
	fbErr      error
	queries    []string
	fbQueries  []string
	fbDisabled bool
}

func (s *stubIndex) Search(ctx context.Context, tenantID, query string, limit int, threshold float64) ([]Hit, error) {
	s.queries = append(s.queries, query)
	if s.err != nil {
		return nil, s.err
	}
	return s.hits, nil
}

func (s *stubIndex) FallbackSearch(ctx context.Context, tenantID, query string, limit int) ([]Hit, error) {
	s.fbQueries = append(s.fbQueries, query)
	if s.fbErr != nil {
		return nil, s.fbErr
	}
	return s.fbHits, nil
}

type stubTranslator struct {
	out map[string]string
	err error
}

func (s *stubTranslator) Translate(ctx context.Context, text, lang string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.out[lang], nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestRetrieveRanksByScore(t *testing.T) {
	idx := &stubIndex{hits: []Hit{
		{Content: "low relevance passage", Score: 0.2, Source: "doc"},
		{Content: "high relevance passage", Score: 0.9, Source: "doc"},
		{Content: "mid relevance passage", Score: 0.5, Source: "doc"},
	}}
	r := NewRetriever(idx, nil, discard())
	res := r.Retrieve(context.Background(), "t1", "harga kopi", Options{})
	if len(res.Hits) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(res.Hits))
	}
	if res.Hits[0].Score != 0.9 {
		t.Fatalf("expected descending order, got %+v", res.Hits)
	}
}

func TestRetrieveExpandsQueryPerCorpusLanguage(t *testing.T) {
	idx := &stubIndex{hits: []Hit{{Content: "x", Score: 1}}}
	tr := &stubTranslator{out: map[string]string{"en": "coffee price"}}
	r := NewRetriever(idx, tr, discard())
	r.Retrieve(context.Background(), "t1", "harga kopi", Options{
		QueryLanguage:   "id",
		CorpusLanguages: []string{"id", "en"},
	})
	if len(idx.queries) != 2 {
		t.Fatalf("expected 2 query variants, got %v", idx.queries)
	}
	if idx.queries[1] != "coffee price" {
		t.Fatalf("expected translated variant, got %v", idx.queries)
	}
}

func TestRetrieveFallsBackOnIndexFailure(t *testing.T) {
	idx := &stubIndex{
		err:    errors.New("index down"),
		fbHits: []Hit{{Content: "keyword result", Score: 0.4}},
	}
	r := NewRetriever(idx, nil, discard())
	res := r.Retrieve(context.Background(), "t1", "harga", Options{})
	if len(res.Hits) != 1 || res.Hits[0].Content != "keyword result" {
		t.Fatalf("expected fallback hits, got %+v", res)
	}
}

func TestRetrieveSentinelOnTotalFailure(t *testing.T) {
	idx := &stubIndex{err: errors.New("index down"), fbErr: errors.New("also down")}
	r := NewRetriever(idx, nil, discard())
	res := r.Retrieve(context.Background(), "t1", "harga", Options{})
	if len(res.Hits) != 0 {
		t.Fatalf("expected no hits, got %+v", res.Hits)
	}
	if res.Note != Sentinel {
		t.Fatalf("expected sentinel note, got %q", res.Note)
	}
}

func TestRetrieveCapsResults(t *testing.T) {
	var hits []Hit
	for i := 0; i < 20; i++ {
		hits = append(hits, Hit{Content: strings.Repeat("p", 40) + string(rune('a'+i)), Score: float64(i)})
	}
	idx := &stubIndex{hits: hits}
	r := NewRetriever(idx, nil, discard())
	res := r.Retrieve(context.Background(), "t1", "q", Options{})
	if len(res.Hits) > maxResults {
		t.Fatalf("expected at most %d hits, got %d", maxResults, len(res.Hits))
	}
}

func TestDedupDropsContainedNearDuplicate(t *testing.T) {
	long := "arabica beans from gayo highlands roasted medium for espresso and manual brew"
	sub := long[:int(float64(len(long))*0.95)]
	out := Dedup([]Hit{{Content: long, Score: 0.9}, {Content: sub, Score: 0.8}}, 0.7)
	if len(out) != 1 {
		t.Fatalf("expected 1 survivor, got %d", len(out))
	}
	if out[0].Content != long {
		t.Fatalf("expected the earlier (higher ranked) hit kept")
	}
}

func TestDedupKeepsLowOverlapPair(t *testing.T) {
	a := "arabica beans from gayo highlands roasted medium"
	b := "gayo"
	out := Dedup([]Hit{{Content: a}, {Content: b}}, 0.7)
	if len(out) != 2 {
		t.Fatalf("expected both kept, got %d", len(out))
	}
}

func TestDedupExactNormalizedDuplicate(t *testing.T) {
	out := Dedup([]Hit{
		{Content: "Harga  Kopi   Susu"},
		{Content: "harga kopi susu"},
	}, 0.7)
	if len(out) != 1 {
		t.Fatalf("expected exact-normalized dup removed, got %d", len(out))
	}
}

func TestDedupIdempotent(t *testing.T) {
	hits := []Hit{
		{Content: "arabica beans from gayo highlands roasted medium"},
		{Content: "robusta beans from lampung dark roast"},
		{Content: "house blend for milk-based drinks"},
	}
	once := Dedup(hits, 0.7)
	twice := Dedup(once, 0.7)
	if len(once) != len(twice) {
		t.Fatalf("dedup not idempotent: %d then %d", len(once), len(twice))
	}
	for i := range once {
		if once[i].Content != twice[i].Content {
			t.Fatalf("dedup reordered on second pass")
		}
	}
}
