package intent

import (
	"regexp"
	"strings"
)

type pattern struct {
	intent   Intent
	weight   float64
	keywords []string
	res      []*regexp.Regexp
}

// PatternScorer is the cheap first phase of classification: keyword and regex
// scoring tuned per industry. Scores saturate at 1.0.
type PatternScorer struct {
	base       []pattern
	byIndustry map[string][]pattern
}

func NewPatternScorer() *PatternScorer {
	return &PatternScorer{
		base: []pattern{
			{
				intent:   PlaceOrder,
				weight:   0.3,
				keywords: []string{"order", "buy", "purchase", "pesan", "beli", "mau ambil", "đặt hàng", "mua"},
				res: []*regexp.Regexp{
					regexp.MustCompile(`(?i)\b(i('d| would)? like to (order|buy))\b`),
					regexp.MustCompile(`(?i)\b(mau|ingin) (pesan|beli|order)\b`),
					regexp.MustCompile(`(?i)\b\d+\s*(pcs|unit|buah|porsi|x)\b`),
				},
			},
			{
				intent:   UpdateOrder,
				weight:   0.35,
				keywords: []string{"change my order", "update order", "cancel", "ubah pesanan", "batal", "ganti alamat", "đổi đơn"},
				res: []*regexp.Regexp{
					regexp.MustCompile(`(?i)\b(order|pesanan)\s*(code|kode|#)?\s*[A-Z]{2,}-?\d{3,}\b`),
					regexp.MustCompile(`(?i)\b(ubah|ganti|batal(kan)?|cancel|change|update)\b.*\b(order|pesanan|đơn)\b`),
				},
			},
			{
				intent:   CheckQuantity,
				weight:   0.35,
				keywords: []string{"in stock", "stock", "available", "stok", "ready", "tersedia", "còn hàng"},
				res: []*regexp.Regexp{
					regexp.MustCompile(`(?i)\b(is|are|masih|apakah)\b.*\b(stock|stok|ready|tersedia|available)\b`),
					regexp.MustCompile(`(?i)\b(how many|berapa (banyak|stok)|còn bao nhiêu)\b`),
				},
			},
			{
				intent:   Information,
				weight:   0.2,
				keywords: []string{"how", "what", "where", "when", "price", "berapa", "gimana", "dimana", "harga", "bao nhiêu", "giá"},
			},
		},
		byIndustry: map[string][]pattern{
			"retail": {
				{intent: PlaceOrder, weight: 0.25, keywords: []string{"cart", "checkout", "keranjang", "size", "ukuran", "warna"}},
				{intent: CheckQuantity, weight: 0.2, keywords: []string{"restock", "pre-order", "po", "sisa"}},
			},
			"food": {
				{intent: PlaceOrder, weight: 0.3, keywords: []string{"menu", "delivery", "antar", "porsi", "pedas", "takeaway"}},
			},
			"services": {
				{intent: PlaceOrder, weight: 0.25, keywords: []string{"book", "booking", "appointment", "jadwal", "reservasi"}},
			},
		},
	}
}

// Score returns the best-matching intent and a saturating score in [0,1].
// Zero signal yields (Information, 0).
func (s *PatternScorer) Score(message, industry string) (Intent, float64) {
	text := strings.ToLower(strings.TrimSpace(message))
	if text == "" {
		return Information, 0
	}
	patterns := make([]pattern, 0, len(s.base)+4)
	patterns = append(patterns, s.base...)
	patterns = append(patterns, s.byIndustry[strings.ToLower(industry)]...)

	scores := make(map[Intent]float64)
	for _, p := range patterns {
		hits := 0
		for _, kw := range p.keywords {
			if strings.Contains(text, kw) {
				hits++
			}
		}
		for _, re := range p.res {
			if re.MatchString(text) {
				hits += 2
			}
		}
		if hits == 0 {
			continue
		}
		scores[p.intent] += p.weight * float64(hits)
	}
	if len(scores) == 0 {
		return Information, 0
	}

	best, bestScore := Information, 0.0
	for in, score := range scores {
		if score > bestScore {
			best, bestScore = in, score
		}
	}
	if bestScore > 1 {
		bestScore = 1
	}
	return best, bestScore
}
