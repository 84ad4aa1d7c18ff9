package language

import (
	"regexp"
	"strings"
)

// Result is the outcome of a detection pass. Detect never fails; zero-signal
// input resolves to the configured fallback.
type Result struct {
	Language   string
	Confidence float64
	Indicators []string
}

type signal struct {
	name    string
	weight  float64
	pattern *regexp.Regexp
}

// Detector scores text against weighted lexical and character-class signals
// per language.
type Detector struct {
	fallback string
	signals  map[string][]signal
}

const maxConfidence = 0.95

// NewDetector builds a detector with the built-in signal tables. fallback is
// returned with confidence 0.5 on ties or zero signal.
func NewDetector(fallback string) *Detector {
	if strings.TrimSpace(fallback) == "" {
		fallback = "en"
	}
	return &Detector{
		fallback: fallback,
		signals:  builtinSignals(),
	}
}

// Detect classifies text. The confidence is the winning language's share of
// the total score, capped at 0.95.
func (d *Detector) Detect(text string) Result {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return Result{Language: d.fallback, Confidence: 0.5}
	}

	scores := make(map[string]float64)
	matched := make(map[string][]string)
	total := 0.0
	for lang, sigs := range d.signals {
		for _, s := range sigs {
			hits := s.pattern.FindAllString(text, -1)
			if len(hits) == 0 {
				continue
			}
			score := s.weight * float64(len(hits))
			scores[lang] += score
			total += score
			matched[lang] = append(matched[lang], s.name)
		}
	}
	if total == 0 {
		return Result{Language: d.fallback, Confidence: 0.5}
	}

	best, bestScore, tie := "", 0.0, false
	for lang, score := range scores {
		switch {
		case score > bestScore:
			best, bestScore, tie = lang, score, false
		case score == bestScore && lang != best:
			tie = true
		}
	}
	if tie || best == "" {
		return Result{Language: d.fallback, Confidence: 0.5}
	}

	confidence := bestScore / total
	if confidence > maxConfidence {
		confidence = maxConfidence
	}
	return Result{Language: best, Confidence: confidence, Indicators: matched[best]}
}

func builtinSignals() map[string][]signal {
	return map[string][]signal{
		"id": {
			{name: "id_stopwords", weight: 2.0, pattern: regexp.MustCompile(`\b(yang|dengan|untuk|tidak|bisa|sudah|belum|saya|kamu|ada|mau|berapa|gimana|tolong|terima kasih|makasih)\b`)},
			{name: "id_domain", weight: 2.5, pattern: regexp.MustCompile(`\b(pesan|pesanan|harga|stok|kirim|alamat|bayar|ongkir|beli)\b`)},
			{name: "id_currency", weight: 1.5, pattern: regexp.MustCompile(`\brp\.?\s?\d|\b\d+(\.\d{3})+\b|\bribu\b|\bjuta\b`)},
		},
		"vi": {
			{name: "vi_diacritics", weight: 3.0, pattern: regexp.MustCompile(`[ăâđêôơưạảấầẩẫậắằẳẵặẹẻẽếềểễệỉịọỏốồổỗộớờởỡợụủứừửữựỳỵỷỹ]`)},
			{name: "vi_stopwords", weight: 2.0, pattern: regexp.MustCompile(`\b(anh|chị|em|không|của|cho|với|này|được|nhé|ạ)\b`)},
			{name: "vi_currency", weight: 1.5, pattern: regexp.MustCompile(`\b\d+k\b|\bđồng\b|\bvnd\b`)},
		},
		"en": {
			{name: "en_stopwords", weight: 2.0, pattern: regexp.MustCompile(`\b(the|and|with|would|could|please|thanks|want|have|how|much|what|where)\b`)},
			{name: "en_domain", weight: 2.5, pattern: regexp.MustCompile(`\b(order|price|stock|delivery|address|payment|shipping|buy)\b`)},
			{name: "en_currency", weight: 1.5, pattern: regexp.MustCompile(`\$\s?\d|\busd\b|\bdollars?\b`)},
		},
	}
}
