// Package scoring implements the Quality Scorer: seven weighted, clamped
// [0,1] features combined into a bounded score and a derived confidence.
package scoring

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/elliotchance/pie/v2"

	"github.com/Zemacs/openpaper/internal/webextract/document"
)

var (
	tokenRegex      = regexp.MustCompile(`[a-z0-9][a-z0-9_-]{1,}`)
	paragraphSplit  = regexp.MustCompile(`\n{2,}`)
	noiseMarkers    = map[string]struct{}{
		"cookie":        {},
		"subscribe":     {},
		"javascript":    {},
		"privacy":       {},
		"advertisement": {},
	}
	blockedMarkers = []string{
		"verify you are human",
		"access denied",
		"captcha",
		"request blocked",
	}
)

func clamp(value, lower, upper float64) float64 {
	if value < lower {
		return lower
	}
	if value > upper {
		return upper
	}
	return value
}

func clamp01(value float64) float64 { return clamp(value, 0.0, 1.0) }

func tokenize(text string) []string {
	return tokenRegex.FindAllString(strings.ToLower(text), -1)
}

func nonEmptyParagraphs(text string) []string {
	var out []string
	for _, part := range paragraphSplit.Split(text, -1) {
		if strings.TrimSpace(part) != "" {
			out = append(out, part)
		}
	}
	return out
}

func scoreLength(text string) float64 {
	return clamp01(float64(len(text)) / 8000.0)
}

func scoreParagraphDensity(text string) float64 {
	return clamp01(float64(len(nonEmptyParagraphs(text))) / 18.0)
}

func scoreNoiseRatio(text string) float64 {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return 0.0
	}
	noisy := 0
	for _, tok := range tokens {
		if _, ok := noiseMarkers[tok]; ok || strings.HasPrefix(tok, "http") || strings.Contains(tok, ".com") {
			noisy++
		}
	}
	ratio := float64(noisy) / float64(max(1, len(tokens)))
	return clamp01(1.0 - ratio*3.0)
}

func scoreTitleCoherence(title *string, text string) float64 {
	if title == nil || strings.TrimSpace(*title) == "" {
		return 0.4
	}
	titleTokens := pie.Unique(tokenize(*title))
	if len(titleTokens) == 0 {
		return 0.4
	}
	lead := text
	if len(lead) > 1200 {
		lead = lead[:1200]
	}
	leadTokens := make(map[string]struct{})
	for _, tok := range pie.Unique(tokenize(lead)) {
		leadTokens[tok] = struct{}{}
	}
	overlap := 0
	for _, tok := range titleTokens {
		if _, ok := leadTokens[tok]; ok {
			overlap++
		}
	}
	denom := len(titleTokens)
	if denom < 2 {
		denom = 2
	}
	return clamp01(float64(overlap) / float64(denom))
}

func scoreLanguageContinuity(text string) float64 {
	if text == "" {
		return 0.0
	}
	var alpha, printable int
	for _, ch := range text {
		if unicode.IsPrint(ch) {
			printable++
		}
		if unicode.IsLetter(ch) {
			alpha++
		}
	}
	ratio := float64(alpha) / float64(max(1, printable))
	return clamp01(ratio * 2.0)
}

func scoreDeduplication(text string) float64 {
	paragraphs := nonEmptyParagraphs(text)
	trimmed := make([]string, len(paragraphs))
	for i, p := range paragraphs {
		trimmed[i] = strings.TrimSpace(p)
	}
	if len(trimmed) == 0 {
		return 0.0
	}
	unique := pie.Unique(trimmed)
	return clamp01(float64(len(unique)) / float64(len(trimmed)))
}

func scoreStructureDiversity(candidate *document.ExtractionCandidate) float64 {
	if len(candidate.Blocks) == 0 {
		return 0.25
	}
	types := make(map[string]struct{})
	for _, b := range candidate.Blocks {
		t := b.Type
		if t == "" {
			t = "paragraph"
		}
		types[t] = struct{}{}
	}
	switch {
	case len(types) >= 3:
		return 1.0
	case len(types) == 2:
		return 0.7
	default:
		return 0.45
	}
}

func penaltyForBlockedContent(text string) float64 {
	lowered := strings.ToLower(text)
	for _, marker := range blockedMarkers {
		if strings.Contains(lowered, marker) {
			return 0.35
		}
	}
	return 0.0
}

// Score implements spec §4.8: the seven weighted features combined into a
// clamped score, minus a blocked-content penalty, plus a derived
// confidence.
func Score(candidate *document.ExtractionCandidate) document.ScoreResult {
	text := candidate.RawContent

	features := document.ScoreFeatures{
		Length:             scoreLength(text),
		ParagraphDensity:   scoreParagraphDensity(text),
		NoiseRatio:         scoreNoiseRatio(text),
		TitleCoherence:     scoreTitleCoherence(candidate.Title, text),
		LanguageContinuity: scoreLanguageContinuity(text),
		Deduplication:      scoreDeduplication(text),
		StructureDiversity: scoreStructureDiversity(candidate),
	}

	weighted := 0.20*features.Length +
		0.15*features.ParagraphDensity +
		0.20*features.NoiseRatio +
		0.15*features.TitleCoherence +
		0.10*features.LanguageContinuity +
		0.10*features.Deduplication +
		0.10*features.StructureDiversity

	score := clamp01(weighted - penaltyForBlockedContent(text))
	confidence := clamp01(0.40 + 0.45*score + 0.15*maxFloat(features.Length, features.ParagraphDensity))

	return document.ScoreResult{Score: score, Confidence: confidence, Features: features}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
