package match

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	punctRe      = regexp.MustCompile(`[^\p{L}\p{N}\s]`)
	multiSpaceRe = regexp.MustCompile(`\s+`)
)

// NormalizeAddress standardizes an address for comparison by:
//  1. Folding accents ("Átha" -> "atha")
//  2. Lowercasing
//  3. Stripping punctuation
//  4. Collapsing whitespace
func NormalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return ""
	}

	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, addr); err == nil {
		addr = folded
	}

	addr = strings.ToLower(addr)
	addr = punctRe.ReplaceAllString(addr, "")
	addr = multiSpaceRe.ReplaceAllString(addr, " ")
	return strings.TrimSpace(addr)
}

// AddressSimilarity scores two addresses 0-100: exact match after
// normalization is 100, containment in either direction is 80, otherwise the
// distinct words in common relative to the longer address's distinct words.
func AddressSimilarity(a, b string) float64 {
	na, nb := NormalizeAddress(a), NormalizeAddress(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 100
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return 80
	}

	wa, wb := wordSet(na), wordSet(nb)
	common := 0
	for w := range wa {
		if wb[w] {
			common++
		}
	}
	return float64(common) / float64(max(len(wa), len(wb))) * 100
}

func wordSet(s string) map[string]bool {
	words := strings.Fields(s)
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}
