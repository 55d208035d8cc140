package quality

import (
	"fmt"
	"hash/fnv"
	"math/bits"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/caselaw-cli/internal/model"
)

// DuplicatePair reports two near-duplicate documents.
type DuplicatePair struct {
	IDA        string  `json:"id_a"`
	IDB        string  `json:"id_b"`
	Similarity float64 `json:"similarity"`
	Method     string  `json:"method"` // "exact" or "simhash"
}

func (p DuplicatePair) String() string {
	return fmt.Sprintf("%s <-> %s (%.1f%% similar, %s)", p.IDA, p.IDB, p.Similarity*100, p.Method)
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// Fingerprinter computes 64-bit SimHash fingerprints over character n-grams.
// SimHash preserves locality: similar texts produce similar hashes, so
// near-duplicates are found by Hamming distance instead of pairwise diffing
// full texts. OCR noise and formatting drift survive the comparison.
type Fingerprinter struct {
	ngramSize int
}

// NewFingerprinter creates a fingerprinter with the given shingle size
// (default 3).
func NewFingerprinter(ngramSize int) *Fingerprinter {
	if ngramSize <= 0 {
		ngramSize = 3
	}
	return &Fingerprinter{ngramSize: ngramSize}
}

// Fingerprint computes the SimHash of text. Empty text maps to zero.
func (f *Fingerprinter) Fingerprint(text string) uint64 {
	text = normalizeText(text)
	if text == "" {
		return 0
	}

	var weights [64]int
	for _, shingle := range f.shingles(text) {
		h := fnv.New64a()
		h.Write([]byte(shingle))
		hv := h.Sum64()
		for bit := 0; bit < 64; bit++ {
			if hv&(1<<uint(bit)) != 0 {
				weights[bit]++
			} else {
				weights[bit]--
			}
		}
	}

	var fp uint64
	for bit := 0; bit < 64; bit++ {
		if weights[bit] > 0 {
			fp |= 1 << uint(bit)
		}
	}
	return fp
}

// Similarity maps the Hamming distance between two fingerprints to [0, 1].
func (f *Fingerprinter) Similarity(a, b uint64) float64 {
	return 1 - float64(bits.OnesCount64(a^b))/64
}

func (f *Fingerprinter) shingles(text string) []string {
	runes := []rune(text)
	if len(runes) <= f.ngramSize {
		return []string{string(runes)}
	}
	out := make([]string, 0, len(runes)-f.ngramSize+1)
	for i := 0; i+f.ngramSize <= len(runes); i++ {
		out = append(out, string(runes[i:i+f.ngramSize]))
	}
	return out
}

// normalizeText lowercases, applies Unicode NFKC (so typographic variants of
// the same character compare equal), and collapses whitespace.
func normalizeText(text string) string {
	text = norm.NFKC.String(text)
	text = strings.ToLower(text)
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// FindDuplicates scans a dataset for near-duplicate case texts. Identical
// fingerprints are reported as exact matches; pairs whose SimHash similarity
// meets threshold (e.g. 0.9) are reported as simhash matches. Cases without
// text are ignored.
func FindDuplicates(cases []model.CaseRecord, threshold float64) []DuplicatePair {
	fp := NewFingerprinter(3)

	type doc struct {
		id   string
		hash uint64
	}
	var docs []doc
	for _, c := range cases {
		if c.Text == "" {
			continue
		}
		docs = append(docs, doc{id: c.ID, hash: fp.Fingerprint(c.Text)})
	}

	var pairs []DuplicatePair
	for i := 0; i < len(docs); i++ {
		for j := i + 1; j < len(docs); j++ {
			sim := fp.Similarity(docs[i].hash, docs[j].hash)
			if sim < threshold {
				continue
			}
			method := "simhash"
			if docs[i].hash == docs[j].hash {
				method = "exact"
			}
			pairs = append(pairs, DuplicatePair{
				IDA:        docs[i].id,
				IDB:        docs[j].id,
				Similarity: sim,
				Method:     method,
			})
		}
	}
	return pairs
}
