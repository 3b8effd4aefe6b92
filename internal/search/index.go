// Package search ranks small in-memory record sets (patients) against a free
// text query. Matching folds case and accents, so "João" and "JOAO" are the
// same token. Results are ordered by Jaccard similarity of token sets.
//
// An Index is read-only once built and safe for concurrent use.
package search

import (
	"cmp"
	"regexp"
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// defaultTopK applies when TopK is called with k <= 0.
const defaultTopK = 10

// Document is one searchable record. Text holds everything the record should
// be findable by.
type Document struct {
	ID   string
	Text string
}

// Result is a ranked document with its similarity score in (0, 1].
type Result struct {
	ID    string
	Score float64
}

// Index ranks documents against a query.
type Index interface {
	TopK(query string, k int) []Result
	Len() int
}

// Option tunes NewIndex.
type Option func(*settings)

type settings struct {
	stop     tokenSet
	maxDocs  int
	minScore float64
}

// WithStopwords ignores words in both documents and queries. Words are
// folded the same way as the indexed text.
func WithStopwords(words []string) Option {
	return func(s *settings) {
		set := tokenSet{}
		for _, w := range words {
			if w = fold(strings.TrimSpace(w)); w != "" {
				set[w] = struct{}{}
			}
		}
		if len(set) > 0 {
			s.stop = set
		}
	}
}

// WithMaxDocs indexes at most n documents.
func WithMaxDocs(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxDocs = n
		}
	}
}

// WithMinScore drops results scoring below min.
func WithMinScore(score float64) Option {
	return func(s *settings) {
		if score > 0 {
			s.minScore = score
		}
	}
}

type entry struct {
	id     string
	tokens tokenSet
}

type jaccardIndex struct {
	set     settings
	entries []entry
}

// NewIndex builds an Index over docs. Documents without a single token are
// left out.
func NewIndex(docs []Document, opts ...Option) Index {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}

	idx := &jaccardIndex{set: s, entries: make([]entry, 0, len(docs))}
	for _, d := range docs {
		if s.maxDocs > 0 && len(idx.entries) == s.maxDocs {
			break
		}
		if toks := tokens(d.Text, s.stop); len(toks) > 0 {
			idx.entries = append(idx.entries, entry{id: d.ID, tokens: toks})
		}
	}
	return idx
}

func (x *jaccardIndex) Len() int { return len(x.entries) }

// TopK returns at most k matches, best first. Equal scores prefer the
// document with fewer tokens, then the smaller ID.
func (x *jaccardIndex) TopK(query string, k int) []Result {
	q := tokens(query, x.set.stop)
	if len(q) == 0 || len(x.entries) == 0 {
		return nil
	}
	if k <= 0 {
		k = defaultTopK
	}

	type hit struct {
		Result
		size int
	}
	var hits []hit
	for _, e := range x.entries {
		score := q.jaccard(e.tokens)
		if score == 0 || score < x.set.minScore {
			continue
		}
		hits = append(hits, hit{Result{ID: e.id, Score: score}, len(e.tokens)})
	}
	if len(hits) == 0 {
		return nil
	}

	slices.SortFunc(hits, func(a, b hit) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(a.size, b.size); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	out := make([]Result, min(k, len(hits)))
	for i := range out {
		out[i] = hits[i].Result
	}
	return out
}

type tokenSet map[string]struct{}

// jaccard is |a ∩ b| / |a ∪ b|, 0 when either set is empty.
func (a tokenSet) jaccard(b tokenSet) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	shared := 0
	for t := range small {
		if _, ok := large[t]; ok {
			shared++
		}
	}
	if shared == 0 {
		return 0
	}
	return float64(shared) / float64(len(a)+len(b)-shared)
}

var tokenRE = regexp.MustCompile(`[\p{L}\p{N}]+`)

// fold lowercases s and removes diacritics. Transformers hold state, so each
// call builds its own chain.
func fold(s string) string {
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if out, _, err := transform.String(stripMarks, s); err == nil {
		s = out
	}
	return strings.ToLower(s)
}

func tokens(s string, stop tokenSet) tokenSet {
	words := tokenRE.FindAllString(fold(s), -1)
	if len(words) == 0 {
		return nil
	}
	set := make(tokenSet, len(words))
	for _, w := range words {
		if _, skip := stop[w]; !skip {
			set[w] = struct{}{}
		}
	}
	return set
}
