package search

import (
	"testing"
)

func TestOptions(t *testing.T) {
	var def settings

	cfg := def
	WithStopwords([]string{"  De ", "", "DA"})(&cfg)
	if _, ok := cfg.stop["de"]; !ok {
		t.Fatalf("WithStopwords failed (missing 'de'): %#v", cfg.stop)
	}
	if _, ok := cfg.stop["da"]; !ok {
		t.Fatalf("WithStopwords failed (missing 'da'): %#v", cfg.stop)
	}

	cfg2 := def
	WithStopwords([]string{" ", ""})(&cfg2)
	if cfg2.stop != nil {
		t.Fatalf("blank stopwords should leave the set unset")
	}

	WithMaxDocs(2)(&cfg)
	WithMaxDocs(0)(&cfg) // no-op
	if cfg.maxDocs != 2 {
		t.Fatalf("WithMaxDocs failed: %d", cfg.maxDocs)
	}

	WithMinScore(0.2)(&cfg)
	WithMinScore(-1)(&cfg) // no-op
	if cfg.minScore != 0.2 {
		t.Fatalf("WithMinScore failed: %v", cfg.minScore)
	}
}

func patients() []Document {
	return []Document{
		{ID: "p1", Text: "João da Silva joao.silva@example.com +55 11 98888-1111"},
		{ID: "p2", Text: "Maria Souza maria@example.com"},
		{ID: "p3", Text: "Mariana Souza Lima mariana@clinic.io 123.456.789-00"},
		{ID: "empty", Text: "  ...  "},
	}
}

func TestNewIndex_SkipsEmptyAndCaps(t *testing.T) {
	if n := NewIndex(patients()).Len(); n != 3 {
		t.Fatalf("Len = %d; want 3 (token-less doc skipped)", n)
	}
	if n := NewIndex(patients(), WithMaxDocs(2)).Len(); n != 2 {
		t.Fatalf("Len with cap = %d; want 2", n)
	}
}

func TestTopK_AccentFolding(t *testing.T) {
	idx := NewIndex(patients())
	res := idx.TopK("joao", 5)
	if len(res) != 1 || res[0].ID != "p1" {
		t.Fatalf("joao → %+v; want [p1]", res)
	}
	res = idx.TopK("JOÃO", 5)
	if len(res) != 1 || res[0].ID != "p1" {
		t.Fatalf("JOÃO → %+v; want [p1]", res)
	}
}

func TestTopK_RankingAndTies(t *testing.T) {
	idx := NewIndex(patients())

	// Both p2 and p3 contain "souza"; p2 has fewer tokens so it scores higher.
	res := idx.TopK("souza", 5)
	if len(res) != 2 || res[0].ID != "p2" || res[1].ID != "p3" {
		t.Fatalf("souza → %+v; want [p2 p3]", res)
	}
	if !(res[0].Score > res[1].Score) {
		t.Fatalf("expected strictly descending scores: %+v", res)
	}

	// Exact second token wins over the shared surname.
	res = idx.TopK("mariana souza", 1)
	if len(res) != 1 || res[0].ID != "p3" {
		t.Fatalf("mariana souza → %+v; want [p3]", res)
	}
}

func TestTopK_DigitsAndEmails(t *testing.T) {
	idx := NewIndex(patients())
	if res := idx.TopK("789", 5); len(res) != 1 || res[0].ID != "p3" {
		t.Fatalf("cpf digits → %+v; want [p3]", res)
	}
	if res := idx.TopK("clinic.io", 5); len(res) != 1 || res[0].ID != "p3" {
		t.Fatalf("email domain → %+v; want [p3]", res)
	}
}

func TestTopK_EmptyInputs(t *testing.T) {
	idx := NewIndex(patients())
	if res := idx.TopK("   ", 5); res != nil {
		t.Fatalf("blank query should return nil, got %+v", res)
	}
	if res := idx.TopK("!!!", 5); res != nil {
		t.Fatalf("token-less query should return nil, got %+v", res)
	}
	if res := idx.TopK("nobody", 5); res != nil {
		t.Fatalf("no match should return nil, got %+v", res)
	}
	if res := NewIndex(nil).TopK("maria", 5); res != nil {
		t.Fatalf("empty index should return nil, got %+v", res)
	}
	// k <= 0 falls back to a default cap.
	if res := idx.TopK("example", 0); len(res) != 2 {
		t.Fatalf("k=0 → %d results; want 2", len(res))
	}
}

func TestTopK_StopwordsAndMinScore(t *testing.T) {
	idx := NewIndex(patients(), WithStopwords([]string{"da"}))
	if res := idx.TopK("da", 5); res != nil {
		t.Fatalf("stopword-only query should return nil, got %+v", res)
	}

	strict := NewIndex(patients(), WithMinScore(0.5))
	if res := strict.TopK("souza", 5); res != nil {
		t.Fatalf("min score should drop weak matches, got %+v", res)
	}
}

func TestJaccard(t *testing.T) {
	a := tokens("ana lima souza", nil)
	b := tokens("Ana Souza", nil)
	if got := a.jaccard(b); got != 2.0/3.0 {
		t.Fatalf("jaccard = %v; want 2/3", got)
	}
	if got := a.jaccard(nil); got != 0 {
		t.Fatalf("empty side should score 0, got %v", got)
	}
	if got := tokens("Conceição", nil); len(got) != 1 {
		t.Fatalf("tokens = %v", got)
	} else if _, ok := got["conceicao"]; !ok {
		t.Fatalf("accents should fold: %v", got)
	}
}
