package intruder

import "testing"

func TestNewExtractor_ValidPattern(t *testing.T) {
	t.Parallel()
	e, err := NewExtractor("token", `token=([a-f0-9]+)`)
	if err != nil {
		t.Fatalf("NewExtractor() error: %v", err)
	}
	if got := e.Extract([]byte("response token=abc123 trailer")); got != "abc123" {
		t.Fatalf("Extract() = %q, want abc123", got)
	}
}

func TestNewExtractor_NoMatch(t *testing.T) {
	t.Parallel()
	e, _ := NewExtractor("token", `token=([a-f0-9]+)`)
	if got := e.Extract([]byte("nothing here")); got != "" {
		t.Fatalf("Extract() = %q, want empty", got)
	}
}

func TestNewExtractor_RejectsWrongGroupCount(t *testing.T) {
	t.Parallel()
	if _, err := NewExtractor("bad", `no-groups-here`); err == nil {
		t.Fatal("NewExtractor() expected error for zero capture groups")
	}
	if _, err := NewExtractor("bad", `(a)(b)`); err == nil {
		t.Fatal("NewExtractor() expected error for two capture groups")
	}
}

func TestExtractAll(t *testing.T) {
	t.Parallel()
	e1, _ := NewExtractor("a", `a=(\d+)`)
	e2, _ := NewExtractor("b", `b=(\d+)`)

	got := ExtractAll([]*Extractor{e1, e2}, []byte("a=1 b=2"))
	if len(got) != 2 || got[0] != "1" || got[1] != "2" {
		t.Fatalf("got = %+v", got)
	}
}
