package intruder

import "testing"

func TestApplyChain_Identity(t *testing.T) {
	t.Parallel()
	out, err := ApplyChain(nil, "hello")
	if err != nil {
		t.Fatalf("ApplyChain() error: %v", err)
	}
	if out != "hello" {
		t.Fatalf("out = %q, want hello", out)
	}
}

func TestApplyChain_PrefixSuffix(t *testing.T) {
	t.Parallel()
	chain := []Processor{{Op: "prefix", Value: "<<"}, {Op: "suffix", Value: ">>"}}
	out, err := ApplyChain(chain, "x")
	if err != nil {
		t.Fatalf("ApplyChain() error: %v", err)
	}
	if out != "<<x>>" {
		t.Fatalf("out = %q, want <<x>>", out)
	}
}

func TestApplyChain_Base64ThenURLEncode(t *testing.T) {
	t.Parallel()
	chain := []Processor{{Op: "base64"}, {Op: "url_encode"}}
	out, err := ApplyChain(chain, "a b")
	if err != nil {
		t.Fatalf("ApplyChain() error: %v", err)
	}
	if out != "YSBi" {
		t.Fatalf("out = %q, want YSBi (no special chars to url-encode)", out)
	}
}

func TestParseProcessor(t *testing.T) {
	t.Parallel()
	p, err := ParseProcessor("prefix:ADMIN_")
	if err != nil {
		t.Fatalf("ParseProcessor() error: %v", err)
	}
	if p.Op != "prefix" || p.Value != "ADMIN_" {
		t.Fatalf("p = %+v", p)
	}

	if _, err := ParseProcessor("bogus_op"); err == nil {
		t.Fatal("ParseProcessor() expected error for unknown op")
	}
}
