package rawhttp

import (
	"strings"
	"testing"
)

func TestParse_Basic(t *testing.T) {
	t.Parallel()
	raw := []byte("GET /search?q=1 HTTP/1.1\r\nHost: example.com\r\nUser-Agent: test\r\n\r\n")

	req, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if req.Method != "GET" || req.Target != "/search?q=1" {
		t.Fatalf("req = %+v", req)
	}
	if req.Headers.Get("Host") != "example.com" {
		t.Fatalf("Host = %q", req.Headers.Get("Host"))
	}
}

func TestParse_WithBody(t *testing.T) {
	t.Parallel()
	raw := []byte("POST /login HTTP/1.1\r\nHost: example.com\r\nContent-Type: application/x-www-form-urlencoded\r\n\r\nuser=a&pass=b")

	req, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if string(req.Body) != "user=a&pass=b" {
		t.Fatalf("Body = %q", req.Body)
	}
}

func TestParse_MissingHost(t *testing.T) {
	t.Parallel()
	raw := []byte("GET / HTTP/1.1\r\nUser-Agent: test\r\n\r\n")

	if _, err := Parse(raw); err == nil {
		t.Fatal("Parse() expected error for missing Host, got nil")
	}
}

func TestRequest_Scheme(t *testing.T) {
	t.Parallel()
	cases := []struct {
		host string
		want string
	}{
		{"localhost:8080", "http"},
		{"127.0.0.1:9000", "http"},
		{"192.168.1.5", "http"},
		{"example.com", "https"},
		{"api.example.com:443", "https"},
	}
	for _, tc := range cases {
		raw := []byte("GET / HTTP/1.1\r\nHost: " + tc.host + "\r\n\r\n")
		req, err := Parse(raw)
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", tc.host, err)
		}
		if got := req.Scheme(); got != tc.want {
			t.Errorf("Scheme() for host %q = %q, want %q", tc.host, got, tc.want)
		}
	}
}

func TestRequest_SubstituteParam_Query(t *testing.T) {
	t.Parallel()
	raw := []byte("GET /search?q=old HTTP/1.1\r\nHost: example.com\r\n\r\n")
	req, _ := Parse(raw)

	if err := req.SubstituteParam("q", "new"); err != nil {
		t.Fatalf("SubstituteParam() error: %v", err)
	}
	if !strings.Contains(req.Target, "q=new") {
		t.Fatalf("Target = %q, want q=new", req.Target)
	}
}

func TestRequest_SubstituteParam_FormBody(t *testing.T) {
	t.Parallel()
	raw := []byte("POST /login HTTP/1.1\r\nHost: example.com\r\nContent-Type: application/x-www-form-urlencoded\r\n\r\nuser=alice&pass=old")
	req, _ := Parse(raw)

	if err := req.SubstituteParam("pass", "new"); err != nil {
		t.Fatalf("SubstituteParam() error: %v", err)
	}
	if !strings.Contains(string(req.Body), "pass=new") {
		t.Fatalf("Body = %q, want pass=new", req.Body)
	}
}

func TestRequest_SubstituteParam_AppendsNewQueryParam(t *testing.T) {
	t.Parallel()
	raw := []byte("GET /search HTTP/1.1\r\nHost: example.com\r\n\r\n")
	req, _ := Parse(raw)

	if err := req.SubstituteParam("q", "value"); err != nil {
		t.Fatalf("SubstituteParam() error: %v", err)
	}
	if !strings.Contains(req.Target, "q=value") {
		t.Fatalf("Target = %q, want to contain q=value", req.Target)
	}
}

func TestRequest_Emit_RecomputesHostAndContentLength(t *testing.T) {
	t.Parallel()
	raw := []byte("POST /login HTTP/1.1\r\nHost: example.com\r\nContent-Length: 999\r\nContent-Type: application/x-www-form-urlencoded\r\n\r\nuser=a&pass=b")
	req, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	out := string(req.Emit())
	if !strings.Contains(out, "Host: example.com") {
		t.Fatalf("Emit() missing Host: %q", out)
	}
	if strings.Contains(out, "Content-Length: 999") {
		t.Fatalf("Emit() kept stale Content-Length: %q", out)
	}
	if !strings.Contains(out, "Content-Length: 13") {
		t.Fatalf("Emit() wrong recomputed Content-Length: %q", out)
	}
}
