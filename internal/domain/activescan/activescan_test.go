package activescan

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sentinel-intercept/proxy/internal/domain/flow"
)

func TestEnumerateInsertionPoints_Query(t *testing.T) {
	t.Parallel()
	req := &flow.Request{Method: "GET", URL: "http://x/search?q=test&page=1", Headers: flow.NewHeader()}

	points := EnumerateInsertionPoints(req)
	if len(points) != 2 {
		t.Fatalf("len(points) = %d, want 2", len(points))
	}
}

func TestEnumerateInsertionPoints_FormBody(t *testing.T) {
	t.Parallel()
	h := flow.NewHeader()
	h.Set("Content-Type", "application/x-www-form-urlencoded")
	req := &flow.Request{Method: "POST", URL: "http://x/login", Headers: h, Body: []byte("user=a&pass=b")}

	points := EnumerateInsertionPoints(req)
	if len(points) != 2 {
		t.Fatalf("len(points) = %d, want 2", len(points))
	}
}

func TestScanner_ReflectedXSS(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("echo: " + r.URL.Query().Get("q")))
	}))
	defer srv.Close()

	req := &flow.Request{Method: "GET", URL: srv.URL + "/?q=hi", Headers: flow.NewHeader()}
	rec := flow.NewRecord(1, *req)

	s := New()
	s.Scan(context.Background(), rec, req)

	found := false
	for _, v := range rec.Vulnerabilities() {
		if v.Type == "XSS" {
			found = true
		}
	}
	if !found {
		t.Fatalf("vulns = %+v, want XSS", rec.Vulnerabilities())
	}
}

func TestScanner_SQLiErrorBased(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id") != "1" {
			w.Write([]byte("You have an error in your SQL syntax; check the MySQL manual"))
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	req := &flow.Request{Method: "GET", URL: srv.URL + "/?id=1", Headers: flow.NewHeader()}
	rec := flow.NewRecord(1, *req)

	s := New()
	s.Scan(context.Background(), rec, req)

	found := false
	for _, v := range rec.Vulnerabilities() {
		if v.Type == "SQLi" {
			found = true
		}
	}
	if !found {
		t.Fatalf("vulns = %+v, want SQLi", rec.Vulnerabilities())
	}
}
