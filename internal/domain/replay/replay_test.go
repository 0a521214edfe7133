package replay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sentinel-intercept/proxy/internal/domain/cookiejar"
	"github.com/sentinel-intercept/proxy/internal/domain/history"
	"github.com/sentinel-intercept/proxy/internal/domain/rules"
)

func TestExecutor_SendFromRaw(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") != "new" {
			t.Errorf("upstream saw q=%q, want new", r.URL.Query().Get("q"))
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	e := New(cookiejar.New(), time.Second)
	raw := []byte("GET /?q=old HTTP/1.1\r\nHost: " + srv.Listener.Addr().String() + "\r\n\r\n")

	resp, err := e.SendFromRaw(context.Background(), raw, nil, "q", "new")
	if err != nil {
		t.Fatalf("SendFromRaw() error: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if string(resp.Body) != "ok" {
		t.Fatalf("Body = %q", resp.Body)
	}
}

func TestExecutor_SendFromRaw_CapturesCookies(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc"})
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	jar := cookiejar.New()
	e := New(jar, time.Second)
	raw := []byte("GET / HTTP/1.1\r\nHost: " + srv.Listener.Addr().String() + "\r\n\r\n")

	if _, err := e.SendFromRaw(context.Background(), raw, nil, "", ""); err != nil {
		t.Fatalf("SendFromRaw() error: %v", err)
	}

	captured := jar.CapturedFor(rules.NormalizeHost(srv.Listener.Addr().String()))
	if captured["session"] != "abc" {
		t.Fatalf("captured = %+v, want session=abc", captured)
	}
}

func TestExecutor_SendFromRaw_CommitsHistory(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	e := New(cookiejar.New(), time.Second)
	e.History = history.New(10)
	raw := []byte("GET / HTTP/1.1\r\nHost: " + srv.Listener.Addr().String() + "\r\n\r\n")

	if _, err := e.SendFromRaw(context.Background(), raw, nil, "", ""); err != nil {
		t.Fatalf("SendFromRaw() error: %v", err)
	}
	if e.History.Len() != 1 {
		t.Fatalf("History.Len() = %d, want 1", e.History.Len())
	}
	entries := e.History.All()
	if entries[0].Response.StatusCode != http.StatusTeapot {
		t.Fatalf("StatusCode = %d, want %d", entries[0].Response.StatusCode, http.StatusTeapot)
	}
}

func TestExecutor_Attempt_DoesNotCommitHistory(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	e := New(cookiejar.New(), time.Second)
	e.History = history.New(10)
	raw := []byte("GET / HTTP/1.1\r\nHost: " + srv.Listener.Addr().String() + "\r\n\r\n")

	if _, err := e.Attempt(context.Background(), raw, nil, "", ""); err != nil {
		t.Fatalf("Attempt() error: %v", err)
	}
	if e.History.Len() != 0 {
		t.Fatalf("History.Len() = %d, want 0", e.History.Len())
	}
}
