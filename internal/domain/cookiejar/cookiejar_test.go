package cookiejar

import (
	"net/http"
	"testing"
)

func TestManager_ObserveResponse(t *testing.T) {
	t.Parallel()
	m := New()

	h := http.Header{}
	h.Add("Set-Cookie", "session=abc123; Path=/; HttpOnly")
	h.Add("Set-Cookie", "theme=dark; Max-Age=3600")

	m.ObserveResponse("example.com", h)

	got := m.CapturedFor("example.com")
	if got["session"] != "abc123" || got["theme"] != "dark" {
		t.Fatalf("captured = %+v", got)
	}
}

func TestManager_ObserveResponse_NoSetCookie(t *testing.T) {
	t.Parallel()
	m := New()
	m.ObserveResponse("example.com", http.Header{})

	if got := m.CapturedFor("example.com"); len(got) != 0 {
		t.Fatalf("captured = %+v, want empty", got)
	}
}

func TestManager_JarOperations(t *testing.T) {
	t.Parallel()
	m := New()

	if got := m.JarHeader(); got != "" {
		t.Fatalf("JarHeader() on empty jar = %q, want empty", got)
	}

	m.AddToJar("a", "1")
	m.AddToJar("b", "2")

	if got := m.JarHeader(); got != "a=1; b=2" {
		t.Fatalf("JarHeader() = %q, want %q", got, "a=1; b=2")
	}

	m.RemoveFromJar("a")
	if got := m.JarHeader(); got != "b=2" {
		t.Fatalf("JarHeader() after remove = %q, want %q", got, "b=2")
	}

	m.ClearJar()
	if got := m.JarHeader(); got != "" {
		t.Fatalf("JarHeader() after clear = %q, want empty", got)
	}
}

func TestManager_JarHeader_PromotionOrder(t *testing.T) {
	t.Parallel()
	m := New()
	m.AddToJar("zeta", "9")
	m.AddToJar("alpha", "1")

	if got, want := m.JarHeader(), "zeta=9; alpha=1"; got != want {
		t.Fatalf("JarHeader() = %q, want %q", got, want)
	}

	// Overwriting a name keeps its original position.
	m.AddToJar("zeta", "99")
	if got, want := m.JarHeader(), "zeta=99; alpha=1"; got != want {
		t.Fatalf("JarHeader() after overwrite = %q, want %q", got, want)
	}
}

func TestParseSetCookie(t *testing.T) {
	t.Parallel()
	cases := []struct {
		raw       string
		wantName  string
		wantValue string
		wantOK    bool
	}{
		{"a=b", "a", "b", true},
		{"a=b; Path=/", "a", "b", true},
		{"  a = b ; Secure", "a", "b", true},
		{"malformed", "", "", false},
		{"=b", "", "", false},
	}
	for _, tc := range cases {
		name, value, ok := parseSetCookie(tc.raw)
		if name != tc.wantName || value != tc.wantValue || ok != tc.wantOK {
			t.Errorf("parseSetCookie(%q) = %q, %q, %v; want %q, %q, %v",
				tc.raw, name, value, ok, tc.wantName, tc.wantValue, tc.wantOK)
		}
	}
}
