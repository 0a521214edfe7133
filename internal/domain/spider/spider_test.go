package spider

import "testing"

const samplePage = `<html><body>
<a href="/page2">next</a>
<a href="https://other.test/evil">offsite</a>
<img src="/logo.png">
<form action="/login" method="post">
  <input name="user" type="text">
  <input name="pass" type="password">
</form>
</body></html>`

func TestSpider_StartProcessResponse(t *testing.T) {
	t.Parallel()
	s := New()
	s.Start([]string{"http://example.test"}, 5, 100)

	s.ProcessResponse("http://example.test/index", "text/html", []byte(samplePage))

	visited, discovered, queued := s.Stats()
	if visited != 1 {
		t.Fatalf("visited = %d, want 1", visited)
	}
	if discovered < 2 {
		t.Fatalf("discovered = %d, want >= 2", discovered)
	}
	if queued != 1 {
		t.Fatalf("queued = %d, want 1 (only /page2 is in scope and not a static asset)", queued)
	}

	forms := s.Forms()
	if len(forms) != 1 || len(forms[0].Inputs) != 2 {
		t.Fatalf("forms = %+v", forms)
	}
}

func TestSpider_IdleIgnoresResponses(t *testing.T) {
	t.Parallel()
	s := New()
	s.ProcessResponse("http://example.test/", "text/html", []byte(samplePage))

	visited, discovered, queued := s.Stats()
	if visited != 0 || discovered != 0 || queued != 0 {
		t.Fatalf("expected no state change while idle, got %d %d %d", visited, discovered, queued)
	}
}

func TestSpider_OutOfScopeSkipped(t *testing.T) {
	t.Parallel()
	s := New()
	s.Start([]string{"http://example.test"}, 5, 100)

	s.ProcessResponse("http://other.test/", "text/html", []byte(samplePage))

	visited, _, _ := s.Stats()
	if visited != 0 {
		t.Fatalf("visited = %d, want 0 for out-of-scope page", visited)
	}
}

func TestSpider_DequeueMarksVisited(t *testing.T) {
	t.Parallel()
	s := New()
	s.Start([]string{"http://example.test"}, 5, 100)
	s.ProcessResponse("http://example.test/index", "text/html", []byte(samplePage))

	url, ok := s.Dequeue()
	if !ok || url != "http://example.test/page2" {
		t.Fatalf("Dequeue() = %q, %v", url, ok)
	}

	_, ok = s.Dequeue()
	if ok {
		t.Fatal("Dequeue() should be empty after draining queue")
	}
}

func TestSpider_MaxURLsHalts(t *testing.T) {
	t.Parallel()
	s := New()
	s.Start([]string{"http://example.test"}, 5, 1)
	s.ProcessResponse("http://example.test/index", "text/html", []byte(samplePage))

	_, discovered, _ := s.Stats()
	if discovered > 1 {
		t.Fatalf("discovered = %d, want <= 1 (max_urls halts enqueuing)", discovered)
	}
}

func TestSpider_Clear(t *testing.T) {
	t.Parallel()
	s := New()
	s.Start([]string{"http://example.test"}, 5, 100)
	s.ProcessResponse("http://example.test/index", "text/html", []byte(samplePage))
	s.Clear()

	if s.State() != StateIdle {
		t.Fatalf("State() = %q, want idle", s.State())
	}
	visited, discovered, queued := s.Stats()
	if visited != 0 || discovered != 0 || queued != 0 {
		t.Fatalf("expected wiped state, got %d %d %d", visited, discovered, queued)
	}
}
