// Package spider implements the HTML Spider (spec.md §4.15): a bounded
// crawler fed response bodies by the Proxy Engine, extracting links and
// forms and tracking a per-host sitemap.
package spider

import (
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/sentinel-intercept/proxy/internal/domain/rules"
)

// State is the Spider's run state machine.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
)

// Form is a discovered <form> element.
type Form struct {
	Action string
	Method string
	Inputs []FormInput
}

// FormInput is one <input name type> pair inside a discovered form.
type FormInput struct {
	Name string
	Type string
}

// SitemapEntry tracks the paths and parameter names observed for one host.
type SitemapEntry struct {
	Paths      map[string]bool
	Parameters map[string]bool
}

var staticAssetExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".svg": true, ".ico": true,
	".woff": true, ".woff2": true, ".ttf": true, ".eot": true,
	".pdf": true, ".zip": true, ".tar": true, ".gz": true, ".mp4": true, ".mp3": true,
	".css": true,
}

// Spider holds scope, crawl frontier, and discoveries behind a single
// lock. ProcessResponse holds that lock for the whole HTML parse, not
// only for the state updates, so concurrent calls are serialized.
type Spider struct {
	mu sync.Mutex

	state    State
	runID    string
	scope    []string
	maxDepth int
	maxURLs  int

	visited    map[string]bool
	queue      []string
	discovered map[string]bool
	forms      []Form
	sitemap    map[string]*SitemapEntry
}

// New creates an idle Spider.
func New() *Spider {
	return &Spider{state: StateIdle}
}

// Start transitions idle -> running, resetting the frontier and scope,
// and assigns a fresh run id correlating this crawl's events.
func (s *Spider) Start(scope []string, maxDepth, maxURLs int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateRunning
	s.runID = uuid.NewString()
	s.scope = append([]string{}, scope...)
	s.maxDepth = maxDepth
	s.maxURLs = maxURLs
	s.visited = make(map[string]bool)
	s.queue = nil
	s.discovered = make(map[string]bool)
	s.forms = nil
	s.sitemap = make(map[string]*SitemapEntry)
}

// Stop transitions running -> idle, retaining discoveries.
func (s *Spider) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateIdle
}

// Clear wipes all state and transitions to idle.
func (s *Spider) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateIdle
	s.scope = nil
	s.visited = nil
	s.queue = nil
	s.discovered = nil
	s.forms = nil
	s.sitemap = nil
}

// State returns the current run state.
func (s *Spider) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// RunID returns the current crawl's correlation id, empty before the
// first Start.
func (s *Spider) RunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runID
}

// InScope reports whether host matches the scope by same-host or
// DNS-suffix, mirroring the Rule Matcher's host comparison.
func (s *Spider) InScope(pageURL string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inScopeLocked(pageURL)
}

func (s *Spider) inScopeLocked(pageURL string) bool {
	u, err := url.Parse(pageURL)
	if err != nil {
		return false
	}
	host := rules.NormalizeHost(u.Host)
	for _, entry := range s.scope {
		su, err := url.Parse(entry)
		var scopeHost, scopeScheme string
		if err == nil && su.Host != "" {
			scopeHost = rules.NormalizeHost(su.Host)
			scopeScheme = su.Scheme
		} else {
			scopeHost = rules.NormalizeHost(entry)
		}
		if scopeScheme != "" && scopeScheme != u.Scheme {
			continue
		}
		if host == scopeHost || strings.HasSuffix(host, "."+scopeHost) {
			return true
		}
	}
	return false
}

// ProcessResponse parses an HTML body from pageURL, recording forms and
// enqueuing in-scope links, per spec.md §4.15. It is a no-op while idle.
func (s *Spider) ProcessResponse(pageURL, contentType string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning {
		return
	}
	if !strings.Contains(strings.ToLower(contentType), "html") {
		return
	}
	if !s.inScopeLocked(pageURL) {
		return
	}

	s.visited[pageURL] = true
	s.discovered[pageURL] = true
	s.recordSitemapLocked(pageURL)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return
	}

	extract := func(sel, attr string) {
		doc.Find(sel).Each(func(_ int, node *goquery.Selection) {
			val, ok := node.Attr(attr)
			if !ok || val == "" {
				return
			}
			s.enqueueLocked(base, val)
		})
	}
	extract("a[href]", "href")
	extract("link[href]", "href")
	extract("script[src]", "src")
	extract("img[src]", "src")
	extract("iframe[src]", "src")

	doc.Find("form").Each(func(_ int, node *goquery.Selection) {
		form := Form{Method: "GET"}
		if action, ok := node.Attr("action"); ok {
			if resolved, err := base.Parse(action); err == nil {
				form.Action = resolved.String()
			} else {
				form.Action = action
			}
		} else {
			form.Action = pageURL
		}
		if method, ok := node.Attr("method"); ok && method != "" {
			form.Method = strings.ToUpper(method)
		}
		node.Find("input").Each(func(_ int, input *goquery.Selection) {
			name, _ := input.Attr("name")
			typ, ok := input.Attr("type")
			if !ok {
				typ = "text"
			}
			if name == "" {
				return
			}
			form.Inputs = append(form.Inputs, FormInput{Name: name, Type: typ})
		})
		s.forms = append(s.forms, form)
	})
}

func (s *Spider) enqueueLocked(base *url.URL, raw string) {
	if len(s.discovered) >= s.maxURLs {
		return
	}
	resolved, err := base.Parse(raw)
	if err != nil {
		return
	}
	resolved.Fragment = ""
	target := resolved.String()

	if staticAssetExtensions[strings.ToLower(path.Ext(resolved.Path))] {
		return
	}
	if s.visited[target] || s.discovered[target] {
		return
	}
	for _, q := range s.queue {
		if q == target {
			return
		}
	}
	if !s.inScopeLocked(target) {
		return
	}

	s.discovered[target] = true
	s.queue = append(s.queue, target)
	s.recordSitemapLocked(target)
}

func (s *Spider) recordSitemapLocked(target string) {
	u, err := url.Parse(target)
	if err != nil {
		return
	}
	host := rules.NormalizeHost(u.Host)
	entry := s.sitemap[host]
	if entry == nil {
		entry = &SitemapEntry{Paths: make(map[string]bool), Parameters: make(map[string]bool)}
		s.sitemap[host] = entry
	}
	entry.Paths[u.Path] = true
	for name := range u.Query() {
		entry.Parameters[name] = true
	}
}

// Dequeue pops the next queued URL, if any, marking it visited.
func (s *Spider) Dequeue() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return "", false
	}
	next := s.queue[0]
	s.queue = s.queue[1:]
	s.visited[next] = true
	return next, true
}

// Forms returns a snapshot of discovered forms.
func (s *Spider) Forms() []Form {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Form, len(s.forms))
	copy(out, s.forms)
	return out
}

// Stats reports counters useful for a "spider_stats" event.
func (s *Spider) Stats() (visited, discovered, queued int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.visited), len(s.discovered), len(s.queue)
}

// ExportSitemap renders the sitemap as plain text, grouped by host, one
// path per line followed by its observed parameter names.
func (s *Spider) ExportSitemap() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	for host, entry := range s.sitemap {
		b.WriteString(host)
		b.WriteString(":\n")
		for p := range entry.Paths {
			b.WriteString("  ")
			b.WriteString(p)
			b.WriteString("\n")
		}
		if len(entry.Parameters) > 0 {
			b.WriteString("  params: ")
			first := true
			for name := range entry.Parameters {
				if !first {
					b.WriteString(", ")
				}
				b.WriteString(name)
				first = false
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}
