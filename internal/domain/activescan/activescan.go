// Package activescan implements the Active Scanner (spec.md §4.14):
// given a captured request, enumerate insertion points and run probe
// families against the live upstream, stopping at the first hit per
// probe family per insertion point.
package activescan

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/sentinel-intercept/proxy/internal/domain/flow"
	"github.com/sentinel-intercept/proxy/internal/domain/rules"
)

// InsertionPoint is a single query or form parameter the scanner can mutate.
type InsertionPoint struct {
	Name     string
	InQuery  bool // true: query param; false: form body param
	Original string
}

// EnumerateInsertionPoints lists every distinct query parameter, plus
// every form-body parameter when the request is form-encoded.
func EnumerateInsertionPoints(req *flow.Request) []InsertionPoint {
	var points []InsertionPoint

	if u, err := url.Parse(req.URL); err == nil {
		for name, vals := range u.Query() {
			if len(vals) == 0 {
				continue
			}
			points = append(points, InsertionPoint{Name: name, InQuery: true, Original: vals[0]})
		}
	}

	if rules.IsFormEncoded(req.Headers.Get("Content-Type")) {
		if form, err := url.ParseQuery(string(req.Body)); err == nil {
			for name, vals := range form {
				if len(vals) == 0 {
					continue
				}
				points = append(points, InsertionPoint{Name: name, InQuery: false, Original: vals[0]})
			}
		}
	}

	return points
}

// newClient builds the HTTP client a Scanner reuses for all of its probes;
// HTTPS certificate verification is disabled deliberately — this is a
// security tool probing targets the operator already intercepts traffic
// for, per spec.md §4.14.
func newClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
}

// Scanner runs the active probe families against a target using a shared,
// thread-safe HTTP client (stateless per scan, per spec.md §5).
type Scanner struct {
	Client *http.Client
}

// New creates a Scanner with the spec's default 10s per-request timeout.
func New() *Scanner {
	return &Scanner{Client: newClient(10 * time.Second)}
}

// Scan runs every probe family against every insertion point of req,
// recording findings on rec. Findings are deduplicated across probes by
// (type, url, evidence) via rec.AddVulnerability.
func (s *Scanner) Scan(ctx context.Context, rec *flow.Record, req *flow.Request) {
	points := EnumerateInsertionPoints(req)
	for _, p := range points {
		s.sqliErrorBased(ctx, rec, req, p)
		s.sqliBooleanBased(ctx, rec, req, p)
		s.sqliTimeBased(ctx, rec, req, p)
		s.commandInjection(ctx, rec, req, p)
		s.reflectedXSS(ctx, rec, req, p)
	}
}

func (s *Scanner) buildURL(req *flow.Request, p InsertionPoint, value string) (string, []byte, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return "", nil, err
	}
	if p.InQuery {
		q := u.Query()
		q.Set(p.Name, value)
		u.RawQuery = q.Encode()
		return u.String(), req.Body, nil
	}
	form, err := url.ParseQuery(string(req.Body))
	if err != nil {
		form = url.Values{}
	}
	form.Set(p.Name, value)
	return u.String(), []byte(form.Encode()), nil
}

func (s *Scanner) send(ctx context.Context, req *flow.Request, target string, body []byte) (*http.Response, time.Duration, error) {
	method := req.Method
	if method == "" {
		method = "GET"
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Headers.Each(func(k, v string) {
		httpReq.Header.Add(k, v)
	})

	start := time.Now()
	resp, err := s.Client.Do(httpReq)
	elapsed := time.Since(start)
	return resp, elapsed, err
}

func bodyOf(resp *http.Response) []byte {
	if resp == nil {
		return nil
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return b
}

var activeSQLErrorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)sql syntax.*mysql`),
	regexp.MustCompile(`(?i)unclosed quotation mark`),
	regexp.MustCompile(`(?i)ORA-\d{5}`),
	regexp.MustCompile(`(?i)PostgreSQL.*ERROR`),
}

func (s *Scanner) sqliErrorBased(ctx context.Context, rec *flow.Record, req *flow.Request, p InsertionPoint) {
	for _, payload := range []string{`'`, `"`, `' OR 1=1 --`} {
		target, body, err := s.buildURL(req, p, p.Original+payload)
		if err != nil {
			continue
		}
		resp, _, err := s.send(ctx, req, target, body)
		if err != nil {
			continue
		}
		respBody := bodyOf(resp)
		for _, re := range activeSQLErrorPatterns {
			if m := re.FindString(string(respBody)); m != "" {
				rec.AddVulnerability(flow.Vulnerability{
					Type:        "SQLi",
					Severity:    flow.SeverityHigh,
					URL:         target,
					Method:      req.Method,
					Description: fmt.Sprintf("error-based SQLi via parameter %q", p.Name),
					Evidence:    m,
				})
				return
			}
		}
	}
}

func (s *Scanner) sqliBooleanBased(ctx context.Context, rec *flow.Record, req *flow.Request, p InsertionPoint) {
	baselineTarget, baselineBody, err := s.buildURL(req, p, p.Original)
	if err != nil {
		return
	}
	baseline, _, err := s.send(ctx, req, baselineTarget, baselineBody)
	if err != nil {
		return
	}
	l0 := len(bodyOf(baseline))

	trueTarget, trueBody, _ := s.buildURL(req, p, p.Original+`' AND '1'='1`)
	trueResp, _, err := s.send(ctx, req, trueTarget, trueBody)
	if err != nil {
		return
	}
	lt := len(bodyOf(trueResp))

	falseTarget, falseBody, _ := s.buildURL(req, p, p.Original+`' AND '1'='2`)
	falseResp, _, err := s.send(ctx, req, falseTarget, falseBody)
	if err != nil {
		return
	}
	lf := len(bodyOf(falseResp))

	threshold := float64(l0) * 0.1
	if threshold < 100 {
		threshold = 100
	}

	if absInt(l0-lt) < int(threshold) && absInt(l0-lf) >= int(threshold) {
		rec.AddVulnerability(flow.Vulnerability{
			Type:        "SQLi",
			Severity:    flow.SeverityHigh,
			URL:         trueTarget,
			Method:      req.Method,
			Description: fmt.Sprintf("boolean-based SQLi via parameter %q", p.Name),
			Evidence:    fmt.Sprintf("L0=%d Lt=%d Lf=%d", l0, lt, lf),
		})
	}
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

type timeBasedPayload struct {
	dialect string
	payload string
}

var sqliTimeBasedPayloads = []timeBasedPayload{
	{"MySQL", `' OR SLEEP(5)--`},
	{"MSSQL", `'; WAITFOR DELAY '0:0:5'--`},
	{"PostgreSQL", `'||pg_sleep(5)--`},
}

func (s *Scanner) sqliTimeBased(ctx context.Context, rec *flow.Record, req *flow.Request, p InsertionPoint) {
	baselineTarget, baselineBody, err := s.buildURL(req, p, p.Original)
	if err != nil {
		return
	}
	_, t0, err := s.send(ctx, req, baselineTarget, baselineBody)
	if err != nil {
		return
	}

	for _, tb := range sqliTimeBasedPayloads {
		target, body, _ := s.buildURL(req, p, p.Original+tb.payload)
		resp, elapsed, err := s.send(ctx, req, target, body)
		if err == nil && resp != nil {
			resp.Body.Close()
		}
		if err != nil {
			continue
		}
		if elapsed > t0+4*time.Second {
			rec.AddVulnerability(flow.Vulnerability{
				Type:        "SQLi",
				Severity:    flow.SeverityHigh,
				URL:         target,
				Method:      req.Method,
				Description: fmt.Sprintf("time-based SQLi via parameter %q (%s)", p.Name, tb.dialect),
				Evidence:    fmt.Sprintf("rtt=%s baseline=%s", elapsed, t0),
			})
			return
		}
	}
}

type osDelayPayload struct{ payload string }

var commandInjectionDelayPayloads = []osDelayPayload{
	{";sleep 5"}, {"|sleep 5"}, {"&timeout /t 5"},
}

var commandInjectionOutputPayloads = []string{";whoami", "|whoami"}

var uidPattern = regexp.MustCompile(`uid=\d+`)
var systemUserNames = []string{"root", "www-data", "daemon", "nt authority\\system"}

func (s *Scanner) commandInjection(ctx context.Context, rec *flow.Record, req *flow.Request, p InsertionPoint) {
	baselineTarget, baselineBody, err := s.buildURL(req, p, p.Original)
	if err != nil {
		return
	}
	_, t0, err := s.send(ctx, req, baselineTarget, baselineBody)
	if err != nil {
		return
	}
	for _, dp := range commandInjectionDelayPayloads {
		target, body, _ := s.buildURL(req, p, p.Original+dp.payload)
		resp, elapsed, err := s.send(ctx, req, target, body)
		if err == nil && resp != nil {
			resp.Body.Close()
		}
		if err != nil {
			continue
		}
		if elapsed > t0+4*time.Second {
			rec.AddVulnerability(flow.Vulnerability{
				Type:        "CommandInjection",
				Severity:    flow.SeverityCritical,
				URL:         target,
				Method:      req.Method,
				Description: fmt.Sprintf("OS command injection (delay-based) via parameter %q", p.Name),
				Evidence:    fmt.Sprintf("rtt=%s baseline=%s", elapsed, t0),
			})
			return
		}
	}

	for _, payload := range commandInjectionOutputPayloads {
		target, body, _ := s.buildURL(req, p, p.Original+payload)
		resp, _, err := s.send(ctx, req, target, body)
		if err != nil {
			continue
		}
		respBody := strings.ToLower(string(bodyOf(resp)))
		if m := uidPattern.FindString(respBody); m != "" {
			rec.AddVulnerability(flow.Vulnerability{
				Type:        "CommandInjection",
				Severity:    flow.SeverityCritical,
				URL:         target,
				Method:      req.Method,
				Description: fmt.Sprintf("OS command injection (output-based) via parameter %q", p.Name),
				Evidence:    m,
			})
			return
		}
		for _, name := range systemUserNames {
			if strings.Contains(respBody, name) {
				rec.AddVulnerability(flow.Vulnerability{
					Type:        "CommandInjection",
					Severity:    flow.SeverityCritical,
					URL:         target,
					Method:      req.Method,
					Description: fmt.Sprintf("OS command injection (output-based) via parameter %q", p.Name),
					Evidence:    name,
				})
				return
			}
		}
	}
}

func (s *Scanner) reflectedXSS(ctx context.Context, rec *flow.Record, req *flow.Request, p InsertionPoint) {
	payload := "activescanner<xss>test"
	target, body, err := s.buildURL(req, p, p.Original+payload)
	if err != nil {
		return
	}
	resp, _, err := s.send(ctx, req, target, body)
	if err != nil {
		return
	}
	if strings.Contains(string(bodyOf(resp)), payload) {
		rec.AddVulnerability(flow.Vulnerability{
			Type:        "XSS",
			Severity:    flow.SeverityHigh,
			URL:         target,
			Method:      req.Method,
			Description: fmt.Sprintf("reflected XSS via parameter %q", p.Name),
			Evidence:    payload,
		})
	}
}
