// Package replay implements the Replay Executor (spec.md §4.9): rewrite a
// raw request, route it exactly as the Proxy Engine would (rules, Cookie
// Jar overlay applied), and return the upstream response. This is the
// shared send path for the Repeater-style UI, and the inner loop of the
// Intruder runner.
package replay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sentinel-intercept/proxy/internal/domain/cookiejar"
	"github.com/sentinel-intercept/proxy/internal/domain/flow"
	"github.com/sentinel-intercept/proxy/internal/domain/history"
	"github.com/sentinel-intercept/proxy/internal/domain/rawhttp"
	"github.com/sentinel-intercept/proxy/internal/domain/rules"
)

// hopByHopHeaders must never be forwarded to the upstream, matching the
// proxy's own forwarding path.
var hopByHopHeaders = []string{
	"Connection", "Keep-Alive", "Proxy-Authenticate", "Proxy-Authorization",
	"Te", "Trailer", "Transfer-Encoding", "Upgrade",
}

// Response is the result of a replayed request.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// Executor sends raw requests, applying the same rule/cookie overlay the
// live proxy pipeline applies, so a replay behaves identically to the
// original traffic path.
type Executor struct {
	Client  *http.Client
	Cookies *cookiejar.Manager

	// History, if set, receives a Flow Record for every SendFromRaw call.
	// Attempt, the Intruder runner's inner loop, never touches it.
	History *history.Store
}

// New creates an Executor with a default per-request timeout.
func New(cookies *cookiejar.Manager, timeout time.Duration) *Executor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Executor{
		Client:  &http.Client{Timeout: timeout},
		Cookies: cookies,
	}
}

// SendFromRaw is the single-shot C10 path (spec.md §4.9): it parses raw,
// optionally substitutes param=value, routes it via the same rule/cookie
// overlay the live proxy applies, and commits the resulting Flow Record
// to History so the replay shows up in the same table the live proxy
// traffic does.
func (e *Executor) SendFromRaw(ctx context.Context, raw []byte, ruleset []rules.Rule, param, value string) (*Response, error) {
	req, err := rawhttp.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("replay: parse raw request: %w", err)
	}
	resp, sentReq, err := e.sendFromRaw(ctx, req, ruleset, param, value)
	if err != nil {
		return nil, err
	}
	if e.History != nil {
		rec := flow.NewRecord(0, flow.Request{
			Method:  sentReq.Method,
			URL:     sentReq.URL(),
			Host:    host(sentReq),
			Path:    pathOf(sentReq.Target),
			Headers: sentReq.Headers,
			Body:    sentReq.Body,
		})
		rec.Response = flow.Response{
			StatusCode: resp.StatusCode,
			Headers:    headerFromHTTP(resp.Headers),
			Body:       resp.Body,
		}
		e.History.Append(rec)
	}
	return resp, nil
}

// Attempt parses raw, optionally substitutes param=value, applies
// matching rules and the Cookie Jar overlay, and sends it upstream,
// without touching History. It is the Intruder runner's inner loop —
// committing every attack payload to History would flood it with attack
// noise instead of the one entry an operator-initiated replay leaves
// behind; see SendFromRaw for that path.
func (e *Executor) Attempt(ctx context.Context, raw []byte, ruleset []rules.Rule, param, value string) (*Response, error) {
	req, err := rawhttp.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("replay: parse raw request: %w", err)
	}
	resp, _, err := e.sendFromRaw(ctx, req, ruleset, param, value)
	return resp, err
}

func (e *Executor) sendFromRaw(ctx context.Context, req *rawhttp.Request, ruleset []rules.Rule, param, value string) (*Response, *rawhttp.Request, error) {
	if param != "" {
		if err := req.SubstituteParam(param, value); err != nil {
			return nil, nil, fmt.Errorf("replay: substitute param: %w", err)
		}
	}

	reqHost := rules.NormalizeHost(req.Headers.Get("Host"))
	matched := rules.Match(ruleset, reqHost, pathOf(req.Target))
	if q, changed := rules.ApplyToQuery(req.URL(), matched); changed {
		req.Target = q
	}
	if rules.IsFormEncoded(req.Headers.Get("Content-Type")) {
		if b, changed := rules.ApplyToForm(req.Body, matched); changed {
			req.Body = b
			req.Headers.Set("Content-Length", fmt.Sprintf("%d", len(b)))
		}
	}

	if e.Cookies != nil {
		if jar := e.Cookies.JarHeader(); jar != "" {
			req.Headers.Set("Cookie", jar)
		}
	}

	resp, err := e.send(ctx, req)
	return resp, req, err
}

// headerFromHTTP converts a net/http response header multimap into the
// ordered flow.Header shape a Flow Record stores.
func headerFromHTTP(h http.Header) *flow.Header {
	out := flow.NewHeader()
	for name, values := range h {
		for _, v := range values {
			out.Add(name, v)
		}
	}
	return out
}

func pathOf(target string) string {
	if i := indexByte(target, '?'); i != -1 {
		return target[:i]
	}
	return target
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

// send issues the parsed request to its resolved upstream URL.
func (e *Executor) send(ctx context.Context, req *rawhttp.Request) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL(), bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("replay: build request: %w", err)
	}
	req.Headers.Each(func(name, value string) {
		httpReq.Header.Add(name, value)
	})
	for _, h := range hopByHopHeaders {
		httpReq.Header.Del(h)
	}

	start := time.Now()
	resp, err := e.Client.Do(httpReq)
	duration := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("replay: upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("replay: read response body: %w", err)
	}

	if e.Cookies != nil {
		e.Cookies.ObserveResponse(host(req), resp.Header)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       body,
		Duration:   duration,
	}, nil
}

func host(req *rawhttp.Request) string {
	return rules.NormalizeHost(req.Headers.Get("Host"))
}
