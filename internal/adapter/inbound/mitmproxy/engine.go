package mitmproxy

import (
	"bufio"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sentinel-intercept/proxy/internal/domain/cookiejar"
	"github.com/sentinel-intercept/proxy/internal/domain/eventbus"
	"github.com/sentinel-intercept/proxy/internal/domain/flow"
	"github.com/sentinel-intercept/proxy/internal/domain/history"
	"github.com/sentinel-intercept/proxy/internal/domain/intercept"
	"github.com/sentinel-intercept/proxy/internal/domain/passivescan"
	"github.com/sentinel-intercept/proxy/internal/domain/rules"
	"github.com/sentinel-intercept/proxy/internal/domain/spider"
	"github.com/sentinel-intercept/proxy/internal/domain/wsobserver"
)

// hopByHopHeaders lists headers meaningful only for a single transport-level
// connection; a proxy must not forward them (RFC 2616 §13.5.1).
var hopByHopHeaders = []string{
	"Connection", "Proxy-Authorization", "Proxy-Connection",
	"Te", "Trailer", "Transfer-Encoding", "Upgrade", "Keep-Alive",
}

// Engine is the Proxy Engine (spec.md §4.6): it terminates CONNECT
// tunnels with a MITM TLS handshake, parses HTTP requests, and drives
// every parsed request through Intercept Gate → Rule Engine → Cookie
// overlay → forward → Passive Scanner → History → Spider → Event Bus.
type Engine struct {
	CertCache *CertCache
	Gate      *intercept.Gate
	Store     *rules.Store
	Cookies   *cookiejar.Manager
	History   *history.Store
	Bus       *eventbus.Bus
	Spider    *spider.Spider
	WS        *wsobserver.Manager

	Client *http.Client
	Logger *slog.Logger
}

// New wires an Engine from its collaborators. timeout bounds every
// upstream round trip.
func New(cc *CertCache, gate *intercept.Gate, store *rules.Store, cookies *cookiejar.Manager,
	hist *history.Store, bus *eventbus.Bus, sp *spider.Spider, ws *wsobserver.Manager,
	timeout time.Duration, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		CertCache: cc,
		Gate:      gate,
		Store:     store,
		Cookies:   cookies,
		History:   hist,
		Bus:       bus,
		Spider:    sp,
		WS:        ws,
		Client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
		},
		Logger: logger,
	}
}

// TogglePause flips the process-wide soft-mute flag (spec.md §4.6's
// `toggle_pause()`) and reports the proxy's new state on the Event Bus.
func (e *Engine) TogglePause() bool {
	paused := e.Store.TogglePause()
	e.Bus.PublishType(eventbus.TypeProxyStateChanged, map[string]any{"paused": paused})
	return paused
}

// SetInterceptEnabled turns the Intercept Gate on or off and reports the
// proxy's new state on the Event Bus.
func (e *Engine) SetInterceptEnabled(enabled bool) {
	e.Gate.SetEnabled(enabled)
	e.Bus.PublishType(eventbus.TypeProxyStateChanged, map[string]any{"intercept_enabled": enabled})
}

// ServeHTTP routes CONNECT requests to the MITM handshake, answers plain
// HTTP requests for mitm.it with the root CA certificate, and sends
// everything else straight to the forwarding pipeline.
func (e *Engine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodConnect {
		e.handleConnect(w, r)
		return
	}
	if hostOnly(r.Host) == "mitm.it" && e.CertCache != nil && e.CertCache.ca != nil {
		w.Header().Set("Content-Type", "application/x-x509-ca-cert")
		_, _ = w.Write(e.CertCache.ca.CACertPEM())
		return
	}
	e.process(w, r, "http")
}

// handleConnect replies 200 to the CONNECT request, hijacks the
// connection, terminates TLS with a per-host leaf certificate, and loops
// reading HTTP requests off the decrypted channel (spec.md §4.6).
func (e *Engine) handleConnect(w http.ResponseWriter, r *http.Request) {
	hijacker, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, "hijack not supported", http.StatusInternalServerError)
		return
	}
	clientConn, _, err := hijacker.Hijack()
	if err != nil {
		e.Logger.Error("hijack failed", "error", err)
		return
	}
	if _, err := clientConn.Write([]byte("HTTP/1.1 200 Connection Established\r\n\r\n")); err != nil {
		clientConn.Close()
		return
	}

	domain := hostOnly(r.Host)
	leaf, err := e.CertCache.GetCert(domain)
	if err != nil {
		e.Logger.Error("leaf cert generation failed", "domain", domain, "error", err)
		clientConn.Close()
		return
	}

	tlsConn := tls.Server(clientConn, &tls.Config{Certificates: []tls.Certificate{*leaf}})
	if err := tlsConn.Handshake(); err != nil {
		e.Logger.Debug("TLS handshake failed", "domain", domain, "error", err)
		tlsConn.Close()
		return
	}
	defer tlsConn.Close()

	bufReader := bufio.NewReader(tlsConn)
	for {
		innerReq, err := http.ReadRequest(bufReader)
		if err != nil {
			if err != io.EOF {
				e.Logger.Debug("inner request read failed", "domain", domain, "error", err)
			}
			return
		}
		innerReq.URL.Scheme = "https"
		innerReq.URL.Host = r.Host
		if innerReq.URL.Path == "" {
			innerReq.URL.Path = "/"
		}
		innerReq.RequestURI = ""

		tw := newTLSResponseWriter(tlsConn)
		if isWebSocketUpgrade(innerReq) {
			e.handleWebSocketUpgrade(tw, innerReq)
		} else {
			e.process(tw, innerReq, "https")
		}
		_ = tw.flush()
		_ = innerReq.Body.Close()

		if innerReq.Close {
			return
		}
	}
}

// process runs one parsed HTTP request through the full pipeline
// (spec.md §4.6 steps 1-8) and writes the response to w.
func (e *Engine) process(w http.ResponseWriter, r *http.Request, scheme string) {
	body, _ := io.ReadAll(r.Body)
	_ = r.Body.Close()

	destURL := r.URL.String()
	if !strings.HasPrefix(destURL, "http://") && !strings.HasPrefix(destURL, "https://") {
		destURL = scheme + "://" + r.Host + r.URL.RequestURI()
	}

	req := flow.Request{
		Method:  r.Method,
		URL:     destURL,
		Host:    rules.NormalizeHost(r.Host),
		Path:    r.URL.Path,
		Headers: toFlowHeader(r.Header),
		Body:    body,
	}

	if e.Store.IsPaused() {
		e.forwardVerbatim(w, r, destURL, body)
		return
	}

	if e.Gate.Enabled() {
		view := intercept.RequestView{
			Method:  req.Method,
			URL:     req.URL,
			Headers: headerMap(req.Headers),
			Body:    req.Body,
			Host:    req.Host,
			Path:    req.Path,
		}
		e.Bus.PublishType(eventbus.TypeInterceptedRequest, view)
		decision, timedOut := e.Gate.Intercept(view)
		if timedOut {
			e.Logger.Warn("intercept hold expired, dropping flow", "url", req.URL)
			e.Bus.PublishType(eventbus.TypeInterceptTimeout, req.URL)
		}
		if decision.Action == intercept.ActionDrop {
			return
		}
		if decision.ModifiedHeaders != nil {
			req.Headers = fromHeaderMap(decision.ModifiedHeaders)
		}
		if decision.ModifiedBody != nil {
			req.Body = decision.ModifiedBody
		}
	}

	matched := rules.Match(e.Store.Rules(), req.Host, req.Path)
	if len(matched) > 0 {
		if newURL, changed := rules.ApplyToQuery(req.URL, matched); changed {
			req.URL = newURL
		}
		if rules.IsFormEncoded(req.Headers.Get("Content-Type")) {
			if newBody, changed := rules.ApplyToForm(req.Body, matched); changed {
				req.Body = newBody
				req.Headers.Set("Content-Length", rules.ContentLength(len(newBody)))
			}
		}
	}

	if jar := e.Cookies.JarHeader(); jar != "" {
		req.Headers.Set("Cookie", jar)
	}

	outReq, err := http.NewRequestWithContext(r.Context(), req.Method, req.URL, io.NopCloser(strings.NewReader(string(req.Body))))
	if err != nil {
		e.Logger.Error("build outbound request failed", "error", err)
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	req.Headers.Each(func(k, v string) { outReq.Header.Add(k, v) })
	for _, h := range hopByHopHeaders {
		outReq.Header.Del(h)
	}

	resp, err := e.Client.Do(outReq)
	if err != nil {
		e.Logger.Error("forward request failed", "url", req.URL, "error", err)
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	flowResp := flow.Response{
		StatusCode: resp.StatusCode,
		Headers:    toFlowHeader(resp.Header),
		Body:       respBody,
	}

	rec := flow.NewRecord(0, req)
	rec.Response = flowResp
	passivescan.Scan(rec, &req, &flowResp)
	for _, vuln := range rec.Vulnerabilities() {
		e.Bus.PublishType(eventbus.TypeScanFinding, vuln)
	}

	id := e.History.Append(rec)
	e.Bus.PublishType(eventbus.TypeNewHistoryEntry, id)

	e.Cookies.ObserveResponse(req.Host, resp.Header)

	contentType := resp.Header.Get("Content-Type")
	if e.Spider != nil && strings.Contains(strings.ToLower(contentType), "html") {
		e.Spider.ProcessResponse(req.URL, contentType, respBody)
		if e.Spider.State() == spider.StateRunning {
			visited, discovered, queued := e.Spider.Stats()
			e.Bus.PublishType(eventbus.TypeSpiderStats, map[string]any{
				"run_id":     e.Spider.RunID(),
				"visited":    visited,
				"discovered": discovered,
				"queued":     queued,
			})
		}
	}

	flowResp.Headers.Each(func(k, v string) {
		if !isHopByHop(k) {
			w.Header().Add(k, v)
		}
	})
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(respBody)
}

// forwardVerbatim bypasses every hook (spec.md §4.6 step 2: paused mode).
func (e *Engine) forwardVerbatim(w http.ResponseWriter, r *http.Request, destURL string, body []byte) {
	outReq, err := http.NewRequestWithContext(r.Context(), r.Method, destURL, io.NopCloser(strings.NewReader(string(body))))
	if err != nil {
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			outReq.Header.Add(k, v)
		}
	}
	for _, h := range hopByHopHeaders {
		outReq.Header.Del(h)
	}
	resp, err := e.Client.Do(outReq)
	if err != nil {
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()
	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}

func isHopByHop(key string) bool {
	for _, h := range hopByHopHeaders {
		if strings.EqualFold(h, key) {
			return true
		}
	}
	return false
}

func toFlowHeader(h http.Header) *flow.Header {
	out := flow.NewHeader()
	for k, vs := range h {
		for _, v := range vs {
			out.Add(k, v)
		}
	}
	return out
}

func headerMap(h *flow.Header) map[string][]string {
	out := make(map[string][]string)
	h.Each(func(k, v string) { out[k] = append(out[k], v) })
	return out
}

func fromHeaderMap(m map[string][]string) *flow.Header {
	out := flow.NewHeader()
	for k, vs := range m {
		for _, v := range vs {
			out.Add(k, v)
		}
	}
	return out
}

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Connection"), "upgrade") &&
		strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

func hostOnly(hostPort string) string {
	host, _, err := net.SplitHostPort(hostPort)
	if err != nil {
		return hostPort
	}
	return host
}

// tlsResponseWriter implements http.ResponseWriter over a hijacked TLS
// connection, used to serve decrypted CONNECT-tunnel requests.
type tlsResponseWriter struct {
	header      http.Header
	wroteHeader bool
	conn        net.Conn
}

func newTLSResponseWriter(conn net.Conn) *tlsResponseWriter {
	return &tlsResponseWriter{header: make(http.Header), conn: conn}
}

func (tw *tlsResponseWriter) Header() http.Header { return tw.header }

func (tw *tlsResponseWriter) WriteHeader(status int) {
	if tw.wroteHeader {
		return
	}
	tw.wroteHeader = true
	text := http.StatusText(status)
	if text == "" {
		text = "Unknown"
	}
	fmt.Fprintf(tw.conn, "HTTP/1.1 %d %s\r\n", status, text)
	for k, vs := range tw.header {
		for _, v := range vs {
			fmt.Fprintf(tw.conn, "%s: %s\r\n", k, v)
		}
	}
	fmt.Fprint(tw.conn, "\r\n")
}

func (tw *tlsResponseWriter) Write(b []byte) (int, error) {
	if !tw.wroteHeader {
		tw.WriteHeader(http.StatusOK)
	}
	return tw.conn.Write(b)
}

func (tw *tlsResponseWriter) flush() error {
	if !tw.wroteHeader {
		tw.WriteHeader(http.StatusOK)
	}
	return nil
}

// Hijack satisfies http.Hijacker so the WebSocket path can take over the
// raw connection from inside a TLS tunnel as well as a plain one.
func (tw *tlsResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	rw := bufio.NewReadWriter(bufio.NewReader(tw.conn), bufio.NewWriter(tw.conn))
	return tw.conn, rw, nil
}
