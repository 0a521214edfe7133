// Package rawhttp implements the Raw HTTP Codec (spec.md §4.5): parsing a
// raw HTTP/1.1 request into a structured form for replay/Intruder UIs, and
// re-emitting a structured request back to wire text.
package rawhttp

import (
	"bytes"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/sentinel-intercept/proxy/internal/domain/flow"
	"github.com/sentinel-intercept/proxy/internal/domain/rules"
)

// Request is a parsed raw HTTP request: request line plus headers and a
// body. Headers is a flow.Header, so header names keep their first-seen
// order and a repeated name keeps its values in order, grouped under the
// first occurrence of that name.
type Request struct {
	Method  string
	Target  string
	Proto   string
	Headers *flow.Header
	Body    []byte
}

// Parse splits raw on the first blank line between headers and body, per
// spec.md §4.5. Host is required; its absence is a parse error.
func Parse(raw []byte) (*Request, error) {
	headEnd := bytes.Index(raw, []byte("\r\n\r\n"))
	sep := 4
	if headEnd == -1 {
		headEnd = bytes.Index(raw, []byte("\n\n"))
		sep = 2
	}
	var headBlock []byte
	var body []byte
	if headEnd == -1 {
		headBlock = raw
	} else {
		headBlock = raw[:headEnd]
		body = raw[headEnd+sep:]
	}

	lines := splitLines(headBlock)
	if len(lines) == 0 {
		return nil, fmt.Errorf("rawhttp: empty request")
	}

	reqLine := strings.Fields(lines[0])
	if len(reqLine) < 2 {
		return nil, fmt.Errorf("rawhttp: malformed request line %q", lines[0])
	}
	req := &Request{
		Method:  reqLine[0],
		Target:  reqLine[1],
		Proto:   "HTTP/1.1",
		Headers: flow.NewHeader(),
		Body:    body,
	}
	if len(reqLine) >= 3 {
		req.Proto = reqLine[2]
	}

	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		idx := strings.Index(line, ":")
		if idx == -1 {
			continue
		}
		name := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		req.Headers.Add(name, value)
	}

	if req.Headers.Get("Host") == "" {
		return nil, fmt.Errorf("rawhttp: missing Host header")
	}

	return req, nil
}

// splitLines splits on \r\n or bare \n, matching raw text pasted from
// either a Windows or Unix clipboard.
func splitLines(b []byte) []string {
	s := strings.ReplaceAll(string(b), "\r\n", "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// isPrivateOrLoopback reports whether host (no port) resolves to a
// loopback or RFC1918/ULA address, or is a bare hostname like "localhost".
func isPrivateOrLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	return ip.IsLoopback() || ip.IsPrivate()
}

// Scheme infers http vs https from the Host header: private/loopback
// addresses default to http, everything else to https (spec.md §4.5).
func (r *Request) Scheme() string {
	host := r.Headers.Get("Host")
	h, _, err := net.SplitHostPort(host)
	if err != nil {
		h = host
	}
	if isPrivateOrLoopback(h) {
		return "http"
	}
	return "https"
}

// URL reconstructs the absolute URL this request targets, combining the
// inferred scheme, the Host header, and the request target.
func (r *Request) URL() string {
	target := r.Target
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return target
	}
	return r.Scheme() + "://" + r.Headers.Get("Host") + target
}

// SubstituteParam implements spec.md §4.5's parameter substitution: prefer
// the query string, fall back to a form-encoded body, else append a new
// query parameter.
func (r *Request) SubstituteParam(param, value string) error {
	u, err := url.Parse(r.Target)
	if err != nil {
		return fmt.Errorf("rawhttp: parse target: %w", err)
	}
	q := u.Query()
	if _, present := q[param]; present {
		q.Set(param, value)
		u.RawQuery = q.Encode()
		r.Target = u.String()
		return nil
	}

	if rules.IsFormEncoded(r.Headers.Get("Content-Type")) {
		form, err := url.ParseQuery(string(r.Body))
		if err == nil {
			if _, present := form[param]; present {
				form.Set(param, value)
				r.Body = []byte(form.Encode())
				r.Headers.Set("Content-Length", strconv.Itoa(len(r.Body)))
				return nil
			}
		}
	}

	q.Set(param, value)
	u.RawQuery = q.Encode()
	r.Target = u.String()
	return nil
}

// Emit re-serializes the request to raw HTTP/1.1 text. Header order is
// preserved from parsing, except Host and Content-Length, which are
// dropped from their original position: Host is written first, taken from
// the Host header, and Content-Length is recomputed from the current Body.
func (r *Request) Emit() []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s %s %s\r\n", r.Method, r.Target, r.Proto)

	host := r.Headers.Get("Host")
	fmt.Fprintf(&b, "Host: %s\r\n", host)

	r.Headers.Each(func(name, value string) {
		if strings.EqualFold(name, "Host") || strings.EqualFold(name, "Content-Length") {
			return
		}
		fmt.Fprintf(&b, "%s: %s\r\n", name, value)
	})

	if len(r.Body) > 0 || strings.EqualFold(r.Method, "POST") || strings.EqualFold(r.Method, "PUT") {
		fmt.Fprintf(&b, "Content-Length: %d\r\n", len(r.Body))
	}

	b.WriteString("\r\n")
	b.Write(r.Body)
	return b.Bytes()
}
