package passivescan

import (
	"testing"

	"github.com/sentinel-intercept/proxy/internal/domain/flow"
)

func newReq(method, url string, body string) *flow.Request {
	return &flow.Request{Method: method, URL: url, Headers: flow.NewHeader(), Body: []byte(body)}
}

func newResp(status int, body string) *flow.Response {
	return &flow.Response{StatusCode: status, Headers: flow.NewHeader(), Body: []byte(body)}
}

func TestScan_SQLError(t *testing.T) {
	t.Parallel()
	rec := flow.NewRecord(1, flow.Request{})
	req := newReq("GET", "http://x/?id=1'", "")
	resp := newResp(500, "You have an error in your SQL syntax; check the MySQL manual")

	Scan(rec, req, resp)

	vulns := rec.Vulnerabilities()
	if len(vulns) != 1 || vulns[0].Type != "SQLi" {
		t.Fatalf("vulns = %+v", vulns)
	}
}

func TestScan_ReflectedXSS(t *testing.T) {
	t.Parallel()
	rec := flow.NewRecord(1, flow.Request{})
	req := newReq("GET", "http://x/search?q=<script>alert(1)</script>", "")
	resp := newResp(200, "results for <script>alert(1)</script>")

	Scan(rec, req, resp)

	vulns := rec.Vulnerabilities()
	found := false
	for _, v := range vulns {
		if v.Type == "XSS" {
			found = true
		}
	}
	if !found {
		t.Fatalf("vulns = %+v, want XSS", vulns)
	}
}

func TestScan_PathTraversalCritical(t *testing.T) {
	t.Parallel()
	rec := flow.NewRecord(1, flow.Request{})
	req := newReq("GET", "http://x/file?path=../../../../etc/passwd", "")
	resp := newResp(200, "root:x:0:0:root:/root:/bin/bash")

	Scan(rec, req, resp)

	vulns := rec.Vulnerabilities()
	if len(vulns) == 0 || vulns[0].Type != "PathTraversal" || vulns[0].Severity != flow.SeverityCritical {
		t.Fatalf("vulns = %+v", vulns)
	}
}

func TestScan_SensitiveDisclosure(t *testing.T) {
	t.Parallel()
	rec := flow.NewRecord(1, flow.Request{})
	req := newReq("GET", "http://x/config", "")
	resp := newResp(200, `db_password = "Sup3rSecret!"`)

	Scan(rec, req, resp)

	vulns := rec.Vulnerabilities()
	found := false
	for _, v := range vulns {
		if v.Type == "SensitiveDisclosure" {
			found = true
		}
	}
	if !found {
		t.Fatalf("vulns = %+v, want SensitiveDisclosure", vulns)
	}
}

func TestScan_CSRFHeuristic(t *testing.T) {
	t.Parallel()
	rec := flow.NewRecord(1, flow.Request{})
	req := newReq("POST", "http://x/account/delete", "confirm=yes")
	resp := newResp(200, "deleted")

	Scan(rec, req, resp)

	vulns := rec.Vulnerabilities()
	found := false
	for _, v := range vulns {
		if v.Type == "CSRF" {
			found = true
		}
	}
	if !found {
		t.Fatalf("vulns = %+v, want CSRF", vulns)
	}
}

func TestScan_CSRFHeuristic_SkippedWithToken(t *testing.T) {
	t.Parallel()
	rec := flow.NewRecord(1, flow.Request{})
	req := newReq("POST", "http://x/account/delete", "csrf_token=abc123")
	resp := newResp(200, "deleted")

	Scan(rec, req, resp)

	for _, v := range rec.Vulnerabilities() {
		if v.Type == "CSRF" {
			t.Fatalf("unexpected CSRF finding: %+v", v)
		}
	}
}

func TestScan_DeduplicatesWithinCategory(t *testing.T) {
	t.Parallel()
	rec := flow.NewRecord(1, flow.Request{})
	req := newReq("GET", "http://x/?id=1'", "")
	resp := newResp(500, "You have an error in your SQL syntax; check the MySQL manual")

	Scan(rec, req, resp)
	Scan(rec, req, resp)

	vulns := rec.Vulnerabilities()
	if len(vulns) != 1 {
		t.Fatalf("len(vulns) = %d, want 1 (deduped)", len(vulns))
	}
}
