// Package passivescan implements the Passive Scanner (spec.md §4.13):
// read-only pattern matching over a completed (request, response) pair,
// run on every Flow the Proxy Engine forwards. First match per category
// on a response suffices — duplicates within a category are suppressed by
// the caller via flow.Record.AddVulnerability's dedup.
package passivescan

import (
	"regexp"
	"strings"

	"github.com/sentinel-intercept/proxy/internal/domain/flow"
)

var sqlErrorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)sql syntax.*mysql`),
	regexp.MustCompile(`(?i)warning.*mysqli?_`),
	regexp.MustCompile(`(?i)unclosed quotation mark after the character string`),
	regexp.MustCompile(`(?i)ORA-\d{5}`),
	regexp.MustCompile(`(?i)PostgreSQL.*ERROR`),
	regexp.MustCompile(`(?i)SQLite3::query`),
	regexp.MustCompile(`(?i)Microsoft OLE DB Provider for SQL Server`),
}

var xssReflectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<script[^>]*>`),
	regexp.MustCompile(`(?i)on(error|load|click|mouseover)\s*=`),
}

var pathTraversalRequestPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\.\./`),
	regexp.MustCompile(`%2e%2e%2f`),
	regexp.MustCompile(`(?i)%2e%2e/`),
}

var systemFileSignature = regexp.MustCompile(`root:x:0:0:`)

var sensitiveDisclosurePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)-----BEGIN (RSA |EC |)PRIVATE KEY-----`),
	regexp.MustCompile(`(?i)aws_secret_access_key\s*[:=]`),
	regexp.MustCompile(`(?i)password\s*[:=]\s*['"][^'"]{3,}['"]`),
	regexp.MustCompile(`(?i)(mongodb|mysql|postgres(?:ql)?)://[^:\s]+:[^@\s]+@`),
	regexp.MustCompile(`(?i)api[_-]?key\s*[:=]\s*['"][A-Za-z0-9_\-]{10,}['"]`),
}

var sensitiveHeaderNames = []string{"X-Powered-By", "X-AspNet-Version", "X-Debug-Token"}

var vulnerableVersionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`Apache/2\.4\.49`),
	regexp.MustCompile(`(?i)log4j[- ]?2\.1[0-4]\.`),
	regexp.MustCompile(`jquery[/-]1\.[0-9]\.`),
	regexp.MustCompile(`jquery[/-]2\.[0-1]\.`),
}

var csrfTokenHints = []string{"csrf", "xsrf", "token", "authenticity"}

var stateChangingMethods = map[string]bool{"POST": true, "PUT": true, "DELETE": true, "PATCH": true}

// Scan inspects req/resp and appends any findings to rec. It is safe to
// call once per completed flow; rec.AddVulnerability deduplicates by
// (type, url, evidence) so re-scans never double-count.
func Scan(rec *flow.Record, req *flow.Request, resp *flow.Response) {
	scanSQLErrors(rec, req, resp)
	scanReflectedXSS(rec, req, resp)
	scanPathTraversal(rec, req, resp)
	scanSensitiveDisclosure(rec, req, resp)
	scanVulnerableVersions(rec, req, resp)
	scanCSRFHeuristic(rec, req)
}

func scanSQLErrors(rec *flow.Record, req *flow.Request, resp *flow.Response) {
	body := resp.BodyText()
	for _, re := range sqlErrorPatterns {
		if m := re.FindString(body); m != "" {
			rec.AddVulnerability(flow.Vulnerability{
				Type:        "SQLi",
				Severity:    flow.SeverityHigh,
				URL:         req.URL,
				Method:      req.Method,
				Description: "SQL error reflected in response body",
				Evidence:    m,
			})
			return
		}
	}
}

func scanReflectedXSS(rec *flow.Record, req *flow.Request, resp *flow.Response) {
	reqBody := req.BodyText()
	respBody := resp.BodyText()
	for _, re := range xssReflectionPatterns {
		m := re.FindString(respBody)
		if m == "" {
			continue
		}
		if strings.Contains(reqBody, m) || strings.Contains(req.URL, m) {
			rec.AddVulnerability(flow.Vulnerability{
				Type:        "XSS",
				Severity:    flow.SeverityHigh,
				URL:         req.URL,
				Method:      req.Method,
				Description: "request-controlled markup reflected unescaped in response",
				Evidence:    m,
			})
			return
		}
	}
}

func scanPathTraversal(rec *flow.Record, req *flow.Request, resp *flow.Response) {
	target := req.URL + " " + req.BodyText()
	hasTraversal := false
	for _, re := range pathTraversalRequestPatterns {
		if re.MatchString(target) {
			hasTraversal = true
			break
		}
	}
	if !hasTraversal {
		return
	}
	body := resp.BodyText()
	if m := systemFileSignature.FindString(body); m != "" {
		rec.AddVulnerability(flow.Vulnerability{
			Type:        "PathTraversal",
			Severity:    flow.SeverityCritical,
			URL:         req.URL,
			Method:      req.Method,
			Description: "traversal payload combined with system file disclosure",
			Evidence:    m,
		})
		return
	}
	if resp.StatusCode == 200 {
		rec.AddVulnerability(flow.Vulnerability{
			Type:        "PathTraversal",
			Severity:    flow.SeverityMedium,
			URL:         req.URL,
			Method:      req.Method,
			Description: "traversal payload accepted with 200 response",
			Evidence:    "status 200",
		})
	}
}

func scanSensitiveDisclosure(rec *flow.Record, req *flow.Request, resp *flow.Response) {
	body := resp.BodyText()
	for _, re := range sensitiveDisclosurePatterns {
		if m := re.FindString(body); m != "" {
			rec.AddVulnerability(flow.Vulnerability{
				Type:        "SensitiveDisclosure",
				Severity:    flow.SeverityMedium,
				URL:         req.URL,
				Method:      req.Method,
				Description: "response body contains credential-like data",
				Evidence:    m,
			})
			return
		}
	}
	for _, name := range sensitiveHeaderNames {
		if v := resp.Headers.Get(name); v != "" {
			rec.AddVulnerability(flow.Vulnerability{
				Type:        "SensitiveDisclosure",
				Severity:    flow.SeverityLow,
				URL:         req.URL,
				Method:      req.Method,
				Description: "response reveals server implementation details",
				Evidence:    name + ": " + v,
			})
			return
		}
	}
}

func scanVulnerableVersions(rec *flow.Record, req *flow.Request, resp *flow.Response) {
	haystack := resp.Headers.Get("Server") + "\n" + resp.BodyText()
	for _, re := range vulnerableVersionPatterns {
		if m := re.FindString(haystack); m != "" {
			rec.AddVulnerability(flow.Vulnerability{
				Type:        "VulnerableComponent",
				Severity:    flow.SeverityHigh,
				URL:         req.URL,
				Method:      req.Method,
				Description: "response advertises a known-vulnerable component version",
				Evidence:    m,
			})
			return
		}
	}
}

func scanCSRFHeuristic(rec *flow.Record, req *flow.Request) {
	if !stateChangingMethods[strings.ToUpper(req.Method)] {
		return
	}
	body := strings.ToLower(req.BodyText())
	for _, hint := range csrfTokenHints {
		if strings.Contains(body, hint) {
			return
		}
	}
	for _, name := range req.Headers.Keys() {
		lower := strings.ToLower(name)
		for _, hint := range csrfTokenHints {
			if strings.Contains(lower, hint) {
				return
			}
		}
	}
	rec.AddVulnerability(flow.Vulnerability{
		Type:        "CSRF",
		Severity:    flow.SeverityMedium,
		URL:         req.URL,
		Method:      req.Method,
		Description: "state-changing request carries no CSRF-style token",
		Evidence:    req.Method + " " + req.URL,
	})
}
