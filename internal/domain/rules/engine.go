package rules

import (
	"net/url"
	"strconv"
	"strings"
)

// ApplyToQuery rewrites param's value in the query string of rawURL for
// every rule in matched. Rules never add parameters — if the parameter is
// absent from the query, the rule is a no-op on the query. Per the
// REDESIGN note in spec.md §9 on multi-valued parameters, this
// implementation picks replace-all: every occurrence of the parameter is
// set to the rule's value (a multi-valued "p=1&p=2" becomes
// "p=new&p=new"), which is simpler to reason about than replace-first and
// matches how most HTTP frameworks treat repeated form-style parameters.
func ApplyToQuery(rawURL string, matched []Rule) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL, false
	}
	q := u.Query()
	changed := false
	for _, r := range matched {
		if _, present := q[r.Param]; !present {
			continue
		}
		n := len(q[r.Param])
		if n == 0 {
			n = 1
		}
		vals := make([]string, n)
		for i := range vals {
			vals[i] = r.Value
		}
		q[r.Param] = vals
		changed = true
	}
	if !changed {
		return rawURL, false
	}
	u.RawQuery = q.Encode()
	return u.String(), true
}

const formContentType = "application/x-www-form-urlencoded"

// IsFormEncoded reports whether a Content-Type header value is (possibly
// with parameters like charset) application/x-www-form-urlencoded.
func IsFormEncoded(contentType string) bool {
	ct := contentType
	if idx := strings.Index(ct, ";"); idx != -1 {
		ct = ct[:idx]
	}
	return strings.EqualFold(strings.TrimSpace(ct), formContentType)
}

// ApplyToForm rewrites matching parameters inside a
// application/x-www-form-urlencoded body and returns the re-encoded body
// and whether anything changed; setting Content-Length is left to the
// caller. As with the query, missing parameters are not added.
func ApplyToForm(body []byte, matched []Rule) ([]byte, bool) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return body, false
	}
	changed := false
	for _, r := range matched {
		if _, present := values[r.Param]; !present {
			continue
		}
		n := len(values[r.Param])
		if n == 0 {
			n = 1
		}
		vals := make([]string, n)
		for i := range vals {
			vals[i] = r.Value
		}
		values[r.Param] = vals
		changed = true
	}
	if !changed {
		return body, false
	}
	return []byte(values.Encode()), true
}

// ContentLength formats n the way the Content-Length header expects.
func ContentLength(n int) string {
	return strconv.Itoa(n)
}
