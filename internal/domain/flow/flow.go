package flow

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Severity classifies a Vulnerability finding's impact.
type Severity string

const (
	SeverityCritical Severity = "Critical"
	SeverityHigh     Severity = "High"
	SeverityMedium   Severity = "Medium"
	SeverityLow      Severity = "Low"
)

// Vulnerability is a single finding attached to a Flow by the passive or
// active scanner.
type Vulnerability struct {
	Type        string
	Severity    Severity
	URL         string
	Method      string
	Description string
	Evidence    string
}

// dedupeKey returns a stable hash of the fields that define uniqueness
// for a Vulnerability, per spec.md §3: dedup is by (type, url, evidence).
func (v Vulnerability) dedupeKey() uint64 {
	var b strings.Builder
	b.WriteString(v.Type)
	b.WriteByte('\x00')
	b.WriteString(v.URL)
	b.WriteByte('\x00')
	b.WriteString(v.Evidence)
	return xxhash.Sum64String(b.String())
}

// Request is the request half of a Flow.
type Request struct {
	Method  string
	URL     string // pretty, full URL as seen by the client
	Host    string
	Path    string
	Headers *Header
	Body    []byte
}

// Response is the response half of a Flow. StatusCode is 0 until the
// upstream responds (or the flow failed before a response was received).
type Response struct {
	StatusCode int
	Headers    *Header
	Body       []byte
}

// BodyText decodes Body as UTF-8, substituting the replacement character
// for any invalid byte sequences, matching spec.md §3's "string views
// decode UTF-8 with replacement".
func (r *Response) BodyText() string {
	return strings.ToValidUTF8(string(r.Body), "�")
}

// BodyText decodes Body as UTF-8, substituting the replacement character
// for any invalid byte sequences.
func (r *Request) BodyText() string {
	return strings.ToValidUTF8(string(r.Body), "�")
}

// Record is the canonical, immutable-after-commit artifact produced by the
// Proxy Engine for one HTTP transaction. The only field that may still
// change after commit to History is Vulnerabilities, which is append-only
// and deduplicated by (type, url, evidence).
type Record struct {
	ID        int64
	Timestamp time.Time
	Request   Request
	Response  Response

	mu              sync.Mutex
	vulnerabilities []Vulnerability
	seen            map[uint64]struct{}
}

// NewRecord constructs a Record with the given id and request half. The
// response half and vulnerability list are populated later as the flow
// progresses through the pipeline.
func NewRecord(id int64, req Request) *Record {
	return &Record{
		ID:        id,
		Timestamp: time.Now(),
		Request:   req,
		seen:      make(map[uint64]struct{}),
	}
}

// AddVulnerability appends a finding unless an identical one (by
// type+url+evidence) is already present. Safe for concurrent callers —
// the passive scanner and active scanner may annotate the same Flow from
// different goroutines.
func (r *Record) AddVulnerability(v Vulnerability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seen == nil {
		r.seen = make(map[uint64]struct{})
	}
	key := v.dedupeKey()
	if _, ok := r.seen[key]; ok {
		return
	}
	r.seen[key] = struct{}{}
	r.vulnerabilities = append(r.vulnerabilities, v)
}

// Vulnerabilities returns a snapshot of the current finding list.
func (r *Record) Vulnerabilities() []Vulnerability {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Vulnerability, len(r.vulnerabilities))
	copy(out, r.vulnerabilities)
	return out
}

// String renders a one-line summary, handy for log lines and CLI output.
func (r *Record) String() string {
	return fmt.Sprintf("#%d %s %s -> %d", r.ID, r.Request.Method, r.Request.URL, r.Response.StatusCode)
}
