// Package cookiejar implements the Cookie Manager (spec.md §4.4): a
// per-host capture table built from observed Set-Cookie headers, plus an
// independent operator-controlled Jar overlaid onto outgoing requests via
// the Cookie header.
package cookiejar

import (
	"net/http"
	"strings"
	"sync"
)

// JarEntry is one name/value pair in the Jar, in the order the operator
// promoted it (spec.md §3's "ordered sequence").
type JarEntry struct {
	Name  string
	Value string
}

// Manager holds the capture table and the Jar. Both are safe for
// concurrent use from the proxy pipeline and from a UI goroutine; updates
// are atomic at the per-entry granularity — one lock, held only for the
// duration of a single map read/write.
type Manager struct {
	mu       sync.Mutex
	capture  map[string]map[string]string // host -> name -> value
	jar      map[string]string            // name -> value
	jarOrder []string                     // name, first-promoted order
}

// New creates an empty Manager.
func New() *Manager {
	return &Manager{
		capture: make(map[string]map[string]string),
		jar:     make(map[string]string),
	}
}

// ObserveResponse parses every Set-Cookie header in headers and records
// name=value pairs under host in the capture table. Cookie attributes
// (Path, Domain, Expires, ...) are not retained — only the name/value the
// cookie carries.
func (m *Manager) ObserveResponse(host string, headers http.Header) {
	values := headers.Values("Set-Cookie")
	if len(values) == 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	table := m.capture[host]
	if table == nil {
		table = make(map[string]string)
		m.capture[host] = table
	}
	for _, raw := range values {
		name, value, ok := parseSetCookie(raw)
		if !ok {
			continue
		}
		table[name] = value
	}
}

// parseSetCookie extracts the leading name=value pair from a Set-Cookie
// header, ignoring any trailing attributes (Path=, Domain=, Secure, ...).
func parseSetCookie(raw string) (name, value string, ok bool) {
	first := raw
	if idx := strings.Index(raw, ";"); idx != -1 {
		first = raw[:idx]
	}
	first = strings.TrimSpace(first)
	eq := strings.Index(first, "=")
	if eq <= 0 {
		return "", "", false
	}
	return strings.TrimSpace(first[:eq]), strings.TrimSpace(first[eq+1:]), true
}

// CapturedFor returns a snapshot of the cookies captured for host.
func (m *Manager) CapturedFor(host string) map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	table := m.capture[host]
	out := make(map[string]string, len(table))
	for k, v := range table {
		out[k] = v
	}
	return out
}

// AddToJar sets name=value in the Jar. Overwriting an existing name
// updates its value in place without moving it to the end of the
// promotion order.
func (m *Manager) AddToJar(name, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.jar[name]; !exists {
		m.jarOrder = append(m.jarOrder, name)
	}
	m.jar[name] = value
}

// RemoveFromJar deletes name from the Jar, if present.
func (m *Manager) RemoveFromJar(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.jar[name]; !exists {
		return
	}
	delete(m.jar, name)
	for i, n := range m.jarOrder {
		if n == name {
			m.jarOrder = append(m.jarOrder[:i], m.jarOrder[i+1:]...)
			break
		}
	}
}

// ClearJar empties the Jar.
func (m *Manager) ClearJar() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jar = make(map[string]string)
	m.jarOrder = nil
}

// JarHeader renders the Jar as an RFC-style Cookie header value:
// "name1=val1; name2=val2", in operator promotion order. Returns "" when
// the Jar is empty.
func (m *Manager) JarHeader() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.jarOrder) == 0 {
		return ""
	}

	var b strings.Builder
	for i, name := range m.jarOrder {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(m.jar[name])
	}
	return b.String()
}

// JarEntries returns a snapshot of the Jar's name/value pairs, in
// operator promotion order.
func (m *Manager) JarEntries() []JarEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]JarEntry, 0, len(m.jarOrder))
	for _, name := range m.jarOrder {
		out = append(out, JarEntry{Name: name, Value: m.jar[name]})
	}
	return out
}
