// Package flow defines the canonical in-memory request/response artifact
// that travels through the proxy engine, interception pipeline, and history.
package flow

import "strings"

// Header is an ordered, case-insensitive multimap of HTTP header fields.
// Insertion order is preserved for emission; lookups are case-insensitive
// per RFC 7230 §3.2.
type Header struct {
	keys   []string
	values map[string][]string
}

// NewHeader returns an empty Header ready for use.
func NewHeader() *Header {
	return &Header{values: make(map[string][]string)}
}

func canon(key string) string {
	return strings.ToLower(key)
}

// Add appends a value for key, preserving first-seen key order.
func (h *Header) Add(key, value string) {
	ck := canon(key)
	if _, ok := h.values[ck]; !ok {
		h.keys = append(h.keys, key)
	}
	h.values[ck] = append(h.values[ck], value)
}

// Set replaces all values for key with a single value.
func (h *Header) Set(key, value string) {
	ck := canon(key)
	if _, ok := h.values[ck]; !ok {
		h.keys = append(h.keys, key)
	}
	h.values[ck] = []string{value}
}

// Get returns the first value for key, or "" if absent.
func (h *Header) Get(key string) string {
	vs := h.values[canon(key)]
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

// Values returns all values for key in insertion order.
func (h *Header) Values(key string) []string {
	return h.values[canon(key)]
}

// Has reports whether key is present, regardless of case.
func (h *Header) Has(key string) bool {
	_, ok := h.values[canon(key)]
	return ok
}

// Del removes all values for key.
func (h *Header) Del(key string) {
	ck := canon(key)
	if _, ok := h.values[ck]; !ok {
		return
	}
	delete(h.values, ck)
	for i, k := range h.keys {
		if canon(k) == ck {
			h.keys = append(h.keys[:i], h.keys[i+1:]...)
			break
		}
	}
}

// Keys returns header names in the order they were first added.
func (h *Header) Keys() []string {
	out := make([]string, len(h.keys))
	copy(out, h.keys)
	return out
}

// Each calls fn once per (key, value) pair, in insertion order of keys
// and then of values for that key.
func (h *Header) Each(fn func(key, value string)) {
	for _, k := range h.keys {
		for _, v := range h.values[canon(k)] {
			fn(k, v)
		}
	}
}

// Clone returns a deep copy.
func (h *Header) Clone() *Header {
	out := NewHeader()
	h.Each(func(k, v string) { out.Add(k, v) })
	return out
}
