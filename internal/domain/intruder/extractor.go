package intruder

import "regexp"

// Extractor is a named regular expression with exactly one capture group
// (spec.md §4.12's grep extractor). On every response, the first match is
// captured, or "" if none.
type Extractor struct {
	Name    string
	Pattern *regexp.Regexp
}

// NewExtractor compiles pattern and validates it carries exactly one
// capture group.
func NewExtractor(name, pattern string) (*Extractor, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	if re.NumSubexp() != 1 {
		return nil, errExactlyOneGroup(pattern)
	}
	return &Extractor{Name: name, Pattern: re}, nil
}

func errExactlyOneGroup(pattern string) error {
	return &extractorError{pattern}
}

type extractorError struct{ pattern string }

func (e *extractorError) Error() string {
	return "intruder: extractor pattern must have exactly one capture group: " + e.pattern
}

// Extract returns the first capture-group match in body, or "" if none.
func (e *Extractor) Extract(body []byte) string {
	m := e.Pattern.FindSubmatch(body)
	if len(m) < 2 {
		return ""
	}
	return string(m[1])
}

// ExtractAll runs every extractor against body, in order.
func ExtractAll(extractors []*Extractor, body []byte) []string {
	out := make([]string, len(extractors))
	for i, e := range extractors {
		out[i] = e.Extract(body)
	}
	return out
}
