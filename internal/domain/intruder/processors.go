package intruder

import (
	"fmt"
	"strings"

	"github.com/sentinel-intercept/proxy/internal/domain/codec"
)

// Processor is one step in a per-position processor chain (spec.md §4.12):
// prefix/suffix literal text, or an encode/digest transform.
type Processor struct {
	Op    string // prefix, suffix, url_encode, html_encode, hex_encode, base64, md5, sha1, sha256
	Value string // literal text for prefix/suffix; unused otherwise
}

// ApplyChain runs chain left-to-right over payload. An empty chain is the
// identity. ParseProcessor rejects unknown ops when a chain is built; a
// Processor with an unknown op that still reaches ApplyChain makes it
// return an error.
func ApplyChain(chain []Processor, payload string) (string, error) {
	out := payload
	for _, p := range chain {
		next, err := apply(p, out)
		if err != nil {
			return "", err
		}
		out = next
	}
	return out, nil
}

func apply(p Processor, in string) (string, error) {
	switch p.Op {
	case "prefix":
		return p.Value + in, nil
	case "suffix":
		return in + p.Value, nil
	case "url_encode":
		return codec.URLEncode(in), nil
	case "html_encode":
		return codec.HTMLEncode(in), nil
	case "hex_encode":
		return codec.HexEncode(in), nil
	case "base64":
		return codec.Base64Encode(in), nil
	case "md5":
		return codec.MD5(in), nil
	case "sha1":
		return codec.SHA1(in), nil
	case "sha256":
		return codec.SHA256(in), nil
	default:
		return "", fmt.Errorf("intruder: unknown processor op %q", p.Op)
	}
}

// ParseProcessor parses a single "op:value" or bare "op" spec into a
// Processor, validating the op against the fixed vocabulary.
func ParseProcessor(spec string) (Processor, error) {
	op, value, _ := strings.Cut(spec, ":")
	op = strings.TrimSpace(op)
	switch op {
	case "prefix", "suffix", "url_encode", "html_encode", "hex_encode", "base64", "md5", "sha1", "sha256":
		return Processor{Op: op, Value: value}, nil
	default:
		return Processor{}, fmt.Errorf("intruder: unknown processor op %q", op)
	}
}
