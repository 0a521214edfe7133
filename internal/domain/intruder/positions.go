// Package intruder implements the Intruder attack subsystem (spec.md
// §4.10-4.12): payload position parsing, the four attack-plan generators,
// the processor chain, the grep extractor, and the bounded-concurrency
// runner.
package intruder

import (
	"bytes"
	"fmt"
)

// Position marks one payload slot in a raw request: the byte range
// [Start, End) in the original raw text, and the literal text that was
// between the delimiters (without the delimiters themselves).
type Position struct {
	Start    int
	End      int
	Original string
}

// delimiter marks payload positions in a raw request, per spec.md §4.10.
const delimiter = "§"

// ParsePositions scans raw for delimiter-enclosed spans and returns their
// positions in order of appearance. An odd number of delimiters is a
// parse error, since every open must have a matching close.
func ParsePositions(raw []byte) ([]Position, error) {
	var marks []int
	for i := 0; ; {
		idx := bytes.Index(raw[i:], []byte(delimiter))
		if idx == -1 {
			break
		}
		marks = append(marks, i+idx)
		i += idx + len(delimiter)
	}
	if len(marks)%2 != 0 {
		return nil, fmt.Errorf("intruder: odd number of %q delimiters (%d)", delimiter, len(marks))
	}

	positions := make([]Position, 0, len(marks)/2)
	for i := 0; i < len(marks); i += 2 {
		start := marks[i]
		end := marks[i+1]
		positions = append(positions, Position{
			Start:    start,
			End:      end + len(delimiter),
			Original: string(raw[start+len(delimiter) : end]),
		})
	}
	return positions, nil
}

// StripDelimiters removes every delimiter from raw, returning the plain
// request text. Position byte ranges refer to raw with its delimiters,
// not to this output.
func StripDelimiters(raw []byte) []byte {
	return bytes.ReplaceAll(raw, []byte(delimiter), nil)
}
