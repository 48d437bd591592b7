// Package extract resolves dotted and bracketed path expressions against
// decoded JSON values. An expression is a comma-separated list of fallback
// alternatives evaluated left to right; the first alternative resolving to a
// non-null value wins.
//
// Each alternative is a sequence of segments: bare identifiers (object keys),
// bracketed integer indexes ([0]), bracketed quoted keys (['some-key'], for
// keys carrying punctuation), and the wildcard array segment [*]. A wildcard
// followed by further segments descends into the first array element; a
// terminal wildcard yields the whole array. Resolution through null, a
// missing key, a non-container, or an out-of-range index is a miss for that
// alternative, never a panic.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type segmentKind int

const (
	segKey segmentKind = iota
	segIndex
	segWildcard
)

type segment struct {
	kind  segmentKind
	key   string
	index int
}

// Value resolves expr against root and returns the extracted value, or nil
// when no alternative resolves. Root is expected in JSON-decoded shape
// (map[string]any, []any, float64, string, bool, nil); see Normalize.
func Value(root any, expr string) any {
	for _, alt := range splitAlternatives(expr) {
		segs, err := parse(alt)
		if err != nil {
			continue
		}
		if v, ok := resolve(root, segs); ok {
			return v
		}
	}
	return nil
}

// Validate parses every alternative of expr and returns the first syntax
// error, if any. Used by schema validation tooling; Value itself treats
// malformed alternatives as misses.
func Validate(expr string) error {
	alts := splitAlternatives(expr)
	if len(alts) == 0 {
		return errors.New("empty path expression")
	}
	for _, alt := range alts {
		if _, err := parse(alt); err != nil {
			return fmt.Errorf("alternative %q: %w", alt, err)
		}
	}
	return nil
}

// Normalize coerces an arbitrary Go value into its JSON-decoded shape so
// extraction behaves identically before and after a persistence round trip.
// Values that cannot be marshalled are returned unchanged; extraction against
// them simply misses.
func Normalize(v any) any {
	switch v.(type) {
	case nil, string, bool, float64:
		return v
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return v
	}
	return decoded
}

// splitAlternatives splits expr on commas that sit outside brackets and
// quotes, trimming whitespace and dropping empty parts.
func splitAlternatives(expr string) []string {
	var (
		alts    []string
		current strings.Builder
		depth   int
		quote   byte
	)
	flush := func() {
		if alt := strings.TrimSpace(current.String()); alt != "" {
			alts = append(alts, alt)
		}
		current.Reset()
	}
	for i := 0; i < len(expr); i++ {
		c := expr[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '[':
			depth++
		case c == ']':
			if depth > 0 {
				depth--
			}
		case c == ',' && depth == 0:
			flush()
			continue
		}
		current.WriteByte(c)
	}
	flush()
	return alts
}

func parse(alt string) ([]segment, error) {
	var segs []segment
	i := 0
	for i < len(alt) {
		switch alt[i] {
		case '.':
			return nil, fmt.Errorf("unexpected '.' at offset %d", i)
		case '[':
			seg, next, err := parseBracket(alt, i)
			if err != nil {
				return nil, err
			}
			segs = append(segs, seg)
			i = next
		default:
			start := i
			for i < len(alt) && alt[i] != '.' && alt[i] != '[' {
				if alt[i] == ']' || alt[i] == '\'' || alt[i] == '"' {
					return nil, fmt.Errorf("unexpected %q at offset %d", alt[i], i)
				}
				i++
			}
			segs = append(segs, segment{kind: segKey, key: alt[start:i]})
		}
		// A segment may be followed by '.', a bracket, or the end.
		if i < len(alt) && alt[i] == '.' {
			i++
			if i == len(alt) {
				return nil, errors.New("trailing '.'")
			}
			if alt[i] == '.' {
				return nil, errors.New("empty segment")
			}
		}
	}
	if len(segs) == 0 {
		return nil, errors.New("empty alternative")
	}
	return segs, nil
}

func parseBracket(alt string, start int) (segment, int, error) {
	i := start + 1
	if i >= len(alt) {
		return segment{}, 0, errors.New("unterminated bracket")
	}
	switch alt[i] {
	case '*':
		if i+1 >= len(alt) || alt[i+1] != ']' {
			return segment{}, 0, errors.New("malformed wildcard segment")
		}
		return segment{kind: segWildcard}, i + 2, nil
	case '\'', '"':
		quote := alt[i]
		end := strings.IndexByte(alt[i+1:], quote)
		if end == -1 {
			return segment{}, 0, errors.New("unterminated quoted key")
		}
		key := alt[i+1 : i+1+end]
		closing := i + 1 + end + 1
		if closing >= len(alt) || alt[closing] != ']' {
			return segment{}, 0, errors.New("missing ']' after quoted key")
		}
		return segment{kind: segKey, key: key}, closing + 1, nil
	default:
		end := strings.IndexByte(alt[i:], ']')
		if end == -1 {
			return segment{}, 0, errors.New("unterminated bracket")
		}
		raw := alt[i : i+end]
		idx, err := strconv.Atoi(raw)
		if err != nil || idx < 0 {
			return segment{}, 0, fmt.Errorf("invalid array index %q", raw)
		}
		return segment{kind: segIndex, index: idx}, i + end + 1, nil
	}
}

func resolve(root any, segs []segment) (any, bool) {
	current := root
	for i, seg := range segs {
		if current == nil {
			return nil, false
		}
		switch seg.kind {
		case segKey:
			obj, ok := current.(map[string]any)
			if !ok {
				return nil, false
			}
			v, ok := obj[seg.key]
			if !ok {
				return nil, false
			}
			current = v
		case segIndex:
			arr, ok := current.([]any)
			if !ok || seg.index >= len(arr) {
				return nil, false
			}
			current = arr[seg.index]
		case segWildcard:
			arr, ok := current.([]any)
			if !ok {
				return nil, false
			}
			if i == len(segs)-1 {
				return arr, true
			}
			if len(arr) == 0 {
				return nil, false
			}
			current = arr[0]
		}
	}
	if current == nil {
		return nil, false
	}
	return current, true
}
