// Package frontmatter implements the codec for the restricted metadata
// markup at the head of entity files: mappings, sequences, scalars, and
// block scalars between two `---` marker lines, followed by a free-form
// prose body. The grammar is deliberately smaller than YAML and the
// serializer produces deterministic, sorted-key output so that re-saving
// an entity yields stable diffs.
package frontmatter

import "fmt"

// Value is one node in a parsed metadata tree. The concrete types are
// String, Number, Bool, Empty, Sequence, and Mapping; code walking a tree
// switches over these exhaustively.
type Value interface {
	isValue()
}

// String is a plain text scalar.
type String string

// Number is a numeric scalar. Integers and decimals share this type.
type Number float64

// Bool is a true/false scalar.
type Bool bool

// Empty is the null-ish scalar (empty value, `~`, or `null`).
type Empty struct{}

// Sequence is an ordered list of values.
type Sequence []Value

// Mapping is a set of named values. Key order is not preserved; the
// serializer emits keys in ascending order.
type Mapping map[string]Value

func (String) isValue()   {}
func (Number) isValue()   {}
func (Bool) isValue()     {}
func (Empty) isValue()    {}
func (Sequence) isValue() {}
func (Mapping) isValue()  {}

// ParseError reports a line inside the metadata block that is not valid
// mapping or sequence syntax.
type ParseError struct {
	Line int    // 1-based line number within the input text
	Text string // offending line, verbatim
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("frontmatter: line %d: malformed line %q", e.Line, e.Text)
}

// GetString returns the string value of key, or "" when absent or not a
// String.
func (m Mapping) GetString(key string) string {
	if s, ok := m[key].(String); ok {
		return string(s)
	}
	return ""
}

// Interface converts a Value tree into plain Go values (string, float64,
// bool, nil, []any, map[string]any) for callers that need an untyped view,
// such as schema validation.
func Interface(v Value) any {
	switch t := v.(type) {
	case String:
		return string(t)
	case Number:
		return float64(t)
	case Bool:
		return bool(t)
	case Empty:
		return nil
	case Sequence:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = Interface(item)
		}
		return out
	case Mapping:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = Interface(item)
		}
		return out
	default:
		return nil
	}
}

// FromInterface converts plain Go values (as produced by a generic YAML or
// JSON decode) into a Value tree. Unrecognized types are stringified.
func FromInterface(v any) Value {
	switch t := v.(type) {
	case nil:
		return Empty{}
	case string:
		return String(t)
	case bool:
		return Bool(t)
	case int:
		return Number(t)
	case int64:
		return Number(t)
	case float64:
		return Number(t)
	case []any:
		out := make(Sequence, len(t))
		for i, item := range t {
			out[i] = FromInterface(item)
		}
		return out
	case map[string]any:
		out := make(Mapping, len(t))
		for k, item := range t {
			out[k] = FromInterface(item)
		}
		return out
	default:
		return String(fmt.Sprintf("%v", t))
	}
}
