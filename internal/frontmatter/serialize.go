package frontmatter

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Serialize renders a metadata mapping between `---` markers with the body
// appended verbatim. Keys are emitted in ascending order at two-space
// indent increments so repeated saves of the same tree are byte-identical.
// A single leading blank line in the body is stripped to avoid double
// spacing after the closing marker.
func Serialize(body string, meta Mapping) string {
	var b strings.Builder
	b.WriteString(marker + "\n")
	writeMapping(&b, meta, 0)
	b.WriteString(marker + "\n")
	b.WriteString(strings.TrimPrefix(body, "\n"))
	return b.String()
}

func writeMapping(b *strings.Builder, m Mapping, indent int) {
	for _, k := range sortedKeys(m) {
		writeEntry(b, k, m[k], indent)
	}
}

func writeEntry(b *strings.Builder, key string, v Value, indent int) {
	pad := strings.Repeat(" ", indent)
	switch t := v.(type) {
	case Mapping:
		if len(t) == 0 {
			fmt.Fprintf(b, "%s%s: {}\n", pad, key)
			return
		}
		fmt.Fprintf(b, "%s%s:\n", pad, key)
		writeMapping(b, t, indent+2)
	case Sequence:
		if len(t) == 0 {
			fmt.Fprintf(b, "%s%s: []\n", pad, key)
			return
		}
		fmt.Fprintf(b, "%s%s:\n", pad, key)
		writeSequence(b, t, indent+2)
	case String:
		if strings.Contains(string(t), "\n") {
			fmt.Fprintf(b, "%s%s: |\n", pad, key)
			writeBlockScalar(b, string(t), indent+2)
			return
		}
		fmt.Fprintf(b, "%s%s: %s\n", pad, key, scalarToken(v))
	default:
		fmt.Fprintf(b, "%s%s: %s\n", pad, key, scalarToken(v))
	}
}

func writeSequence(b *strings.Builder, seq Sequence, indent int) {
	pad := strings.Repeat(" ", indent)
	for _, item := range seq {
		switch t := item.(type) {
		case Mapping:
			if len(t) == 0 {
				b.WriteString(pad + "- {}\n")
				continue
			}
			keys := sortedKeys(t)
			if tok, ok := inlineToken(t[keys[0]]); ok {
				// First key shares the dash line; the rest continue two
				// columns deeper.
				fmt.Fprintf(b, "%s- %s: %s\n", pad, keys[0], tok)
				for _, k := range keys[1:] {
					writeEntry(b, k, t[k], indent+2)
				}
				continue
			}
			b.WriteString(pad + "-\n")
			writeMapping(b, t, indent+2)
		case Sequence:
			if len(t) == 0 {
				b.WriteString(pad + "- []\n")
				continue
			}
			b.WriteString(pad + "-\n")
			writeSequence(b, t, indent+2)
		case String:
			if strings.Contains(string(t), "\n") {
				b.WriteString(pad + "- |\n")
				writeBlockScalar(b, string(t), indent+2)
				continue
			}
			fmt.Fprintf(b, "%s- %s\n", pad, scalarToken(item))
		default:
			fmt.Fprintf(b, "%s- %s\n", pad, scalarToken(item))
		}
	}
}

func writeBlockScalar(b *strings.Builder, s string, indent int) {
	pad := strings.Repeat(" ", indent)
	for _, ln := range strings.Split(s, "\n") {
		if ln == "" {
			b.WriteString("\n")
			continue
		}
		b.WriteString(pad + ln + "\n")
	}
}

// scalarToken renders a single-line scalar value.
func scalarToken(v Value) string {
	switch t := v.(type) {
	case Bool:
		if t {
			return "true"
		}
		return "false"
	case Number:
		return strconv.FormatFloat(float64(t), 'f', -1, 64)
	case Empty:
		return `""`
	case String:
		s := string(t)
		if needsQuoting(s) {
			return quote(s)
		}
		return s
	default:
		return `""`
	}
}

// inlineToken renders v for use on a dash line, refusing values that need
// their own block.
func inlineToken(v Value) (string, bool) {
	switch t := v.(type) {
	case Mapping, Sequence:
		return "", false
	case String:
		if strings.Contains(string(t), "\n") {
			return "", false
		}
		return scalarToken(v), true
	default:
		return scalarToken(v), true
	}
}

// structuralChars force quoting when they appear anywhere in a bare
// string: each can open a key, comment, list, mapping, or sequence item
// depending on position.
const structuralChars = ":#-{}[]"

// needsQuoting reports whether a string would be misread when written
// bare: tokens that re-parse as another scalar type, quoted-looking text,
// anything containing a structural character, or surrounding whitespace.
func needsQuoting(s string) bool {
	if s == "" || s == "~" || s == "|" || s == ">" {
		return true
	}
	switch strings.ToLower(s) {
	case "null", "true", "false":
		return true
	}
	if numberRe.MatchString(s) {
		return true
	}
	if isQuoted(s) {
		return true
	}
	if strings.ContainsAny(s, structuralChars) {
		return true
	}
	return s != strings.TrimSpace(s)
}

func quote(s string) string {
	if strings.Contains(s, `"`) && !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	return `"` + s + `"`
}

func sortedKeys(m Mapping) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
