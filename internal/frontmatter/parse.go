package frontmatter

import (
	"regexp"
	"strconv"
	"strings"
)

const marker = "---"

var numberRe = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

// Parse splits text into its metadata mapping and prose body.
//
// The metadata block is delimited by a `---` line at the top of the input
// and the next `---` line after it. When no well-formed marker pair exists
// the whole input is returned as body with an empty mapping; Parse only
// fails on a malformed line inside a present metadata block, and then with
// a *ParseError naming the line.
func Parse(text string) (Mapping, string, error) {
	lines := strings.Split(text, "\n")

	start := 0
	for start < len(lines) && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	if start >= len(lines) || strings.TrimRight(lines[start], " \r") != marker {
		return Mapping{}, text, nil
	}
	end := -1
	for i := start + 1; i < len(lines); i++ {
		if strings.TrimRight(lines[i], " \r") == marker {
			end = i
			break
		}
	}
	if end < 0 {
		return Mapping{}, text, nil
	}

	block := make([]string, end-start-1)
	for i, ln := range lines[start+1 : end] {
		// Tabs count as two spaces for indentation purposes.
		block[i] = strings.ReplaceAll(strings.TrimRight(ln, "\r"), "\t", "  ")
	}

	p := &parser{lines: block, base: start + 2}
	meta := Mapping{}
	if i := p.peek(); i >= 0 {
		var err error
		meta, err = p.parseMapping(indentOf(p.lines[i]))
		if err != nil {
			return nil, "", err
		}
		if j := p.peek(); j >= 0 {
			return nil, "", p.errAt(j)
		}
	}

	body := strings.Join(lines[end+1:], "\n")
	body = strings.TrimPrefix(body, "\n")
	return meta, body, nil
}

type parser struct {
	lines []string
	pos   int
	base  int // 1-based input line number of lines[0]
}

func (p *parser) errAt(i int) error {
	return &ParseError{Line: p.base + i, Text: strings.TrimRight(p.lines[i], " ")}
}

// peek returns the index of the next non-blank, non-comment line at or
// after the cursor, or -1 when the block is exhausted.
func (p *parser) peek() int {
	for i := p.pos; i < len(p.lines); i++ {
		t := strings.TrimSpace(p.lines[i])
		if t == "" || strings.HasPrefix(t, "#") {
			continue
		}
		return i
	}
	return -1
}

// parseMapping consumes `key: value` lines at exactly the given
// indentation. A shallower line terminates the mapping; a deeper line at
// the loop top (one not consumed by a nested value) is malformed.
func (p *parser) parseMapping(indent int) (Mapping, error) {
	m := Mapping{}
	for {
		i := p.peek()
		if i < 0 {
			p.pos = len(p.lines)
			return m, nil
		}
		ind := indentOf(p.lines[i])
		if ind < indent {
			return m, nil
		}
		if ind > indent {
			return nil, p.errAt(i)
		}
		content := p.lines[i][ind:]
		if content == "-" || strings.HasPrefix(content, "- ") {
			return nil, p.errAt(i)
		}
		key, rest, ok := splitKey(content)
		if !ok {
			return nil, p.errAt(i)
		}
		p.pos = i + 1
		v, err := p.parseValue(rest, ind)
		if err != nil {
			return nil, err
		}
		m[key] = v
	}
}

// parseValue handles the remainder of a `key:` line: an inline scalar, a
// `|`/`>` block scalar opener, or an empty remainder opening a nested
// block (sequence when the first deeper line starts with `-`, mapping
// otherwise, Empty when nothing deeper follows).
func (p *parser) parseValue(rest string, ind int) (Value, error) {
	switch {
	case rest == "":
		j := p.peek()
		if j < 0 || indentOf(p.lines[j]) <= ind {
			return Empty{}, nil
		}
		child := indentOf(p.lines[j])
		t := strings.TrimSpace(p.lines[j])
		if t == "-" || strings.HasPrefix(t, "- ") {
			return p.parseSequence(child)
		}
		return p.parseMapping(child)
	case rest == "|" || rest == ">":
		return p.parseBlockScalar(rest, ind), nil
	default:
		return parseScalar(rest), nil
	}
}

// parseSequence consumes `- item` lines at exactly the given indentation.
func (p *parser) parseSequence(indent int) (Sequence, error) {
	seq := Sequence{}
	for {
		i := p.peek()
		if i < 0 {
			p.pos = len(p.lines)
			return seq, nil
		}
		ind := indentOf(p.lines[i])
		if ind < indent {
			return seq, nil
		}
		content := p.lines[i][ind:]
		if ind > indent || (content != "-" && !strings.HasPrefix(content, "- ")) {
			return nil, p.errAt(i)
		}

		if content == "-" {
			// Bare item: the nested block (if any) starts on the next
			// deeper line.
			p.pos = i + 1
			v, err := p.parseValue("", ind)
			if err != nil {
				return nil, err
			}
			seq = append(seq, v)
			continue
		}

		rest := strings.TrimSpace(content[2:])
		if k, _, ok := splitKey(rest); ok && k != "" && !strings.HasPrefix(rest, "[") && !isQuoted(rest) {
			// Inline mapping item (`- key: value`): rewrite the dash as
			// indentation and re-parse the item as a mapping two columns
			// deeper, which also picks up its continuation lines.
			p.lines[i] = strings.Repeat(" ", ind+2) + rest
			p.pos = i
			v, err := p.parseMapping(ind + 2)
			if err != nil {
				return nil, err
			}
			seq = append(seq, v)
			continue
		}

		p.pos = i + 1
		v, err := p.parseValue(rest, ind)
		if err != nil {
			return nil, err
		}
		seq = append(seq, v)
	}
}

// parseBlockScalar collects the more-indented lines following a `|` or `>`
// opener. `|` preserves literal newlines with trailing blank lines
// trimmed; `>` folds the lines into one space-joined string.
func (p *parser) parseBlockScalar(style string, ind int) String {
	var collected []string
	for p.pos < len(p.lines) {
		ln := p.lines[p.pos]
		if strings.TrimSpace(ln) == "" {
			collected = append(collected, "")
			p.pos++
			continue
		}
		if indentOf(ln) <= ind {
			break
		}
		collected = append(collected, ln)
		p.pos++
	}
	for len(collected) > 0 && collected[len(collected)-1] == "" {
		collected = collected[:len(collected)-1]
	}

	strip := -1
	for _, ln := range collected {
		if ln == "" {
			continue
		}
		if n := indentOf(ln); strip < 0 || n < strip {
			strip = n
		}
	}
	out := make([]string, len(collected))
	for i, ln := range collected {
		if len(ln) >= strip {
			out[i] = ln[strip:]
		}
	}

	if style == "|" {
		return String(strings.Join(out, "\n"))
	}
	var parts []string
	for _, ln := range out {
		if t := strings.TrimSpace(ln); t != "" {
			parts = append(parts, t)
		}
	}
	return String(strings.Join(parts, " "))
}

// parseScalar types an inline value token: empty/~/null, booleans,
// numbers, inline `[...]` lists, quoted text, or a plain string.
func parseScalar(tok string) Value {
	tok = strings.TrimSpace(tok)
	if tok == "" || tok == "~" {
		return Empty{}
	}
	switch strings.ToLower(tok) {
	case "null":
		return Empty{}
	case "true":
		return Bool(true)
	case "false":
		return Bool(false)
	}
	if numberRe.MatchString(tok) {
		f, err := strconv.ParseFloat(tok, 64)
		if err == nil {
			return Number(f)
		}
	}
	if tok == "{}" {
		return Mapping{}
	}
	if strings.HasPrefix(tok, "[") && strings.HasSuffix(tok, "]") {
		inner := strings.TrimSpace(tok[1 : len(tok)-1])
		if inner == "" {
			return Sequence{}
		}
		parts := strings.Split(inner, ",")
		seq := make(Sequence, 0, len(parts))
		for _, part := range parts {
			seq = append(seq, parseScalar(part))
		}
		return seq
	}
	if isQuoted(tok) {
		s := tok[1 : len(tok)-1]
		if s == "" {
			return Empty{}
		}
		return String(s)
	}
	return String(tok)
}

func splitKey(content string) (key, rest string, ok bool) {
	idx := strings.Index(content, ":")
	if idx <= 0 {
		return "", "", false
	}
	raw := content[idx+1:]
	if raw != "" && !strings.HasPrefix(raw, " ") {
		return "", "", false
	}
	key = strings.TrimSpace(content[:idx])
	if isQuoted(key) {
		key = key[1 : len(key)-1]
	}
	if key == "" {
		return "", "", false
	}
	return key, strings.TrimSpace(raw), true
}

func isQuoted(s string) bool {
	if len(s) < 2 {
		return false
	}
	return (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0]
}

func indentOf(s string) int {
	n := 0
	for n < len(s) && s[n] == ' ' {
		n++
	}
	return n
}
