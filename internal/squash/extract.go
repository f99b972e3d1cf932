package squash

import (
	"errors"
	"fmt"
	"strings"
)

type ExtractMode string

const (
	// Structural follows brace nesting from each method signature.
	Structural ExtractMode = "structural"
	// Offset reproduces the fixed line-offset heuristic: the Up body runs from
	// two lines below its signature to two lines above the Down signature, the
	// Down body from two lines below its signature to the third-from-last line.
	// Files that deviate from the generated layout are silently mis-extracted.
	Offset ExtractMode = "offset"
)

const (
	UpSignature   = "protected override void Up(MigrationBuilder migrationBuilder)"
	DownSignature = "protected override void Down(MigrationBuilder migrationBuilder)"
)

var (
	ErrSignatureNotFound  = errors.New("method signature not found")
	ErrDuplicateSignature = errors.New("method signature found more than once")
	ErrUnbalancedBody     = errors.New("method body is not a balanced block")
	ErrUnknownExtractMode = errors.New("unknown extract mode")
)

func ParseExtractMode(s string) (ExtractMode, error) {
	switch m := ExtractMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "", Structural:
		return Structural, nil
	case Offset:
		return Offset, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownExtractMode, s)
	}
}

// Bodies holds the statement lines of a migration's Up and Down methods.
type Bodies struct {
	Up   []string
	Down []string
}

func Extract(lines []string, mode ExtractMode) (Bodies, error) {
	up, err := findSignature(lines, UpSignature)
	if err != nil {
		return Bodies{}, err
	}
	down, err := findSignature(lines, DownSignature)
	if err != nil {
		return Bodies{}, err
	}
	if mode == Offset {
		return Bodies{
			Up:   span(lines, up+2, down-2),
			Down: span(lines, down+2, len(lines)-3),
		}, nil
	}
	var b Bodies
	if b.Up, err = bodyOf(lines, up, down, "Down"); err != nil {
		return Bodies{}, fmt.Errorf("up body: %w", err)
	}
	if b.Down, err = bodyOf(lines, down, up, "Up"); err != nil {
		return Bodies{}, fmt.Errorf("down body: %w", err)
	}
	return b, nil
}

// splitLines splits file content into lines without terminators. A trailing
// newline does not produce an extra empty line.
func splitLines(s string) []string {
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

func findSignature(lines []string, sig string) (int, error) {
	idx := -1
	for i, l := range lines {
		if !strings.Contains(l, sig) {
			continue
		}
		if idx >= 0 {
			return 0, fmt.Errorf("%w: %q (lines %d and %d)", ErrDuplicateSignature, sig, idx+1, i+1)
		}
		idx = i
	}
	if idx < 0 {
		return 0, fmt.Errorf("%w: %q", ErrSignatureNotFound, sig)
	}
	return idx, nil
}

func span(lines []string, from, to int) []string {
	if from < 0 {
		from = 0
	}
	if to > len(lines) {
		to = len(lines)
	}
	if from >= to {
		return nil
	}
	return lines[from:to]
}

// bodyOf extracts the block after sig and rejects a block that swallows the
// other method's signature.
func bodyOf(lines []string, sig, other int, otherName string) ([]string, error) {
	body, end, err := block(lines, sig)
	if err != nil {
		return nil, err
	}
	if sig < other && end >= other {
		return nil, fmt.Errorf("%w: block opened after line %d runs past the %s signature on line %d",
			ErrUnbalancedBody, sig+1, otherName, other+1)
	}
	return body, nil
}

// block returns the lines strictly between the line holding the method's
// opening brace and the line holding its matching closing brace, and the index
// of the closing line.
func block(lines []string, sig int) ([]string, int, error) {
	var (
		sc        scanner
		depth     int
		open      = -1
		closed    = -1
		bodyless  bool
		unbalance bool
	)
	for i := sig; i < len(lines) && closed < 0; i++ {
		sc.scan(lines[i], func(c byte) {
			if closed >= 0 || bodyless || unbalance {
				return
			}
			switch c {
			case '{':
				depth++
				if open < 0 {
					open = i
				}
			case '}':
				depth--
				if depth < 0 {
					unbalance = true
				} else if depth == 0 && open >= 0 {
					closed = i
				}
			case ';':
				if open < 0 {
					bodyless = true
				}
			}
		})
		if bodyless {
			return nil, 0, fmt.Errorf("%w: no block body after line %d", ErrUnbalancedBody, sig+1)
		}
		if unbalance {
			return nil, 0, fmt.Errorf("%w: unexpected '}' on line %d", ErrUnbalancedBody, i+1)
		}
	}
	if closed < 0 {
		return nil, 0, fmt.Errorf("%w: block opened after line %d is never closed", ErrUnbalancedBody, sig+1)
	}
	return span(lines, open+1, closed), closed, nil
}

// literal is an open string literal or an interpolation hole inside one.
type literal struct {
	hole bool
	// depth counts braces opened inside a hole.
	depth int

	verbatim bool
	interp   bool
	// raw is the length of the quote run that opened a raw string literal.
	raw int
	// dollars is the number of '$' before a raw literal; a hole needs that
	// many braces.
	dollars int
}

// scanner walks C# source one line at a time and reports the structural
// characters '{', '}' and ';' that appear outside comments and literals.
// Block comments, verbatim strings and raw strings may span lines.
// Interpolation holes are code and may hold nested literals.
type scanner struct {
	blockComment bool
	stack        []literal
}

func (s *scanner) top() *literal {
	if len(s.stack) == 0 {
		return nil
	}
	return &s.stack[len(s.stack)-1]
}

func (s *scanner) pop() { s.stack = s.stack[:len(s.stack)-1] }

func (s *scanner) scan(line string, visit func(c byte)) {
	for j := 0; j < len(line); j++ {
		c := line[j]
		if s.blockComment {
			if c == '*' && j+1 < len(line) && line[j+1] == '/' {
				s.blockComment = false
				j++
			}
			continue
		}
		top := s.top()
		if top != nil && !top.hole {
			j = s.inString(line, j, top)
			continue
		}
		switch c {
		case '/':
			if j+1 < len(line) {
				switch line[j+1] {
				case '/':
					s.endLine()
					return
				case '*':
					s.blockComment = true
					j++
				}
			}
		case '"', '@', '$':
			if k, ok := s.openString(line, j); ok {
				j = k
			}
		case '\'':
			j = skipQuoted(line, j, '\'')
		case '{':
			if top != nil {
				top.depth++
			} else {
				visit(c)
			}
		case '}':
			switch {
			case top == nil:
				visit(c)
			case top.depth == 0:
				s.pop()
			default:
				top.depth--
			}
		case ';':
			if top == nil {
				visit(c)
			}
		}
	}
	s.endLine()
}

// openString recognizes a string literal with its optional '$' and '@'
// prefix starting at j. It returns the index of the last character of the
// opening delimiter.
func (s *scanner) openString(line string, j int) (int, bool) {
	k := j
	var dollars int
	var verbatim bool
	for k < len(line) && (line[k] == '$' || line[k] == '@') {
		if line[k] == '$' {
			dollars++
		} else {
			verbatim = true
		}
		k++
	}
	if k >= len(line) || line[k] != '"' {
		return j, false
	}
	quotes := 0
	for k+quotes < len(line) && line[k+quotes] == '"' {
		quotes++
	}
	if quotes >= 3 && !verbatim {
		s.stack = append(s.stack, literal{raw: quotes, dollars: dollars, interp: dollars > 0})
		return k + quotes - 1, true
	}
	s.stack = append(s.stack, literal{verbatim: verbatim, interp: dollars > 0})
	return k, true
}

// inString consumes the character at j inside the string literal l and
// returns the index of the last character consumed.
func (s *scanner) inString(line string, j int, l *literal) int {
	c := line[j]
	run := func(b byte) int {
		n := 0
		for j+n < len(line) && line[j+n] == b {
			n++
		}
		return n
	}
	switch {
	case l.raw > 0:
		switch c {
		case '"':
			n := run('"')
			if n >= l.raw {
				s.pop()
			}
			return j + n - 1
		case '{':
			n := run('{')
			if l.interp && n >= l.dollars {
				s.stack = append(s.stack, literal{hole: true})
			}
			return j + n - 1
		}
	case c == '\\' && !l.verbatim:
		return j + 1
	case c == '"':
		if l.verbatim && j+1 < len(line) && line[j+1] == '"' {
			return j + 1
		}
		s.pop()
	case c == '{' && l.interp:
		if j+1 < len(line) && line[j+1] == '{' {
			return j + 1
		}
		s.stack = append(s.stack, literal{hole: true})
	}
	return j
}

// endLine drops regular string literals, which cannot span lines, together
// with anything opened inside them.
func (s *scanner) endLine() {
	for i, l := range s.stack {
		if !l.hole && !l.verbatim && l.raw == 0 {
			s.stack = s.stack[:i]
			return
		}
	}
}

// skipQuoted returns the index of the quote closing the literal that opens at
// start, honoring backslash escapes. Unterminated literals run to end of line.
func skipQuoted(line string, start int, quote byte) int {
	for j := start + 1; j < len(line); j++ {
		switch line[j] {
		case '\\':
			j++
		case quote:
			return j
		}
	}
	return len(line) - 1
}
