package extract

import (
	"bytes"
	"errors"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// ErrMalformedContent reports an unterminated string or array in a content stream.
var ErrMalformedContent = errors.New("extract: malformed content stream")

// kernSpace is the TJ displacement (thousandths of text space) at or beyond
// which a word break is assumed.
const kernSpace = -200

type tokenKind int

const (
	tokOp tokenKind = iota
	tokString
	tokNumber
	tokArrayOpen
	tokArrayClose
	tokOther
)

type token struct {
	kind tokenKind
	text string // operator name
	str  []byte // raw string bytes, escapes resolved
	num  float64
}

type operand struct {
	str   []byte
	num   float64
	isStr bool
	isNum bool
	arr   []operand
	isArr bool
}

// TextRuns tokenizes a PDF content stream and returns one run per
// text-showing operator (Tj, ', ", TJ), in stream order. Runs that decode to
// blank text are dropped.
func TextRuns(content []byte) ([]string, error) {
	lx := &lexer{data: content}
	var (
		stack []operand
		array []operand
		inArr bool
		runs  []string
	)
	emit := func(raw []byte) {
		s := strings.TrimSpace(decodeText(raw))
		if s != "" {
			runs = append(runs, s)
		}
	}
	for {
		tok, ok, err := lx.next()
		if err != nil {
			return runs, err
		}
		if !ok {
			break
		}
		switch tok.kind {
		case tokArrayOpen:
			inArr, array = true, nil
		case tokArrayClose:
			if inArr {
				stack = append(stack, operand{arr: array, isArr: true})
				inArr, array = false, nil
			}
		case tokString:
			op := operand{str: tok.str, isStr: true}
			if inArr {
				array = append(array, op)
			} else {
				stack = append(stack, op)
			}
		case tokNumber:
			op := operand{num: tok.num, isNum: true}
			if inArr {
				array = append(array, op)
			} else {
				stack = append(stack, op)
			}
		case tokOther:
			if !inArr {
				stack = append(stack, operand{})
			}
		case tokOp:
			switch tok.text {
			case "Tj", "'", `"`:
				if s, ok := lastString(stack); ok {
					emit(s)
				}
			case "TJ":
				if len(stack) > 0 && stack[len(stack)-1].isArr {
					emit(joinTJ(stack[len(stack)-1].arr))
				}
			case "ID":
				lx.skipInlineImage()
			}
			stack = stack[:0]
		}
	}
	if inArr {
		return runs, ErrMalformedContent
	}
	return runs, nil
}

func lastString(stack []operand) ([]byte, bool) {
	if len(stack) == 0 || !stack[len(stack)-1].isStr {
		return nil, false
	}
	return stack[len(stack)-1].str, true
}

// joinTJ concatenates the strings of a TJ array, turning large negative
// displacements into spaces.
func joinTJ(arr []operand) []byte {
	var b bytes.Buffer
	for _, op := range arr {
		switch {
		case op.isStr:
			b.Write(op.str)
		case op.isNum && op.num <= kernSpace:
			b.WriteByte(' ')
		}
	}
	return b.Bytes()
}

// decodeText maps PDF string bytes to UTF-8. Strings starting with a UTF-16BE
// byte order mark are decoded as UTF-16, everything else as Windows-1252,
// which covers WinAnsiEncoding for the Latin-1 range used by Portuguese text.
func decodeText(raw []byte) string {
	if len(raw) >= 2 && raw[0] == 0xFE && raw[1] == 0xFF {
		out, err := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder().Bytes(raw)
		if err == nil {
			return string(out)
		}
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(out)
}

type lexer struct {
	data []byte
	pos  int
}

func isWhite(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t' || c == '\f' || c == 0
}

func isDelim(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func (l *lexer) next() (token, bool, error) {
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		switch {
		case isWhite(c):
			l.pos++
		case c == '%':
			for l.pos < len(l.data) && l.data[l.pos] != '\n' && l.data[l.pos] != '\r' {
				l.pos++
			}
		case c == '(':
			s, err := l.literal()
			return token{kind: tokString, str: s}, true, err
		case c == '<':
			if l.pos+1 < len(l.data) && l.data[l.pos+1] == '<' {
				l.pos += 2
				return token{kind: tokOther}, true, nil
			}
			s, err := l.hex()
			return token{kind: tokString, str: s}, true, err
		case c == '>':
			l.pos++
			if l.pos < len(l.data) && l.data[l.pos] == '>' {
				l.pos++
			}
			return token{kind: tokOther}, true, nil
		case c == '[':
			l.pos++
			return token{kind: tokArrayOpen}, true, nil
		case c == ']':
			l.pos++
			return token{kind: tokArrayClose}, true, nil
		case c == '/':
			l.pos++
			l.word()
			return token{kind: tokOther}, true, nil
		case c == '{' || c == '}' || c == ')':
			l.pos++
			return token{kind: tokOther}, true, nil
		default:
			w := l.word()
			if f, err := strconv.ParseFloat(w, 64); err == nil {
				return token{kind: tokNumber, num: f}, true, nil
			}
			return token{kind: tokOp, text: w}, true, nil
		}
	}
	return token{}, false, nil
}

func (l *lexer) word() string {
	start := l.pos
	for l.pos < len(l.data) && !isWhite(l.data[l.pos]) && !isDelim(l.data[l.pos]) {
		l.pos++
	}
	if l.pos == start {
		// Lone delimiter-free byte that is neither: consume it to guarantee progress.
		l.pos++
	}
	return string(l.data[start:l.pos])
}

// literal reads a parenthesized string starting at l.pos, honoring nested
// balanced parentheses and backslash escapes.
func (l *lexer) literal() ([]byte, error) {
	l.pos++ // (
	var b bytes.Buffer
	depth := 1
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		l.pos++
		switch c {
		case '(':
			depth++
			b.WriteByte(c)
		case ')':
			depth--
			if depth == 0 {
				return b.Bytes(), nil
			}
			b.WriteByte(c)
		case '\\':
			l.escape(&b)
		default:
			b.WriteByte(c)
		}
	}
	return b.Bytes(), ErrMalformedContent
}

func (l *lexer) escape(b *bytes.Buffer) {
	if l.pos >= len(l.data) {
		return
	}
	c := l.data[l.pos]
	l.pos++
	switch c {
	case 'n':
		b.WriteByte('\n')
	case 'r':
		b.WriteByte('\r')
	case 't':
		b.WriteByte('\t')
	case 'b':
		b.WriteByte('\b')
	case 'f':
		b.WriteByte('\f')
	case '\r':
		// Line continuation.
		if l.pos < len(l.data) && l.data[l.pos] == '\n' {
			l.pos++
		}
	case '\n':
	default:
		if c >= '0' && c <= '7' {
			val := int(c - '0')
			for i := 0; i < 2 && l.pos < len(l.data); i++ {
				d := l.data[l.pos]
				if d < '0' || d > '7' {
					break
				}
				val = val*8 + int(d-'0')
				l.pos++
			}
			b.WriteByte(byte(val))
			return
		}
		b.WriteByte(c)
	}
}

// hex reads a <...> hex string. An odd trailing digit is padded with 0.
func (l *lexer) hex() ([]byte, error) {
	l.pos++ // <
	var digits []byte
	for l.pos < len(l.data) {
		c := l.data[l.pos]
		l.pos++
		if c == '>' {
			if len(digits)%2 == 1 {
				digits = append(digits, '0')
			}
			out := make([]byte, len(digits)/2)
			for i := range out {
				out[i] = unhex(digits[2*i])<<4 | unhex(digits[2*i+1])
			}
			return out, nil
		}
		if unhex(c) != 0xFF {
			digits = append(digits, c)
		}
	}
	return nil, ErrMalformedContent
}

func unhex(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	}
	return 0xFF
}

// skipInlineImage advances past inline image data up to and including the
// EI operator that ends it.
func (l *lexer) skipInlineImage() {
	for l.pos+2 <= len(l.data) {
		if l.data[l.pos] == 'E' && l.data[l.pos+1] == 'I' &&
			(l.pos == 0 || isWhite(l.data[l.pos-1])) &&
			(l.pos+2 == len(l.data) || isWhite(l.data[l.pos+2])) {
			l.pos += 2
			return
		}
		l.pos++
	}
	l.pos = len(l.data)
}
