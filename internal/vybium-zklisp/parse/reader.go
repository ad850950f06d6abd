// Package parse turns source text into store-resident expressions.
package parse

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	"github.com/vybium/vybium-zklisp/internal/vybium-zklisp/store"
)

// Reader scans s-expression source and interns every parsed form
// directly into a store. Reading the same text into the same store
// twice yields pointer-identical results.
type Reader struct {
	store *store.Store
	src   []rune
	pos   int
	line  int
	col   int
}

// NewReader creates a reader over the given source text.
func NewReader(s *store.Store, source string) *Reader {
	return &Reader{store: s, src: []rune(source), line: 1, col: 1}
}

// ReadOne parses exactly one expression and requires that nothing but
// whitespace and comments follow it.
func ReadOne(s *store.Store, source string) (store.Pointer, error) {
	r := NewReader(s, source)
	expr, err := r.Read()
	if err != nil {
		return store.Pointer{}, err
	}
	r.skipSpace()
	if !r.eof() {
		return store.Pointer{}, r.errorf("trailing input after expression")
	}
	return expr, nil
}

// ReadAll parses every expression in the source.
func ReadAll(s *store.Store, source string) ([]store.Pointer, error) {
	r := NewReader(s, source)
	var out []store.Pointer
	for {
		r.skipSpace()
		if r.eof() {
			return out, nil
		}
		expr, err := r.Read()
		if err != nil {
			return nil, err
		}
		out = append(out, expr)
	}
}

// Read parses the next expression.
func (r *Reader) Read() (store.Pointer, error) {
	r.skipSpace()
	if r.eof() {
		return store.Pointer{}, r.errorf("unexpected end of input")
	}

	switch c := r.peek(); {
	case c == '(':
		return r.readList()
	case c == ')':
		return store.Pointer{}, r.errorf("unexpected ')'")
	case c == '"':
		return r.readString()
	case c == '\'':
		return r.readQuote()
	default:
		return r.readAtom()
	}
}

func (r *Reader) readList() (store.Pointer, error) {
	open := r.position()
	r.next() // consume '('

	var elems []store.Pointer
	tail := store.NilPointer
	for {
		r.skipSpace()
		if r.eof() {
			return store.Pointer{}, fmt.Errorf("unterminated list opened at %s", open)
		}
		if r.peek() == ')' {
			r.next()
			break
		}
		if r.peek() == '.' && r.peekAheadIsDelimiter(1) {
			if len(elems) == 0 {
				return store.Pointer{}, r.errorf("dotted pair with no head")
			}
			r.next()
			t, err := r.Read()
			if err != nil {
				return store.Pointer{}, err
			}
			r.skipSpace()
			if r.eof() || r.peek() != ')' {
				return store.Pointer{}, r.errorf("expected ')' after dotted tail")
			}
			r.next()
			tail = t
			break
		}
		elem, err := r.Read()
		if err != nil {
			return store.Pointer{}, err
		}
		elems = append(elems, elem)
	}

	acc := tail
	for i := len(elems) - 1; i >= 0; i-- {
		next, err := r.store.InternCons(elems[i], acc)
		if err != nil {
			return store.Pointer{}, fmt.Errorf("failed to intern list: %w", err)
		}
		acc = next
	}
	return acc, nil
}

func (r *Reader) readString() (store.Pointer, error) {
	open := r.position()
	r.next() // consume '"'

	var b strings.Builder
	for {
		if r.eof() {
			return store.Pointer{}, fmt.Errorf("unterminated string opened at %s", open)
		}
		c := r.next()
		switch c {
		case '"':
			p, err := r.store.InternString(b.String())
			if err != nil {
				return store.Pointer{}, fmt.Errorf("failed to intern string: %w", err)
			}
			return p, nil
		case '\\':
			if r.eof() {
				return store.Pointer{}, r.errorf("dangling escape in string")
			}
			e := r.next()
			switch e {
			case 'n':
				b.WriteRune('\n')
			case 't':
				b.WriteRune('\t')
			case '"', '\\':
				b.WriteRune(e)
			default:
				return store.Pointer{}, r.errorf("unknown escape \\%c", e)
			}
		default:
			b.WriteRune(c)
		}
	}
}

func (r *Reader) readQuote() (store.Pointer, error) {
	r.next() // consume '\''
	inner, err := r.Read()
	if err != nil {
		return store.Pointer{}, err
	}
	quote, err := r.store.InternSymbol("quote")
	if err != nil {
		return store.Pointer{}, err
	}
	return r.store.InternList([]store.Pointer{quote, inner})
}

func (r *Reader) readAtom() (store.Pointer, error) {
	start := r.pos
	for !r.eof() && !isDelimiter(r.peek()) {
		r.next()
	}
	text := string(r.src[start:r.pos])
	if text == "" {
		return store.Pointer{}, r.errorf("empty atom")
	}

	if p, ok, err := r.internNumber(text); ok || err != nil {
		return p, err
	}

	switch strings.ToLower(text) {
	case "nil":
		return store.NilPointer, nil
	}

	p, err := r.store.InternSymbol(strings.ToLower(text))
	if err != nil {
		return store.Pointer{}, fmt.Errorf("failed to intern symbol %q: %w", text, err)
	}
	return p, nil
}

// internNumber recognizes decimal literals, including negative ones,
// which map to the field's additive inverse.
func (r *Reader) internNumber(text string) (store.Pointer, bool, error) {
	digits := text
	negative := false
	if strings.HasPrefix(digits, "-") {
		negative = true
		digits = digits[1:]
	}
	if digits == "" || !allDigits(digits) {
		return store.Pointer{}, false, nil
	}

	v, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return store.Pointer{}, false, r.errorf("numeric literal %q out of range", text)
	}
	elem := field.New(v)
	if negative {
		elem = elem.Neg()
	}
	return store.NumPointer(elem), true, nil
}

func allDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func isDelimiter(c rune) bool {
	return unicode.IsSpace(c) || c == '(' || c == ')' || c == '"' || c == ';' || c == '\''
}

func (r *Reader) skipSpace() {
	for !r.eof() {
		c := r.peek()
		switch {
		case unicode.IsSpace(c):
			r.next()
		case c == ';':
			for !r.eof() && r.peek() != '\n' {
				r.next()
			}
		default:
			return
		}
	}
}

func (r *Reader) peek() rune {
	return r.src[r.pos]
}

func (r *Reader) peekAheadIsDelimiter(n int) bool {
	if r.pos+n >= len(r.src) {
		return true
	}
	return isDelimiter(r.src[r.pos+n])
}

func (r *Reader) next() rune {
	c := r.src[r.pos]
	r.pos++
	if c == '\n' {
		r.line++
		r.col = 1
	} else {
		r.col++
	}
	return c
}

func (r *Reader) eof() bool {
	return r.pos >= len(r.src)
}

func (r *Reader) position() string {
	return fmt.Sprintf("line %d, column %d", r.line, r.col)
}

func (r *Reader) errorf(format string, args ...any) error {
	return fmt.Errorf("%s: %s", r.position(), fmt.Sprintf(format, args...))
}
