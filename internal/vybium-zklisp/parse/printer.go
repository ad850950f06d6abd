package parse

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vybium/vybium-zklisp/internal/vybium-zklisp/store"
)

// Print renders a store-resident expression back into source syntax.
// It is the inverse of Read up to whitespace and case normalization.
func Print(s *store.Store, p store.Pointer) (string, error) {
	var b strings.Builder
	if err := printInto(s, p, &b); err != nil {
		return "", err
	}
	return b.String(), nil
}

func printInto(s *store.Store, p store.Pointer, b *strings.Builder) error {
	switch p.Tag {
	case store.TagNil:
		b.WriteString("nil")
		return nil
	case store.TagNum:
		b.WriteString(strconv.FormatUint(p.Digest.Value(), 10))
		return nil
	case store.TagSym:
		name, err := s.ResolveSymbol(p)
		if err != nil {
			return err
		}
		b.WriteString(name)
		return nil
	case store.TagStr:
		v, err := s.ResolveString(p)
		if err != nil {
			return err
		}
		fmt.Fprintf(b, "%q", v)
		return nil
	case store.TagCons:
		return printList(s, p, b)
	case store.TagFun:
		fun, err := s.ResolveFun(p)
		if err != nil {
			return err
		}
		b.WriteString("(lambda ")
		if err := printInto(s, fun.Params, b); err != nil {
			return err
		}
		b.WriteString(" ")
		if err := printInto(s, fun.Body, b); err != nil {
			return err
		}
		b.WriteString(")")
		return nil
	case store.TagErr:
		sent, err := s.ResolveSentinel(p)
		if err != nil {
			return err
		}
		fmt.Fprintf(b, "<error: %s>", sent.Code)
		return nil
	case store.TagThunk:
		thunk, err := s.ResolveThunk(p)
		if err != nil {
			return err
		}
		b.WriteString("<thunk ")
		if err := printInto(s, thunk.Value, b); err != nil {
			return err
		}
		b.WriteString(">")
		return nil
	default:
		if p.Tag.IsContTag() {
			fmt.Fprintf(b, "<cont %s>", p.Tag)
			return nil
		}
		return fmt.Errorf("cannot print pointer with tag %s", p.Tag)
	}
}

func printList(s *store.Store, p store.Pointer, b *strings.Builder) error {
	b.WriteString("(")
	first := true
	for {
		c, err := s.ResolveCons(p)
		if err != nil {
			return err
		}
		if !first {
			b.WriteString(" ")
		}
		first = false
		if err := printInto(s, c.Car, b); err != nil {
			return err
		}
		switch {
		case c.Cdr.IsNil():
			b.WriteString(")")
			return nil
		case c.Cdr.Tag == store.TagCons:
			p = c.Cdr
		default:
			b.WriteString(" . ")
			if err := printInto(s, c.Cdr, b); err != nil {
				return err
			}
			b.WriteString(")")
			return nil
		}
	}
}
