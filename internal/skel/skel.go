// Package skel implements the length-prefixed "skeleton" encoding used for
// property maps and conflict descriptors in the working-copy database.
//
// A skeleton is either an atom (a byte string) or a list of skeletons. An
// explicit atom is encoded as "<decimal-length> <bytes>"; an implicit atom is
// a bare token of non-special characters. A list is a parenthesized,
// whitespace-separated sequence. Writers always emit explicit atoms so that
// arbitrary bytes round-trip.
package skel

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strconv"
)

// Skel is one node of a skeleton tree. Exactly one of Atom/List is
// meaningful: IsAtom selects between them.
type Skel struct {
	IsAtom bool
	Atom   []byte
	List   []*Skel
}

// MakeAtom returns an atom skeleton holding s.
func MakeAtom(s string) *Skel { return &Skel{IsAtom: true, Atom: []byte(s)} }

// MakeAtomBytes returns an atom skeleton holding b.
func MakeAtomBytes(b []byte) *Skel { return &Skel{IsAtom: true, Atom: b} }

// MakeList returns a list skeleton of the given children.
func MakeList(children ...*Skel) *Skel { return &Skel{List: children} }

// AtomString returns the atom's bytes as a string; empty for lists.
func (s *Skel) AtomString() string {
	if s == nil || !s.IsAtom {
		return ""
	}
	return string(s.Atom)
}

// MatchesAtom reports whether s is an atom equal to lit.
func (s *Skel) MatchesAtom(lit string) bool {
	return s != nil && s.IsAtom && string(s.Atom) == lit
}

// ErrMalformed is returned for any syntactically invalid serialization.
var ErrMalformed = errors.New("malformed skeleton data")

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// Characters that terminate an implicit atom.
func isDelim(c byte) bool { return isSpace(c) || c == '(' || c == ')' }

// Parse decodes one skeleton from data. Trailing bytes after the first
// complete skeleton are rejected.
func Parse(data []byte) (*Skel, error) {
	s, rest, err := parse(data)
	if err != nil {
		return nil, err
	}
	rest = bytes.TrimLeft(rest, " \t\n\r\f")
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformed, len(rest))
	}
	return s, nil
}

func parse(data []byte) (*Skel, []byte, error) {
	data = bytes.TrimLeft(data, " \t\n\r\f")
	if len(data) == 0 {
		return nil, nil, fmt.Errorf("%w: empty input", ErrMalformed)
	}
	switch {
	case data[0] == '(':
		return parseList(data)
	case isDigit(data[0]):
		return parseExplicitAtom(data)
	case data[0] == ')':
		return nil, nil, fmt.Errorf("%w: unexpected ')'", ErrMalformed)
	default:
		return parseImplicitAtom(data)
	}
}

func parseList(data []byte) (*Skel, []byte, error) {
	rest := data[1:] // past '('
	list := &Skel{List: []*Skel{}}
	for {
		rest = bytes.TrimLeft(rest, " \t\n\r\f")
		if len(rest) == 0 {
			return nil, nil, fmt.Errorf("%w: unterminated list", ErrMalformed)
		}
		if rest[0] == ')' {
			return list, rest[1:], nil
		}
		child, r, err := parse(rest)
		if err != nil {
			return nil, nil, err
		}
		list.List = append(list.List, child)
		rest = r
	}
}

func parseExplicitAtom(data []byte) (*Skel, []byte, error) {
	i := 0
	for i < len(data) && isDigit(data[i]) {
		i++
	}
	n, err := strconv.Atoi(string(data[:i]))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: bad atom length: %v", ErrMalformed, err)
	}
	if i >= len(data) || !isSpace(data[i]) {
		return nil, nil, fmt.Errorf("%w: atom length not followed by space", ErrMalformed)
	}
	i++ // the single separator byte
	if len(data)-i < n {
		return nil, nil, fmt.Errorf("%w: atom length %d exceeds input", ErrMalformed, n)
	}
	return &Skel{IsAtom: true, Atom: data[i : i+n]}, data[i+n:], nil
}

func parseImplicitAtom(data []byte) (*Skel, []byte, error) {
	i := 0
	for i < len(data) && !isDelim(data[i]) {
		i++
	}
	return &Skel{IsAtom: true, Atom: data[:i]}, data[i:], nil
}

// Unparse encodes s back to bytes. Atoms are always written in explicit form.
func Unparse(s *Skel) []byte {
	var buf bytes.Buffer
	unparse(s, &buf)
	return buf.Bytes()
}

func unparse(s *Skel, buf *bytes.Buffer) {
	if s.IsAtom {
		buf.WriteString(strconv.Itoa(len(s.Atom)))
		buf.WriteByte(' ')
		buf.Write(s.Atom)
		return
	}
	buf.WriteByte('(')
	for i, child := range s.List {
		if i > 0 {
			buf.WriteByte(' ')
		}
		unparse(child, buf)
	}
	buf.WriteByte(')')
}

// UnparseProps serializes a property map as a parenthesized sequence of
// name/value pairs. Keys are emitted in sorted order so equal maps produce
// identical bytes.
func UnparseProps(props map[string]string) []byte {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	list := &Skel{List: make([]*Skel, 0, 2*len(keys))}
	for _, k := range keys {
		list.List = append(list.List, MakeAtom(k), MakeAtom(props[k]))
	}
	return Unparse(list)
}

// ParseProps decodes a property map serialized by UnparseProps. A nil or
// empty input yields an empty map.
func ParseProps(data []byte) (map[string]string, error) {
	props := make(map[string]string)
	if len(data) == 0 {
		return props, nil
	}
	s, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if s.IsAtom {
		return nil, fmt.Errorf("%w: property skeleton is not a list", ErrMalformed)
	}
	if len(s.List)%2 != 0 {
		return nil, fmt.Errorf("%w: odd-length property list", ErrMalformed)
	}
	for i := 0; i < len(s.List); i += 2 {
		name, value := s.List[i], s.List[i+1]
		if !name.IsAtom || !value.IsAtom {
			return nil, fmt.Errorf("%w: property pair is not two atoms", ErrMalformed)
		}
		props[string(name.Atom)] = string(value.Atom)
	}
	return props, nil
}
