// SPDX-License-Identifier: GPL-2.0-or-later

package atom

import (
	"strconv"
	"strings"

	"brawtl/pkg/errkind"
)

// Segment selects direct children by code, optionally by occurrence index.
type Segment struct {
	Code    Code
	Index   int
	Indexed bool
}

// Any selects the only child with code.
func Any(code Code) Segment {
	return Segment{Code: code}
}

// Nth selects the i'th child with code.
func Nth(code Code, i int) Segment {
	return Segment{Code: code, Index: i, Indexed: true}
}

func (s Segment) String() string {
	if s.Indexed {
		return s.Code.String() + ":" + strconv.Itoa(s.Index)
	}
	return s.Code.String()
}

// Path sequence of segments evaluated from a container downwards.
type Path []Segment

// PathOf returns a path of unindexed segments.
func PathOf(codes ...Code) Path {
	p := make(Path, len(codes))
	for i, code := range codes {
		p[i] = Any(code)
	}
	return p
}

// Then returns a new path extended by codes.
func (p Path) Then(codes ...Code) Path {
	return p.Join(PathOf(codes...))
}

// Join returns a new path extended by other.
func (p Path) Join(other Path) Path {
	out := make(Path, 0, len(p)+len(other))
	out = append(out, p...)
	return append(out, other...)
}

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, s := range p {
		parts[i] = s.String()
	}
	return strings.Join(parts, "/")
}

// Matches returns the direct children with code.
func (c *Container) Matches(code Code) []Atom {
	var matches []Atom
	for _, child := range c.children {
		if child.Code() == code {
			matches = append(matches, child)
		}
	}
	return matches
}

func (c *Container) child(s Segment) (Atom, error) {
	matches := c.Matches(s.Code)
	switch {
	case len(matches) == 0:
		return nil, errkind.Lookupf("no %v in %v", s.Code, c.code)
	case s.Indexed && (s.Index < 0 || s.Index >= len(matches)):
		return nil, errkind.Lookupf("index %d out of %d %v in %v", s.Index, len(matches), s.Code, c.code)
	case s.Indexed:
		return matches[s.Index], nil
	case len(matches) > 1:
		return nil, errkind.Lookupf("%d %v in %v and no index", len(matches), s.Code, c.code)
	}
	return matches[0], nil
}

// Get evaluates path and returns the selected atom.
func (c *Container) Get(p Path) (Atom, error) {
	if len(p) == 0 {
		return c, nil
	}
	cur := c
	for i, s := range p {
		a, err := cur.child(s)
		if err != nil {
			return nil, err
		}
		if i == len(p)-1 {
			return a, nil
		}
		next, ok := a.(*Container)
		if !ok {
			return nil, errkind.Lookupf("%v: %v is a leaf", p[:i+1], s.Code)
		}
		cur = next
	}
	return nil, nil
}

// Has reports whether path selects exactly one atom.
func (c *Container) Has(p Path) bool {
	_, err := c.Get(p)
	return err == nil
}

// Container is like Get but requires a container atom.
func (c *Container) Container(p Path) (*Container, error) {
	a, err := c.Get(p)
	if err != nil {
		return nil, err
	}
	cont, ok := a.(*Container)
	if !ok {
		return nil, errkind.Lookupf("%v is not a container", p)
	}
	return cont, nil
}

// Schema is like Get but requires a schema atom.
func (c *Container) Schema(p Path) (*Schema, error) {
	a, err := c.Get(p)
	if err != nil {
		return nil, err
	}
	s, ok := a.(*Schema)
	if !ok {
		return nil, errkind.Lookupf("%v is not a schema atom", p)
	}
	return s, nil
}
