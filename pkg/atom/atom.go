// SPDX-License-Identifier: GPL-2.0-or-later

// Package atom parses, edits and serializes trees of length-prefixed atoms.
//
// Every atom starts with an 8 byte header, a big-endian 32 bit length that
// includes the header followed by the 32 bit type code. The registry decides
// whether the body holds child atoms, a fixed schema or opaque bytes.
package atom

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"brawtl/pkg/errkind"
	"brawtl/pkg/schema"

	"github.com/icza/bitio"
)

// HeaderSize size of the common atom header.
const HeaderSize = 8

// Atom is a node of the tree. It is one of *Container, *Opaque or *Schema.
type Atom interface {
	// Code returns the type code.
	Code() Code

	// Size returns the serialized size including the header,
	// computed from the current content.
	Size() int

	// ParsedSize returns the declared length the atom was parsed
	// from or zero if it was built in memory.
	ParsedSize() int

	// Marshal atom including header to writer.
	Marshal(w *bitio.Writer) error

	// Clone returns a deep copy.
	Clone() Atom

	isAtom()
}

// Parse decodes the atom at the start of buf. Bytes after the
// declared length of the atom are ignored.
func Parse(buf []byte, reg *Registry) (Atom, error) {
	if len(buf) < HeaderSize {
		return nil, errkind.Formatf("%d bytes is too small for an atom header", len(buf))
	}
	length := int(binary.BigEndian.Uint32(buf[0:4]))
	code := Code(binary.BigEndian.Uint32(buf[4:8]))

	if length < HeaderSize {
		return nil, errkind.Formatf("%v: declared length %d is smaller than header", code, length)
	}
	if length > len(buf) {
		return nil, errkind.Formatf("%v: declared length %d overruns %d available bytes",
			code, length, len(buf))
	}
	body := buf[HeaderSize:length]

	dec := reg.Resolve(code)
	switch dec.Kind {
	case KindContainer:
		c := &Container{code: code, parsedSize: length}
		if err := c.parseChildren(body, reg); err != nil {
			return nil, fmt.Errorf("%v: %w", code, err)
		}
		return c, nil
	case KindSchema:
		s := &Schema{code: code, parsedSize: length, desc: dec.Schema}
		if err := s.decode(body); err != nil {
			return nil, fmt.Errorf("%v: %w", code, err)
		}
		return s, nil
	default:
		o := &Opaque{code: code, parsedSize: length, body: make([]byte, len(body))}
		copy(o.body, body)
		return o, nil
	}
}

// Marshal serializes an atom.
func Marshal(a Atom) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, a.Size()))
	w := bitio.NewWriter(buf)
	if err := a.Marshal(w); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeHeader(w *bitio.Writer, size int, code Code) error {
	if uint64(size) > math.MaxUint32 {
		return errkind.Consistencyf("%v: size %d does not fit the length field", code, size)
	}
	w.TryWriteBits(uint64(size), 32)
	w.TryWriteBits(uint64(code), 32)
	return w.TryError
}

/************************* Container *************************/

// Container atom whose body is a sequence of child atoms.
type Container struct {
	code       Code
	parsedSize int
	children   []Atom
}

// NewContainer returns a container holding children.
func NewContainer(code Code, children ...Atom) *Container {
	return &Container{code: code, children: children}
}

func (c *Container) parseChildren(body []byte, reg *Registry) error {
	pos := 0
	for pos < len(body) {
		if len(body)-pos < HeaderSize {
			return errkind.Formatf("%d bytes left over after children", len(body)-pos)
		}
		child, err := Parse(body[pos:], reg)
		if err != nil {
			return err
		}
		c.children = append(c.children, child)
		pos += child.ParsedSize()
	}
	return nil
}

// Code returns the type code.
func (c *Container) Code() Code { return c.code }

// ParsedSize returns the declared length at parse time.
func (c *Container) ParsedSize() int { return c.parsedSize }

// Size returns the current serialized size.
func (c *Container) Size() int {
	size := HeaderSize
	for _, child := range c.children {
		size += child.Size()
	}
	return size
}

// Marshal container including children.
func (c *Container) Marshal(w *bitio.Writer) error {
	if err := writeHeader(w, c.Size(), c.code); err != nil {
		return err
	}
	for _, child := range c.children {
		if err := child.Marshal(w); err != nil {
			return err
		}
	}
	return nil
}

// Clone returns a deep copy.
func (c *Container) Clone() Atom {
	children := make([]Atom, len(c.children))
	for i, child := range c.children {
		children[i] = child.Clone()
	}
	return &Container{code: c.code, parsedSize: c.parsedSize, children: children}
}

// Children returns the direct children in order.
// The returned slice is a copy, the atoms are not.
func (c *Container) Children() []Atom {
	children := make([]Atom, len(c.children))
	copy(children, c.children)
	return children
}

// Append adds children at the end.
func (c *Container) Append(children ...Atom) {
	c.children = append(c.children, children...)
}

// Remove removes the direct child a. It reports whether a was found.
func (c *Container) Remove(a Atom) bool {
	for i, child := range c.children {
		if child == a {
			c.children = append(c.children[:i:i], c.children[i+1:]...)
			return true
		}
	}
	return false
}

func (*Container) isAtom() {}

/************************** Opaque ***************************/

// Opaque leaf atom with an uninterpreted body.
type Opaque struct {
	code       Code
	parsedSize int
	body       []byte
}

// NewOpaque returns an opaque leaf with a copy of body.
func NewOpaque(code Code, body []byte) *Opaque {
	b := make([]byte, len(body))
	copy(b, body)
	return &Opaque{code: code, body: b}
}

// Code returns the type code.
func (o *Opaque) Code() Code { return o.code }

// ParsedSize returns the declared length at parse time.
func (o *Opaque) ParsedSize() int { return o.parsedSize }

// Size returns the serialized size.
func (o *Opaque) Size() int { return HeaderSize + len(o.body) }

// Body returns a copy of the body.
func (o *Opaque) Body() []byte {
	b := make([]byte, len(o.body))
	copy(b, o.body)
	return b
}

// Marshal atom to writer.
func (o *Opaque) Marshal(w *bitio.Writer) error {
	if err := writeHeader(w, o.Size(), o.code); err != nil {
		return err
	}
	w.TryWrite(o.body)
	return w.TryError
}

// Clone returns a deep copy.
func (o *Opaque) Clone() Atom {
	c := NewOpaque(o.code, o.body)
	c.parsedSize = o.parsedSize
	return c
}

func (*Opaque) isAtom() {}

/************************** Schema ***************************/

// Schema leaf atom decoded into a header record and a list of records.
type Schema struct {
	code       Code
	parsedSize int
	desc       *SchemaDesc

	header  schema.Record
	records []schema.Record
}

func (s *Schema) decode(body []byte) error {
	pos := 0
	if s.desc.Header != nil {
		header, err := s.desc.Header.Decode(body, 0)
		if err != nil {
			return err
		}
		s.header = header
		pos = s.desc.Header.Size()
	}

	remaining := len(body) - pos
	if s.desc.Record == nil {
		if remaining != 0 {
			return errkind.Formatf("%d bytes left over after header", remaining)
		}
		return nil
	}

	size := s.desc.Record.Size()
	if remaining%size != 0 {
		return errkind.Formatf("%d bytes is not a multiple of record size %d", remaining, size)
	}
	s.records = make([]schema.Record, 0, remaining/size)
	for ; pos < len(body); pos += size {
		r, err := s.desc.Record.Decode(body, pos)
		if err != nil {
			return err
		}
		s.records = append(s.records, r)
	}
	return nil
}

// Code returns the type code.
func (s *Schema) Code() Code { return s.code }

// ParsedSize returns the declared length at parse time.
func (s *Schema) ParsedSize() int { return s.parsedSize }

// Desc returns the schema descriptor.
func (s *Schema) Desc() SchemaDesc { return *s.desc }

// Size returns the current serialized size.
func (s *Schema) Size() int {
	size := HeaderSize
	if s.desc.Header != nil {
		size += s.desc.Header.Size()
	}
	if s.desc.Record != nil {
		size += len(s.records) * s.desc.Record.Size()
	}
	return size
}

// Marshal atom to writer.
func (s *Schema) Marshal(w *bitio.Writer) error {
	if err := writeHeader(w, s.Size(), s.code); err != nil {
		return err
	}
	if s.desc.Header != nil {
		if err := s.desc.Header.Encode(w, s.header); err != nil {
			return fmt.Errorf("%v: %w", s.code, err)
		}
	}
	for _, r := range s.records {
		if err := s.desc.Record.Encode(w, r); err != nil {
			return fmt.Errorf("%v: %w", s.code, err)
		}
	}
	return nil
}

// Clone returns a copy. Records are immutable and shared.
func (s *Schema) Clone() Atom {
	c := *s
	if s.records != nil {
		c.records = make([]schema.Record, len(s.records))
		copy(c.records, s.records)
	}
	return &c
}

// Header returns the header record, the zero Record if the schema has none.
func (s *Schema) Header() schema.Record { return s.header }

// SetHeader replaces the header record.
func (s *Schema) SetHeader(r schema.Record) error {
	if s.desc.Header == nil || r.Layout() != s.desc.Header {
		return fmt.Errorf("%v: header: %w", s.code, schema.ErrLayoutMismatch)
	}
	s.header = r
	return nil
}

// Update replaces an integer header field.
func (s *Schema) Update(field string, v uint64) {
	s.header = s.header.With(field, v)
}

// NewRecord returns a zeroed list record.
func (s *Schema) NewRecord() schema.Record {
	return s.desc.Record.Zero()
}

// Records returns the record list. The slice is a copy.
func (s *Schema) Records() []schema.Record {
	records := make([]schema.Record, len(s.records))
	copy(records, s.records)
	return records
}

// Len returns the number of records.
func (s *Schema) Len() int { return len(s.records) }

// Record returns record i.
func (s *Schema) Record(i int) (schema.Record, error) {
	if i < 0 || i >= len(s.records) {
		return schema.Record{}, errkind.Lookupf("%v: record %d out of %d", s.code, i, len(s.records))
	}
	return s.records[i], nil
}

// SetRecord replaces record i.
func (s *Schema) SetRecord(i int, r schema.Record) error {
	if i < 0 || i >= len(s.records) {
		return errkind.Lookupf("%v: record %d out of %d", s.code, i, len(s.records))
	}
	if r.Layout() != s.desc.Record {
		return fmt.Errorf("%v: record: %w", s.code, schema.ErrLayoutMismatch)
	}
	s.records[i] = r
	return nil
}

// SetRecords replaces the record list and, if the schema
// has a count field, sets it to the new length.
func (s *Schema) SetRecords(records []schema.Record) error {
	if s.desc.Record == nil {
		return fmt.Errorf("%v: no record list: %w", s.code, schema.ErrLayoutMismatch)
	}
	for _, r := range records {
		if r.Layout() != s.desc.Record {
			return fmt.Errorf("%v: record: %w", s.code, schema.ErrLayoutMismatch)
		}
	}
	s.records = make([]schema.Record, len(records))
	copy(s.records, records)
	if s.desc.CountField != "" {
		s.Update(s.desc.CountField, uint64(len(records)))
	}
	return nil
}

func (*Schema) isAtom() {}
