// SPDX-License-Identifier: GPL-2.0-or-later

// Package schema decodes and encodes fixed layout big-endian records.
//
// A layout is an ordered list of named fields without padding. Layouts are
// compiled once, usually at package initialization, and shared read-only.
package schema

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"brawtl/pkg/errkind"

	"github.com/icza/bitio"
)

type kind uint8

const (
	kindUint kind = iota
	kindInt
	kindBytes
)

// FieldType binary field type.
type FieldType struct {
	kind kind
	size int
}

// Scalar field types.
var (
	Uint8  = FieldType{kindUint, 1}
	Uint16 = FieldType{kindUint, 2}
	Uint32 = FieldType{kindUint, 4}
	Uint64 = FieldType{kindUint, 8}
	Int8   = FieldType{kindInt, 1}
	Int16  = FieldType{kindInt, 2}
	Int32  = FieldType{kindInt, 4}
	Int64  = FieldType{kindInt, 8}
)

// Bytes fixed size byte blob.
func Bytes(n int) FieldType {
	return FieldType{kindBytes, n}
}

// Size in bytes.
func (t FieldType) Size() int {
	return t.size
}

func (t FieldType) String() string {
	switch t.kind {
	case kindUint:
		return fmt.Sprintf("u%d", t.size*8)
	case kindInt:
		return fmt.Sprintf("i%d", t.size*8)
	default:
		return fmt.Sprintf("[%d]byte", t.size)
	}
}

// Field named field.
type Field struct {
	Name string
	Type FieldType
}

// Layout compiled schema with precomputed field offsets.
type Layout struct {
	name    string
	fields  []Field
	offsets []int
	index   map[string]int
	size    int
}

// Compile errors.
var (
	ErrNoFields       = errors.New("no fields")
	ErrDuplicateField = errors.New("duplicate field")
	ErrInvalidField   = errors.New("invalid field")
)

// Compile computes the offset table of the fields.
func Compile(name string, fields ...Field) (*Layout, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrNoFields)
	}
	l := &Layout{
		name:    name,
		fields:  make([]Field, len(fields)),
		offsets: make([]int, len(fields)),
		index:   make(map[string]int, len(fields)),
	}
	copy(l.fields, fields)

	for i, f := range fields {
		if f.Name == "" || !validType(f.Type) {
			return nil, fmt.Errorf("%s: %w: %q %v", name, ErrInvalidField, f.Name, f.Type)
		}
		if _, exist := l.index[f.Name]; exist {
			return nil, fmt.Errorf("%s: %w: %q", name, ErrDuplicateField, f.Name)
		}
		l.index[f.Name] = i
		l.offsets[i] = l.size
		l.size += f.Type.size
	}
	return l, nil
}

func validType(t FieldType) bool {
	switch t.kind {
	case kindUint, kindInt:
		return t.size == 1 || t.size == 2 || t.size == 4 || t.size == 8
	case kindBytes:
		return t.size > 0
	}
	return false
}

// MustCompile is like Compile but panics on error.
func MustCompile(name string, fields ...Field) *Layout {
	l, err := Compile(name, fields...)
	if err != nil {
		panic(err)
	}
	return l
}

// Name of the layout.
func (l *Layout) Name() string { return l.name }

// Size of an encoded record in bytes.
func (l *Layout) Size() int { return l.size }

// Fields returns a copy of the field list.
func (l *Layout) Fields() []Field {
	fields := make([]Field, len(l.fields))
	copy(fields, l.fields)
	return fields
}

// Offset returns the byte offset of a field within a record.
func (l *Layout) Offset(name string) (int, bool) {
	i, exist := l.index[name]
	if !exist {
		return 0, false
	}
	return l.offsets[i], true
}

// Has reports whether the layout has a field with the given name.
func (l *Layout) Has(name string) bool {
	_, exist := l.index[name]
	return exist
}

// Zero returns a record with every field zeroed.
func (l *Layout) Zero() Record {
	values := make([]value, len(l.fields))
	for i, f := range l.fields {
		if f.Type.kind == kindBytes {
			values[i].b = make([]byte, f.Type.size)
		}
	}
	return Record{layout: l, values: values}
}

// Decode decodes a record starting at buf[offset].
func (l *Layout) Decode(buf []byte, offset int) (Record, error) {
	if offset < 0 || offset+l.size > len(buf) {
		return Record{}, errkind.Formatf(
			"%s: need %d bytes at offset %d, have %d", l.name, l.size, offset, len(buf))
	}

	br := bitio.NewReader(bytes.NewReader(buf[offset : offset+l.size]))
	values := make([]value, len(l.fields))
	for i, f := range l.fields {
		if f.Type.kind == kindBytes {
			b := make([]byte, f.Type.size)
			if _, err := io.ReadFull(br, b); err != nil {
				return Record{}, errkind.Formatf("%s.%s: %v", l.name, f.Name, err)
			}
			values[i].b = b
			continue
		}
		values[i].u = br.TryReadBits(uint8(f.Type.size * 8))
	}
	if br.TryError != nil {
		return Record{}, errkind.Formatf("%s: %v", l.name, br.TryError)
	}
	return Record{layout: l, values: values}, nil
}

// ErrLayoutMismatch record belongs to another layout.
var ErrLayoutMismatch = errors.New("record layout mismatch")

// Encode writes the record to w.
func (l *Layout) Encode(w *bitio.Writer, r Record) error {
	if r.layout != l {
		if r.layout == nil {
			return fmt.Errorf("%w: zero record for %s", ErrLayoutMismatch, l.name)
		}
		return fmt.Errorf("%w: %s != %s", ErrLayoutMismatch, r.layout.name, l.name)
	}
	for i, f := range l.fields {
		if f.Type.kind == kindBytes {
			w.TryWrite(r.values[i].b)
			continue
		}
		w.TryWriteBits(r.values[i].u, uint8(f.Type.size*8))
	}
	return w.TryError
}

// Marshal returns the encoded record.
func (l *Layout) Marshal(r Record) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, l.size))
	w := bitio.NewWriter(buf)
	if err := l.Encode(w, r); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type value struct {
	u uint64
	b []byte
}

// Record immutable decoded record. The zero value is invalid.
// With and WithBytes return modified copies.
type Record struct {
	layout *Layout
	values []value
}

// Layout returns the layout of the record.
func (r Record) Layout() *Layout { return r.layout }

// IsZero reports whether the record is the invalid zero value.
func (r Record) IsZero() bool { return r.layout == nil }

func (r Record) field(name string, kinds ...kind) int {
	if r.layout == nil {
		panic("schema: use of zero Record")
	}
	i, exist := r.layout.index[name]
	if !exist {
		panic(fmt.Sprintf("schema: %s has no field %q", r.layout.name, name))
	}
	for _, k := range kinds {
		if r.layout.fields[i].Type.kind == k {
			return i
		}
	}
	panic(fmt.Sprintf("schema: %s.%s is %v", r.layout.name, name, r.layout.fields[i].Type))
}

// Uint returns an integer field as unsigned.
func (r Record) Uint(name string) uint64 {
	return r.values[r.field(name, kindUint, kindInt)].u
}

// Int returns an integer field sign extended.
func (r Record) Int(name string) int64 {
	i := r.field(name, kindUint, kindInt)
	shift := 64 - uint(r.layout.fields[i].Type.size*8)
	return int64(r.values[i].u<<shift) >> shift
}

// Bytes returns a copy of a blob field.
func (r Record) Bytes(name string) []byte {
	b := r.values[r.field(name, kindBytes)].b
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// With returns a copy of the record with an integer field replaced.
// It panics if v does not fit the field.
func (r Record) With(name string, v uint64) Record {
	i := r.field(name, kindUint, kindInt)
	if bits := r.layout.fields[i].Type.size * 8; bits < 64 && v>>uint(bits) != 0 {
		panic(fmt.Sprintf("schema: %d overflows %s.%s", v, r.layout.name, name))
	}
	return r.set(i, value{u: v})
}

// WithInt returns a copy of the record with a signed field replaced.
func (r Record) WithInt(name string, v int64) Record {
	i := r.field(name, kindUint, kindInt)
	bits := uint(r.layout.fields[i].Type.size * 8)
	if bits < 64 {
		if lim := int64(1) << (bits - 1); v < -lim || v >= lim {
			panic(fmt.Sprintf("schema: %d overflows %s.%s", v, r.layout.name, name))
		}
		return r.set(i, value{u: uint64(v) & (1<<bits - 1)})
	}
	return r.set(i, value{u: uint64(v)})
}

// WithBytes returns a copy of the record with a blob field replaced.
func (r Record) WithBytes(name string, b []byte) Record {
	i := r.field(name, kindBytes)
	if len(b) != r.layout.fields[i].Type.size {
		panic(fmt.Sprintf("schema: %s.%s needs %d bytes, got %d",
			r.layout.name, name, r.layout.fields[i].Type.size, len(b)))
	}
	c := make([]byte, len(b))
	copy(c, b)
	return r.set(i, value{b: c})
}

func (r Record) set(i int, v value) Record {
	values := make([]value, len(r.values))
	copy(values, r.values)
	values[i] = v
	return Record{layout: r.layout, values: values}
}

// Equal reports whether both records share a layout and field values.
func (r Record) Equal(o Record) bool {
	if r.layout != o.layout || len(r.values) != len(o.values) {
		return false
	}
	for i := range r.values {
		if r.values[i].u != o.values[i].u || !bytes.Equal(r.values[i].b, o.values[i].b) {
			return false
		}
	}
	return true
}

func (r Record) String() string {
	if r.layout == nil {
		return "{}"
	}
	parts := make([]string, 0, len(r.values))
	for i, f := range r.layout.fields {
		if f.Type.kind == kindBytes {
			parts = append(parts, fmt.Sprintf("%s=%x", f.Name, r.values[i].b))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%d", f.Name, r.values[i].u))
	}
	return "{" + strings.Join(parts, " ") + "}"
}
