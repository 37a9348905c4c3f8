// SPDX-License-Identifier: GPL-2.0-or-later

package atom

import (
	"errors"
	"fmt"

	"brawtl/pkg/schema"
)

// Kind selects how the body of an atom is decoded.
type Kind uint8

// Atom kinds.
const (
	KindOpaque Kind = iota
	KindContainer
	KindSchema
)

func (k Kind) String() string {
	switch k {
	case KindContainer:
		return "container"
	case KindSchema:
		return "schema"
	default:
		return "opaque"
	}
}

// SchemaDesc describes the body of a schema leaf. Header and Record
// may each be nil but not both. CountField optionally names the header
// field that holds the number of records.
type SchemaDesc struct {
	Header     *schema.Layout
	Record     *schema.Layout
	CountField string
}

// Decoder registry entry value.
type Decoder struct {
	Kind   Kind
	Schema *SchemaDesc
}

// Entry registry entry.
type Entry struct {
	Code    Code
	Decoder Decoder
}

// ContainerType registers code as a container.
func ContainerType(code Code) Entry {
	return Entry{Code: code, Decoder: Decoder{Kind: KindContainer}}
}

// OpaqueType registers code as an opaque leaf.
// Unregistered codes decode as opaque leaves too.
func OpaqueType(code Code) Entry {
	return Entry{Code: code, Decoder: Decoder{Kind: KindOpaque}}
}

// SchemaType registers code as a schema leaf.
func SchemaType(code Code, desc SchemaDesc) Entry {
	return Entry{Code: code, Decoder: Decoder{Kind: KindSchema, Schema: &desc}}
}

// Registry immutable lookup table from code to decoder.
type Registry struct {
	decoders map[Code]Decoder
}

// Registry errors.
var (
	ErrDuplicateCode = errors.New("duplicate atom code")
	ErrEmptySchema   = errors.New("schema without header or record layout")
	ErrCountField    = errors.New("invalid count field")
)

// NewRegistry builds a registry from entries.
func NewRegistry(entries ...Entry) (*Registry, error) {
	decoders := make(map[Code]Decoder, len(entries))
	for _, e := range entries {
		if _, exist := decoders[e.Code]; exist {
			return nil, fmt.Errorf("%w: %v", ErrDuplicateCode, e.Code)
		}
		if e.Decoder.Kind == KindSchema {
			if err := checkSchemaDesc(e.Decoder.Schema); err != nil {
				return nil, fmt.Errorf("%v: %w", e.Code, err)
			}
		}
		decoders[e.Code] = e.Decoder
	}
	return &Registry{decoders: decoders}, nil
}

func checkSchemaDesc(desc *SchemaDesc) error {
	if desc == nil || (desc.Header == nil && desc.Record == nil) {
		return ErrEmptySchema
	}
	if desc.CountField == "" {
		return nil
	}
	if desc.Header == nil || desc.Record == nil || !desc.Header.Has(desc.CountField) {
		return fmt.Errorf("%w: %q", ErrCountField, desc.CountField)
	}
	return nil
}

// MustRegistry is like NewRegistry but panics on error.
func MustRegistry(entries ...Entry) *Registry {
	r, err := NewRegistry(entries...)
	if err != nil {
		panic(err)
	}
	return r
}

// Resolve returns the decoder for code, an opaque decoder if unregistered.
func (r *Registry) Resolve(code Code) Decoder {
	if d, exist := r.decoders[code]; exist {
		return d
	}
	return Decoder{Kind: KindOpaque}
}

// Registered reports whether code has an explicit entry.
func (r *Registry) Registered(code Code) bool {
	_, exist := r.decoders[code]
	return exist
}

// NewSchema returns an empty schema leaf for a registered schema code.
// The header, if any, is zeroed and the record list is empty.
func (r *Registry) NewSchema(code Code) (*Schema, error) {
	d := r.Resolve(code)
	if d.Kind != KindSchema {
		return nil, fmt.Errorf("%v: %w", code, ErrNotSchema)
	}
	s := &Schema{code: code, desc: d.Schema}
	if d.Schema.Header != nil {
		s.header = d.Schema.Header.Zero()
	}
	return s, nil
}

// ErrNotSchema code is not registered as a schema leaf.
var ErrNotSchema = errors.New("not a schema atom")
