// Package dtype describes the element type of a dataset using the
// numpy-style type strings found in Zarr metadata ("<f8", "|b1", "|S16").
package dtype

import (
	"fmt"
	"reflect"
	"strconv"
)

// Kind is the numpy kind character of a type.
type Kind byte

const (
	Bool    Kind = 'b'
	Int     Kind = 'i'
	Uint    Kind = 'u'
	Float   Kind = 'f'
	Complex Kind = 'c'
	// Bytes is fixed-width text, one byte per character.
	Bytes Kind = 'S'
)

// DType is a little-endian element type with a fixed item size.
// The zero value means "unknown".
type DType struct {
	Kind Kind
	Size int
}

var (
	Bool8   = DType{Bool, 1}
	Int8    = DType{Int, 1}
	Int16   = DType{Int, 2}
	Int32   = DType{Int, 4}
	Int64   = DType{Int, 8}
	Uint8   = DType{Uint, 1}
	Uint16  = DType{Uint, 2}
	Uint32  = DType{Uint, 4}
	Uint64  = DType{Uint, 8}
	Float32 = DType{Float, 4}
	Float64 = DType{Float, 8}
)

// FixedText returns the type of fixed-width text of the given width.
func FixedText(width int) DType {
	return DType{Bytes, width}
}

// IsZero reports whether the type is unknown.
func (d DType) IsZero() bool {
	return d.Kind == 0 && d.Size == 0
}

// ItemSize returns the size of one element in bytes.
func (d DType) ItemSize() int {
	return d.Size
}

// Validate checks that the kind is known and the size is legal for it.
func (d DType) Validate() error {
	if d.Size <= 0 {
		return fmt.Errorf("invalid item size %d for kind %q", d.Size, rune(d.Kind))
	}
	switch d.Kind {
	case Bool:
		if d.Size != 1 {
			return fmt.Errorf("invalid bool size: %d", d.Size)
		}
	case Int, Uint:
		if d.Size != 1 && d.Size != 2 && d.Size != 4 && d.Size != 8 {
			return fmt.Errorf("invalid integer size: %d", d.Size)
		}
	case Float:
		if d.Size != 2 && d.Size != 4 && d.Size != 8 {
			return fmt.Errorf("invalid float size: %d", d.Size)
		}
	case Complex:
		if d.Size != 8 && d.Size != 16 {
			return fmt.Errorf("invalid complex size: %d", d.Size)
		}
	case Bytes:
	default:
		return fmt.Errorf("unsupported dtype kind: %q", rune(d.Kind))
	}
	return nil
}

// String returns the numpy type string, e.g. "<f8" or "|S16".
func (d DType) String() string {
	if d.IsZero() {
		return "unknown"
	}
	order := "<"
	if d.Size == 1 || d.Kind == Bytes || d.Kind == Bool {
		order = "|"
	}
	return order + string(rune(d.Kind)) + strconv.Itoa(d.Size)
}

// Name returns the simplified name, e.g. "float64", "bool" or "bytes16".
func (d DType) Name() string {
	switch d.Kind {
	case Bool:
		return "bool"
	case Int:
		return fmt.Sprintf("int%d", d.Size*8)
	case Uint:
		return fmt.Sprintf("uint%d", d.Size*8)
	case Float:
		return fmt.Sprintf("float%d", d.Size*8)
	case Complex:
		return fmt.Sprintf("complex%d", d.Size*8)
	case Bytes:
		return fmt.Sprintf("bytes%d", d.Size)
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler using the numpy string.
func (d DType) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *DType) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Parse takes a numpy-style string like "<f4", "|b1", "<i8" or "|S16".
// Big-endian (">") types are rejected.
func Parse(s string) (DType, error) {
	if len(s) < 3 {
		return DType{}, fmt.Errorf("invalid dtype: %s", s)
	}

	switch s[0] {
	case '<', '|', '=':
	case '>':
		return DType{}, fmt.Errorf("big-endian types are unsupported: %s", s)
	default:
		return DType{}, fmt.Errorf("invalid byte order in dtype: %s", s)
	}

	size, err := strconv.Atoi(s[2:])
	if err != nil {
		return DType{}, fmt.Errorf("invalid size in dtype: %s", s)
	}

	d := DType{Kind: Kind(s[1]), Size: size}
	if err := d.Validate(); err != nil {
		return DType{}, fmt.Errorf("%w in %s", err, s)
	}
	return d, nil
}

var names = map[string]DType{
	"bool":    Bool8,
	"int8":    Int8,
	"int16":   Int16,
	"int32":   Int32,
	"int64":   Int64,
	"uint8":   Uint8,
	"uint16":  Uint16,
	"uint32":  Uint32,
	"uint64":  Uint64,
	"float16": {Float, 2},
	"float32": Float32,
	"float64": Float64,
}

// FromName resolves either a simplified name ("float32") or a numpy
// string ("<f4").
func FromName(name string) (DType, error) {
	if d, ok := names[name]; ok {
		return d, nil
	}
	return Parse(name)
}

// FromKind maps a Go element kind to its dtype.
func FromKind(k reflect.Kind) (DType, error) {
	switch k {
	case reflect.Bool:
		return Bool8, nil
	case reflect.Int8:
		return Int8, nil
	case reflect.Int16:
		return Int16, nil
	case reflect.Int32:
		return Int32, nil
	case reflect.Int64, reflect.Int:
		return Int64, nil
	case reflect.Uint8:
		return Uint8, nil
	case reflect.Uint16:
		return Uint16, nil
	case reflect.Uint32:
		return Uint32, nil
	case reflect.Uint64, reflect.Uint:
		return Uint64, nil
	case reflect.Float32:
		return Float32, nil
	case reflect.Float64:
		return Float64, nil
	case reflect.Complex64:
		return DType{Complex, 8}, nil
	case reflect.Complex128:
		return DType{Complex, 16}, nil
	default:
		return DType{}, fmt.Errorf("unsupported element kind: %s", k)
	}
}
