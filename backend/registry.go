package backend

import (
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/mitchellh/mapstructure"
)

// ParamType is the value type of a compression option.
type ParamType int

const (
	ParamInt ParamType = iota
	ParamBool
)

func (t ParamType) String() string {
	switch t {
	case ParamInt:
		return "int"
	case ParamBool:
		return "bool"
	default:
		return fmt.Sprintf("ParamType(%d)", int(t))
	}
}

// Param declares one accepted compression option.
type Param struct {
	Type ParamType
	// Min and Max bound integer options (inclusive).
	Min, Max int
}

// Method is a compression method available to a backend kind.
type Method struct {
	Name     string
	Params   map[string]Param
	Defaults map[string]any
}

var (
	levelParam  = func(lo, hi int) Param { return Param{Type: ParamInt, Min: lo, Max: hi} }
	switchParam = Param{Type: ParamBool}
)

// registry is static: the chunked-group kind composes a filter pipeline
// (shuffle and fletcher32 are pipeline switches), the directory-store kind
// takes one codec per array.
var registry = map[Kind]map[string]Method{
	KindHDF5: {
		"none": {Name: "none", Params: map[string]Param{"shuffle": switchParam, "fletcher32": switchParam}},
		"gzip": {
			Name:     "gzip",
			Params:   map[string]Param{"level": levelParam(0, 9), "shuffle": switchParam, "fletcher32": switchParam},
			Defaults: map[string]any{"level": 4},
		},
		"lz4": {Name: "lz4", Params: map[string]Param{"shuffle": switchParam, "fletcher32": switchParam}},
		"zstd": {
			Name:     "zstd",
			Params:   map[string]Param{"level": levelParam(1, 22), "shuffle": switchParam, "fletcher32": switchParam},
			Defaults: map[string]any{"level": 3},
		},
	},
	KindZarr: {
		"none": {Name: "none"},
		"zstd": {Name: "zstd", Params: map[string]Param{"level": levelParam(1, 22)}, Defaults: map[string]any{"level": 3}},
		"zlib": {Name: "zlib", Params: map[string]Param{"level": levelParam(0, 9)}, Defaults: map[string]any{"level": 1}},
		"gzip": {Name: "gzip", Params: map[string]Param{"level": levelParam(0, 9)}, Defaults: map[string]any{"level": 1}},
		"lz4":  {Name: "lz4", Params: map[string]Param{"acceleration": levelParam(1, 65537)}, Defaults: map[string]any{"acceleration": 1}},
	},
}

var defaultMethods = map[Kind]string{
	KindHDF5: "gzip",
	KindZarr: "zstd",
}

// Methods returns the sorted method names available for kind.
func Methods(kind Kind) []string {
	return slices.Sorted(maps.Keys(registry[kind]))
}

// Lookup returns a registered method.
func Lookup(kind Kind, name string) (Method, error) {
	methods, ok := registry[kind]
	if !ok {
		return Method{}, fmt.Errorf("unknown backend kind %q", kind)
	}
	m, ok := methods[name]
	if !ok {
		return Method{}, fmt.Errorf("%w: %q for backend %s (available: %v)", ErrUnknownMethod, name, kind, Methods(kind))
	}
	return m, nil
}

// DefaultCompression returns the default method for kind with its
// default options filled in.
func DefaultCompression(kind Kind) Compression {
	name := defaultMethods[kind]
	m := registry[kind][name]
	return Compression{Method: name, Options: maps.Clone(m.Defaults)}
}

// CheckOptions verifies each option against the declared parameters
// without instantiating the codec.
func (m Method) CheckOptions(opts map[string]any) error {
	for _, name := range slices.Sorted(maps.Keys(opts)) {
		if _, err := m.checkOption(name, opts[name]); err != nil {
			return err
		}
	}
	return nil
}

func (m Method) checkOption(name string, value any) (any, error) {
	p, ok := m.Params[name]
	if !ok {
		return nil, fmt.Errorf("option %q is not accepted by %s (accepted: %v)",
			name, m.Name, slices.Sorted(maps.Keys(m.Params)))
	}
	switch p.Type {
	case ParamBool:
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("option %q of %s must be bool, got %T", name, m.Name, value)
		}
		return b, nil
	case ParamInt:
		n, ok := toInt(value)
		if !ok {
			return nil, fmt.Errorf("option %q of %s must be an integer, got %v (%T)", name, m.Name, value, value)
		}
		if n < p.Min || n > p.Max {
			return nil, fmt.Errorf("option %q of %s must be in [%d, %d], got %d", name, m.Name, p.Min, p.Max, n)
		}
		return n, nil
	}
	return nil, fmt.Errorf("option %q of %s has unknown type %s", name, m.Name, p.Type)
}

// Resolve checks opts and returns them merged over the method defaults
// with integers normalized to int.
func (m Method) Resolve(opts map[string]any) (map[string]any, error) {
	out := maps.Clone(m.Defaults)
	if out == nil {
		out = map[string]any{}
	}
	for _, name := range slices.Sorted(maps.Keys(opts)) {
		v, err := m.checkOption(name, opts[name])
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}

// DecodeOptions resolves c against the registry for kind and decodes the
// result into out, a pointer to a struct with mapstructure tags.
func DecodeOptions(kind Kind, c Compression, out any) error {
	m, err := Lookup(kind, c.Method)
	if err != nil {
		return err
	}
	resolved, err := m.Resolve(c.Options)
	if err != nil {
		return err
	}
	if err := mapstructure.Decode(resolved, out); err != nil {
		return fmt.Errorf("failed to decode %s options: %w", c.Method, err)
	}
	return nil
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint:
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		if n > math.MaxInt32 {
			return 0, false
		}
		return int(n), true
	case float32:
		return floatToInt(float64(n))
	case float64:
		return floatToInt(n)
	}
	return 0, false
}

// floatToInt accepts integral floats, which JSON and YAML decoders
// produce for numbers in untyped maps.
func floatToInt(f float64) (int, bool) {
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}
