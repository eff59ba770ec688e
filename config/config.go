// Package config parses RAMSES's declarative memory-system grammar: a
// ';'-separated sequence of stanzas, each stanza a ':'-separated sequence of
// fields. The first field selects "map" or "remap", the second names a
// configurator ("naive", "intel", "rankmirror", "rasxor"), and the
// remaining fields are either a bare positional choice (a DDR standard, an
// Intel variant), a bare flag name, or a "key=value" argument (a string,
// or a suffixed integer like "16k" or "4g").
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/vusec/ramses/mapping"
	"github.com/vusec/ramses/msys"
	"github.com/vusec/ramses/remap"
)

// Sentinel error kinds a ParseError can wrap. Each corresponds to one of
// the failure modes the grammar can hit.
var (
	ErrUnknownStanzaType   = errors.New("config: stanza must start with \"map\" or \"remap\"")
	ErrUnknownConfigurator = errors.New("config: unknown configurator name")
	ErrMissingPositional   = errors.New("config: missing positional argument")
	ErrBadPositional       = errors.New("config: unrecognised positional argument value")
	ErrUnknownArg          = errors.New("config: unknown argument name")
	ErrFlagTakesNoValue    = errors.New("config: flag argument given a value")
	ErrArgMissingValue     = errors.New("config: key argument missing a value")
	ErrBadInt              = errors.New("config: malformed integer argument")
	ErrConfiguratorFailed  = errors.New("config: configurator rejected its arguments")
)

// ParseError reports a grammar violation together with the byte offset in
// the input at which the offending stanza began.
type ParseError struct {
	Offset int
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("config: byte %d: %v", e.Offset, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ParamType classifies a configurator parameter.
type ParamType int

const (
	// Positional is a bare token chosen from Choices, consumed before any
	// key=value argument in its stanza.
	Positional ParamType = iota
	// Flag is a bare "name" argument carrying no value.
	Flag
	// Str is a "name=value" argument whose value is kept verbatim.
	Str
	// Int is a "name=value" argument parsed as an integer, optionally
	// suffixed with k/m/g/t (times 1024, 1024^2, 1024^3, 1024^4).
	Int
)

// Param describes one parameter a configurator accepts.
type Param struct {
	Name    string
	Type    ParamType
	Choices []string // only meaningful when Type == Positional
}

// Meta names a configurator and its parameter list. Positional parameters
// must precede all Flag/Str/Int parameters in Params, mirroring the order
// they're expected to appear in a stanza.
type Meta struct {
	Name   string
	Params []Param
}

// Arg is one resolved argument value, indexed to match its Param.
type Arg struct {
	set    bool
	Flag   bool
	Num    int64
	Str    string
	Choice int
}

// MapConfig registers a Mapping configurator under Meta.Name.
type MapConfig struct {
	Meta  Meta
	Build func(args []Arg) (mapping.Mapping, error)
}

// RemapConfig registers a Remapping configurator under Meta.Name.
type RemapConfig struct {
	Meta  Meta
	Build func(args []Arg) (remap.Remapping, error)
}

var mapConfigs = []MapConfig{
	naiveMapConfig,
	intelMapConfig,
}

var remapConfigs = []RemapConfig{
	rankMirrorRemapConfig,
	rasXorRemapConfig,
}

func findMapConfig(name string) *MapConfig {
	for i := range mapConfigs {
		if mapConfigs[i].Meta.Name == name {
			return &mapConfigs[i]
		}
	}
	return nil
}

func findRemapConfig(name string) *RemapConfig {
	for i := range remapConfigs {
		if remapConfigs[i].Meta.Name == name {
			return &remapConfigs[i]
		}
	}
	return nil
}

// parseInt parses a decimal, hex (0x-prefixed), or octal (0-prefixed)
// integer with an optional trailing k/m/g/t size suffix.
func parseInt(s string) (int64, error) {
	if s == "" {
		return 0, ErrBadInt
	}
	suffix := s[len(s)-1]
	shift := uint(0)
	digits := s
	switch suffix {
	case 'k', 'K':
		shift = 10
		digits = s[:len(s)-1]
	case 'm', 'M':
		shift = 20
		digits = s[:len(s)-1]
	case 'g', 'G':
		shift = 30
		digits = s[:len(s)-1]
	case 't', 'T':
		shift = 40
		digits = s[:len(s)-1]
	}
	val, err := strconv.ParseInt(digits, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadInt, s)
	}
	return val << shift, nil
}

type stanza struct {
	offset int
	fields []string
}

// splitStanzas splits on ';' and ':' while stripping whitespace and
// '#'-to-end-of-line comments, tracking the byte offset each stanza starts
// at for error reporting.
func splitStanzas(s string) []stanza {
	var out []stanza
	cur := stanza{offset: 0}
	var field strings.Builder
	flushField := func() {
		cur.fields = append(cur.fields, field.String())
		field.Reset()
	}
	flushStanza := func(nextOffset int) {
		flushField()
		if len(cur.fields) > 1 || cur.fields[0] != "" {
			out = append(out, cur)
		}
		cur = stanza{offset: nextOffset}
	}

	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == '#':
			for i < len(s) && s[i] != '\n' {
				i++
			}
			continue
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
			continue
		case c == ':':
			flushField()
			i++
		case c == ';':
			i++
			flushStanza(i)
		default:
			field.WriteByte(c)
			i++
		}
	}
	flushStanza(len(s))
	return out
}

// Load parses cfg and builds the MemorySystem it describes.
func Load(cfg string) (msys.MemorySystem, error) {
	var m mapping.Mapping
	var remaps []remap.Remapping

	for _, st := range splitStanzas(cfg) {
		if len(st.fields) == 0 {
			continue
		}
		switch st.fields[0] {
		case "map":
			built, err := parseMapStanza(st)
			if err != nil {
				return msys.MemorySystem{}, &ParseError{Offset: st.offset, Err: err}
			}
			m = built
		case "remap":
			built, err := parseRemapStanza(st)
			if err != nil {
				return msys.MemorySystem{}, &ParseError{Offset: st.offset, Err: err}
			}
			remaps = append(remaps, built)
		default:
			return msys.MemorySystem{}, &ParseError{Offset: st.offset, Err: ErrUnknownStanzaType}
		}
	}
	if m == nil {
		return msys.MemorySystem{}, &ParseError{Offset: 0, Err: fmt.Errorf("%w: no map stanza", ErrUnknownStanzaType)}
	}
	return msys.New(m, remaps...), nil
}

func parseMapStanza(st stanza) (mapping.Mapping, error) {
	if len(st.fields) < 2 {
		return nil, ErrUnknownConfigurator
	}
	cfg := findMapConfig(st.fields[1])
	if cfg == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownConfigurator, st.fields[1])
	}
	args, err := parseArgs(cfg.Meta, st.fields[2:])
	if err != nil {
		return nil, err
	}
	m, err := cfg.Build(args)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguratorFailed, err)
	}
	return m, nil
}

func parseRemapStanza(st stanza) (remap.Remapping, error) {
	if len(st.fields) < 2 {
		return nil, ErrUnknownConfigurator
	}
	cfg := findRemapConfig(st.fields[1])
	if cfg == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownConfigurator, st.fields[1])
	}
	args, err := parseArgs(cfg.Meta, st.fields[2:])
	if err != nil {
		return nil, err
	}
	r, err := cfg.Build(args)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguratorFailed, err)
	}
	return r, nil
}

func parseArgs(meta Meta, fields []string) ([]Arg, error) {
	args := make([]Arg, len(meta.Params))
	parambase := 0

	for _, field := range fields {
		if parambase < len(meta.Params) && meta.Params[parambase].Type == Positional {
			choice := indexOf(meta.Params[parambase].Choices, field)
			if choice < 0 {
				return nil, fmt.Errorf("%w: %q", ErrBadPositional, field)
			}
			args[parambase] = Arg{set: true, Choice: choice}
			parambase++
			continue
		}

		name, value, hasValue := strings.Cut(field, "=")
		pi := findParam(meta.Params, name, parambase)
		if pi < 0 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownArg, name)
		}
		p := meta.Params[pi]
		switch p.Type {
		case Flag:
			if hasValue {
				return nil, fmt.Errorf("%w: %q", ErrFlagTakesNoValue, name)
			}
			args[pi] = Arg{set: true, Flag: true}
		case Str:
			if !hasValue || value == "" {
				return nil, fmt.Errorf("%w: %q", ErrArgMissingValue, name)
			}
			args[pi] = Arg{set: true, Str: value}
		case Int:
			if !hasValue || value == "" {
				return nil, fmt.Errorf("%w: %q", ErrArgMissingValue, name)
			}
			n, err := parseInt(value)
			if err != nil {
				return nil, err
			}
			args[pi] = Arg{set: true, Num: n}
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownArg, name)
		}
	}

	if parambase < len(meta.Params) && meta.Params[parambase].Type == Positional {
		return nil, ErrMissingPositional
	}
	return args, nil
}

func indexOf(choices []string, v string) int {
	for i, c := range choices {
		if c == v {
			return i
		}
	}
	return -1
}

func findParam(params []Param, name string, start int) int {
	for i := start; i < len(params); i++ {
		if params[i].Name == name {
			return i
		}
	}
	return -1
}
