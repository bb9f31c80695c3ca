// Package macro formats Audacity macro command lines and splits their responses.
package macro

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"
)

// Param is one Key="Value" pair.
type Param struct {
	Key   string
	Value string
}

// Builder accumulates parameters for one macro. The first invalid argument is
// kept and returned from Build.
type Builder struct {
	name   string
	params []Param
	err    error
}

// New starts a command for the named macro.
func New(name string) *Builder {
	b := &Builder{name: strings.TrimSpace(name)}
	if err := validateIdent("macro name", b.name); err != nil {
		b.err = err
	}
	return b
}

// String appends a text parameter.
func (b *Builder) String(key, value string) *Builder {
	if b.err != nil {
		return b
	}
	if err := validateIdent("parameter key", key); err != nil {
		b.err = err
		return b
	}
	if strings.ContainsAny(value, "\"\r\n\x00") {
		b.err = fmt.Errorf("%s value must not contain quotes or line breaks: %q", key, value)
		return b
	}
	b.params = append(b.params, Param{Key: key, Value: value})
	return b
}

func (b *Builder) Int(key string, value int) *Builder {
	return b.String(key, strconv.Itoa(value))
}

// Float appends a finite number in shortest form. NaN and infinities are rejected.
func (b *Builder) Float(key string, value float64) *Builder {
	if b.err != nil {
		return b
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		b.err = fmt.Errorf("%s must be a finite number, got %v", key, value)
		return b
	}
	return b.String(key, strconv.FormatFloat(value, 'f', -1, 64))
}

// Path appends path resolved against the working directory.
func (b *Builder) Path(key, path string) *Builder {
	if b.err != nil {
		return b
	}
	if strings.TrimSpace(path) == "" {
		b.err = fmt.Errorf("%s path must not be empty", key)
		return b
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		b.err = fmt.Errorf("resolve %s path %q: %w", key, path, err)
		return b
	}
	return b.String(key, abs)
}

// Bool renders True or False, matching Audacity's scripting docs.
func (b *Builder) Bool(key string, value bool) *Builder {
	if value {
		return b.String(key, "True")
	}
	return b.String(key, "False")
}

// Enum appends value when it case-insensitively matches one of allowed, using
// the canonical spelling from allowed.
func (b *Builder) Enum(key, value string, allowed ...string) *Builder {
	if b.err != nil {
		return b
	}
	for _, candidate := range allowed {
		if strings.EqualFold(strings.TrimSpace(value), candidate) {
			return b.String(key, candidate)
		}
	}
	b.err = fmt.Errorf("%s must be one of %s, got %q", key, strings.Join(allowed, ", "), value)
	return b
}

// Build returns the command line without a terminator.
func (b *Builder) Build() (string, error) {
	if b.err != nil {
		return "", b.err
	}
	if len(b.params) == 0 {
		return b.name, nil
	}

	var out strings.Builder
	out.WriteString(b.name)
	out.WriteByte(':')
	for _, p := range b.params {
		out.WriteByte(' ')
		out.WriteString(p.Key)
		out.WriteString(`="`)
		out.WriteString(p.Value)
		out.WriteByte('"')
	}
	return out.String(), nil
}

func validateIdent(what, value string) error {
	if value == "" {
		return errors.New(what + " must not be empty")
	}
	for _, r := range value {
		if unicode.IsSpace(r) || r == ':' || r == '=' || r == '"' {
			return fmt.Errorf("%s %q contains %q", what, value, r)
		}
	}
	return nil
}
