// Package params declares generator parameters and resolves caller
// overrides against those declarations before any generation starts.
package params

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-datagen/pkg/apperrors"
)

// DateLayout is the accepted textual date format.
const DateLayout = "2006-01-02"

// Kind is the declared type of a parameter.
type Kind string

const (
	KindNumber  Kind = "number"
	KindInteger Kind = "integer"
	KindDate    Kind = "date"
	KindChoice  Kind = "choice"
	KindBool    Kind = "bool"
)

// Spec declares one parameter: its kind, bounds or options, and default.
type Spec struct {
	Name    string   `yaml:"name"`
	Label   string   `yaml:"label"`
	Help    string   `yaml:"help,omitempty"`
	Kind    Kind     `yaml:"kind"`
	Min     *float64 `yaml:"min,omitempty"`
	Max     *float64 `yaml:"max,omitempty"`
	Options []string `yaml:"options,omitempty"`
	Default any      `yaml:"default"`
}

func Number(name, label string, min, max, def float64) Spec {
	return Spec{Name: name, Label: label, Kind: KindNumber, Min: &min, Max: &max, Default: def}
}

func Integer(name, label string, min, max, def int) Spec {
	lo, hi := float64(min), float64(max)
	return Spec{Name: name, Label: label, Kind: KindInteger, Min: &lo, Max: &hi, Default: def}
}

func Date(name, label string, def time.Time) Spec {
	return Spec{Name: name, Label: label, Kind: KindDate, Default: def}
}

func Choice(name, label string, options []string, def string) Spec {
	return Spec{Name: name, Label: label, Kind: KindChoice, Options: options, Default: def}
}

func Bool(name, label string, def bool) Spec {
	return Spec{Name: name, Label: label, Kind: KindBool, Default: def}
}

// WithHelp returns a copy of s carrying help text.
func (s Spec) WithHelp(help string) Spec {
	s.Help = help
	return s
}

// Values holds resolved, typed parameter values: float64, int, time.Time,
// string or bool depending on the declared kind.
type Values map[string]any

func (v Values) Float(name string) float64 {
	f, _ := v[name].(float64)
	return f
}

func (v Values) Int(name string) int {
	i, _ := v[name].(int)
	return i
}

func (v Values) Date(name string) time.Time {
	t, _ := v[name].(time.Time)
	return t
}

func (v Values) String(name string) string {
	s, _ := v[name].(string)
	return s
}

func (v Values) Bool(name string) bool {
	b, _ := v[name].(bool)
	return b
}

// Resolve validates overrides against specs and fills in defaults. Unknown
// names, wrong kinds, out-of-range numbers and unknown options are
// ConfigurationErrors.
func Resolve(specs []Spec, overrides map[string]any) (Values, error) {
	known := make(map[string]Spec, len(specs))
	for _, s := range specs {
		known[s.Name] = s
	}
	for name := range overrides {
		if _, ok := known[name]; !ok {
			return nil, apperrors.NewConfigurationError(name, "unknown parameter")
		}
	}

	out := make(Values, len(specs))
	for _, s := range specs {
		raw, ok := overrides[s.Name]
		if !ok || raw == nil {
			raw = s.Default
		}
		if raw == nil {
			return nil, apperrors.NewConfigurationError(s.Name, "required parameter is missing")
		}
		v, err := s.coerce(raw)
		if err != nil {
			return nil, err
		}
		out[s.Name] = v
	}
	return out, nil
}

func (s Spec) coerce(raw any) (any, error) {
	switch s.Kind {
	case KindNumber:
		f, ok := toFloat(raw)
		if !ok {
			return nil, apperrors.NewConfigurationError(s.Name, "expected a number, got %T", raw)
		}
		return f, s.checkRange(f)
	case KindInteger:
		f, ok := toFloat(raw)
		if !ok || f != math.Trunc(f) {
			return nil, apperrors.NewConfigurationError(s.Name, "expected an integer, got %v", raw)
		}
		return int(f), s.checkRange(f)
	case KindDate:
		switch d := raw.(type) {
		case time.Time:
			return d, nil
		case string:
			t, err := time.Parse(DateLayout, strings.TrimSpace(d))
			if err != nil {
				return nil, apperrors.NewConfigurationError(s.Name, "expected a date in %s form, got %q", DateLayout, d)
			}
			return t, nil
		}
		return nil, apperrors.NewConfigurationError(s.Name, "expected a date, got %T", raw)
	case KindChoice:
		str, ok := raw.(string)
		if !ok {
			return nil, apperrors.NewConfigurationError(s.Name, "expected one of %s", strings.Join(s.Options, ", "))
		}
		for _, o := range s.Options {
			if o == str {
				return str, nil
			}
		}
		return nil, apperrors.NewConfigurationError(s.Name, "%q is not one of %s", str, strings.Join(s.Options, ", "))
	case KindBool:
		switch b := raw.(type) {
		case bool:
			return b, nil
		case string:
			parsed, err := strconv.ParseBool(b)
			if err == nil {
				return parsed, nil
			}
		}
		return nil, apperrors.NewConfigurationError(s.Name, "expected true or false, got %v", raw)
	}
	return nil, apperrors.NewConfigurationError(s.Name, "unsupported kind %q", s.Kind)
}

func (s Spec) checkRange(f float64) error {
	if (s.Min != nil && f < *s.Min) || (s.Max != nil && f > *s.Max) {
		return apperrors.NewConfigurationError(s.Name, "%v is outside [%v, %v]", f, fmtBound(s.Min), fmtBound(s.Max))
	}
	return nil
}

func fmtBound(b *float64) string {
	if b == nil {
		return "unbounded"
	}
	return strconv.FormatFloat(*b, 'f', -1, 64)
}

func toFloat(raw any) (float64, bool) {
	switch n := raw.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

// Overrides maps generator key to parameter overrides, as read from a
// parameters file.
type Overrides map[string]map[string]any

// LoadFile reads a YAML parameters file of the form:
//
//	credit_card:
//	  approval_rate: 60
//	marketing:
//	  channel_focus: Paid
func LoadFile(path string) (Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read params file: %w", err)
	}
	var out Overrides
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse params file %s: %w", path, err)
	}
	if out == nil {
		out = Overrides{}
	}
	return out, nil
}
