package apperrors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConfiguration     = errors.New("invalid configuration")
	ErrEmptyPopulation   = errors.New("empty population")
	ErrReferential       = errors.New("referential integrity violation")
	ErrGenerationTimeout = errors.New("generation timeout")
	ErrUnknownGenerator  = errors.New("unknown generator")
	ErrUnsafeIdentifier  = errors.New("unsafe identifier")
)

// ConfigurationError reports an invalid or missing parameter. It is raised
// before any generation starts.
type ConfigurationError struct {
	Param  string
	Reason string
}

func NewConfigurationError(param, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Param: param, Reason: fmt.Sprintf(format, args...)}
}

func (e *ConfigurationError) Error() string {
	if e.Param == "" {
		return fmt.Sprintf("invalid configuration: %s", e.Reason)
	}
	return fmt.Sprintf("invalid parameter %q: %s", e.Param, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// EmptyPopulationError reports that a stage needed at least one upstream row
// and found none. Counts carries the sizes of the tables built so far.
type EmptyPopulationError struct {
	Stage      string
	Collection string
	Counts     map[string]int
}

func NewEmptyPopulationError(stage, collection string, counts map[string]int) *EmptyPopulationError {
	return &EmptyPopulationError{Stage: stage, Collection: collection, Counts: counts}
}

func (e *EmptyPopulationError) Error() string {
	msg := fmt.Sprintf("stage %s: required collection %s is empty", e.Stage, e.Collection)
	if len(e.Counts) == 0 {
		return msg
	}

	keys := make([]string, 0, len(e.Counts))
	for k := range e.Counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, e.Counts[k])
	}
	return msg + " (" + strings.Join(parts, ", ") + ")"
}

func (e *EmptyPopulationError) Unwrap() error { return ErrEmptyPopulation }

// ReferentialError is a defect: a child row points at a parent key that was
// never materialized. It is raised with panic, not returned.
type ReferentialError struct {
	Child  string
	Parent string
	Key    string
}

func (e *ReferentialError) Error() string {
	return fmt.Sprintf("%s references missing %s key %q", e.Child, e.Parent, e.Key)
}

func (e *ReferentialError) Unwrap() error { return ErrReferential }

// GenerationTimeout reports that the host aborted a pipeline. Stage names the
// last stage that had not completed.
type GenerationTimeout struct {
	Generator string
	Stage     string
	Cause     error
}

func (e *GenerationTimeout) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("generator %s aborted at stage %s", e.Generator, e.Stage)
	}
	return fmt.Sprintf("generator %s aborted at stage %s: %v", e.Generator, e.Stage, e.Cause)
}

func (e *GenerationTimeout) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrGenerationTimeout}
	}
	return []error{ErrGenerationTimeout, e.Cause}
}
