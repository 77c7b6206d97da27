// Package generators defines the contract every domain generator satisfies
// and the registry domain packages add themselves to from init().
package generators

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datagen/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-datagen/pkg/models"
	"github.com/ekaya-inc/ekaya-datagen/pkg/params"
	"github.com/ekaya-inc/ekaya-datagen/pkg/randstream"
)

// Info describes a registered generator for listing.
type Info struct {
	Key         string `json:"key" yaml:"key"`
	DisplayName string `json:"display_name" yaml:"display_name"`
	Description string `json:"description" yaml:"description"`
}

// Generator produces one domain's named table set. All randomness comes from
// rng, so the same configuration and seed give identical output. When a
// stage fails, the returned dataset holds the tables completed before it.
type Generator interface {
	Info() Info
	Generate(ctx context.Context, rng *randstream.Stream) (*models.Dataset, error)
}

// Registration contains info, parameter declarations and the factory that
// builds a generator from resolved parameter values.
type Registration struct {
	Info       Info
	Parameters []params.Spec
	Factory    func(values params.Values, logger *zap.Logger) (Generator, error)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Registration)
)

// Register is called by each domain package's init() function.
func Register(reg Registration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Key] = reg
}

// Registered returns all registrations ordered by key.
func Registered() []Registration {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]Registration, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Info.Key < result[j].Info.Key })
	return result
}

// Keys returns registered generator keys in order.
func Keys() []string {
	regs := Registered()
	keys := make([]string, len(regs))
	for i, r := range regs {
		keys[i] = r.Info.Key
	}
	return keys
}

func Lookup(key string) (Registration, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	reg, ok := registry[key]
	return reg, ok
}

// New resolves overrides against the generator's declared parameters and
// builds it. Every configuration problem is reported here, before any
// generation starts.
func New(key string, overrides map[string]any, logger *zap.Logger) (Generator, error) {
	reg, ok := Lookup(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnknownGenerator, key)
	}
	values, err := params.Resolve(reg.Parameters, overrides)
	if err != nil {
		return nil, fmt.Errorf("generator %s: %w", key, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	g, err := reg.Factory(values, logger)
	if err != nil {
		return nil, fmt.Errorf("generator %s: %w", key, err)
	}
	return g, nil
}
