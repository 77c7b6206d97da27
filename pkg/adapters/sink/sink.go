// Package sink loads finalized datasets into relational databases. Each
// database has its own subpackage that registers itself from init().
package sink

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datagen/pkg/config"
	"github.com/ekaya-inc/ekaya-datagen/pkg/models"
)

// Sink writes every table of a dataset, replacing tables of the same name.
// Each implementation owns its connection and must be closed when done.
type Sink interface {
	// Load creates and fills one table per dataset table and returns the
	// number of rows written.
	Load(ctx context.Context, ds *models.Dataset) (int64, error)

	// Ping verifies the database is reachable with valid credentials.
	Ping(ctx context.Context) error

	Close() error
}

// Info describes a registered sink.
type Info struct {
	Type        string `json:"type" yaml:"type"`
	DisplayName string `json:"display_name" yaml:"display_name"`
}

// Registration contains info and the factory for a sink type.
type Registration struct {
	Info    Info
	Factory func(ctx context.Context, cfg config.SinkConfig, logger *zap.Logger) (Sink, error)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Registration)
)

// Register is called by each sink's init() function.
func Register(reg Registration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Type] = reg
}

// Registered returns info for all registered sinks ordered by type.
func Registered() []Info {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]Info, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Type < result[j].Type })
	return result
}

// New validates cfg's identifiers and opens the sink of cfg.Type.
func New(ctx context.Context, cfg config.SinkConfig, logger *zap.Logger) (Sink, error) {
	registryMu.RLock()
	reg, ok := registry[cfg.Type]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("sink type %q is not registered", cfg.Type)
	}

	if err := CheckConfig(cfg); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return reg.Factory(ctx, cfg, logger.Named("sink").With(zap.String("type", cfg.Type)))
}
