package mysql

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datagen/pkg/adapters/sink"
	"github.com/ekaya-inc/ekaya-datagen/pkg/config"
)

func init() {
	sink.Register(sink.Registration{
		Info: sink.Info{Type: Type, DisplayName: "MySQL"},
		Factory: func(ctx context.Context, cfg config.SinkConfig, logger *zap.Logger) (sink.Sink, error) {
			return New(ctx, cfg, logger)
		},
	})
}
