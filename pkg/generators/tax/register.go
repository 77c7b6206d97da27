package tax

import (
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datagen/pkg/generators"
	"github.com/ekaya-inc/ekaya-datagen/pkg/params"
)

func init() {
	generators.Register(generators.Registration{
		Info:       info,
		Parameters: Parameters(),
		Factory: func(values params.Values, logger *zap.Logger) (generators.Generator, error) {
			return New(FromValues(values), logger)
		},
	})
}
