package scope

import (
	"github.com/ramonsarchive/ascend/internal/scope/repository"
	"github.com/ramonsarchive/ascend/internal/scope/service"
	"go.uber.org/fx"
)

var Module = fx.Module("scope.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewResolver),
)
