package membership

import (
	"github.com/ramonsarchive/ascend/internal/membership/event"
	"github.com/ramonsarchive/ascend/internal/membership/repository"
	"github.com/ramonsarchive/ascend/internal/membership/service"
	"go.uber.org/fx"
)

var Module = fx.Module("membership.service",
	event.Module,
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
