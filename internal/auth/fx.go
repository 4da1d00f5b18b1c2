package auth

import (
	"github.com/ramonsarchive/ascend/internal/auth/repository"
	"github.com/ramonsarchive/ascend/internal/auth/service"
	"github.com/ramonsarchive/ascend/internal/auth/session"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.service",
	fx.Provide(repository.New),
	fx.Provide(service.New),
	session.Module,
)
