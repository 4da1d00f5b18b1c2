package providers

import (
	"github.com/ramonsarchive/ascend/internal/providers/email"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
)
