package clock

import (
	"time"

	"go.uber.org/fx"
)

var Module = fx.Module("clock",
	fx.Provide(func() Clock { return SystemClock{} }),
)

// Clock abstracts wall time so expiry decisions can be pinned in tests.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

// Now returns the current UTC time truncated to the millisecond, the precision
// every supported store round-trips.
func (SystemClock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
