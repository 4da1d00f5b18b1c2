package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// Identity is what a valid session resolves to.
type Identity struct {
	UserID        snowflake.ID
	SessionID     snowflake.ID
	Email         string
	EmailVerified bool
}

type Service interface {
	Authenticate(ctx context.Context, rawToken string) (*Identity, error)
}
