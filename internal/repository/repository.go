// Package repository declares the data-access ports the service layer
// depends on. Implementations live in their own packages (internal/discord).
package repository

import (
	"context"

	"github.com/disgoorg/snowflake/v2"

	"github.com/sakif/avatar-redirect/internal/model"
)

// UserRepository looks up users by id.
//
// Implementations must be safe for concurrent use and should return errors
// wrapping apperror.ErrUpstreamFetch or apperror.ErrUpstreamDecode.
type UserRepository interface {
	GetUser(ctx context.Context, id snowflake.ID) (*model.User, error)
}
