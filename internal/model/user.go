// Package model defines the data structures used throughout the application.
package model

import (
	"strings"

	"github.com/disgoorg/snowflake/v2"
)

// User is the slice of Discord user metadata needed to locate an avatar.
//
// Values are only ever built from an upstream response; nothing in the
// service mutates them afterwards.
type User struct {
	ID snowflake.ID `json:"id"`

	// Discriminator is the legacy four-digit suffix. Zero means the account
	// has migrated to the unique-username system.
	Discriminator uint16 `json:"discriminator"`

	// Avatar is the avatar hash, empty when the user has no custom avatar.
	Avatar string `json:"avatar,omitempty"`
}

// HasAvatar reports whether the user uploaded a custom avatar.
func (u User) HasAvatar() bool {
	return u.Avatar != ""
}

// AnimatedAvatar reports whether the avatar hash marks an animated image.
func (u User) AnimatedAvatar() bool {
	return strings.HasPrefix(u.Avatar, "a_")
}
