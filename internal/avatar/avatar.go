// Package avatar derives Discord CDN URLs for user avatars.
//
// Everything here is pure: the same user, format and size always produce
// the same URL, and no function performs I/O.
package avatar

import (
	"fmt"
	"slices"
	"time"

	"github.com/sakif/avatar-redirect/internal/model"
)

const (
	// CDNBase is the origin every avatar URL points at.
	CDNBase = "https://cdn.discordapp.com"

	// DefaultSize is used when the caller does not ask for a size.
	DefaultSize int16 = 512

	// MaxAge is how long clients may cache a redirect.
	MaxAge = 6 * time.Hour

	newDefaultAvatars    = 6
	legacyDefaultAvatars = 5
)

// AllowedSizes lists the sizes the CDN serves.
var AllowedSizes = []int16{16, 32, 64, 128, 256, 512, 1024, 2048, 4096}

// IsAllowedSize reports whether size is one of AllowedSizes.
func IsAllowedSize(size int16) bool {
	return slices.Contains(AllowedSizes, size)
}

// DefaultIndex returns which built-in avatar Discord shows for a user
// without a custom one.
//
// Migrated accounts (discriminator 0) are bucketed by the timestamp bits of
// their snowflake; legacy accounts by their discriminator.
func DefaultIndex(u model.User) int {
	if u.Discriminator == 0 {
		return int((uint64(u.ID) >> 22) % newDefaultAvatars)
	}
	return int(u.Discriminator % legacyDefaultAvatars)
}

// DefaultURL returns the URL of the user's built-in avatar. Built-in avatars
// are only served as PNG and ignore size.
func DefaultURL(u model.User) string {
	return fmt.Sprintf("%s/embed/avatars/%d.png", CDNBase, DefaultIndex(u))
}

// URL resolves the avatar URL for u.
//
// With FormatAuto, animated avatars resolve to gif and static ones to png.
// size is expected to be one of AllowedSizes; it is not checked here.
func URL(u model.User, format Format, size int16) string {
	if !u.HasAvatar() {
		return DefaultURL(u)
	}

	if format == FormatAuto {
		format = FormatPNG
		if u.AnimatedAvatar() {
			format = FormatGIF
		}
	}

	return fmt.Sprintf("%s/avatars/%s/%s.%s?size=%d", CDNBase, u.ID, u.Avatar, format, size)
}
