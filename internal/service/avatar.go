// Package service contains the business logic layer of the application.
//
// It sits between the HTTP handlers and the upstream repository:
//
//	AvatarHandler (HTTP) → AvatarService (validation, resolution) → UserRepository (Discord)
//
// Nothing here reads an *http.Request or writes a status code. Failures are
// reported as apperror values and mapped to HTTP by internal/handler.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"

	"github.com/disgoorg/snowflake/v2"

	"github.com/sakif/avatar-redirect/internal/apperror"
	"github.com/sakif/avatar-redirect/internal/avatar"
	"github.com/sakif/avatar-redirect/internal/repository"
)

// Validation messages returned to clients.
const (
	MsgInvalidSize   = "Invalid size"
	MsgInvalidPath   = "Invalid path"
	MsgInvalidID     = "Invalid id"
	MsgInvalidUserID = "Invalid user ID"
)

// avatarPath matches "<id>" or "<id>.<ext>". The capture groups double as
// the parser: id is 17-19 ASCII digits, format one of the path extensions.
var avatarPath = regexp.MustCompile(`^(?P<id>\d{17,19})(\.(?P<format>png|webp|jpeg|gif))?$`)

var (
	idGroup     = avatarPath.SubexpIndex("id")
	formatGroup = avatarPath.SubexpIndex("format")
)

// AvatarQuery is a raw avatar request as it arrives over HTTP.
type AvatarQuery struct {
	// Path is the request path without its leading slash, e.g. "80351110224678912.png".
	Path string
	// Size is the raw "size" query value; empty means the default.
	Size string
}

// AvatarService turns an avatar request into a CDN URL.
//
// Validation happens before any upstream call, in the order size, path, id,
// so a request that is wrong in several ways always gets the same message.
type AvatarService struct {
	users  repository.UserRepository
	logger *slog.Logger
}

// NewAvatarService creates an AvatarService backed by the given repository.
func NewAvatarService(users repository.UserRepository, logger *slog.Logger) *AvatarService {
	return &AvatarService{
		users:  users,
		logger: logger,
	}
}

// Resolve validates q, looks the user up and returns the avatar URL.
//
// Errors wrap apperror.ErrValidation for bad input and the upstream
// sentinels for lookup failures.
func (s *AvatarService) Resolve(ctx context.Context, q AvatarQuery) (string, error) {
	size, err := parseSize(q.Size)
	if err != nil {
		return "", err
	}

	m := avatarPath.FindStringSubmatch(q.Path)
	if m == nil {
		return "", apperror.ValidationFailed("path", MsgInvalidPath)
	}

	rawID := m[idGroup]
	if rawID == "" {
		return "", apperror.ValidationFailed("id", MsgInvalidID)
	}
	id, err := snowflake.Parse(rawID)
	if err != nil {
		return "", apperror.ValidationFailed("id", MsgInvalidUserID)
	}

	user, err := s.users.GetUser(ctx, id)
	if err != nil {
		return "", fmt.Errorf("service/avatar: fetching user %s: %w", id, err)
	}

	format := avatar.FormatAuto
	if ext := m[formatGroup]; ext != "" {
		// The pattern only admits known extensions.
		format, _ = avatar.ParseFormat(ext)
	}

	url := avatar.URL(*user, format, size)
	s.logger.Debug("avatar resolved",
		slog.String("user_id", id.String()),
		slog.String("url", url),
	)
	return url, nil
}

// parseSize reads the size query value, falling back to avatar.DefaultSize.
func parseSize(raw string) (int16, error) {
	if raw == "" {
		return avatar.DefaultSize, nil
	}

	n, err := strconv.ParseInt(raw, 10, 16)
	if err != nil || !avatar.IsAllowedSize(int16(n)) {
		return 0, apperror.ValidationFailed("size", MsgInvalidSize)
	}
	return int16(n), nil
}
