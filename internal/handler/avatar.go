// Package handler contains the HTTP handlers of the avatar redirect service.
//
// Handlers parse the request, call the service layer and write the response.
// They hold no business rules: validation and URL resolution live in
// internal/service and internal/avatar.
package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/avatar-redirect/internal/avatar"
	"github.com/sakif/avatar-redirect/internal/service"
)

// cacheControl lets clients and CDNs keep a redirect for avatar.MaxAge.
var cacheControl = fmt.Sprintf("max-age=%d", int(avatar.MaxAge.Seconds()))

// AvatarHandler serves avatar redirects.
type AvatarHandler struct {
	avatars *service.AvatarService
	logger  *slog.Logger
}

// NewAvatarHandler creates an AvatarHandler.
func NewAvatarHandler(avatars *service.AvatarService, logger *slog.Logger) *AvatarHandler {
	return &AvatarHandler{
		avatars: avatars,
		logger:  logger,
	}
}

// HandleAvatar redirects to the CDN URL of a user's avatar.
//
// HTTP: GET /{id}[.{png|webp|jpeg|gif}]?size={16..4096}
//
// The route is registered as a catch-all, so the whole path after the
// leading slash arrives in the "*" URL parameter and is validated by the
// service.
func (h *AvatarHandler) HandleAvatar(w http.ResponseWriter, r *http.Request) {
	fullPath := chi.URLParam(r, "*")
	h.logger.Info("handling avatar request",
		slog.String("path", fullPath),
		slog.String("query", r.URL.RawQuery),
	)

	url, err := h.avatars.Resolve(r.Context(), service.AvatarQuery{
		Path: fullPath,
		Size: r.URL.Query().Get("size"),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Location", url)
	w.Header().Set("Cache-Control", cacheControl)
	w.WriteHeader(http.StatusFound)
}
