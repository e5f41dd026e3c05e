// Package discord is the upstream adapter for the Discord REST API.
//
// It implements repository.UserRepository with a single authenticated
// GET /users/{id}, decoded through discordgo's wire types. Requests are not
// retried: a 429 from Discord surfaces as a fetch failure like any other
// non-2xx answer.
package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"golang.org/x/oauth2"

	"github.com/sakif/avatar-redirect/internal/apperror"
	"github.com/sakif/avatar-redirect/internal/model"
	"github.com/sakif/avatar-redirect/internal/repository"
)

// DefaultBaseURL is the versioned REST API root.
const DefaultBaseURL = "https://discord.com/api/v10"

// UserAgent follows the format Discord requires for bots.
const UserAgent = "DiscordBot (https://github.com/sakif/avatar-redirect, 1.0)"

var _ repository.UserRepository = (*Client)(nil)

// Config holds the settings for a Client.
type Config struct {
	// Token is the bot token, sent as "Authorization: Bot <token>".
	Token string
	// BaseURL defaults to DefaultBaseURL.
	BaseURL string
	// Timeout bounds a single upstream request. Zero means no client-side
	// limit beyond the request context.
	Timeout time.Duration
	// Transport is the underlying round tripper, http.DefaultTransport when nil.
	Transport http.RoundTripper
}

// Client fetches users from Discord. It is safe for concurrent use.
type Client struct {
	http    *http.Client
	baseURL string
	logger  *slog.Logger
}

// New creates a Client.
//
// The bot token is attached by an oauth2.Transport around a static token
// whose type is "Bot", which renders the header Discord expects.
func New(cfg Config, logger *slog.Logger) *Client {
	base := cfg.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	src := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: cfg.Token,
		TokenType:   "Bot",
	})

	return &Client{
		http: &http.Client{
			Transport: &oauth2.Transport{Source: src, Base: base},
			Timeout:   cfg.Timeout,
		},
		baseURL: baseURL,
		logger:  logger,
	}
}

// GetUser fetches the user with the given id.
//
// Transport failures and non-2xx answers wrap apperror.ErrUpstreamFetch; a
// 2xx body that is not a valid user wraps apperror.ErrUpstreamDecode.
func (c *Client) GetUser(ctx context.Context, id snowflake.ID) (*model.User, error) {
	endpoint := c.baseURL + "/users/" + id.String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperror.UpstreamFetch(fmt.Errorf("discord: building request: %w", err))
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperror.UpstreamFetch(fmt.Errorf("discord: GET /users/%s: %w", id, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode == http.StatusTooManyRequests {
			c.logger.Warn("discord rate limit hit",
				slog.String("retry_after", resp.Header.Get("Retry-After")),
				slog.Bool("global", resp.Header.Get("X-RateLimit-Global") == "true"),
			)
		}
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, apperror.UpstreamFetch(fmt.Errorf("discord: GET /users/%s returned status %d", id, resp.StatusCode))
	}

	var wire discordgo.User
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, apperror.UpstreamDecode(fmt.Errorf("discord: decoding user %s: %w", id, err))
	}

	user, err := toModel(&wire)
	if err != nil {
		return nil, apperror.UpstreamDecode(fmt.Errorf("discord: decoding user %s: %w", id, err))
	}
	return user, nil
}

// toModel projects the wire user onto model.User. Discord sends both the id
// and the discriminator as strings.
func toModel(u *discordgo.User) (*model.User, error) {
	id, err := snowflake.Parse(u.ID)
	if err != nil {
		return nil, fmt.Errorf("parsing id %q: %w", u.ID, err)
	}

	var discriminator uint64
	if u.Discriminator != "" {
		discriminator, err = strconv.ParseUint(u.Discriminator, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("parsing discriminator %q: %w", u.Discriminator, err)
		}
	}

	return &model.User{
		ID:            id,
		Discriminator: uint16(discriminator),
		Avatar:        u.Avatar,
	}, nil
}
