package handlers

import (
	"context"

	"github.com/chatgate/chatgate/internal/auth"
	"github.com/chatgate/chatgate/internal/channel"
	"github.com/chatgate/chatgate/internal/chat"
	"github.com/chatgate/chatgate/internal/usage"
)

// HealthProber reports whether the AI backend is reachable. Providers that
// can't be probed simply don't implement it.
type HealthProber interface {
	Health(ctx context.Context) bool
}

type Handler struct {
	ChatSvc  *chat.Service
	Channels *channel.Repo
	Authn    *auth.Authenticator
	Admin    *auth.AdminAuth
	Usage    *usage.Repo
	AIHealth HealthProber // nil when the provider has no probe
}

func NewHandler(svc *chat.Service, channels *channel.Repo, authn *auth.Authenticator, admin *auth.AdminAuth, usageRepo *usage.Repo, aiHealth HealthProber) *Handler {
	return &Handler{
		ChatSvc:  svc,
		Channels: channels,
		Authn:    authn,
		Admin:    admin,
		Usage:    usageRepo,
		AIHealth: aiHealth,
	}
}
