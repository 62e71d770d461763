package chat

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/chatgate/chatgate/internal/ai"
	"github.com/chatgate/chatgate/internal/channel"
	"github.com/chatgate/chatgate/internal/quota"
	"github.com/chatgate/chatgate/internal/ratelimit"
	"github.com/chatgate/chatgate/internal/session"
	"github.com/chatgate/chatgate/internal/usage"
)

type ReplyKind string

const (
	KindChat    ReplyKind = "chat"
	KindCommand ReplyKind = "command"
)

// Reply is the success payload for one routed message.
type Reply struct {
	Kind          ReplyKind `json:"kind"`
	Text          string    `json:"text"`
	Model         string    `json:"model"`
	TotalMessages int64     `json:"total_message_count"`
}

// UsagePublisher fans a recorded usage event out to the queue. Optional.
type UsagePublisher interface {
	PublishUsage(ctx context.Context, eventID string) error
}

// Deps wires the router to its collaborators.
type Deps struct {
	Channels  *channel.Repo
	Resolver  *channel.Resolver
	Sessions  *session.Store
	Limiter   *ratelimit.Limiter
	Quotas    *quota.Accountant
	Messages  *Repo
	Usage     *usage.Repo
	Provider  ai.Provider
	Publisher UsagePublisher // may be nil
	AITimeout time.Duration

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Service is the message router: the single entry point the transport layer
// calls. It classifies input, sequences rate/quota checks, session state,
// the AI call, and persistence.
type Service struct {
	channels  *channel.Repo
	resolver  *channel.Resolver
	sessions  *session.Store
	limiter   *ratelimit.Limiter
	quotas    *quota.Accountant
	messages  *Repo
	usage     *usage.Repo
	provider  ai.Provider
	publisher UsagePublisher
	aiTimeout time.Duration
	now       func() time.Time
}

func NewService(d Deps) *Service {
	if d.AITimeout <= 0 {
		d.AITimeout = 60 * time.Second
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Service{
		channels:  d.Channels,
		resolver:  d.Resolver,
		sessions:  d.Sessions,
		limiter:   d.Limiter,
		quotas:    d.Quotas,
		messages:  d.Messages,
		usage:     d.Usage,
		provider:  d.Provider,
		publisher: d.Publisher,
		aiTimeout: d.AITimeout,
		now:       d.Now,
	}
}

// RouteMessage processes one inbound message for an already-authenticated
// caller. channelID and apiKeyID are zero for the anonymous public channel.
// The per-session lock is held for the whole turn, so turns on one key are
// strictly sequential while different keys proceed in parallel.
func (s *Service) RouteMessage(ctx context.Context, channelIdentifier string, channelID, apiKeyID uint64, userID, text string) (*Reply, error) {
	start := s.now()

	channelIdentifier = strings.TrimSpace(channelIdentifier)
	userID = strings.TrimSpace(userID)
	text = strings.TrimSpace(text)
	if channelIdentifier == "" {
		return nil, &ValidationError{Field: "channel_identifier"}
	}
	if userID == "" {
		return nil, &ValidationError{Field: "user_id"}
	}
	if text == "" {
		return nil, &ValidationError{Field: "text"}
	}

	ch, err := s.loadChannel(ctx, channelIdentifier, channelID)
	if err != nil {
		return nil, err
	}

	cfg := s.resolver.Resolve(ch)
	key := session.Key{ChannelIdentifier: channelIdentifier, ChannelID: channelID, UserID: userID}

	if IsCommand(text) {
		return s.commandTurn(ctx, key, apiKeyID, cfg, text)
	}
	return s.chatTurn(ctx, start, key, apiKeyID, ch, cfg, text)
}

// loadChannel resolves the channel record for an authenticated caller and
// verifies the named identifier is the one their credential belongs to. A
// zero channelID is the anonymous public channel, which has no record.
func (s *Service) loadChannel(ctx context.Context, channelIdentifier string, channelID uint64) (*channel.Channel, error) {
	if channelID == 0 {
		return nil, nil
	}
	got, err := s.channels.GetByIdentifier(ctx, channelIdentifier)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &ValidationError{Field: "channel_identifier"}
	}
	if err != nil {
		return nil, err
	}
	if got.ID != channelID || !got.IsActive {
		return nil, ErrAccessDenied
	}
	return got, nil
}

// commandTurn executes a local command. Commands bypass rate limiting and
// quotas, never reach the AI backend, never produce usage rows, and never
// change the total message count.
func (s *Service) commandTurn(ctx context.Context, key session.Key, apiKeyID uint64, cfg channel.EffectiveConfig, text string) (*Reply, error) {
	sess, _, err := s.sessions.GetOrCreate(ctx, key, apiKeyID, cfg.Model, cfg.MaxHistory)
	if err != nil {
		return nil, err
	}

	sess.Lock()
	defer sess.Unlock()

	replyText, err := s.execCommand(ctx, sess, cfg, text)
	if err != nil {
		return nil, err
	}
	sess.Touch(s.now())

	return &Reply{
		Kind:          KindCommand,
		Text:          replyText,
		Model:         sess.CurrentModel,
		TotalMessages: sess.TotalMessages,
	}, nil
}

func (s *Service) chatTurn(ctx context.Context, start time.Time, key session.Key, apiKeyID uint64, ch *channel.Channel, cfg channel.EffectiveConfig, text string) (*Reply, error) {
	// Rate and quota checks happen before any session mutation.
	rlKey := key.String()
	if allowed, remaining := s.limiter.CheckAndIncrement(rlKey, cfg.RateLimit); !allowed {
		retry := s.limiter.RetryAfter(rlKey)
		s.recordUsage(ctx, key, apiKeyID, ch, cfg.Model, nil, false, s.sinceMS(start), "rate_limit_exceeded")
		return nil, &RateLimitError{Limit: cfg.RateLimit, Remaining: remaining, RetryAfter: retry}
	}

	if ch != nil {
		if err := s.quotas.Check(ctx, ch, s.now().UTC()); err != nil {
			return nil, err
		}
	}

	sess, _, err := s.sessions.GetOrCreate(ctx, key, apiKeyID, cfg.Model, cfg.MaxHistory)
	if err != nil {
		return nil, err
	}

	sess.Lock()
	defer sess.Unlock()

	// Persist the user message first, then admit it to the in-context
	// window, so a failed write leaves the window untouched. The full
	// history is retained in the DB regardless of window truncation.
	chanID, keyID := scopePtrs(key, apiKeyID)
	userMsg := &Message{
		ChannelID:         chanID,
		APIKeyID:          keyID,
		ChannelIdentifier: key.ChannelIdentifier,
		UserID:            key.UserID,
		Role:              "user",
		Content:           text,
	}
	if err := s.messages.InsertMessage(ctx, userMsg); err != nil {
		return nil, err
	}
	sess.Append("user", text, cfg.MaxHistory)

	aiCtx, cancel := context.WithTimeout(ctx, s.aiTimeout)
	result, err := s.provider.Generate(aiCtx, sess.CurrentModel, key.SessionID(), toAIMessages(sess.RecentHistory(cfg.MaxHistory)))
	cancel()
	if err != nil {
		log.Printf("ai call failed key=%s model=%s err=%v", key, sess.CurrentModel, err)
		s.recordUsage(ctx, key, apiKeyID, ch, sess.CurrentModel, nil, false, s.sinceMS(start), err.Error())
		return nil, ErrAIUnavailable
	}

	assistantMsg := &Message{
		ChannelID:         chanID,
		APIKeyID:          keyID,
		ChannelIdentifier: key.ChannelIdentifier,
		UserID:            key.UserID,
		Role:              "assistant",
		Content:           result.Text,
	}
	if err := s.messages.InsertMessage(ctx, assistantMsg); err != nil {
		// AI cost was already incurred; report the turn failed and leave a
		// trail for reconciliation.
		log.Printf("assistant persist failed key=%s err=%v", key, err)
		s.recordUsage(ctx, key, apiKeyID, ch, sess.CurrentModel, result, false, s.sinceMS(start), "persist_failed")
		return nil, err
	}

	sess.Append("assistant", result.Text, cfg.MaxHistory)
	sess.TotalMessages += 2
	sess.Touch(s.now())

	s.recordUsage(ctx, key, apiKeyID, ch, sess.CurrentModel, result, true, s.sinceMS(start), "")

	return &Reply{
		Kind:          KindChat,
		Text:          result.Text,
		Model:         sess.CurrentModel,
		TotalMessages: sess.TotalMessages,
	}, nil
}

// recordUsage writes a usage row for authenticated channel traffic and fans
// it out to the queue. Recording failures are logged, never surfaced: the
// turn's outcome is already decided by the time this runs.
func (s *Service) recordUsage(ctx context.Context, key session.Key, apiKeyID uint64, ch *channel.Channel, model string, result *ai.Result, success bool, latencyMS int, errMsg string) {
	if ch == nil || apiKeyID == 0 {
		return
	}

	l := &usage.Log{
		APIKeyID:          apiKeyID,
		ChannelID:         ch.ID,
		SessionID:         key.SessionID(),
		ChannelIdentifier: key.ChannelIdentifier,
		UserID:            key.UserID,
		ModelUsed:         model,
		Success:           success,
		ResponseTimeMS:    latencyMS,
	}
	if result != nil {
		l.TokensUsed = result.Tokens
		l.EstimatedCost = result.Cost
	}
	if errMsg != "" {
		l.ErrorMessage = &errMsg
	}

	if err := s.usage.Record(ctx, l); err != nil {
		log.Printf("usage record failed key=%s err=%v", key, err)
		return
	}
	if s.publisher != nil {
		if err := s.publisher.PublishUsage(ctx, l.EventID); err != nil {
			log.Printf("usage publish failed event=%s err=%v", l.EventID, err)
		}
	}
}

// Limits reports the caller's remaining rate window and quota standing
// without consuming anything. The same ownership check as RouteMessage
// applies: a credential only ever sees its own channel's standing.
func (s *Service) Limits(ctx context.Context, channelIdentifier string, channelID uint64, userID string) (*LimitsInfo, error) {
	ch, err := s.loadChannel(ctx, channelIdentifier, channelID)
	if err != nil {
		return nil, err
	}
	cfg := s.resolver.Resolve(ch)
	key := session.Key{ChannelIdentifier: channelIdentifier, ChannelID: channelID, UserID: userID}

	info := &LimitsInfo{
		RateLimit:     cfg.RateLimit,
		RateRemaining: s.limiter.Remaining(key.String(), cfg.RateLimit),
	}
	if ch != nil {
		statuses, err := s.quotas.Status(ctx, ch, s.now().UTC())
		if err != nil {
			return nil, err
		}
		info.Quotas = statuses
	}
	return info, nil
}

// LimitsInfo is the non-mutating status view of a caller's limits.
type LimitsInfo struct {
	RateLimit     int            `json:"rate_limit"`
	RateRemaining int            `json:"rate_remaining"` // -1 means unlimited
	Quotas        []quota.Status `json:"quotas,omitempty"`
}

func (s *Service) sinceMS(start time.Time) int {
	return int(s.now().Sub(start) / time.Millisecond)
}

func scopePtrs(key session.Key, apiKeyID uint64) (*uint64, *uint64) {
	var chanID, keyID *uint64
	if key.ChannelID != 0 {
		v := key.ChannelID
		chanID = &v
	}
	if apiKeyID != 0 {
		v := apiKeyID
		keyID = &v
	}
	return chanID, keyID
}

func toAIMessages(history []session.ContextMessage) []ai.Message {
	out := make([]ai.Message, 0, len(history))
	for _, m := range history {
		out = append(out, ai.Message{Role: m.Role, Content: m.Content})
	}
	return out
}
