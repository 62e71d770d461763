package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/chatgate/chatgate/internal/channel"
	"github.com/chatgate/chatgate/internal/session"
)

// Model aliases accepted by /model in addition to full technical IDs.
var modelAliases = map[string]string{
	"gemini":   "google/gemini-2.5-flash",
	"flash":    "google/gemini-2.0-flash-001",
	"deepseek": "deepseek/deepseek-chat-v3-0324",
	"mini":     "openai/gpt-4o-mini",
	"gpt5":     "openai/gpt-5-chat",
	"gpt4":     "openai/gpt-4.1",
	"claude":   "anthropic/claude-sonnet-4",
	"grok":     "x-ai/grok-4",
}

var commandDescriptions = map[string]string{
	"start":    "welcome message",
	"help":     "list available commands",
	"status":   "show session status",
	"clear":    "clear conversation context",
	"model":    "show or switch the active model",
	"models":   "list available models",
	"settings": "show user settings",
}

// IsCommand reports whether text starts with a command prefix.
func IsCommand(text string) bool {
	return strings.HasPrefix(text, "/") || strings.HasPrefix(text, "!")
}

// ParseCommand splits a command into its lowercase name and arguments.
func ParseCommand(text string) (string, []string) {
	text = strings.TrimLeft(text, "/!")
	parts := strings.Fields(text)
	if len(parts) == 0 {
		return "", nil
	}
	return strings.ToLower(parts[0]), parts[1:]
}

// execCommand runs a command against the session. No AI call, no usage row,
// no change to the session's total message count. Caller holds the session
// lock.
func (s *Service) execCommand(ctx context.Context, sess *session.Session, cfg channel.EffectiveConfig, text string) (string, error) {
	name, args := ParseCommand(text)
	if name == "" || !cfg.AllowsCommand(name) {
		return unknownCommandReply(name, cfg), nil
	}

	switch name {
	case "start":
		return fmt.Sprintf(
			"Welcome! I'm an AI assistant.\n\nModel: %s\nRate limit: %d messages/minute\n\nType /help to see available commands.",
			sess.CurrentModel, cfg.RateLimit), nil

	case "help":
		var b strings.Builder
		b.WriteString("Available commands:\n")
		for _, cmd := range cfg.Commands {
			if desc, ok := commandDescriptions[cmd]; ok {
				fmt.Fprintf(&b, "/%s - %s\n", cmd, desc)
			}
		}
		fmt.Fprintf(&b, "\nCurrent model: %s\nRate limit: %d messages/minute\nContext window: %d messages\n",
			sess.CurrentModel, cfg.RateLimit, cfg.MaxHistory)
		return b.String(), nil

	case "status":
		return fmt.Sprintf(
			"Session status:\n- Channel: %s (%s)\n- Model: %s\n- Total messages: %d\n- Rate limit: %d/minute\n",
			sess.Key.ChannelIdentifier, cfg.AccessType, sess.CurrentModel, sess.TotalMessages, cfg.RateLimit), nil

	case "clear":
		if err := s.messages.MarkCleared(ctx, sess.Key, s.now().UTC()); err != nil {
			return "", fmt.Errorf("clear context: %w", err)
		}
		sess.ClearHistory()
		return "Conversation context cleared. Your message history is preserved for your records.", nil

	case "model":
		if len(args) == 0 {
			return modelListReply(sess.CurrentModel, cfg), nil
		}
		requested := resolveModel(strings.Join(args, " "), cfg)
		if requested == "" || !cfg.AllowModelSwitch {
			return "", ErrModelSwitchDenied
		}
		sess.CurrentModel = requested
		return fmt.Sprintf("Model switched to %s.", requested), nil

	case "models":
		return modelListReply(sess.CurrentModel, cfg), nil

	case "settings":
		if cfg.AccessType != channel.AccessPrivate {
			return "The /settings command is only available on private channels.", nil
		}
		return fmt.Sprintf(
			"User settings:\n- User: %s\n- Channel: %s\n- Model: %s\n- Model switching: %v\n",
			sess.Key.UserID, sess.Key.ChannelIdentifier, sess.CurrentModel, cfg.AllowModelSwitch), nil
	}

	return unknownCommandReply(name, cfg), nil
}

// resolveModel maps user input (technical ID or short alias) to a model the
// channel actually offers. Empty means not available.
func resolveModel(input string, cfg channel.EffectiveConfig) string {
	input = strings.TrimSpace(input)
	if cfg.HasModel(input) {
		return input
	}
	if technical, ok := modelAliases[strings.ToLower(input)]; ok && cfg.HasModel(technical) {
		return technical
	}
	return ""
}

func modelListReply(current string, cfg channel.EffectiveConfig) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current model: %s\n\nAvailable models:\n", current)
	for _, m := range cfg.AvailableModels {
		if m == current {
			fmt.Fprintf(&b, "- %s (current)\n", m)
		} else {
			fmt.Fprintf(&b, "- %s\n", m)
		}
	}
	if cfg.AllowModelSwitch {
		b.WriteString("\nUse /model <name> to switch.")
	}
	return b.String()
}

func unknownCommandReply(name string, cfg channel.EffectiveConfig) string {
	var b strings.Builder
	if name == "" {
		b.WriteString("Unknown command.\n\nAvailable commands:\n")
	} else {
		fmt.Fprintf(&b, "The /%s command is not available on this channel.\n\nAvailable commands:\n", name)
	}
	for _, cmd := range cfg.Commands {
		fmt.Fprintf(&b, "- /%s\n", cmd)
	}
	return b.String()
}
