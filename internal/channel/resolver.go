package channel

import (
	"strings"

	"github.com/chatgate/chatgate/internal/config"
)

// EffectiveConfig is the fully resolved per-channel configuration. Zero
// nullable fields remain: every value has been filled from the channel
// override, the access-tier default, or the global default, in that order.
type EffectiveConfig struct {
	AccessType       string
	Model            string
	AvailableModels  []string
	RateLimit        int
	MaxHistory       int
	Commands         []string
	AllowModelSwitch bool
}

// Resolver folds the three-tier fallback (channel override -> tier default ->
// global default) into one place so the precedence order is a single rule.
type Resolver struct {
	public  EffectiveConfig
	private EffectiveConfig
}

func NewResolver(public, private config.TierDefaults) *Resolver {
	return &Resolver{
		public:  tierConfig(AccessPublic, public),
		private: tierConfig(AccessPrivate, private),
	}
}

func tierConfig(accessType string, d config.TierDefaults) EffectiveConfig {
	model := d.Model
	if model == "" {
		model = "openai/gpt-4o-mini" // global fallback
	}
	models := splitCSV(d.Models)
	if len(models) == 0 {
		models = []string{model}
	}
	rate := d.RateLimit
	if rate <= 0 {
		rate = 30
	}
	history := d.MaxHistory
	if history <= 0 {
		history = 20
	}
	commands := splitCSV(d.Commands)
	if len(commands) == 0 {
		commands = []string{"start", "help", "status", "clear", "model", "models"}
	}
	return EffectiveConfig{
		AccessType:       accessType,
		Model:            model,
		AvailableModels:  models,
		RateLimit:        rate,
		MaxHistory:       history,
		Commands:         commands,
		AllowModelSwitch: d.AllowModelSwitch,
	}
}

// Resolve returns the effective configuration for a channel. A nil channel
// means the anonymous public channel, which has no record and no overrides.
// Pure function of the record; cheap enough to call per request.
func (r *Resolver) Resolve(ch *Channel) EffectiveConfig {
	if ch == nil {
		return r.public
	}

	cfg := r.private
	if ch.AccessType == AccessPublic {
		cfg = r.public
	}

	if ch.RateLimit != nil {
		cfg.RateLimit = *ch.RateLimit
	}
	if ch.MaxHistory != nil {
		cfg.MaxHistory = *ch.MaxHistory
	}
	if ch.DefaultModel != nil && *ch.DefaultModel != "" {
		cfg.Model = *ch.DefaultModel
	}
	if ch.AvailableModels != nil {
		if models := splitCSV(*ch.AvailableModels); len(models) > 0 {
			cfg.AvailableModels = models
		}
	}
	if ch.AllowModelSwitch != nil {
		cfg.AllowModelSwitch = *ch.AllowModelSwitch
	}
	return cfg
}

// HasModel reports whether model is in the resolved available list.
func (c EffectiveConfig) HasModel(model string) bool {
	for _, m := range c.AvailableModels {
		if m == model {
			return true
		}
	}
	return false
}

// AllowsCommand reports whether a command name is enabled for this channel.
func (c EffectiveConfig) AllowsCommand(cmd string) bool {
	for _, allowed := range c.Commands {
		if allowed == cmd {
			return true
		}
	}
	return false
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
