package channel

import (
	"reflect"
	"testing"

	"github.com/chatgate/chatgate/internal/config"
)

func testResolver() *Resolver {
	return NewResolver(
		config.TierDefaults{
			Model:      "google/gemini-2.0-flash-001",
			Models:     "google/gemini-2.0-flash-001,openai/gpt-4o-mini",
			RateLimit:  20,
			MaxHistory: 10,
			Commands:   "start,help,status,clear,model,models",
		},
		config.TierDefaults{
			Model:            "openai/gpt-5-chat",
			Models:           "openai/gpt-5-chat,anthropic/claude-sonnet-4",
			RateLimit:        60,
			MaxHistory:       30,
			Commands:         "start,help,status,clear,model,models,settings",
			AllowModelSwitch: true,
		},
	)
}

func TestResolve_NilChannelGetsPublicTier(t *testing.T) {
	cfg := testResolver().Resolve(nil)

	if cfg.AccessType != AccessPublic {
		t.Fatalf("access type = %q", cfg.AccessType)
	}
	if cfg.Model != "google/gemini-2.0-flash-001" {
		t.Fatalf("model = %q", cfg.Model)
	}
	if cfg.RateLimit != 20 || cfg.MaxHistory != 10 {
		t.Fatalf("rate=%d history=%d", cfg.RateLimit, cfg.MaxHistory)
	}
	if cfg.AllowModelSwitch {
		t.Fatalf("public tier should not allow model switching by default")
	}
	if cfg.AllowsCommand("settings") {
		t.Fatalf("settings should not be available on the public tier")
	}
}

func TestResolve_PrivateTierDefaults(t *testing.T) {
	ch := &Channel{Identifier: "team-x", AccessType: AccessPrivate}
	cfg := testResolver().Resolve(ch)

	if cfg.Model != "openai/gpt-5-chat" {
		t.Fatalf("model = %q", cfg.Model)
	}
	if cfg.RateLimit != 60 || cfg.MaxHistory != 30 {
		t.Fatalf("rate=%d history=%d", cfg.RateLimit, cfg.MaxHistory)
	}
	if !cfg.AllowsCommand("settings") {
		t.Fatalf("settings should be available on private channels")
	}
}

func TestResolve_ChannelOverridesWin(t *testing.T) {
	rate := 5
	history := 4
	model := "deepseek/deepseek-chat-v3-0324"
	models := "deepseek/deepseek-chat-v3-0324,openai/gpt-5-chat"
	noSwitch := false

	ch := &Channel{
		Identifier:       "team-y",
		AccessType:       AccessPrivate,
		RateLimit:        &rate,
		MaxHistory:       &history,
		DefaultModel:     &model,
		AvailableModels:  &models,
		AllowModelSwitch: &noSwitch,
	}
	cfg := testResolver().Resolve(ch)

	if cfg.RateLimit != 5 || cfg.MaxHistory != 4 {
		t.Fatalf("overrides not applied: rate=%d history=%d", cfg.RateLimit, cfg.MaxHistory)
	}
	if cfg.Model != model {
		t.Fatalf("model = %q", cfg.Model)
	}
	want := []string{"deepseek/deepseek-chat-v3-0324", "openai/gpt-5-chat"}
	if !reflect.DeepEqual(cfg.AvailableModels, want) {
		t.Fatalf("models = %v", cfg.AvailableModels)
	}
	if cfg.AllowModelSwitch {
		t.Fatalf("override should disable model switching")
	}
}

func TestResolve_PartialOverrideKeepsTierRest(t *testing.T) {
	rate := 3
	ch := &Channel{Identifier: "team-z", AccessType: AccessPublic, RateLimit: &rate}
	cfg := testResolver().Resolve(ch)

	if cfg.RateLimit != 3 {
		t.Fatalf("rate = %d", cfg.RateLimit)
	}
	if cfg.MaxHistory != 10 || cfg.Model != "google/gemini-2.0-flash-001" {
		t.Fatalf("tier defaults should fill the rest: history=%d model=%q", cfg.MaxHistory, cfg.Model)
	}
}

func TestResolve_GlobalFallbacks(t *testing.T) {
	r := NewResolver(config.TierDefaults{}, config.TierDefaults{})
	cfg := r.Resolve(nil)

	if cfg.Model == "" || cfg.RateLimit <= 0 || cfg.MaxHistory <= 0 {
		t.Fatalf("empty tier should still resolve: %+v", cfg)
	}
	if len(cfg.AvailableModels) == 0 || len(cfg.Commands) == 0 {
		t.Fatalf("lists should never resolve empty: %+v", cfg)
	}
}

func TestHasModel(t *testing.T) {
	cfg := testResolver().Resolve(nil)

	if !cfg.HasModel("openai/gpt-4o-mini") {
		t.Fatalf("listed model should be available")
	}
	if cfg.HasModel("anthropic/claude-sonnet-4") {
		t.Fatalf("unlisted model should not be available")
	}
}
