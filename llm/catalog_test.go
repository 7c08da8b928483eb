// ABOUTME: Tests for the model catalog.
// ABOUTME: Covers ID and alias lookup, default model resolution, and registration.

package llm

import "testing"

func TestCatalogLookupByIDAndAlias(t *testing.T) {
	c := DefaultCatalog()

	if info := c.GetModelInfo("claude-sonnet-4-5"); info == nil || info.Provider != "anthropic" {
		t.Errorf("lookup by ID = %+v", info)
	}
	if info := c.GetModelInfo("sonnet"); info == nil || info.ID != "claude-sonnet-4-5" {
		t.Errorf("lookup by alias = %+v", info)
	}
	if info := c.GetModelInfo("nonexistent"); info != nil {
		t.Errorf("unknown model should return nil, got %+v", info)
	}
}

func TestCatalogResolveFallsBackToDefault(t *testing.T) {
	c := DefaultCatalog()

	if got := c.Resolve("sonnet", "anthropic"); got != "claude-sonnet-4-5" {
		t.Errorf("alias resolve = %q", got)
	}
	if got := c.Resolve("retired-model-v1", "anthropic"); got != "claude-sonnet-4-5" {
		t.Errorf("unknown model should resolve to the provider default, got %q", got)
	}
	if got := c.Resolve("retired-model-v1", "unknown-provider"); got != "retired-model-v1" {
		t.Errorf("no default means the requested ID passes through, got %q", got)
	}
}

func TestCatalogRegisterReplacesExisting(t *testing.T) {
	c := DefaultCatalog()
	c.Register(ModelInfo{ID: "gpt-5.2", Provider: "openai", DisplayName: "Replaced"})

	if info := c.GetModelInfo("gpt-5.2"); info == nil || info.DisplayName != "Replaced" {
		t.Errorf("registered model = %+v", info)
	}
}

func TestCatalogIndependentCopies(t *testing.T) {
	a := DefaultCatalog()
	b := DefaultCatalog()

	a.Register(ModelInfo{ID: "custom-model", Provider: "custom"})
	if b.GetModelInfo("custom-model") != nil {
		t.Error("catalogs must not share state")
	}
}

func TestCatalogListModelsByProvider(t *testing.T) {
	c := DefaultCatalog()

	anthropic := c.ListModels("anthropic")
	for _, m := range anthropic {
		if m.Provider != "anthropic" {
			t.Errorf("filtered list contains %q", m.Provider)
		}
	}

	all := c.ListModels("")
	if len(all) <= len(anthropic) {
		t.Error("unfiltered list should include every provider")
	}
}
