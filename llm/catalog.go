// ABOUTME: Model catalog providing metadata about known models across providers.
// ABOUTME: Supports lookup by ID or alias, per-provider defaults, and custom model registration.

package llm

// ModelInfo describes a single model's capabilities and metadata.
type ModelInfo struct {
	ID                string // e.g., "claude-sonnet-4-5"
	Provider          string // e.g., "anthropic"
	DisplayName       string
	ContextWindow     int // max total tokens
	MaxOutput         int // max output tokens, 0 if unknown
	SupportsTools     bool
	SupportsReasoning bool
	// Default marks the model the provider falls back to when a requested
	// model is unknown.
	Default bool
	Aliases []string
}

// Catalog holds a collection of ModelInfo entries and supports lookup,
// default resolution, and registration.
type Catalog struct {
	models []ModelInfo
}

// builtinModels returns the default set of known models.
func builtinModels() []ModelInfo {
	return []ModelInfo{
		{
			ID:                "claude-sonnet-4-5",
			Provider:          "anthropic",
			DisplayName:       "Claude Sonnet 4.5",
			ContextWindow:     200000,
			SupportsTools:     true,
			SupportsReasoning: true,
			Default:           true,
			Aliases:           []string{"sonnet", "claude-sonnet"},
		},
		{
			ID:                "claude-haiku-4-5",
			Provider:          "anthropic",
			DisplayName:       "Claude Haiku 4.5",
			ContextWindow:     200000,
			SupportsTools:     true,
			Aliases:           []string{"haiku", "claude-haiku"},
		},
		{
			ID:                "gpt-5.2",
			Provider:          "openai",
			DisplayName:       "GPT-5.2",
			ContextWindow:     1047576,
			SupportsTools:     true,
			SupportsReasoning: true,
			Default:           true,
			Aliases:           []string{"gpt5"},
		},
		{
			ID:                "gpt-5.2-mini",
			Provider:          "openai",
			DisplayName:       "GPT-5.2 Mini",
			ContextWindow:     1047576,
			SupportsTools:     true,
			SupportsReasoning: true,
			Aliases:           []string{"gpt5-mini"},
		},
	}
}

// DefaultCatalog returns a new Catalog pre-populated with built-in model
// definitions. Each call returns an independent copy so registrations on one
// catalog do not affect others.
func DefaultCatalog() *Catalog {
	return &Catalog{
		models: builtinModels(),
	}
}

// GetModelInfo looks up a model by its canonical ID or any of its aliases.
// Returns nil if no matching model is found.
func (c *Catalog) GetModelInfo(modelID string) *ModelInfo {
	for i := range c.models {
		if c.models[i].ID == modelID {
			return &c.models[i]
		}
		for _, alias := range c.models[i].Aliases {
			if alias == modelID {
				return &c.models[i]
			}
		}
	}
	return nil
}

// DefaultModel returns the default model for the given provider, or nil if
// the provider has none registered.
func (c *Catalog) DefaultModel(provider string) *ModelInfo {
	for i := range c.models {
		if c.models[i].Provider == provider && c.models[i].Default {
			return &c.models[i]
		}
	}
	return nil
}

// Resolve maps a requested model ID to a canonical catalog ID. Aliases
// resolve to their canonical ID. Unknown IDs fall back to the provider's
// default model; if the provider has no default either, the requested ID is
// returned unchanged and the provider decides its fate.
func (c *Catalog) Resolve(modelID, provider string) string {
	if info := c.GetModelInfo(modelID); info != nil {
		return info.ID
	}
	if def := c.DefaultModel(provider); def != nil {
		return def.ID
	}
	return modelID
}

// ListModels returns all models matching the given provider.
// If provider is empty, all models in the catalog are returned.
func (c *Catalog) ListModels(provider string) []ModelInfo {
	var result []ModelInfo
	for _, m := range c.models {
		if provider == "" || m.Provider == provider {
			result = append(result, m)
		}
	}
	return result
}

// Register adds a model to the catalog. If a model with the same ID already
// exists, it is replaced.
func (c *Catalog) Register(model ModelInfo) {
	for i := range c.models {
		if c.models[i].ID == model.ID {
			c.models[i] = model
			return
		}
	}
	c.models = append(c.models, model)
}
