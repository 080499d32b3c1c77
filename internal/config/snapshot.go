package config

// Snapshot is an immutable view of the configuration resolved once per send
// operation. Components on the send path read the snapshot, never the live
// config, so a concurrent settings update cannot race a send in flight.
type Snapshot struct {
	ServerURL   string
	Model       string
	Temperature float64
	Keys        ProviderKeys
	bindings    map[string]string
	customIDs   map[string]struct{}
}

// Snapshot resolves the current configuration into an immutable snapshot.
// Custom providers are read from disk once; the result does not observe
// later config changes.
func (c *Config) Snapshot() Snapshot {
	bindings := make(map[string]string, len(c.ModelBindings))
	for model, provider := range c.ModelBindings {
		bindings[model] = provider
	}

	customIDs := make(map[string]struct{})
	if providers, err := NewCustomProviderManager(DataDir(c)).Load(); err == nil {
		for i := range providers {
			customIDs[providers[i].ID] = struct{}{}
		}
	}

	return Snapshot{
		ServerURL:   c.EffectiveServerURL(),
		Model:       c.EffectiveModel(),
		Temperature: c.EffectiveTemperature(),
		Keys:        c.Keys,
		bindings:    bindings,
		customIDs:   customIDs,
	}
}

// Binding returns the provider bound to a custom model name, and whether the
// model is present in the user's custom-model list at all.
func (s Snapshot) Binding(model string) (provider string, ok bool) {
	provider, ok = s.bindings[model]
	return provider, ok
}

// HasCustomProvider reports whether the given ID names a user-defined
// custom provider.
func (s Snapshot) HasCustomProvider(id string) bool {
	_, ok := s.customIDs[id]
	return ok
}
