// Package model runs model tasks against a configured backend.
//
// A Catalog holds per-model sampling parameters loaded from the model
// configuration file. A Router implements Caller and forwards each call to
// the provider named in the model's parameters (openai when unset).
//
// Usage:
//
//	catalog, err := model.NewCatalog(map[string]model.Params{
//		"gpt-4o-mini": {Preset: "precise", MaxTokens: 256},
//	})
//	router := model.NewRouter(nil, model.NewOpenAIProvider(key))
//	p, err := catalog.Lookup("gpt-4o-mini")
//	out, err := router.Complete(ctx, "gpt-4o-mini", "Say hi", p)
package model
