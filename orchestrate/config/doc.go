// Package config provides configuration structures for orchestration components.
//
// # Graph Configuration
//
// GraphConfig defines settings for state graph instances:
//
//	cfg := config.DefaultGraphConfig("conversation")
//	cfg.Observer = "noop"
//	cfg.Strict = true
//
//	graph, err := state.NewGraph[RequestState](cfg)
//
// # Design Principles
//
//   - Configuration only exists during initialization
//   - Does not persist into runtime components
//   - Validation happens at point of use (state package)
//   - No circular dependencies with domain packages
//
// # Configuration Merging
//
// All configuration types support a Merge pattern. This enables layered
// configuration where loaded configs merge over defaults:
//
//	cfg := config.DefaultGraphConfig("conversation")
//	var loaded config.GraphConfig
//	json.Unmarshal(data, &loaded)
//	cfg.Merge(&loaded)
//
// Merge semantics by field type:
//
//   - Strings: Merge if source is non-empty
//   - Integers: Merge if source is greater than zero
//   - Booleans with false defaults: Merge if source is true
//
// For boolean fields where the default is true, a pointer type (*bool) is
// used with an accessor method, so an omitted field in a partial config does
// not override the default. Fields follow the "Nil" suffix convention
// (e.g., EnabledNil with an Enabled() accessor).
package config
