// Package config loads client settings.
//
// Settings come from a YAML profile with environment overrides, read through
// cleanenv. Profiles live in a directory (configs/ by default) and are looked
// up by name; Manager caches them. Without a profile every field takes its
// env-default.
//
// Usage:
//
//	manager, err := config.NewManager("configs")
//	cfg, err := manager.Load("default")
//	if err := cfg.Validate(); err != nil {
//		log.Fatal(err)
//	}
package config
