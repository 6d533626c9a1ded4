// Package config provides configuration management for Conduit.
//
// This package handles loading, validating, and watching configuration from
// YAML files with environment variable overrides. Every field has a default,
// so an empty file (or no file at all) yields a runnable configuration with
// the built-in provider catalog.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("conduit.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("conduit.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention CONDUIT_SECTION_FIELD.
// For example:
//
//   - CONDUIT_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - CONDUIT_ROUTING_STRATEGY overrides routing.strategy
//   - CONDUIT_PROVIDERS_GEMINI_PRO_RATE_LIMIT overrides the rate_limit of provider "gemini-pro"
//
// # Configuration Precedence
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Hot Reload
//
// Watcher observes the configuration file with fsnotify and delivers each
// valid reloaded configuration to a callback after a debounce period.
// Invalid edits are logged and discarded.
//
// # Example Configuration
//
//	server:
//	  listen_address: "0.0.0.0:8090"
//
//	providers:
//	  - id: gemini-pro
//	    cost_per_token: 0.000002
//	    rate_limit: 60
//	    specialties: [content_generation, seo, product_copy]
//	    priority: 3
//
//	routing:
//	  strategy: cost_first
//	  content_specialties:
//	    blog_post: [content_generation, long_form]
//	  circuit_breaker:
//	    failure_threshold: 5
//
//	usage:
//	  backend: sqlite
//	  sqlite:
//	    path: data/usage.db
package config
