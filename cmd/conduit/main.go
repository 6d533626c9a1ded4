// Conduit is a routing core that picks the content-generation provider best
// suited to each request.
//
// It scores the providers of a catalog on cost, performance, reliability and
// content specialization, tracks their health with per-provider circuit
// breakers, enforces per-provider rate limits, and records usage for cost
// analytics. Callers ask Conduit which provider to use, perform the call
// themselves, and report the outcome back.
//
// Usage:
//
//	# Start the HTTP API with default configuration
//	conduit run
//
//	# Start with a configuration file, reloading it on change
//	conduit run --config /etc/conduit/config.yaml --watch
//
//	# Validate a configuration file
//	conduit validate --config config.yaml
//
//	# Preview a selection without starting the server
//	conduit select --content-type blog_post --tokens 1500
//
//	# Inspect and prune recorded usage
//	conduit usage list --since 2026-01-01T00:00:00Z --format csv
//	conduit usage prune
package main

func main() {
	Execute()
}
