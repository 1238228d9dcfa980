// RelayMesh is an OpenAI-compatible LLM inference gateway.
//
// It accepts chat completion requests on a single HTTP surface and routes
// each one across many upstream model providers, providing:
//   - Smart routing over a dynamic model registry (free-tier first)
//   - Automatic fallback rotation on upstream failure, quota, or outage
//   - Circuit-breaker health tracking shared across requests
//   - Streaming pass-through with commit-on-first-chunk semantics
//   - Cost tracking, tenant budgets, and attempt-level audit evidence
//
// Usage:
//
//	# Start server with default configuration
//	relaymesh run
//
//	# Start with custom configuration file
//	relaymesh run --config /path/to/config.yaml
//
//	# Validate configuration without starting
//	relaymesh run --dry-run
//
//	# Show version information
//	relaymesh version
//
// For complete documentation, see: https://github.com/relaymesh/gateway
package main

func main() {
	Execute()
}
