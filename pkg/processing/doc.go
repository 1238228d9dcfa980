// Package processing holds the token-estimation sub-package the
// orchestrator falls back to when an upstream response omits usage
// totals in its response body.
package processing
