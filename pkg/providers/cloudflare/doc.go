// Package cloudflare implements the Cloudflare-shaped provider adapter
// the model id is a path segment carried verbatim (raw
// slashes preserved, e.g. "@cf/meta/llama-3-8b-instruct"); streaming
// frames are data: {"response": "..."} lines with a [DONE] terminator.
package cloudflare
