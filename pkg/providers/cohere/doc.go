// Package cohere implements the Cohere-shaped provider adapter: messages
// mapped role-for-role to Cohere's v2 chat endpoint; streaming uses named
// SSE events content-delta (text deltas) and
// message-end (finish-reason, usage); unknown events are ignored.
package cohere
