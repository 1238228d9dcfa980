// Package google implements the Google-shaped provider adapter: system
// messages are hoisted into a separate systemInstruction field, other
// messages become {role, parts:[{text}]} with role mapped
// user->user, assistant->model. Streaming uses ?alt=sse; each SSE frame
// contains a wrapped {response:{candidates:[{content:{role,parts:[{text}]}}]}}
// and text is extracted from each candidate's parts.
//
// Follows the anthropic adapter's shape: HTTPProvider embedding with
// separate transform/streaming files per vendor wire format.
package google
