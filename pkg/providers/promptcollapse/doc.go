// Package promptcollapse implements the prompt-collapse provider family
// providers that accept only a single prompt string.
// Messages are concatenated into "role: content\n" lines and posted as a
// plain-text body to "/"; streaming is line-buffered raw text with no
// framing of any kind.
package promptcollapse
