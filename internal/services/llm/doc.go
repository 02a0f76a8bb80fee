// Package llm is the chat-completions client behind script generation and
// model-backed shot scoring. Every request asks for a JSON object reply.
//
// Failed requests are retried on HTTP 408, 429 and 5xx, on replies without
// content, and on network timeouts. Delays double from the configured base
// and honor Retry-After. Cancellation stops retrying at once.
//
// DecodeLLMJSON accepts replies wrapped in code fences or prose.
package llm
