// Package llm provides an OpenAI-compatible chat client used for scene
// descriptions, narration scripts, metadata and voice profiles.
//
// CompleteJSON asks for a JSON object and returns the raw payload; callers
// decode it with DecodeLLMJSON, which tolerates code fences and prose around
// the object. CompleteText returns free-form text. HealthCheck verifies the
// API key and model.
//
// Transport retries (HTTP 408/429/5xx, network timeouts and empty
// completions) are handled by apiclient.Retrier with exponential backoff
// (base 1s, max 10s, up to 5 attempts by default). Context cancellation
// aborts retries immediately.
package llm
