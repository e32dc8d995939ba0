// Package apiclient holds the HTTP plumbing shared by the collaborator
// clients (LLM, image generation, speech): a single POST helper that tags
// requests with a correlation id, and a Retrier that backs off on 408, 429,
// 5xx and network timeouts.
package apiclient
