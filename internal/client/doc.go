// Package client is a Go client for the playground server API.
//
// Built on go-resty/resty:
//   - Idempotent requests retried on 5xx with backoff
//   - Circuit breaker over server faults (resilience.Breaker)
//   - Optional client-side rate limiting
//   - An X-Request-ID per call, shared by its retries
//   - WaitReady polls /health with hashicorp/go-retryablehttp
//   - Stream follows a workspace over its WebSocket
//
// Example Usage:
//
//	c := client.New(client.DefaultConfig("http://localhost:8000"))
//	info, err := c.CreateWorkspace(ctx, "counter")
//	logs, err := c.Logs(ctx, info.ID.String())
package client
