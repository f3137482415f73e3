// Package config provides 12-factor configuration management for the preview service.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags can override environment variables for development flexibility.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host)
//   - Logging: Log level and output format
//   - RateLimit: Per-IP rate limiting configuration
//   - Sandbox: Isolation boundary limits (task timeout, call stack, queue)
//   - Preview: Rebuild debounce, subscriber buffers, workspace cap
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Server running on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// Environment Variables:
//   - PORT, HOST
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
//   - SANDBOX_TIMEOUT, SANDBOX_MAX_CALL_STACK, SANDBOX_QUEUE_SIZE
//   - PREVIEW_REBUILD_DEBOUNCE, PREVIEW_SUBSCRIBER_BUFFER, WORKSPACE_MAX
package config
