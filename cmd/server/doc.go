// Package main is the entry point for the playground preview server.
//
// The server hosts playground workspaces: each holds three source buffers
// (markup, style, script), compiles them into one document and runs it in an
// isolation boundary with the inspector shim installed.
//
// The server provides:
//   - REST API for workspaces, sources, logs and element selection
//   - WebSocket streaming of preview events
//   - Prometheus metrics on /metrics
//   - Rate limiting and CORS
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - Defaults for development
//
// Usage:
//
//	# Production mode
//	./server -port 8000 -sandbox-timeout 2s
//
//	# Development mode (colored logs, debug level)
//	./server -dev -log-level debug
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
