// Package server assembles the playground service: configuration, logging,
// metrics, the workspace manager and the gin router with its middleware,
// REST handlers and WebSocket stream.
package server
