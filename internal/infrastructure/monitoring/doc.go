/*
Package monitoring provides performance monitoring and metrics collection.

# Overview

This package implements Prometheus-based metrics collection for the
playground server, tracking HTTP requests, workspaces, preview boundaries,
the boundary message protocol and WebSocket streams.

# Features

- HTTP request metrics (latency, throughput, size)
- Workspace lifecycle metrics
- Boundary construction successes and failures
- Protocol messages by direction and type, drops by reason
- WebSocket connection metrics

Metrics implements the observer interfaces of packages bridge and
workspace, so it can be handed to them directly.

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	manager := workspace.NewManager(cfg, workspace.WithObserver(metrics))
*/
package monitoring
