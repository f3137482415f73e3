// Package logging provides structured logging using uber/zap.
//
// The server logs JSON lines to stdout; development mode and playctl use
// the colored console encoder, playctl on stderr.
//
// Components take a *Logger and derive a tagged child with Component, so
// every line from the host bridge or a sandbox carries "component".
//
// Example Usage:
//
//	logger := logging.NewFromLevel("info", false)
//	logger.Info("server starting", zap.String("port", "8000"))
//	logger.Component("bridge").Debug("message dropped", zap.String("reason", "stale"))
package logging
