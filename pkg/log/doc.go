// Package log provides qae's structured logging facade.
//
// The package exposes a small Logger interface with leveled methods and a
// simple Field type for structured context. Internally it is backed by Go's
// standard library slog handlers, which keeps output consistent while letting
// callers stay against this facade.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormat("text"),
//	)
//	l = l.With(log.Component("server"))
//	l.Info("server started", log.Str("addr", ":8080"))
//
// Use ApplyConfig to build a logger from a declarative Config, and
// RedirectStdLog to route stdlib log output through the facade.
package log
