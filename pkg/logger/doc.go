// Package logger provides structured logging for the crawler plugins.
//
// It wraps zerolog behind the Logger interface so that components can be
// handed a TestLogger in tests. Console output is colored and written to
// stderr; when LoggingConfig.File is set, JSON entries are additionally
// written to a file rotated by lumberjack (MaxSize in MB, MaxBackups,
// MaxAge in days, Compress).
//
//	err := logger.Initialize(&cfg.Logging)
//	logger.WithField("plugin", "followers").Info("Plugin started")
//
//	log := logger.GetLogger().WithField("component", "guard")
//	log.InfoWithFields("Endpoint quota exhausted", map[string]interface{}{
//	    "endpoint": "users_info",
//	    "wait":     11 * time.Hour,
//	})
package logger
