// Package logging configures structured logging on top of log/slog.
//
// # Usage
//
//	logger, err := logging.Setup(cfg.Telemetry.Logging, os.Stdout)
//	if err != nil {
//	    return err
//	}
//
//	ctx = logging.WithRequestID(ctx, decision.RequestID)
//	logger.InfoContext(ctx, "provider selected", "provider_id", decision.SelectedProvider)
//
// Records logged with a context automatically carry the request_id,
// provider_id and trace_id values stored in it.
package logging
