package cli

import (
	"github.com/spf13/cobra"

	"github.com/rshade/fetchcache/internal/config"
	"github.com/rshade/fetchcache/internal/logging"
)

// setupLogging builds the logger from the logging section and the --debug
// flag, then stores it with a trace ID on the command context.
func setupLogging(cmd *cobra.Command, loggingCfg config.LoggingConfig, debug bool) logging.LogPathResult {
	if debug {
		loggingCfg.Level = "debug"
		loggingCfg.Format = logging.FormatConsole
		loggingCfg.File = ""
	}

	lc := loggingCfg.ToLoggingConfig()
	var result logging.LogPathResult
	if lc.Output == logging.OutputFile {
		result = logging.NewLoggerWithPath(lc)
	} else {
		result = logging.LogPathResult{Logger: logging.NewLogger(lc, cmd.ErrOrStderr())}
	}
	logger = logging.ComponentLogger(result.Logger, "cli")

	if result.UsingFile {
		logging.PrintLogPathMessage(cmd.ErrOrStderr(), result.FilePath)
	} else if result.FallbackUsed {
		logging.PrintFallbackWarning(cmd.ErrOrStderr(), result.FallbackReason)
	}

	ctx := cmd.Context()
	traceID := logging.GetOrGenerateTraceID(ctx)
	ctx = logging.ContextWithTraceID(ctx, traceID)
	ctx = logger.WithContext(ctx)
	cmd.SetContext(ctx)

	logger.Debug().Str("command", cmd.Name()).Str("trace_id", traceID).Msg("command started")
	return result
}

// cleanupLogging closes the log file handle, if any.
func cleanupLogging(logResult *logging.LogPathResult) error {
	if logResult != nil {
		return logResult.Close()
	}
	return nil
}
