package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/postpilot/postpilot/internal/ailink/driver"
	"github.com/postpilot/postpilot/internal/offline"
)

// errConfig marks failures to load or validate configuration.
var errConfig = stderrors.New("invalid configuration")

var exit = os.Exit

// ExitCodeFor maps a command error onto a foundry exit code.
func ExitCodeFor(err error) foundry.ExitCode {
	var perr *driver.ProviderError
	switch {
	case err == nil:
		return foundry.ExitFailure
	case stderrors.Is(err, errConfig):
		return foundry.ExitConfigInvalid
	case stderrors.Is(err, offline.ErrNotCached):
		return foundry.ExitFileNotFound
	case stderrors.Is(err, driver.ErrCircuitOpen),
		stderrors.Is(err, context.DeadlineExceeded),
		stderrors.As(err, &perr):
		return foundry.ExitExternalServiceUnavailable
	default:
		return foundry.ExitFailure
	}
}

// ExitWithCode logs err with the exit code's catalog metadata and exits. A nil
// logger falls back to stderr.
func ExitWithCode(logger *logging.Logger, code foundry.ExitCode, msg string, err error) {
	if logger == nil {
		ExitWithCodeStderr(code, msg, err)
		return
	}
	fields := exitFields(code)
	fields = append(fields, envelopeFields(err)...)
	logger.Error(msg, append(fields, zap.Error(err))...)
	exit(int(code))
}

// ExitWithCodeStderr reports to stderr and exits. Used before logging is up.
func ExitWithCodeStderr(code foundry.ExitCode, msg string, err error) {
	writeExitReport(os.Stderr, code, msg, err)
	exit(int(code))
}

func exitFields(code foundry.ExitCode) []zap.Field {
	info, ok := foundry.GetExitCodeInfo(code)
	if !ok {
		return []zap.Field{zap.Int("exit_code", int(code))}
	}
	return []zap.Field{
		zap.Int("exit_code", info.Code),
		zap.String("exit_name", info.Name),
		zap.String("exit_category", info.Category),
	}
}

func envelopeFields(err error) []zap.Field {
	var envelope *errors.ErrorEnvelope
	if !stderrors.As(err, &envelope) || envelope == nil {
		return nil
	}
	fields := []zap.Field{
		zap.String("error_code", envelope.Code),
		zap.String("correlation_id", envelope.CorrelationID),
	}
	if len(envelope.Context) > 0 {
		fields = append(fields, zap.Any("error_context", envelope.Context))
	}
	return fields
}

func writeExitReport(w io.Writer, code foundry.ExitCode, msg string, err error) {
	var envelope *errors.ErrorEnvelope
	switch {
	case err == nil:
		fmt.Fprintf(w, "FATAL: %s\n", msg)
	case stderrors.As(err, &envelope) && envelope != nil:
		fmt.Fprintf(w, "FATAL: %s [%s]: %s\n", msg, envelope.Code, envelope.Message)
		if wrapped, ok := envelope.Context["wrapped_error"]; ok {
			fmt.Fprintf(w, "  cause: %v\n", wrapped)
		}
	default:
		fmt.Fprintf(w, "FATAL: %s: %v\n", msg, err)
	}

	if info, ok := foundry.GetExitCodeInfo(code); ok {
		fmt.Fprintf(w, "exit %d (%s): %s\n", info.Code, info.Name, info.Description)
	} else {
		fmt.Fprintf(w, "exit %d\n", code)
	}
}
