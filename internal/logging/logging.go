// Package logging builds the diagnostics logger used by the CLI.
package logging

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

// Options select the output shape.
type Options struct {
	// JSON forces JSON output even on a terminal.
	JSON bool
	// Verbose enables debug messages.
	Verbose bool
	// Writer defaults to os.Stderr.
	Writer io.Writer
}

// New returns a logger writing to opts.Writer. Console encoding is used when
// the writer is a terminal and JSON was not requested.
func New(opts Options) *zap.SugaredLogger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	level := zap.InfoLevel
	if opts.Verbose {
		level = zap.DebugLevel
	}

	var enc zapcore.Encoder
	if !opts.JSON && IsTerminal(w) {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		enc = zapcore.NewConsoleEncoder(cfg)
	} else {
		enc = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}
	core := zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(w)), level)
	return zap.New(core).Sugar()
}

// IsTerminal reports whether w is a file attached to a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
