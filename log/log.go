// Logger bootstrap, so every package can log through github.com/pingcap/log with the level chosen at startup.
//
// There are four levels in use: ERROR, WARN, INFO, DEBUG.
// The default log output level is INFO, you can change it by:
// - call log.SetLevel()
// - set environment variable `LOG_LEVEL`
// - the log-level item of the config file, or the --log-level flag

package log

import (
	"strings"

	"github.com/pingcap/errors"
	pclog "github.com/pingcap/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Init builds a text logger at the given level and installs it as the global logger. Entries go to file, or to
// stdout when file is empty.
func Init(level, file string) error {
	cfg := &pclog.Config{
		Level:  strings.ToLower(level),
		Format: "text",
		File:   pclog.FileLogConfig{Filename: file},
	}
	lg, props, err := pclog.InitLogger(cfg, zap.AddStacktrace(zapcore.FatalLevel))
	if err != nil {
		return errors.Annotatef(err, "init logger with level %q", level)
	}
	pclog.ReplaceGlobals(lg, props)
	return nil
}

// SetLevel changes the level of the global logger.
func SetLevel(level string) error {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return errors.Annotatef(err, "bad log level %q", level)
	}
	pclog.SetLevel(l)
	return nil
}

// Sync flushes buffered log entries.
func Sync() {
	pclog.Sync()
}
