package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Config selects level, format, and destination.
type Config struct {
	// Level is one of trace, debug, info, warn, error. Default: info.
	Level string `yaml:"level"`
	// Format is "text" or "json". Default: text.
	Format string `yaml:"format"`
	// Output is "stdout" or "stderr". Default: stderr.
	Output string `yaml:"output"`
}

// New builds a logger from cfg. Unknown values fall back to the defaults.
func New(cfg Config) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(output(cfg.Output))
	log.SetLevel(parseLevel(cfg.Level))

	switch strings.ToLower(cfg.Format) {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}

// Discard returns a logger that drops everything. Used in tests and as the
// zero-value fallback.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// Component returns an entry tagged with the component name.
func Component(log *logrus.Logger, name string) *logrus.Entry {
	if log == nil {
		log = Discard()
	}
	return log.WithField("component", name)
}

func output(name string) io.Writer {
	if strings.EqualFold(name, "stdout") {
		return os.Stdout
	}
	return os.Stderr
}

func parseLevel(level string) logrus.Level {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}
