package logging

import (
	"io"
	"os"

	"github.com/hashicorp/go-hclog"

	"github.com/TobiSchelling/kdramadb/internal/config"
)

// New builds the root logger from the logging config. Verbose forces debug.
func New(cfg config.Logging, verbose bool) hclog.Logger {
	return newWithOutput(cfg, verbose, os.Stderr)
}

func newWithOutput(cfg config.Logging, verbose bool, out io.Writer) hclog.Logger {
	level := hclog.LevelFromString(cfg.Level)
	if level == hclog.NoLevel {
		level = hclog.Info
	}
	if verbose {
		level = hclog.Debug
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:            "kdramadb",
		Level:           level,
		Output:          out,
		JSONFormat:      cfg.JSON,
		IncludeLocation: verbose,
	})
}
