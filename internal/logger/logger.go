// Package logger builds the charm logger used for diagnostics on stderr.
package logger

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"

	errUtils "github.com/user/policycov/internal/errors"
)

// ParseLevel maps a level name to a log level. Empty means info.
func ParseLevel(name string) (log.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "info":
		return log.InfoLevel, nil
	case "debug":
		return log.DebugLevel, nil
	case "warn", "warning":
		return log.WarnLevel, nil
	case "error":
		return log.ErrorLevel, nil
	case "fatal":
		return log.FatalLevel, nil
	}
	return log.InfoLevel, errUtils.InvalidConfig("unknown log level %q (want debug, info, warn, error or fatal)", name)
}

// New returns a logger writing to w at the given level
func New(w io.Writer, level log.Level, noColor bool) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{
		Level:           level,
		ReportTimestamp: false,
		Prefix:          "policycov",
	})
	if noColor {
		logger.SetColorProfile(termenv.Ascii)
	}
	logger.SetStyles(styles())
	return logger
}

func styles() *log.Styles {
	s := log.DefaultStyles()
	s.Levels = map[log.Level]lipgloss.Style{
		log.DebugLevel: levelStyle("DEBUG", "#3F51B5", "#000000"),
		log.InfoLevel:  levelStyle("INFO", "#4CAF50", "#000000"),
		log.WarnLevel:  levelStyle("WARN", "#FF9800", "#000000"),
		log.ErrorLevel: levelStyle("ERROR", "#F44336", "#000000"),
		log.FatalLevel: levelStyle("FATAL", "#F44336", "#FFFFFF"),
	}
	s.Key = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666")).Bold(true)
	s.Separator = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999"))
	return s
}

func levelStyle(label, background, foreground string) lipgloss.Style {
	return lipgloss.NewStyle().
		SetString(label).
		Background(lipgloss.Color(background)).
		Foreground(lipgloss.Color(foreground)).
		Padding(0, 1)
}
