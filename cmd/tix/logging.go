package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"tix/internal/config"
)

const logLevelEnvKey = "TIX_LOG_LEVEL"

type levelSource string

const (
	levelFromDefault levelSource = "default"
	levelFromFlag    levelSource = "flag"
	levelFromEnv     levelSource = "env"
	levelFromConfig  levelSource = "config"
)

// levelChoice is the raw log level that won the flag > env > config order.
type levelChoice struct {
	raw    string
	source levelSource
}

func chooseLogLevel(flagLevel, envLevel, configLevel string) levelChoice {
	for _, c := range []levelChoice{
		{raw: flagLevel, source: levelFromFlag},
		{raw: envLevel, source: levelFromEnv},
		{raw: configLevel, source: levelFromConfig},
	} {
		if strings.TrimSpace(c.raw) != "" {
			return c
		}
	}
	return levelChoice{source: levelFromDefault}
}

// configureLoggerForCLI installs the default logger. An invalid --log-level
// is an error; an invalid env or config value falls back to the default
// level and returns a warning for the user.
func configureLoggerForCLI(flagLevel, configLevel string) (string, error) {
	choice := chooseLogLevel(flagLevel, os.Getenv(logLevelEnvKey), configLevel)

	level, err := parseLogLevel(choice.raw)
	if err == nil {
		slog.SetDefault(newLogger(level))
		return "", nil
	}

	var warning string
	switch choice.source {
	case levelFromFlag:
		return "", fmt.Errorf("invalid --log-level %q", choice.raw)
	case levelFromEnv:
		warning = fmt.Sprintf("warning: invalid %s=%q; defaulting to %s", logLevelEnvKey, choice.raw, config.DefaultLogLevel)
	case levelFromConfig:
		warning = fmt.Sprintf("warning: invalid log_level=%q; defaulting to %s", choice.raw, config.DefaultLogLevel)
	}
	fallback, _ := parseLogLevel(config.DefaultLogLevel)
	slog.SetDefault(newLogger(fallback))
	return warning, nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case "":
		value = config.DefaultLogLevel
	case "warning":
		value = "warn"
	}

	if numeric, err := strconv.Atoi(value); err == nil {
		return slog.Level(numeric), nil
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return slog.LevelWarn, fmt.Errorf("invalid log level %q", raw)
	}
	return level, nil
}

// newLogger writes text records to stderr. Debug output carries source
// positions.
func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	}))
}
