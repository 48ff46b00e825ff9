package app

import (
	"fmt"
	"io"
	"strings"

	log "github.com/sirupsen/logrus"
)

func parseLevel(level string) (log.Level, error) {
	if strings.TrimSpace(level) == "" {
		return log.InfoLevel, nil
	}
	parsed, err := log.ParseLevel(level)
	if err != nil {
		return log.InfoLevel, fmt.Errorf("unsupported log_level %q", level)
	}
	return parsed, nil
}

// ConfigureLogging настраивает глобальный logrus: уровень, формат и вывод.
func ConfigureLogging(cfg Config, out io.Writer) error {
	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}

	switch cfg.LogFormat {
	case LogFormatJSON:
		log.SetFormatter(&log.JSONFormatter{})
	case LogFormatText, "":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("unsupported log_format %q", cfg.LogFormat)
	}

	if out != nil {
		log.SetOutput(out)
	}
	log.SetLevel(level)
	return nil
}
