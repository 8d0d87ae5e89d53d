package utils

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/getsentry/sentry-go"
	"dv8.transit.org/internal/report"
)

// EnsureOutputDirectory makes sure dir exists and is a directory, creating it if necessary.
func EnsureOutputDirectory(dir string, logger *slog.Logger) error {
	if dir == "" || dir == "." {
		return nil
	}

	stat, err := os.Stat(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
				Level:        sentry.LevelError,
				ExtraContext: map[string]interface{}{"output_dir": dir},
			})
			return err
		}
		logger.Info("created output directory", "dir", dir)
		return nil
	}

	if !stat.IsDir() {
		err := fmt.Errorf("%s is not a directory", dir)
		report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
			Level:        sentry.LevelError,
			ExtraContext: map[string]interface{}{"output_dir": dir},
		})
		return err
	}
	return nil
}
