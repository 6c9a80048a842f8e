package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// AutoFile makes Setup pick a timestamped file under the logs directory.
const AutoFile = "auto"

type UTCFormatter struct {
	logrus.Formatter
}

func (u UTCFormatter) Format(e *logrus.Entry) ([]byte, error) {
	e.Time = e.Time.UTC()
	return u.Formatter.Format(e)
}

// NewLogger builds a logger writing UTC timestamped text to out.
func NewLogger(out io.Writer, level string) (*logrus.Logger, error) {
	log := logrus.New()

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	log.SetLevel(lvl)
	log.SetOutput(out)
	log.SetFormatter(UTCFormatter{&logrus.TextFormatter{FullTimestamp: true}})

	return log, nil
}

// Setup configures the standard logrus logger. An empty fileName logs to stderr; the
// returned close function must be called on exit.
func Setup(level, fileName string) (func() error, error) {
	var (
		out     io.Writer = os.Stderr
		closeFn           = func() error { return nil }
	)

	if fileName != "" {
		if fileName == AutoFile {
			logsDir := "logs"
			if err := os.MkdirAll(logsDir, 0o755); err != nil {
				return nil, fmt.Errorf("cannot create logs dir: %w", err)
			}
			fileName = filepath.Join(logsDir, fmt.Sprintf("logfile-%s.log", time.Now().UTC().Format("020120061504")))
		}

		file, err := os.OpenFile(fileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, fmt.Errorf("cannot open log file %q: %w", fileName, err)
		}
		out = file
		closeFn = file.Close
	}

	std, err := NewLogger(out, level)
	if err != nil {
		_ = closeFn()
		return nil, err
	}

	logrus.SetLevel(std.GetLevel())
	logrus.SetOutput(std.Out)
	logrus.SetFormatter(std.Formatter)

	return closeFn, nil
}
