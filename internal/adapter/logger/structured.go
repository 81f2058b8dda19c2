package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// NewStructured returns a logger writing JSON lines to filePath and human
// readable text to stderr. The returned closer releases the log file.
func NewStructured(level logrus.Level, filePath string) (*logrus.Logger, io.Closer) {
	log := logrus.New()
	log.SetLevel(level)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stderr)

	if filePath == "" {
		return log, nopCloser{}
	}

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.WithError(err).Error("Could not create file for logging")
		return log, nopCloser{}
	}
	log.AddHook(&fileHook{w: file, formatter: &logrus.JSONFormatter{}})
	return log, file
}

// Level maps the verbosity flag to a logrus level
func Level(verbose bool) logrus.Level {
	if verbose {
		return logrus.DebugLevel
	}
	return logrus.InfoLevel
}

type fileHook struct {
	w         io.Writer
	formatter logrus.Formatter
}

func (h *fileHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *fileHook) Fire(e *logrus.Entry) error {
	line, err := h.formatter.Format(e)
	if err != nil {
		return err
	}
	_, err = h.w.Write(line)
	return err
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
