package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// SetupLogging returns a JSON logger writing to stderr, leaving stdout to
// command output. An empty level means info.
func SetupLogging(level string) (*logrus.Logger, error) {
	return NewLogger(os.Stderr, level)
}

func NewLogger(out io.Writer, level string) (*logrus.Logger, error) {
	lvl := logrus.InfoLevel
	if level != "" {
		parsed, err := logrus.ParseLevel(level)
		if err != nil {
			return nil, err
		}
		lvl = parsed
	}

	logger := logrus.Logger{
		Formatter: &logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyLevel: "loglevel",
			},
		},
		Hooks:    make(logrus.LevelHooks),
		Out:      out,
		Level:    lvl,
		ExitFunc: os.Exit,
	}

	return &logger, nil
}
