package verible

import (
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/go-logr/logr"
	"github.com/hashicorp/go-hclog"
)

// NewLogger returns a logr.Logger writing through hclog. V(1) and above
// map to hclog's debug level.
func NewLogger(name, level string, w io.Writer) (logr.Logger, error) {
	lvl := hclog.LevelFromString(level)
	if lvl == hclog.NoLevel {
		return logr.Discard(), fmt.Errorf("unknown log level %q", level)
	}

	opts := &hclog.LoggerOptions{
		Name:   name,
		Level:  lvl,
		Output: w,
	}
	// hclog can only detect terminals on files.
	if _, ok := w.(*os.File); ok {
		opts.Color = hclog.AutoColor
	}
	logger := hclog.New(opts)
	return logr.New(&hclogSink{logger: logger}), nil
}

type hclogSink struct {
	logger hclog.Logger
}

func (s *hclogSink) Init(info logr.RuntimeInfo) {}

func (s *hclogSink) Enabled(level int) bool {
	if level > 0 {
		return s.logger.IsDebug()
	}
	return s.logger.IsInfo()
}

func (s *hclogSink) Info(level int, msg string, keysAndValues ...interface{}) {
	if level > 0 {
		s.logger.Debug(msg, keysAndValues...)
		return
	}
	s.logger.Info(msg, keysAndValues...)
}

func (s *hclogSink) Error(err error, msg string, keysAndValues ...interface{}) {
	if err != nil {
		keysAndValues = append(slices.Clip(keysAndValues), "error", err)
	}
	s.logger.Error(msg, keysAndValues...)
}

func (s *hclogSink) WithValues(keysAndValues ...interface{}) logr.LogSink {
	return &hclogSink{logger: s.logger.With(keysAndValues...)}
}

func (s *hclogSink) WithName(name string) logr.LogSink {
	return &hclogSink{logger: s.logger.Named(name)}
}
