package pipeline

import (
	"bytes"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RunLog collects the log lines of one run. Its logger writes to the run's
// buffer and to the process logger; nothing else sees the buffer.
type RunLog struct {
	mu     sync.Mutex
	buf    bytes.Buffer
	logger *zap.Logger
}

// NewRunLog tees base into a fresh buffer. A nil base logs to the buffer only.
func NewRunLog(base *zap.Logger) *RunLog {
	rl := &RunLog{}
	enc := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:          "time",
		LevelKey:         "level",
		MessageKey:       "msg",
		EncodeTime:       zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05"),
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " - ",
	})
	core := zapcore.NewCore(enc, zapcore.AddSync(rl), zapcore.InfoLevel)
	if base != nil {
		core = zapcore.NewTee(base.Core(), core)
	}
	rl.logger = zap.New(core)
	return rl
}

func (r *RunLog) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.Write(p)
}

// Logger returns the run-scoped logger.
func (r *RunLog) Logger() *zap.Logger { return r.logger }

// String returns everything logged so far.
func (r *RunLog) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.String()
}
