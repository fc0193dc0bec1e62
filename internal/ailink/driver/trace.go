package driver

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Call describes one provider exchange for the trace log.
type Call struct {
	Driver   string
	Endpoint string
	Model    string
	Started  time.Time
	Request  any
	Status   int
	Response []byte
	Err      error
}

type traceLine struct {
	Timestamp  time.Time       `json:"timestamp"`
	Driver     string          `json:"driver"`
	Endpoint   string          `json:"endpoint"`
	Model      string          `json:"model,omitempty"`
	Request    json.RawMessage `json:"request_body,omitempty"`
	Status     int             `json:"status_code,omitempty"`
	Response   json.RawMessage `json:"response,omitempty"`
	Error      string          `json:"error,omitempty"`
	DurationMs int64           `json:"duration_ms"`
}

type traceSink struct {
	mu sync.Mutex
	w  io.WriteCloser
}

var sink atomic.Pointer[traceSink]

// EnableTracing appends one NDJSON line per provider call to path. The
// returned func stops tracing and closes the file.
func EnableTracing(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	TraceTo(f)
	return DisableTracing, nil
}

// TraceTo routes traces to w, closing any previous sink.
func TraceTo(w io.WriteCloser) {
	sink.Swap(&traceSink{w: w}).close()
}

// DisableTracing stops tracing.
func DisableTracing() {
	sink.Swap(nil).close()
}

// IsTracingEnabled reports whether a trace sink is installed.
func IsTracingEnabled() bool {
	return sink.Load() != nil
}

// Trace records c when tracing is enabled. The request is only marshaled
// when a sink is installed.
func Trace(c Call) {
	s := sink.Load()
	if s == nil {
		return
	}

	line := traceLine{
		Timestamp:  c.Started,
		Driver:     c.Driver,
		Endpoint:   c.Endpoint,
		Model:      c.Model,
		Status:     c.Status,
		DurationMs: time.Since(c.Started).Milliseconds(),
	}
	if c.Request != nil {
		line.Request, _ = json.Marshal(c.Request)
	}
	if json.Valid(c.Response) {
		line.Response = c.Response
	}
	if c.Err != nil {
		line.Error = c.Err.Error()
	}
	s.write(line)
}

func (s *traceSink) write(line traceLine) {
	data, err := json.Marshal(line)
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.w.Write(append(data, '\n'))
}

func (s *traceSink) close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.w.Close()
}
