package testlog

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/danmuck/apptree/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Start configures test logging and returns a logger that writes through t.
func Start(t *testing.T) zerolog.Logger {
	t.Helper()
	logging.ConfigureTests()
	logger := zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel)
	log.Debug().Str("test", t.Name()).Msg("start")
	return logger
}

// Entry is one captured log line.
type Entry struct {
	Level   string `json:"level"`
	App     string `json:"app"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Recorder captures JSON log lines for assertions. It is safe for
// concurrent writers.
type Recorder struct {
	mu      sync.Mutex
	partial bytes.Buffer
	entries []Entry
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

// Logger returns a debug-level JSON logger writing into r.
func (r *Recorder) Logger() zerolog.Logger {
	return zerolog.New(r).Level(zerolog.DebugLevel)
}

func (r *Recorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.partial.Write(p)
	for {
		line, err := r.partial.ReadBytes('\n')
		if err != nil {
			r.partial.Write(line)
			break
		}
		var e Entry
		if json.Unmarshal(line, &e) == nil {
			r.entries = append(r.entries, e)
		}
	}
	return len(p), nil
}

// Entries returns a copy of the captured lines.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Has reports whether app logged msg.
func (r *Recorder) Has(app, msg string) bool {
	return r.Count(app, msg) > 0
}

// Count returns how many times app logged msg.
func (r *Recorder) Count(app, msg string) int {
	n := 0
	for _, e := range r.Entries() {
		if e.App == app && e.Message == msg {
			n++
		}
	}
	return n
}

// Messages returns the messages logged by app in order.
func (r *Recorder) Messages(app string) []string {
	var out []string
	for _, e := range r.Entries() {
		if e.App == app {
			out = append(out, e.Message)
		}
	}
	return out
}

// Dump renders every captured line, for failure messages.
func (r *Recorder) Dump() string {
	var b strings.Builder
	for _, e := range r.Entries() {
		b.WriteString(e.Level + " " + e.App + " " + e.Message)
		if e.Error != "" {
			b.WriteString(" err=" + e.Error)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
