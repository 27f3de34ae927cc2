package ansible

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Response is the single JSON object a module prints on stdout. Extra keys
// are merged into the top-level object.
type Response struct {
	Changed bool   `json:"changed"`
	Failed  bool   `json:"failed,omitempty"`
	Msg     string `json:"msg,omitempty"`

	Extra map[string]any `json:"-"`
}

// MarshalJSON flattens Extra into the top-level object. Declared fields win
// over colliding extra keys.
func (r Response) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Extra)+3)
	for k, v := range r.Extra {
		out[k] = v
	}
	out["changed"] = r.Changed
	if r.Failed {
		out["failed"] = true
	}
	if r.Msg != "" {
		out["msg"] = r.Msg
	}
	return json.Marshal(out)
}

// WriteResponse emits the response object followed by a newline.
func WriteResponse(w io.Writer, r Response) error {
	enc := json.NewEncoder(w)
	return enc.Encode(r)
}

// ExitJSON writes a success response to stdout and returns exit code 0.
func ExitJSON(w io.Writer, r Response) int {
	if err := WriteResponse(w, r); err != nil {
		fmt.Fprintf(os.Stderr, "write response: %v\n", err)
		return 1
	}
	return 0
}

// FailJSON writes a failure response to stdout and returns exit code 1.
func FailJSON(w io.Writer, msg string, extra map[string]any) int {
	_ = WriteResponse(w, Response{Failed: true, Msg: msg, Extra: extra})
	return 1
}

// logLevelEnv selects the stderr log level; silent when unset.
const logLevelEnv = "SOLARIUM_LOG"

// NewLogger builds the module logger: zerolog to stderr with a per-run
// correlation id. Stdout stays reserved for the response object.
func NewLogger(module string) zerolog.Logger {
	level := zerolog.Disabled
	if raw := os.Getenv(logLevelEnv); raw != "" {
		parsed, err := zerolog.ParseLevel(raw)
		if err == nil {
			level = parsed
		}
	}
	return zerolog.New(os.Stderr).
		Level(level).
		With().
		Timestamp().
		Str("module", module).
		Str("run_id", uuid.NewString()).
		Logger()
}

// Runtime measures module execution for the elapsed field modules report.
type Runtime struct {
	start time.Time
}

// StartRuntime begins timing a module run.
func StartRuntime() *Runtime {
	return &Runtime{start: time.Now()}
}

// Elapsed returns the wall-clock duration so far, rounded to milliseconds.
func (r *Runtime) Elapsed() string {
	return time.Since(r.start).Round(time.Millisecond).String()
}
