package output

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
)

const prefix = "strato | "

// Mode controls output format.
type Mode int

const (
	ModeText Mode = iota
	ModeJSON
	ModeQuiet
)

// Writer handles all user-facing output.
type Writer struct {
	out  io.Writer
	err  io.Writer
	mode Mode
	now  func() time.Time // injectable clock for testing

	spin *spinner.Spinner
}

// New creates a Writer with the given mode, writing to stdout/stderr.
func New(mode Mode) *Writer {
	return &Writer{
		out:  os.Stdout,
		err:  os.Stderr,
		mode: mode,
		now:  time.Now,
	}
}

// NewWithWriters creates a Writer with explicit output targets (for testing).
func NewWithWriters(out, errOut io.Writer, mode Mode) *Writer {
	return &Writer{
		out:  out,
		err:  errOut,
		mode: mode,
		now:  time.Now,
	}
}

// SetClock overrides the time source (for testing).
func (w *Writer) SetClock(fn func() time.Time) {
	w.now = fn
}

// Info prints a strato-prefixed informational message.
func (w *Writer) Info(msg string) {
	switch w.mode {
	case ModeJSON:
		w.writeJSON("info", msg)
	case ModeQuiet:
		// suppress
	default:
		fmt.Fprintf(w.out, "%s%s\n", prefix, msg)
	}
}

// Infof prints a formatted strato-prefixed informational message.
func (w *Writer) Infof(format string, args ...any) {
	w.Info(fmt.Sprintf(format, args...))
}

// Success prints a green success message.
func (w *Writer) Success(msg string) {
	switch w.mode {
	case ModeJSON:
		w.writeJSON("success", msg)
	case ModeQuiet:
		// suppress
	default:
		fmt.Fprintf(w.out, "%s%s\n", prefix, GreenStyle.Render(msg))
	}
}

// Warn prints a yellow warning message.
func (w *Writer) Warn(msg string) {
	switch w.mode {
	case ModeJSON:
		w.writeJSON("warning", msg)
	case ModeQuiet:
		// suppress
	default:
		fmt.Fprintf(w.err, "%s%s\n", prefix, YellowStyle.Render(msg))
	}
}

// Hint prints a dimmed suggestion line.
func (w *Writer) Hint(msg string) {
	switch w.mode {
	case ModeJSON:
		w.writeJSON("hint", msg)
	case ModeQuiet:
		// suppress
	default:
		fmt.Fprintf(w.out, "%s%s\n", prefix, DimStyle.Render(msg))
	}
}

// Error prints a strato-prefixed error message with an optional fix suggestion.
func (w *Writer) Error(msg, fix string) {
	switch w.mode {
	case ModeJSON:
		w.writeJSONError(msg, fix)
	default:
		fmt.Fprintf(w.err, "%serror: %s\n", prefix, msg)
		if fix != "" {
			fmt.Fprintf(w.err, "%s%s\n", prefix, fix)
		}
	}
}

// StartSpinner begins an animated progress line. In JSON and quiet modes
// the message is emitted once (or suppressed) instead of animated.
func (w *Writer) StartSpinner(msg string) {
	switch w.mode {
	case ModeJSON:
		w.writeJSON("progress", msg)
	case ModeQuiet:
		// suppress
	default:
		if w.out != os.Stdout {
			// Non-terminal target (tests): plain line, no animation.
			fmt.Fprintf(w.out, "%s%s\n", prefix, msg)
			return
		}
		w.spin = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
		w.spin.Prefix = prefix
		w.spin.Suffix = " " + msg
		w.spin.Start()
	}
}

// UpdateSpinner replaces the spinner's message.
func (w *Writer) UpdateSpinner(msg string) {
	if w.spin != nil {
		w.spin.Suffix = " " + msg
		return
	}
	if w.mode == ModeJSON {
		w.writeJSON("progress", msg)
	}
}

// StopSpinner ends the spinner and prints the final line.
func (w *Writer) StopSpinner(msg string, ok bool) {
	if w.spin != nil {
		w.spin.Stop()
		w.spin = nil
	}
	if msg == "" {
		return
	}
	if ok {
		w.Success(msg)
	} else {
		w.Error(msg, "")
	}
}

func (w *Writer) writeJSON(msgType, msg string) {
	msg = strings.TrimRight(msg, "\n")
	obj := map[string]string{
		"type":      msgType,
		"message":   msg,
		"timestamp": w.now().UTC().Format(time.RFC3339),
	}
	data, err := json.Marshal(obj)
	if err != nil {
		slog.Error("failed to marshal JSON output", "error", err)
		return
	}
	fmt.Fprintln(w.out, string(data))
}

func (w *Writer) writeJSONError(msg, fix string) {
	msg = strings.TrimRight(msg, "\n")
	obj := map[string]string{
		"type":      "error",
		"message":   msg,
		"timestamp": w.now().UTC().Format(time.RFC3339),
	}
	if fix != "" {
		obj["fix"] = fix
	}
	data, err := json.Marshal(obj)
	if err != nil {
		slog.Error("failed to marshal JSON output", "error", err)
		return
	}
	fmt.Fprintln(w.out, string(data))
}

// SetupSlog configures slog for the given verbosity level.
// When verbose is true, debug-level messages are shown.
func SetupSlog(verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}
