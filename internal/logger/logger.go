// Package logger provides a thread-safe in-memory notice feed. The renderer
// reads it to show user-visible notices (install a wallet, run the one-time
// setup, a submission failed) while operator diagnostics go to the standard
// log package.
package logger

import (
	"sync"
	"time"

	"github.com/gotuzzoj23/SolanaDApp/internal/types"
)

// Message represents a single notice
type Message struct {
	Timestamp time.Time         `json:"timestamp"`
	Text      string            `json:"text"`
	Level     string            `json:"level"`          // info, warning, error
	Code      types.FailureKind `json:"code,omitempty"` // machine-readable notice kind
	OpID      string            `json:"op_id,omitempty"`
	Blocking  bool              `json:"blocking,omitempty"` // renderer must prompt before continuing
}

// Logger manages in-memory notices
type Logger struct {
	mu       sync.RWMutex
	messages []Message
	maxSize  int
}

// New creates a new logger with specified max message count
func New(maxSize int) *Logger {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &Logger{
		messages: make([]Message, 0, maxSize),
		maxSize:  maxSize,
	}
}

// Log adds a new message to the logger
func (l *Logger) Log(level, text string) {
	l.Append(Message{Level: level, Text: text})
}

// Append stores msg, stamping its timestamp when unset.
func (l *Logger) Append(msg Message) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	if msg.Level == "" {
		msg.Level = "info"
	}

	l.messages = append(l.messages, msg)

	// Keep only the last maxSize messages
	if len(l.messages) > l.maxSize {
		l.messages = l.messages[len(l.messages)-l.maxSize:]
	}
}

// Info logs an info-level message
func (l *Logger) Info(text string) {
	l.Log("info", text)
}

// Warning logs a warning-level message
func (l *Logger) Warning(text string) {
	l.Log("warning", text)
}

// Error logs an error-level message
func (l *Logger) Error(text string) {
	l.Log("error", text)
}

// Notice logs a coded message tied to an operation.
func (l *Logger) Notice(level string, code types.FailureKind, opID, text string) {
	l.Append(Message{Level: level, Code: code, OpID: opID, Text: text})
}

// Prompt logs a blocking notice the renderer must surface as a prompt.
func (l *Logger) Prompt(code types.FailureKind, text string) {
	l.Append(Message{Level: "error", Code: code, Text: text, Blocking: true})
}

// GetRecent returns the most recent n messages (newest first)
func (l *Logger) GetRecent(n int) []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n > len(l.messages) {
		n = len(l.messages)
	}

	// Return in reverse order (newest first)
	result := make([]Message, n)
	for i := 0; i < n; i++ {
		result[i] = l.messages[len(l.messages)-1-i]
	}

	return result
}

// GetAll returns all messages (newest first)
func (l *Logger) GetAll() []Message {
	return l.GetRecent(l.Len())
}

// Len returns the number of stored messages
func (l *Logger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

// Since returns messages newer than t, oldest first.
func (l *Logger) Since(t time.Time) []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Message
	for _, msg := range l.messages {
		if msg.Timestamp.After(t) {
			out = append(out, msg)
		}
	}
	return out
}
