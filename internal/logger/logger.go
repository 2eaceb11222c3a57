package logger

import (
	"encoding/json"
	"io"
	"log"
	"os"
	"regexp"
	"strings"
	"sync/atomic"
	"time"
)

type LogLevel string

const (
	DebugLevel LogLevel = "DEBUG"
	InfoLevel  LogLevel = "INFO"
	WarnLevel  LogLevel = "WARN"
	ErrorLevel LogLevel = "ERROR"
)

var rank = map[LogLevel]int32{DebugLevel: 0, InfoLevel: 1, WarnLevel: 2, ErrorLevel: 3}

// minRank is shared by every Logger; entries below it are dropped.
var minRank atomic.Int32

// SetLevel drops entries below level for all loggers.
func SetLevel(level LogLevel) {
	minRank.Store(rank[level])
}

// ParseLevel reads a level name case-insensitively, defaulting to INFO.
func ParseLevel(s string) LogLevel {
	level := LogLevel(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := rank[level]; ok {
		return level
	}
	return InfoLevel
}

// LogEntry is one JSON line.
type LogEntry struct {
	Time    string   `json:"time"`
	Level   LogLevel `json:"level"`
	Module  string   `json:"module,omitempty"`
	Message string   `json:"message"`
	Error   string   `json:"error,omitempty"`
}

type Logger struct {
	out *log.Logger
	now func() time.Time
}

// New creates a Logger writing to stdout
func New() *Logger {
	return NewWithWriter(os.Stdout)
}

// NewWithWriter creates a Logger writing JSON lines to w
func NewWithWriter(w io.Writer) *Logger {
	return &Logger{
		out: log.New(w, "", 0),
		now: time.Now,
	}
}

var redactions = []struct {
	re   *regexp.Regexp
	with string
}{
	{regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`), "[REDACTED_EMAIL]"},
	{regexp.MustCompile(`\btoken=[^\s;"]+`), "token=[REDACTED_TOKEN]"},
	{regexp.MustCompile(`eyJ[^\s"]+`), "[REDACTED_TOKEN]"},
	{regexp.MustCompile(`\$2[aby]\$\d\d\$[./A-Za-z0-9]{53}`), "[REDACTED_HASH]"},
	{regexp.MustCompile(`\buser_id\s*=\s*\d+\b`), "user_id=[USER_ID]"},
	{regexp.MustCompile(`\bpassword\d?\s*=\s*\S+`), "password=[REDACTED]"},
}

// Anonymize masks emails, session tokens, password hashes, user ids and
// passwords.
func Anonymize(s string) string {
	for _, r := range redactions {
		s = r.re.ReplaceAllString(s, r.with)
	}
	return s
}

func (l *Logger) log(module string, level LogLevel, msg string, err error) {
	if rank[level] < minRank.Load() {
		return
	}
	entry := LogEntry{
		Time:    l.now().UTC().Format(time.RFC3339),
		Level:   level,
		Module:  module,
		Message: Anonymize(msg),
	}
	if err != nil {
		entry.Error = Anonymize(err.Error())
	}
	data, _ := json.Marshal(entry)
	l.out.Println(string(data))
}

func (l *Logger) Debug(module, msg string) {
	l.log(module, DebugLevel, msg, nil)
}

func (l *Logger) Info(module, msg string) {
	l.log(module, InfoLevel, msg, nil)
}

func (l *Logger) Warn(module, msg string) {
	l.log(module, WarnLevel, msg, nil)
}

func (l *Logger) Error(module, msg string, err error) {
	l.log(module, ErrorLevel, msg, err)
}
