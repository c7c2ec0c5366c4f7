package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// Logger is the structured logger used by every service. Action returns a
// derived logger tagged with the current operation, With attaches extra fields.
type Logger interface {
	Action(action string) Logger
	With(kv ...any) Logger
	WithGroup(name string) Logger
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, err error, kv ...any)
}

const (
	levelDebug = iota
	levelInfo
	levelWarn
	levelError
)

var levelNames = map[string]int{
	"DEBUG": levelDebug,
	"INFO":  levelInfo,
	"WARN":  levelWarn,
	"ERROR": levelError,
}

type jsonLogger struct {
	mu       *sync.Mutex
	level    int
	hostname string
	action   string
	group    string
	fields   []field
}

type field struct {
	key   string
	value any
}

// New creates a logger writing one JSON object per line to stdout.
func New(level string) (Logger, error) {
	lvl, ok := levelNames[strings.ToUpper(level)]
	if !ok {
		return nil, fmt.Errorf("unknown log level: %s", level)
	}
	hostname, _ := os.Hostname()
	return &jsonLogger{
		mu:       &sync.Mutex{},
		level:    lvl,
		hostname: hostname,
	}, nil
}

func (l *jsonLogger) clone() *jsonLogger {
	c := *l
	c.fields = append([]field(nil), l.fields...)
	return &c
}

func (l *jsonLogger) Action(action string) Logger {
	c := l.clone()
	c.action = action
	return c
}

func (l *jsonLogger) With(kv ...any) Logger {
	c := l.clone()
	c.fields = append(c.fields, toFields(c.group, kv)...)
	return c
}

func (l *jsonLogger) WithGroup(name string) Logger {
	c := l.clone()
	c.group = name
	return c
}

func (l *jsonLogger) Debug(msg string, kv ...any) { l.log(levelDebug, "DEBUG", msg, nil, kv) }
func (l *jsonLogger) Info(msg string, kv ...any)  { l.log(levelInfo, "INFO", msg, nil, kv) }
func (l *jsonLogger) Warn(msg string, kv ...any)  { l.log(levelWarn, "WARN", msg, nil, kv) }

func (l *jsonLogger) Error(msg string, err error, kv ...any) {
	l.log(levelError, "ERROR", msg, err, kv)
}

func (l *jsonLogger) log(lvl int, levelName, msg string, err error, kv []any) {
	if lvl < l.level {
		return
	}

	entry := map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"level":     levelName,
		"action":    l.action,
		"message":   msg,
		"hostname":  l.hostname,
	}
	for _, f := range l.fields {
		entry[f.key] = f.value
	}
	for _, f := range toFields(l.group, kv) {
		entry[f.key] = f.value
	}
	if err != nil {
		entry["error"] = err.Error()
	}

	data, merr := json.Marshal(entry)
	if merr != nil {
		return
	}

	l.mu.Lock()
	fmt.Println(string(data))
	l.mu.Unlock()
}

func toFields(group string, kv []any) []field {
	fields := make([]field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		if group != "" {
			key = group + "." + key
		}
		fields = append(fields, field{key: key, value: kv[i+1]})
	}
	return fields
}
