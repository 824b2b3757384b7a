// Package wakeutil provides the shared logging, error wrapping, and
// configuration types used across the build pipeline.
package wakeutil

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level is a log severity.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

var levelNames = map[Level]string{
	Debug: "DEBUG",
	Info:  "INFO",
	Warn:  "WARN",
	Error: "ERROR",
}

var levelColors = map[Level]string{
	Debug: "\033[36m",
	Info:  "\033[32m",
	Warn:  "\033[33m",
	Error: "\033[31m",
}

const colorReset = "\033[0m"

// Field is a structured key/value attribute, logged after the message.
type Field struct {
	Key   string
	Value interface{}
}

func (f Field) format() string {
	switch v := f.Value.(type) {
	case string:
		return fmt.Sprintf("%q", v)
	case error:
		return fmt.Sprintf("%q", v.Error())
	case time.Duration:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

func String(key, value string) Field   { return Field{key, value} }
func Int(key string, value int) Field  { return Field{key, value} }
func Int64(key string, v int64) Field  { return Field{key, v} }
func Err(err error) Field              { return Field{"error", err} }
func Duration(key string, d time.Duration) Field { return Field{key, d} }
func Any(key string, v interface{}) Field        { return Field{key, v} }

// Logger is a leveled, component-scoped, optionally colorized sink.
// With(component) returns a new Logger whose component name is the
// parent's extended with a dotted suffix; level, output and colorization
// are copied from the parent.
type Logger struct {
	mu        sync.Mutex
	level     Level
	component string
	output    io.Writer
	colorize  bool
}

type Config struct {
	Level     Level
	Component string
	Output    io.Writer
	Colorize  bool
}

func New(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	return &Logger{level: cfg.Level, component: cfg.Component, output: cfg.Output, colorize: cfg.Colorize}
}

func Default(component string) *Logger {
	return New(Config{Level: Info, Component: component, Output: os.Stderr, Colorize: true})
}

// With returns a logger scoped to a sub-component, e.g.
// driver.With("job-scheduler").
func (l *Logger) With(component string) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	sub := l.component
	if sub != "" {
		sub += "." + component
	} else {
		sub = component
	}
	return &Logger{level: l.level, component: sub, output: l.output, colorize: l.colorize}
}

func (l *Logger) Debug(msg string, fields ...Field) { l.log(Debug, msg, fields...) }
func (l *Logger) Info(msg string, fields ...Field)  { l.log(Info, msg, fields...) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.log(Warn, msg, fields...) }
func (l *Logger) Error(msg string, fields ...Field) { l.log(Error, msg, fields...) }

func (l *Logger) log(level Level, msg string, fields ...Field) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level {
		return
	}

	var b strings.Builder
	if l.colorize {
		b.WriteString(levelColors[level])
	}
	b.WriteString("[")
	b.WriteString(time.Now().Format("15:04:05.000"))
	b.WriteString("] [")
	b.WriteString(fmt.Sprintf("%-5s", levelNames[level]))
	b.WriteString("] ")
	if l.component != "" {
		b.WriteString("[")
		b.WriteString(l.component)
		b.WriteString("] ")
	}
	b.WriteString(msg)
	for _, f := range fields {
		b.WriteString(" ")
		b.WriteString(f.Key)
		b.WriteString("=")
		b.WriteString(f.format())
	}
	if l.colorize {
		b.WriteString(colorReset)
	}
	b.WriteString("\n")
	l.output.Write([]byte(b.String()))
}
