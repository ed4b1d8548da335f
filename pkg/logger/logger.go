package logger

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is a zerolog logger with typed fields. Errors are also handed to an
// optional collector that ships aggregated copies to Kafka.
type Logger struct {
	zl        zerolog.Logger
	collector *LogCollector
}

type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json or console
	Output     string // stdout, stderr, or file path
	TimeFormat string
}

func New(cfg *Config) (*Logger, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	if level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	out, err := openOutput(cfg.Output)
	if err != nil {
		return nil, err
	}

	tf := cfg.TimeFormat
	if tf == "" {
		tf = time.RFC3339Nano
	}
	zerolog.TimeFieldFormat = tf
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: tf}
	}

	zl := zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		CallerWithSkipFrameCount(3).
		Logger()
	return &Logger{zl: zl}, nil
}

func openOutput(target string) (io.Writer, error) {
	switch target {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}
	f, err := os.OpenFile(target, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// NewWithWriter builds a JSON logger on w at the given level.
func NewWithWriter(w io.Writer, level zerolog.Level) *Logger {
	return &Logger{zl: zerolog.New(w).Level(level).With().Timestamp().Logger()}
}

// With returns a child logger carrying fields on every entry. The collector is shared.
func (l *Logger) With(fields ...Field) *Logger {
	ctx := l.zl.With()
	for _, f := range fields {
		ctx = ctx.Interface(f.GetKeyValue())
	}
	return &Logger{zl: ctx.Logger(), collector: l.collector}
}

func (l *Logger) Debug(msg string, fields ...Field) { l.write(l.zl.Debug(), msg, fields) }
func (l *Logger) Info(msg string, fields ...Field)  { l.write(l.zl.Info(), msg, fields) }
func (l *Logger) Warn(msg string, fields ...Field)  { l.write(l.zl.Warn(), msg, fields) }

func (l *Logger) Error(msg string, fields ...Field) {
	l.write(l.zl.Error(), msg, fields)
	l.collect("error", msg, fields)
}

func (l *Logger) write(ev *zerolog.Event, msg string, fields []Field) {
	if ev == nil {
		return
	}
	for _, f := range fields {
		f.AddTo(ev)
	}
	ev.Msg(msg)
}

func (l *Logger) collect(level, msg string, fields []Field) {
	if l.collector == nil {
		return
	}
	caller := "unknown"
	if _, file, line, ok := runtime.Caller(2); ok {
		if i := strings.LastIndex(file, "BtcTrader/"); i >= 0 {
			file = file[i+len("BtcTrader/"):]
		}
		caller = fmt.Sprintf("%s:%d", file, line)
	}
	m := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		k, v := f.GetKeyValue()
		m[k] = v
	}
	l.collector.AddLog(level, msg, m, caller)
}

// AddCollector starts aggregating error entries; an existing collector is flushed first.
func (l *Logger) AddCollector(config *CollectionConfig) {
	if l.collector != nil {
		l.collector.Close()
	}
	l.collector = NewLogCollector(config)
}

// RemoveCollector flushes and detaches the collector.
func (l *Logger) RemoveCollector() {
	if l.collector != nil {
		l.collector.Close()
		l.collector = nil
	}
}

type fieldKind uint8

const (
	kindString fieldKind = iota
	kindInt
	kindFloat
	kindBool
	kindError
	kindAny
)

// Field is one structured key/value pair.
type Field struct {
	Key  string
	kind fieldKind
	str  string
	num  int64
	flt  float64
	err  error
	any  interface{}
}

// AddTo writes the field onto a zerolog event.
func (f Field) AddTo(ev *zerolog.Event) {
	switch f.kind {
	case kindString:
		ev.Str(f.Key, f.str)
	case kindInt:
		ev.Int64(f.Key, f.num)
	case kindFloat:
		ev.Float64(f.Key, f.flt)
	case kindBool:
		ev.Bool(f.Key, f.num == 1)
	case kindError:
		ev.AnErr(f.Key, f.err)
	default:
		ev.Interface(f.Key, f.any)
	}
}

// GetKeyValue returns the field as a plain pair; errors become their message.
func (f Field) GetKeyValue() (string, interface{}) {
	switch f.kind {
	case kindString:
		return f.Key, f.str
	case kindInt:
		return f.Key, f.num
	case kindFloat:
		return f.Key, f.flt
	case kindBool:
		return f.Key, f.num == 1
	case kindError:
		if f.err == nil {
			return f.Key, nil
		}
		return f.Key, f.err.Error()
	default:
		return f.Key, f.any
	}
}

func String(key, value string) Field          { return Field{Key: key, kind: kindString, str: value} }
func Int(key string, value int) Field         { return Field{Key: key, kind: kindInt, num: int64(value)} }
func Int64(key string, value int64) Field     { return Field{Key: key, kind: kindInt, num: value} }
func Float64(key string, value float64) Field { return Field{Key: key, kind: kindFloat, flt: value} }
func Error(err error) Field                   { return Field{Key: "error", kind: kindError, err: err} }
func Any(key string, value interface{}) Field { return Field{Key: key, kind: kindAny, any: value} }

func Bool(key string, v bool) Field {
	f := Field{Key: key, kind: kindBool}
	if v {
		f.num = 1
	}
	return f
}

// Duration logs d in milliseconds.
func Duration(key string, d time.Duration) Field {
	return Field{Key: key, kind: kindInt, num: d.Milliseconds()}
}

func Strings(key string, value []string) Field {
	return String(key, strings.Join(value, ","))
}
