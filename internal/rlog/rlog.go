// Copyright 2014 The go-probeum Authors
// This file is part of the go-probeum library.
//
// The go-probeum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-probeum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-probeum library. If not, see <http://www.gnu.org/licenses/>.

// Package rlog is the structured, leveled logger used across the relay
// node: key/value pairs trailing a short message, a global root logger,
// and a handful of package-level helpers (Info/Warn/Error/Debug/Trace) so
// call sites never have to carry a logger value around explicitly.
package rlog

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/go-stack/stack"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Lvl is the level of a log line, ordered from most to least severe.
type Lvl int

const (
	LvlCrit Lvl = iota
	LvlError
	LvlWarn
	LvlInfo
	LvlDebug
	LvlTrace
)

func (l Lvl) String() string {
	switch l {
	case LvlCrit:
		return "CRIT"
	case LvlError:
		return "ERROR"
	case LvlWarn:
		return "WARN"
	case LvlInfo:
		return "INFO"
	case LvlDebug:
		return "DEBUG"
	case LvlTrace:
		return "TRACE"
	default:
		return "UNKNOWN"
	}
}

var lvlColor = map[Lvl]*color.Color{
	LvlCrit:  color.New(color.FgMagenta, color.Bold),
	LvlError: color.New(color.FgRed),
	LvlWarn:  color.New(color.FgYellow),
	LvlInfo:  color.New(color.FgGreen),
	LvlDebug: color.New(color.FgCyan),
	LvlTrace: color.New(color.FgWhite),
}

// Logger emits leveled, key/value structured lines. It is safe for
// concurrent use; every write is serialized behind a single mutex, since
// the fan-out goroutines in the monitor log far more than they block on
// I/O.
type Logger struct {
	mu      sync.Mutex
	out     io.Writer
	color   bool
	ctx     []interface{} // key/value pairs bound via New(), prefixed to every line
	minimum Lvl
}

// root is the process-wide default logger backing the package-level
// Info/Warn/... convenience functions.
var root = newLogger(os.Stderr)

func newLogger(w io.Writer) *Logger {
	useColor := false
	if f, ok := w.(*os.File); ok {
		useColor = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	out := w
	if useColor {
		if f, ok := w.(*os.File); ok {
			out = colorable.NewColorable(f)
		}
	}
	return &Logger{out: out, color: useColor, minimum: LvlInfo}
}

// SetOutput redirects the root logger (for example to a file) and turns
// off color. Loggers already created by New keep their previous writer.
func SetOutput(w io.Writer) { root.mu.Lock(); root.out = w; root.color = false; root.mu.Unlock() }

// SetLevel adjusts the minimum level the root logger will emit.
func SetLevel(l Lvl) { root.mu.Lock(); root.minimum = l; root.mu.Unlock() }

// New returns a child logger with ctx bound to every subsequent line.
func New(ctx ...interface{}) *Logger {
	return &Logger{out: root.out, color: root.color, minimum: root.minimum, ctx: append([]interface{}{}, ctx...)}
}

func (l *Logger) write(lvl Lvl, msg string, ctx []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lvl > l.minimum {
		return
	}
	call := stack.Caller(2)
	ts := time.Now().Format("2006-01-02T15:04:05.000-0700")
	levelStr := lvl.String()
	if l.color {
		if c, ok := lvlColor[lvl]; ok {
			levelStr = c.Sprint(levelStr)
		}
	}
	fmt.Fprintf(l.out, "%s [%s] %-5s %-32s", ts, fmt.Sprintf("%+v", call), levelStr, msg)
	all := append(append([]interface{}{}, l.ctx...), ctx...)
	for i := 0; i+1 < len(all); i += 2 {
		fmt.Fprintf(l.out, " %v=%v", all[i], all[i+1])
	}
	if len(all)%2 == 1 {
		fmt.Fprintf(l.out, " %v=MISSING", all[len(all)-1])
	}
	fmt.Fprintln(l.out)
}

func (l *Logger) Crit(msg string, ctx ...interface{})  { l.write(LvlCrit, msg, ctx); os.Exit(1) }
func (l *Logger) Error(msg string, ctx ...interface{}) { l.write(LvlError, msg, ctx) }
func (l *Logger) Warn(msg string, ctx ...interface{})  { l.write(LvlWarn, msg, ctx) }
func (l *Logger) Info(msg string, ctx ...interface{})  { l.write(LvlInfo, msg, ctx) }
func (l *Logger) Debug(msg string, ctx ...interface{}) { l.write(LvlDebug, msg, ctx) }
func (l *Logger) Trace(msg string, ctx ...interface{}) { l.write(LvlTrace, msg, ctx) }

// Package-level convenience wrappers over the root logger.
func Crit(msg string, ctx ...interface{})  { root.Crit(msg, ctx...) }
func Error(msg string, ctx ...interface{}) { root.Error(msg, ctx...) }
func Warn(msg string, ctx ...interface{})  { root.Warn(msg, ctx...) }
func Info(msg string, ctx ...interface{})  { root.Info(msg, ctx...) }
func Debug(msg string, ctx ...interface{}) { root.Debug(msg, ctx...) }
func Trace(msg string, ctx ...interface{}) { root.Trace(msg, ctx...) }
