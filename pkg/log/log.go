// SPDX-License-Identifier: GPL-2.0-or-later

package log

// API inspired by zerolog https://github.com/rs/zerolog

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"
)

// Level defines log level.
type Level uint8

// Logging constants, matching ffmpeg.
const (
	LevelError   Level = 16
	LevelWarning Level = 24
	LevelInfo    Level = 32
	LevelDebug   Level = 48
)

// ErrUnknownLevel unknown level name.
var ErrUnknownLevel = fmt.Errorf("unknown log level")

// ParseLevel parses a level name.
func ParseLevel(name string) (Level, error) {
	switch strings.ToLower(name) {
	case "error":
		return LevelError, nil
	case "warning", "warn":
		return LevelWarning, nil
	case "info", "":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownLevel, name)
}

func (l Level) String() string {
	switch l {
	case LevelError:
		return "ERROR"
	case LevelWarning:
		return "WARNING"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	}
	return fmt.Sprintf("LEVEL%d", uint8(l))
}

// UnixMicro microseconds since the unix epoch.
type UnixMicro uint64

// Entry log entry.
type Entry struct {
	Level Level     `json:"level"`
	Time  UnixMicro `json:"time"`
	Src   string    `json:"src"`
	Job   string    `json:"job"`
	Msg   string    `json:"msg"`
}

// Event defines log event.
type Event struct {
	entry  Entry
	logger *Logger
}

// Src sets event source.
func (e *Event) Src(source string) *Event {
	e.entry.Src = source
	return e
}

// Job sets the job the event belongs to.
func (e *Event) Job(jobID string) *Event {
	e.entry.Job = jobID
	return e
}

// Time sets event time.
func (e *Event) Time(t time.Time) *Event {
	e.entry.Time = UnixMicro(t.UnixNano() / 1000)
	return e
}

// Msg sends the event with msg added as the message field.
func (e *Event) Msg(msg string) {
	e.entry.Msg = msg
	e.logger.Log(e.entry)
}

// Msgf sends the event with formatted msg added as the message field.
func (e *Event) Msgf(format string, v ...interface{}) {
	e.Msg(fmt.Sprintf(format, v...))
}

type logFeed chan Entry

// Logger fans out entries to subscribers. Entries logged
// while there are no subscribers are dropped. A nil *Logger
// drops everything.
type Logger struct {
	mu   sync.Mutex
	subs map[logFeed]struct{}
}

// NewLogger returns a new logger.
func NewLogger() *Logger {
	return &Logger{subs: make(map[logFeed]struct{})}
}

// Log sends entry to every subscriber and blocks until they received it.
func (l *Logger) Log(entry Entry) {
	if l == nil {
		return
	}
	if entry.Time == 0 {
		entry.Time = UnixMicro(time.Now().UnixNano() / 1000)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for feed := range l.subs {
		feed <- entry
	}
}

// CancelFunc cancels log feed subsciption.
type CancelFunc func()

// Subscribe returns a new chan with log feed and a CancelFunc.
func (l *Logger) Subscribe() (<-chan Entry, CancelFunc) {
	feed := make(logFeed)
	l.mu.Lock()
	l.subs[feed] = struct{}{}
	l.mu.Unlock()

	cancel := func() {
		l.unsubscribe(feed)
	}
	return feed, cancel
}

func (l *Logger) unsubscribe(feed logFeed) {
	// Read feed until the unsubscribe is done.
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-feed:
			case <-done:
				return
			}
		}
	}()

	l.mu.Lock()
	delete(l.subs, feed)
	l.mu.Unlock()
	close(done)
}

// LogToWriter prints entries up to maxLevel to w until ctx is canceled.
func (l *Logger) LogToWriter(ctx context.Context, wg *sync.WaitGroup, w io.Writer, maxLevel Level) {
	feed, cancel := l.Subscribe()
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		for {
			select {
			case entry := <-feed:
				if entry.Level <= maxLevel {
					fmt.Fprintln(w, formatEntry(entry))
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

func formatEntry(entry Entry) string {
	output := "[" + entry.Level.String() + "] "
	if entry.Job != "" {
		output += entry.Job + ": "
	}
	if entry.Src != "" {
		output += capitalize(entry.Src) + ": "
	}
	return output + entry.Msg
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}

func (l *Logger) event(level Level) *Event {
	return &Event{
		entry: Entry{
			Level: level,
			Time:  UnixMicro(time.Now().UnixNano() / 1000),
		},
		logger: l,
	}
}

// Error starts a new message with error level.
// You must call Msg on the returned event in order to send the event.
func (l *Logger) Error() *Event { return l.event(LevelError) }

// Warn starts a new message with warn level.
// You must call Msg on the returned event in order to send the event.
func (l *Logger) Warn() *Event { return l.event(LevelWarning) }

// Info starts a new message with info level.
// You must call Msg on the returned event in order to send the event.
func (l *Logger) Info() *Event { return l.event(LevelInfo) }

// Debug starts a new message with debug level.
// You must call Msg on the returned event in order to send the event.
func (l *Logger) Debug() *Event { return l.event(LevelDebug) }
