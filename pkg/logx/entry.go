package logx

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Entry is a log entry with accumulated structured fields.
type Entry struct {
	logger zerolog.Logger
	fields Fields
}

// WithField adds a field to the entry
func (e *Entry) WithField(key string, value interface{}) *Entry {
	merged := make(Fields, len(e.fields)+1)
	for k, v := range e.fields {
		merged[k] = v
	}
	merged[key] = value
	return &Entry{logger: e.logger, fields: merged}
}

// WithError adds the error as a field
func (e *Entry) WithError(err error) *Entry {
	return e.WithField("error", err)
}

func (e *Entry) emit(ev *zerolog.Event, msg string) {
	for k, v := range e.fields {
		if err, ok := v.(error); ok {
			ev = ev.AnErr(k, err)
			continue
		}
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}

func (e *Entry) Debug(msg string) { e.emit(e.logger.Debug(), msg) }
func (e *Entry) Info(msg string)  { e.emit(e.logger.Info(), msg) }
func (e *Entry) Warn(msg string)  { e.emit(e.logger.Warn(), msg) }
func (e *Entry) Error(msg string) { e.emit(e.logger.Error(), msg) }

func (e *Entry) Debugf(format string, args ...interface{}) {
	e.Debug(fmt.Sprintf(format, args...))
}

func (e *Entry) Infof(format string, args ...interface{}) {
	e.Info(fmt.Sprintf(format, args...))
}

func (e *Entry) Warnf(format string, args ...interface{}) {
	e.Warn(fmt.Sprintf(format, args...))
}

func (e *Entry) Errorf(format string, args ...interface{}) {
	e.Error(fmt.Sprintf(format, args...))
}
