// Package notify delivers mutation outcomes to the user-facing layer.
package notify

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Outcome describes the result of one cart mutation.
// Kind and Message are empty on success.
type Outcome struct {
	Op        string
	ProductID int64
	Amount    int
	Kind      string
	Message   string
	Err       error
}

func (o Outcome) Success() bool { return o.Err == nil }

// Sink receives every outcome, successful or not.
type Sink interface {
	Notify(ctx context.Context, o Outcome)
}

// LogSink writes outcomes to a structured logger.
type LogSink struct {
	log logrus.FieldLogger
}

func NewLogSink(log logrus.FieldLogger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Notify(_ context.Context, o Outcome) {
	entry := s.log.WithFields(logrus.Fields{
		"op":         o.Op,
		"product_id": o.ProductID,
	})
	if o.Success() {
		entry.WithField("amount", o.Amount).Info("cart updated")
		return
	}
	entry.WithError(o.Err).WithField("error_kind", o.Kind).Warn(o.Message)
}

type multi []Sink

// Multi fans an outcome out to each sink in order.
func Multi(sinks ...Sink) Sink {
	return multi(sinks)
}

func (m multi) Notify(ctx context.Context, o Outcome) {
	for _, s := range m {
		s.Notify(ctx, o)
	}
}

// Discard drops every outcome.
var Discard Sink = discard{}

type discard struct{}

func (discard) Notify(context.Context, Outcome) {}
