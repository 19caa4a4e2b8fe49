package eventx

import (
	"context"

	"github.com/veridian-id/veridian/pkg/logx"
)

// ConsolePublisher logs events instead of shipping them anywhere. Default
// for local development and tests.
type ConsolePublisher struct{}

func NewConsolePublisher() *ConsolePublisher {
	return &ConsolePublisher{}
}

func (p *ConsolePublisher) Publish(_ context.Context, event Event) error {
	logx.WithFields(logx.Fields{
		"event_id":   event.ID,
		"event_type": event.Type,
		"payload":    event.Payload,
	}).Info("📣 security event")
	return nil
}
