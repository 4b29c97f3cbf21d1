package interfaces

import (
	"context"

	"github.com/EasterCompany/dex-voice-bridge/realtime"
)

// AIConn is an open realtime AI session.
type AIConn interface {
	Send(ev realtime.ClientEvent) error
	// Events is closed when the session ends.
	Events() <-chan realtime.ServerEvent
	// Err is nil when the session was closed locally.
	Err() error
	Close() error
}

// AITransport opens realtime AI sessions.
type AITransport interface {
	Connect(ctx context.Context, apiKey string) (AIConn, error)
}

// AITransportFunc adapts a function to AITransport.
type AITransportFunc func(ctx context.Context, apiKey string) (AIConn, error)

func (f AITransportFunc) Connect(ctx context.Context, apiKey string) (AIConn, error) {
	return f(ctx, apiKey)
}
