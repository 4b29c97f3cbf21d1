package realtime

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	DefaultURL   = "wss://api.openai.com/v1/realtime"
	DefaultModel = "gpt-realtime"
)

var (
	// ErrClosed is returned by Send once the connection is closed.
	ErrClosed = errors.New("realtime connection closed")
	// ErrMissingAPIKey is returned by Connect when no credentials are given.
	ErrMissingAPIKey = errors.New("realtime api key is required")
)

// Options configure a Dialer.
type Options struct {
	URL              string
	Model            string
	HandshakeTimeout time.Duration
	EventBuffer      int
	Dumper           Dumper
}

// Dialer opens realtime connections.
type Dialer struct {
	opts   Options
	dialer *websocket.Dialer
}

func NewDialer(opts Options) *Dialer {
	if strings.TrimSpace(opts.URL) == "" {
		opts.URL = DefaultURL
	}
	if strings.TrimSpace(opts.Model) == "" {
		opts.Model = DefaultModel
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 15 * time.Second
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 256
	}
	return &Dialer{
		opts: opts,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.HandshakeTimeout,
		},
	}
}

// Connect dials the realtime endpoint and starts reading server events.
func (d *Dialer) Connect(ctx context.Context, apiKey string) (*Conn, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}

	u, err := url.Parse(d.opts.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid realtime url: %w", err)
	}
	q := u.Query()
	if q.Get("model") == "" {
		q.Set("model", d.opts.Model)
	}
	u.RawQuery = q.Encode()

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+apiKey)

	ws, resp, err := d.dialer.DialContext(ctx, u.String(), headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial realtime websocket (%s): %w", resp.Status, err)
		}
		return nil, fmt.Errorf("dial realtime websocket: %w", err)
	}

	c := &Conn{
		ws:     ws,
		events: make(chan ServerEvent, d.opts.EventBuffer),
		done:   make(chan struct{}),
		dumper: d.opts.Dumper,
	}
	go c.readLoop()
	return c, nil
}

// Conn is one realtime session. Send is safe for concurrent use.
type Conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex

	events    chan ServerEvent
	done      chan struct{}
	closeOnce sync.Once
	wsOnce    sync.Once

	errMu sync.Mutex
	err   error

	dumper Dumper
}

func (c *Conn) Send(ev ClientEvent) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteJSON(ev); err != nil {
		return fmt.Errorf("send %s: %w", ev.Type, err)
	}
	return nil
}

// Events is closed when the connection ends, locally or remotely.
func (c *Conn) Events() <-chan ServerEvent {
	return c.events
}

// Err reports why the event stream ended. It is nil after a local Close.
func (c *Conn) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.closeSocket()
	})
	return err
}

// closeSocket closes the websocket once. Only the first caller sees its error.
func (c *Conn) closeSocket() error {
	var err error
	c.wsOnce.Do(func() {
		err = c.ws.Close()
	})
	return err
}

func (c *Conn) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Conn) readLoop() {
	defer close(c.events)
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if !c.closed() {
				c.errMu.Lock()
				c.err = fmt.Errorf("realtime read: %w", err)
				c.errMu.Unlock()
				_ = c.closeSocket()
			}
			return
		}

		if c.dumper != nil {
			if err := c.dumper.Dump(data); err != nil {
				log.Printf("Non-critical error dumping realtime event: %v", err)
			}
		}

		ev, err := ParseServerEvent(data)
		if err != nil {
			log.Printf("Skipping undecodable realtime event: %v", err)
			continue
		}

		select {
		case c.events <- ev:
		case <-c.done:
			return
		}
	}
}
