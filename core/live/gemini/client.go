// Package gemini connects to the Gemini Live BidiGenerateContent endpoint over
// a websocket and exposes it as a [live.Session].
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-live/core/live"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var _ live.Dialer = (*Client)(nil)

const (
	defaultBaseURL = "wss://generativelanguage.googleapis.com/ws"
	endpointPath   = "/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

	defaultKeepalive = 20 * time.Second
	setupTimeout     = 15 * time.Second
	writeTimeout     = 10 * time.Second
)

type Option func(*Client)

// WithBaseURL overrides the websocket base URL, e.g. to point at a proxy.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

func WithDialer(dialer *websocket.Dialer) Option {
	return func(c *Client) {
		if dialer != nil {
			c.dialer = dialer
		}
	}
}

// WithKeepalive sets the ping interval. Zero or negative disables pings.
func WithKeepalive(interval time.Duration) Option {
	return func(c *Client) { c.keepalive = interval }
}

type Client struct {
	apiKey    string
	baseURL   string
	dialer    *websocket.Dialer
	keepalive time.Duration
}

func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:    apiKey,
		baseURL:   defaultBaseURL,
		dialer:    websocket.DefaultDialer,
		keepalive: defaultKeepalive,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials the endpoint, sends the setup message and waits for the
// endpoint to acknowledge it.
func (c *Client) Connect(ctx context.Context, cfg live.Config) (live.Session, error) {
	cfg = cfg.WithDefaults()

	ctx, span := tracer.Start(ctx, "connect live session")
	defer span.End()
	span.SetAttributes(
		attribute.String("live.model", cfg.Model),
		attribute.String("live.voice", cfg.VoiceName),
	)

	sess, err := c.connect(ctx, cfg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.String("live.session_id", sess.id))
	return sess, nil
}

func (c *Client) connect(ctx context.Context, cfg live.Config) (*session, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: missing api key", live.ErrConnection)
	}

	endpoint := c.baseURL + endpointPath + "?key=" + url.QueryEscape(c.apiKey)
	conn, resp, err := c.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: dial returned %s: %w", live.ErrConnection, resp.Status, err)
		}
		return nil, fmt.Errorf("%w: dial: %w", live.ErrConnection, err)
	}

	setup := newSetupMessage(cfg.Model, cfg.SystemInstruction, cfg.VoiceName, cfg.ResponseModalities)
	if err := writeJSON(conn, setup, deadlineFrom(ctx, writeTimeout)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: failed to send setup: %w", live.ErrConnection, err)
	}

	if err := awaitSetupComplete(conn, deadlineFrom(ctx, setupTimeout)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %w", live.ErrConnection, err)
	}

	sess := newSession(conn)
	go sess.receiveLoop()
	if c.keepalive > 0 {
		go sess.keepaliveLoop(c.keepalive)
	}

	logger.Info("live session opened", "session", sess.id, "model", cfg.Model)
	return sess, nil
}

// awaitSetupComplete reads until the endpoint acknowledges the setup message.
func awaitSetupComplete(conn *websocket.Conn, deadline time.Time) error {
	if err := conn.SetReadDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set read deadline: %w", err)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				return fmt.Errorf("closed during setup (%d): %s", closeErr.Code, closeErr.Text)
			}
			return fmt.Errorf("failed to read setup response: %w", err)
		}

		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Warn("skipping malformed message during setup", "error", err)
			continue
		}
		if msg.Error != nil {
			return fmt.Errorf("setup rejected: %s", msg.Error)
		}
		if msg.SetupComplete != nil {
			return conn.SetReadDeadline(time.Time{})
		}
	}
}

func writeJSON(conn *websocket.Conn, v any, deadline time.Time) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// deadlineFrom returns the context deadline or now+fallback, whichever is
// earlier.
func deadlineFrom(ctx context.Context, fallback time.Duration) time.Time {
	deadline := time.Now().Add(fallback)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		return ctxDeadline
	}
	return deadline
}
