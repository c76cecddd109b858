// Package chat is a streamed text chat with web search grounding, running
// next to the live audio session.
package chat

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/genai"
)

const DefaultModel = "gemini-2.5-flash"

var (
	ErrBusy         = errors.New("a chat response is still streaming")
	ErrEmptyMessage = errors.New("chat message is empty")
)

// Conversation is a stateful multi-turn chat. *genai.Chat implements it.
type Conversation interface {
	SendMessageStream(ctx context.Context, parts ...genai.Part) iter.Seq2[*genai.GenerateContentResponse, error]
}

type Option func(*options)

type options struct {
	model             string
	systemInstruction string
	googleSearch      bool
	greeting          string
	httpClient        *http.Client
}

func WithModel(model string) Option {
	return func(o *options) {
		if model != "" {
			o.model = model
		}
	}
}

func WithSystemInstruction(instruction string) Option {
	return func(o *options) { o.systemInstruction = instruction }
}

// WithGoogleSearch toggles web search grounding. Enabled by default.
func WithGoogleSearch(enabled bool) Option {
	return func(o *options) { o.googleSearch = enabled }
}

// WithGreeting seeds the history with an opening model message.
func WithGreeting(greeting string) Option {
	return func(o *options) { o.greeting = greeting }
}

func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		if client != nil {
			o.httpClient = client
		}
	}
}

type Client struct {
	conversation Conversation
	model        string

	busy atomic.Bool

	mu      sync.Mutex
	history []Message
}

// New creates a chat backed by the Gemini API.
func New(ctx context.Context, apiKey string, opts ...Option) (*Client, error) {
	o := options{
		model:        DefaultModel,
		googleSearch: true,
		httpClient:   &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	for _, opt := range opts {
		opt(&o)
	}

	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: o.httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	config := &genai.GenerateContentConfig{}
	if o.systemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(o.systemInstruction, genai.RoleUser)
	}
	if o.googleSearch {
		config.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}

	conversation, err := genaiClient.Chats.Create(ctx, o.model, config, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}

	return newClient(conversation, o.model, o.greeting), nil
}

func newClient(conversation Conversation, model, greeting string) *Client {
	c := &Client{conversation: conversation, model: model}
	if greeting != "" {
		c.history = append(c.history, newMessage(RoleModel, greeting))
	}
	return c
}

// History returns a copy of every message so far, including the one being
// streamed.
func (c *Client) History() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Message, len(c.history))
	for i, m := range c.history {
		m.Sources = append([]Source(nil), m.Sources...)
		out[i] = m
	}
	return out
}

// Busy reports whether a response is currently streaming.
func (c *Client) Busy() bool { return c.busy.Load() }

// Send posts message and streams the model reply. Every chunk carries the
// text accumulated so far and the latest grounding sources. A failure is
// yielded once and also stored as the model's message.
func (c *Client) Send(ctx context.Context, message string) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		message = strings.TrimSpace(message)
		if message == "" {
			yield(Chunk{}, ErrEmptyMessage)
			return
		}
		if !c.busy.CompareAndSwap(false, true) {
			yield(Chunk{}, ErrBusy)
			return
		}
		defer c.busy.Store(false)

		ctx, span := tracer.Start(ctx, "send chat message")
		defer span.End()
		span.SetAttributes(attribute.String("chat.model", c.model))

		c.mu.Lock()
		c.history = append(c.history, newMessage(RoleUser, message), newPendingMessage())
		c.mu.Unlock()

		var chunk Chunk
		for resp, err := range c.conversation.SendMessageStream(ctx, genai.Part{Text: message}) {
			if err != nil {
				logger.Error("chat stream failed", "error", err)
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				c.finish(func(m *Message) {
					m.Text = "Error: " + err.Error()
					m.Sources = nil
					m.Err = err
				})
				yield(Chunk{Text: chunk.Text, Sources: chunk.Sources}, fmt.Errorf("chat stream failed: %w", err))
				return
			}

			delta := resp.Text()
			chunk.Delta = delta
			chunk.Text += delta
			if sources, ok := groundingSources(resp); ok {
				chunk.Sources = sources
			}

			c.updateLast(func(m *Message) {
				m.Text = chunk.Text
				m.Sources = chunk.Sources
			})
			if !yield(chunk, nil) {
				c.finish(func(*Message) {})
				return
			}
		}

		c.finish(func(*Message) {})
		span.SetAttributes(attribute.Int("chat.response_length", len(chunk.Text)))
	}
}

func (c *Client) updateLast(update func(*Message)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.history) > 0 {
		update(&c.history[len(c.history)-1])
	}
}

func (c *Client) finish(update func(*Message)) {
	c.updateLast(func(m *Message) {
		update(m)
		m.Pending = false
	})
}

// groundingSources extracts the web sources of the first candidate. ok is
// false when the response carries no grounding information at all.
func groundingSources(resp *genai.GenerateContentResponse) (sources []Source, ok bool) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return nil, false
	}
	metadata := resp.Candidates[0].GroundingMetadata
	if metadata == nil || metadata.GroundingChunks == nil {
		return nil, false
	}

	sources = make([]Source, 0, len(metadata.GroundingChunks))
	for _, gc := range metadata.GroundingChunks {
		if gc == nil || gc.Web == nil || gc.Web.URI == "" {
			continue
		}
		title := gc.Web.Title
		if title == "" {
			title = gc.Web.URI
		}
		sources = append(sources, Source{Title: title, URI: gc.Web.URI})
	}
	return sources, true
}
