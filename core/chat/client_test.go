package chat

import (
	"context"
	"errors"
	"iter"
	"testing"

	"google.golang.org/genai"
)

type fakeConversation struct {
	responses []*genai.GenerateContentResponse
	err       error
	block     chan struct{}
	sent      []string
}

func (f *fakeConversation) SendMessageStream(_ context.Context, parts ...genai.Part) iter.Seq2[*genai.GenerateContentResponse, error] {
	for _, p := range parts {
		f.sent = append(f.sent, p.Text)
	}
	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		if f.block != nil {
			<-f.block
		}
		for _, r := range f.responses {
			if !yield(r, nil) {
				return
			}
		}
		if f.err != nil {
			yield(nil, f.err)
		}
	}
}

func textResponse(text string, web ...*genai.GroundingChunkWeb) *genai.GenerateContentResponse {
	candidate := &genai.Candidate{
		Content: genai.NewContentFromText(text, genai.RoleModel),
	}
	if web != nil {
		metadata := &genai.GroundingMetadata{}
		for _, w := range web {
			metadata.GroundingChunks = append(metadata.GroundingChunks, &genai.GroundingChunk{Web: w})
		}
		candidate.GroundingMetadata = metadata
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{candidate}}
}

func TestSendStreamsAccumulatedTextAndSources(t *testing.T) {
	conv := &fakeConversation{responses: []*genai.GenerateContentResponse{
		textResponse("Hello"),
		textResponse(", world", &genai.GroundingChunkWeb{URI: "https://example.com", Title: "Example"}),
		textResponse("!"),
	}}
	c := newClient(conv, DefaultModel, "")

	var chunks []Chunk
	for chunk, err := range c.Send(context.Background(), "  hi there ") {
		if err != nil {
			t.Fatalf("expected no stream error, got %v", err)
		}
		chunks = append(chunks, chunk)
	}

	if len(conv.sent) != 1 || conv.sent[0] != "hi there" {
		t.Fatalf("expected trimmed message to be sent, got %v", conv.sent)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if chunks[1].Text != "Hello, world" || chunks[1].Delta != ", world" {
		t.Fatalf("expected accumulated text, got %+v", chunks[1])
	}
	if last := chunks[2]; last.Text != "Hello, world!" || len(last.Sources) != 1 || last.Sources[0].URI != "https://example.com" {
		t.Fatalf("expected final text with kept sources, got %+v", last)
	}

	history := c.History()
	if len(history) != 2 {
		t.Fatalf("expected user and model messages, got %d", len(history))
	}
	if history[0].Role != RoleUser || history[0].Text != "hi there" {
		t.Fatalf("expected user message first, got %+v", history[0])
	}
	if model := history[1]; model.Role != RoleModel || model.Text != "Hello, world!" || model.Pending || len(model.Sources) != 1 {
		t.Fatalf("expected finished model message, got %+v", model)
	}
}

func TestSendFailureIsStoredAsModelMessage(t *testing.T) {
	failure := errors.New("quota exceeded")
	conv := &fakeConversation{responses: []*genai.GenerateContentResponse{textResponse("partial")}, err: failure}
	c := newClient(conv, DefaultModel, "Hi!")

	var streamErr error
	for _, err := range c.Send(context.Background(), "question") {
		if err != nil {
			streamErr = err
		}
	}

	if !errors.Is(streamErr, failure) {
		t.Fatalf("expected stream error to wrap failure, got %v", streamErr)
	}

	history := c.History()
	if len(history) != 3 || history[0].Text != "Hi!" {
		t.Fatalf("expected greeting, question and reply, got %+v", history)
	}
	reply := history[2]
	if reply.Text != "Error: quota exceeded" || !errors.Is(reply.Err, failure) || reply.Pending || reply.Sources != nil {
		t.Fatalf("expected error reply, got %+v", reply)
	}
	if c.Busy() {
		t.Fatalf("expected client not to be busy after failure")
	}
}

func TestSendRejectsEmptyAndConcurrentMessages(t *testing.T) {
	conv := &fakeConversation{block: make(chan struct{}), responses: []*genai.GenerateContentResponse{textResponse("ok")}}
	c := newClient(conv, DefaultModel, "")

	for _, err := range c.Send(context.Background(), "   ") {
		if !errors.Is(err, ErrEmptyMessage) {
			t.Fatalf("expected ErrEmptyMessage, got %v", err)
		}
	}

	started := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		close(started)
		for range c.Send(context.Background(), "first") {
		}
	}()
	<-started
	for !c.Busy() {
	}

	for _, err := range c.Send(context.Background(), "second") {
		if !errors.Is(err, ErrBusy) {
			t.Fatalf("expected ErrBusy, got %v", err)
		}
	}

	close(conv.block)
	<-done
	if got := len(c.History()); got != 2 {
		t.Fatalf("expected only the first exchange in history, got %d messages", got)
	}
}

func TestGroundingSourcesSkipsNonWebChunks(t *testing.T) {
	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		GroundingMetadata: &genai.GroundingMetadata{GroundingChunks: []*genai.GroundingChunk{
			{Web: &genai.GroundingChunkWeb{URI: "https://a.example"}},
			{},
			{Web: &genai.GroundingChunkWeb{URI: "https://b.example", Title: "B"}},
		}},
	}}}

	sources, ok := groundingSources(resp)
	if !ok {
		t.Fatalf("expected grounding metadata to be found")
	}
	if len(sources) != 2 || sources[0].Title != "https://a.example" || sources[1].Title != "B" {
		t.Fatalf("expected two web sources with fallback title, got %+v", sources)
	}

	if _, ok := groundingSources(&genai.GenerateContentResponse{}); ok {
		t.Fatalf("expected no grounding for empty response")
	}
}
