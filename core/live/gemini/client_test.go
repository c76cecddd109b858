package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/live"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

// startFakeServer runs handler for every accepted websocket connection.
func startFakeServer(t *testing.T, handler func(t *testing.T, conn *websocket.Conn, r *http.Request)) string {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handler(t, conn, r)
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func readSetup(t *testing.T, conn *websocket.Conn) setupMessage {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var msg setupMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Errorf("expected setup message, got %v", err)
	}
	return msg
}

func ackSetup(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"setupComplete": map[string]any{}}); err != nil {
		t.Errorf("failed to ack setup: %v", err)
	}
}

// waitForClose blocks until the client goes away.
func waitForClose(conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func nextEvent(t *testing.T, sess live.Session) live.Event {
	t.Helper()
	select {
	case ev, ok := <-sess.Events():
		if !ok {
			t.Fatalf("expected an event, got closed channel")
		}
		return ev
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for event")
	}
	return live.Event{}
}

func TestConnectSendsSetupAndWaitsForAck(t *testing.T) {
	setups := make(chan setupMessage, 1)
	keys := make(chan string, 1)
	baseURL := startFakeServer(t, func(t *testing.T, conn *websocket.Conn, r *http.Request) {
		keys <- r.URL.Query().Get("key")
		setups <- readSetup(t, conn)
		ackSetup(t, conn)
		waitForClose(conn)
	})

	client := New("secret", WithBaseURL(baseURL), WithKeepalive(0))
	sess, err := client.Connect(context.Background(), live.Config{
		Model:             "test-model",
		SystemInstruction: "be brief",
	})
	if err != nil {
		t.Fatalf("expected connect to succeed, got %v", err)
	}
	defer sess.Close()

	if got := <-keys; got != "secret" {
		t.Fatalf("expected api key in query, got %q", got)
	}

	setup := <-setups
	if setup.Setup.Model != "models/test-model" {
		t.Fatalf("expected model models/test-model, got %q", setup.Setup.Model)
	}
	if got := setup.Setup.GenerationConfig.ResponseModalities; len(got) != 1 || got[0] != live.ModalityAudio {
		t.Fatalf("expected audio response modality, got %v", got)
	}
	if setup.Setup.SystemInstruction == nil || setup.Setup.SystemInstruction.Parts[0].Text != "be brief" {
		t.Fatalf("expected system instruction, got %+v", setup.Setup.SystemInstruction)
	}
	speech := setup.Setup.GenerationConfig.SpeechConfig
	if speech == nil || speech.VoiceConfig.PrebuiltVoiceConfig.VoiceName != live.DefaultVoice {
		t.Fatalf("expected default voice %q, got %+v", live.DefaultVoice, speech)
	}

	if ev := nextEvent(t, sess); ev.Kind != live.EventOpened {
		t.Fatalf("expected opened event first, got %s", ev)
	}
	if sess.ID() == "" {
		t.Fatalf("expected session id to be set")
	}
}

func TestConnectFailsWithoutAPIKey(t *testing.T) {
	_, err := New("").Connect(context.Background(), live.Config{})
	if !errors.Is(err, live.ErrConnection) {
		t.Fatalf("expected ErrConnection, got %v", err)
	}
}

func TestConnectFailsWhenSetupIsRejected(t *testing.T) {
	baseURL := startFakeServer(t, func(t *testing.T, conn *websocket.Conn, _ *http.Request) {
		readSetup(t, conn)
		conn.WriteJSON(map[string]any{"error": map[string]any{"code": 400, "message": "unknown model"}})
		waitForClose(conn)
	})

	_, err := New("key", WithBaseURL(baseURL)).Connect(context.Background(), live.Config{})
	if !errors.Is(err, live.ErrConnection) {
		t.Fatalf("expected ErrConnection, got %v", err)
	}
	if !strings.Contains(err.Error(), "unknown model") {
		t.Fatalf("expected error to carry server message, got %v", err)
	}
}

func TestConnectFailsWhenServerIsUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := New("key", WithBaseURL("ws://127.0.0.1:1")).Connect(ctx, live.Config{})
	if !errors.Is(err, live.ErrConnection) {
		t.Fatalf("expected ErrConnection, got %v", err)
	}
}

func TestSendRealtimeInputWritesMediaChunk(t *testing.T) {
	received := make(chan realtimeInputMessage, 1)
	baseURL := startFakeServer(t, func(t *testing.T, conn *websocket.Conn, _ *http.Request) {
		readSetup(t, conn)
		ackSetup(t, conn)

		var msg realtimeInputMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Errorf("expected realtime input, got %v", err)
			return
		}
		received <- msg
		waitForClose(conn)
	})

	sess, err := New("key", WithBaseURL(baseURL)).Connect(context.Background(), live.Config{})
	if err != nil {
		t.Fatalf("expected connect to succeed, got %v", err)
	}
	defer sess.Close()

	blob := audio.EncodeFrame([]float32{0.5, -0.5}, audio.CaptureSampleRate)
	if err := sess.SendRealtimeInput(context.Background(), blob); err != nil {
		t.Fatalf("expected send to succeed, got %v", err)
	}

	select {
	case msg := <-received:
		chunks := msg.RealtimeInput.MediaChunks
		if len(chunks) != 1 || chunks[0].MIMEType != "audio/pcm;rate=16000" || chunks[0].Data != blob.Data {
			t.Fatalf("expected media chunk %+v, got %+v", blob, chunks)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for realtime input")
	}
}

func TestSessionEmitsAudioInterruptAndTurnComplete(t *testing.T) {
	baseURL := startFakeServer(t, func(t *testing.T, conn *websocket.Conn, _ *http.Request) {
		readSetup(t, conn)
		ackSetup(t, conn)

		conn.WriteJSON(map[string]any{"serverContent": map[string]any{
			"modelTurn": map[string]any{"parts": []any{
				map[string]any{"inlineData": map[string]any{"mimeType": "audio/pcm;rate=24000", "data": "AAAA"}},
				map[string]any{"text": "thinking"},
				map[string]any{"inlineData": map[string]any{"mimeType": "audio/pcm;rate=24000", "data": "BBBB"}},
			}},
		}})
		conn.WriteMessage(websocket.TextMessage, []byte("{not json"))
		conn.WriteJSON(map[string]any{"serverContent": map[string]any{"interrupted": true}})
		conn.WriteJSON(map[string]any{"serverContent": map[string]any{"turnComplete": true}})
		waitForClose(conn)
	})

	sess, err := New("key", WithBaseURL(baseURL)).Connect(context.Background(), live.Config{})
	if err != nil {
		t.Fatalf("expected connect to succeed, got %v", err)
	}
	defer sess.Close()

	nextEvent(t, sess) // opened

	ev := nextEvent(t, sess)
	if ev.Kind != live.EventMessage || len(ev.Audio) != 2 || ev.Audio[0] != "AAAA" || ev.Audio[1] != "BBBB" {
		t.Fatalf("expected message with two audio parts, got %+v", ev)
	}
	if ev = nextEvent(t, sess); !ev.Interrupted {
		t.Fatalf("expected interrupted message, got %+v", ev)
	}
	if ev = nextEvent(t, sess); !ev.TurnComplete {
		t.Fatalf("expected turn complete message, got %+v", ev)
	}
}

func TestSessionReportsRemoteClose(t *testing.T) {
	baseURL := startFakeServer(t, func(t *testing.T, conn *websocket.Conn, _ *http.Request) {
		readSetup(t, conn)
		ackSetup(t, conn)
		conn.WriteJSON(map[string]any{"error": map[string]any{"code": 429, "message": "quota"}})
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye"))
	})

	sess, err := New("key", WithBaseURL(baseURL)).Connect(context.Background(), live.Config{})
	if err != nil {
		t.Fatalf("expected connect to succeed, got %v", err)
	}
	defer sess.Close()

	nextEvent(t, sess) // opened

	if ev := nextEvent(t, sess); ev.Kind != live.EventError || !strings.Contains(ev.Err.Error(), "quota") {
		t.Fatalf("expected error event carrying quota message, got %+v", ev)
	}

	ev := nextEvent(t, sess)
	if ev.Kind != live.EventClosed || ev.Reason != "bye" || !errors.Is(ev.Err, live.ErrTransportClosed) {
		t.Fatalf("expected closed event with reason bye, got %+v", ev)
	}

	if _, ok := <-sess.Events(); ok {
		t.Fatalf("expected events channel to be closed after closed event")
	}

	err = sess.SendRealtimeInput(context.Background(), audio.Blob{})
	if !errors.Is(err, live.ErrTransportClosed) {
		t.Fatalf("expected ErrTransportClosed after remote close, got %v", err)
	}
}

func TestCloseIsIdempotentAndRejectsSends(t *testing.T) {
	baseURL := startFakeServer(t, func(t *testing.T, conn *websocket.Conn, _ *http.Request) {
		readSetup(t, conn)
		ackSetup(t, conn)
		waitForClose(conn)
	})

	sess, err := New("key", WithBaseURL(baseURL)).Connect(context.Background(), live.Config{})
	if err != nil {
		t.Fatalf("expected connect to succeed, got %v", err)
	}

	sess.Close()
	sess.Close()

	err = sess.SendRealtimeInput(context.Background(), audio.Blob{})
	if !errors.Is(err, live.ErrTransportClosed) {
		t.Fatalf("expected ErrTransportClosed, got %v", err)
	}

	for ev := range sess.Events() {
		if ev.Kind == live.EventClosed && ev.Err != nil {
			t.Fatalf("expected local close without error, got %v", ev.Err)
		}
	}
}

func TestSetupMessageKeepsQualifiedModelName(t *testing.T) {
	msg := newSetupMessage("models/already", "", "", []string{live.ModalityAudio})

	if msg.Setup.Model != "models/already" {
		t.Fatalf("expected model to stay models/already, got %q", msg.Setup.Model)
	}
	if msg.Setup.SystemInstruction != nil || msg.Setup.GenerationConfig.SpeechConfig != nil {
		t.Fatalf("expected empty optional sections to be omitted, got %+v", msg.Setup)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("expected setup to marshal, got %v", err)
	}
	if strings.Contains(string(data), "systemInstruction") {
		t.Fatalf("expected systemInstruction to be omitted, got %s", data)
	}
}
