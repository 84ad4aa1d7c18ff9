package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rahmatgani/aruna/pkg/channel"
	"github.com/rahmatgani/aruna/pkg/engine"
	"github.com/rahmatgani/aruna/pkg/intent"
	"github.com/rahmatgani/aruna/pkg/language"
	"github.com/rahmatgani/aruna/pkg/llm"
	"github.com/rahmatgani/aruna/pkg/prompt"
	"github.com/rahmatgani/aruna/pkg/providers/mock"
	"github.com/rahmatgani/aruna/pkg/retrieval"
	"github.com/rahmatgani/aruna/pkg/session"
	"github.com/rahmatgani/aruna/pkg/tenant"
)

const responseJSON = `{
  "thinking": {"intent": "information", "persona": "helpful", "reasoning": "faq"},
  "final_answer": "We are open 9 to 5.",
  "webhook_data": {}
}`

type emptyIndex struct{}

func (emptyIndex) Search(ctx context.Context, tenantID, query string, limit int, threshold float64) ([]retrieval.Hit, error) {
	return nil, nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newTestServer(t *testing.T, adapter llm.Adapter) *Server {
	t.Helper()
	profiles := tenant.NewStaticProvider()
	profiles.SetProfile(tenant.Profile{ID: "t1", Name: "Shop", Industry: "retail"})

	failLLM := mock.NewLLMAdapter(mock.LLMConfig{Err: errors.New("offline")})
	eng := engine.New(engine.Deps{
		Detector:   language.NewDetector("en"),
		Classifier: intent.NewClassifier(failLLM, discard()),
		Retriever:  retrieval.NewRetriever(emptyIndex{}, nil, discard()),
		Assembler:  prompt.NewAssembler(12),
		Adapter:    adapter,
		Store:      session.NewMemoryStore(50),
		Profiles:   profiles,
		Inventory:  profiles,
		Retry:      llm.RetryConfig{MaxAttempts: 1, Sleep: func(time.Duration) {}},
		Logger:     discard(),
	})
	return New(Config{}, eng, discard())
}

func TestChatEndpoint(t *testing.T) {
	s := newTestServer(t, mock.NewLLMAdapter(mock.LLMConfig{ResponseText: responseJSON}))
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	body, _ := json.Marshal(map[string]string{
		"tenant_id": "t1", "user_id": "u1", "channel": "widget", "message": "what are your hours?",
	})
	resp, err := http.Post(srv.URL+"/v1/chat", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.FinalAnswer != "We are open 9 to 5." {
		t.Fatalf("unexpected answer: %q", out.FinalAnswer)
	}
	if out.Intent != string(intent.Information) {
		t.Fatalf("unexpected intent: %q", out.Intent)
	}
}

func TestChatEndpointRejectsBadRequests(t *testing.T) {
	s := newTestServer(t, mock.NewLLMAdapter(mock.LLMConfig{ResponseText: responseJSON}))
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/chat", "application/json", strings.NewReader("not json"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad json, got %d", resp.StatusCode)
	}

	body, _ := json.Marshal(map[string]string{"tenant_id": "t1", "user_id": "u1", "message": "  "})
	resp, err = http.Post(srv.URL+"/v1/chat", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty message, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/chat", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET, got %d", resp.StatusCode)
	}
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, mock.NewLLMAdapter(mock.LLMConfig{ResponseText: responseJSON}))
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestWebsocketStreamsDeltasThenDone(t *testing.T) {
	s := newTestServer(t, mock.NewLLMAdapter(mock.LLMConfig{
		StreamChunks: []string{responseJSON[:40], responseJSON[40:]},
	}))
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/chat/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	req, _ := json.Marshal(map[string]string{
		"tenant_id": "t1", "user_id": "u1", "channel": "widget", "message": "hours?",
	})
	if err := conn.WriteMessage(websocket.TextMessage, req); err != nil {
		t.Fatalf("write: %v", err)
	}

	var deltas strings.Builder
	for {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var chunk channel.Chunk
		if err := json.Unmarshal(msg, &chunk); err != nil {
			t.Fatalf("unmarshal chunk: %v", err)
		}
		if chunk.Type == channel.ChunkDelta {
			deltas.WriteString(chunk.Content)
			continue
		}
		if chunk.Type != channel.ChunkDone {
			t.Fatalf("unexpected chunk type %q", chunk.Type)
		}
		if chunk.Response == nil || chunk.Response.FinalAnswer != "We are open 9 to 5." {
			t.Fatalf("done chunk missing parsed response: %+v", chunk)
		}
		break
	}
	if deltas.String() != responseJSON {
		t.Fatalf("deltas do not reassemble the completion")
	}
}
