package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rahmatgani/aruna/pkg/channel"
	"github.com/rahmatgani/aruna/pkg/engine"
)

type Config struct {
	Addr              string   `mapstructure:"addr"`
	ChatPath          string   `mapstructure:"chat_path"`
	WebsocketPath     string   `mapstructure:"ws_path"`
	ReadTimeoutMS     int      `mapstructure:"read_timeout_ms"`
	WriteTimeoutMS    int      `mapstructure:"write_timeout_ms"`
	ShutdownTimeoutMS int      `mapstructure:"shutdown_timeout_ms"`
	AllowAnyOrigin    bool     `mapstructure:"allow_any_origin"`
	AllowedOrigins    []string `mapstructure:"allowed_origins"`
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.ChatPath == "" {
		c.ChatPath = "/v1/chat"
	}
	if c.WebsocketPath == "" {
		c.WebsocketPath = "/v1/chat/ws"
	}
	if c.ReadTimeoutMS <= 0 {
		c.ReadTimeoutMS = 10000
	}
	if c.WriteTimeoutMS <= 0 {
		c.WriteTimeoutMS = 30000
	}
	if c.ShutdownTimeoutMS <= 0 {
		c.ShutdownTimeoutMS = 10000
	}
	if !c.AllowAnyOrigin && len(c.AllowedOrigins) == 0 {
		c.AllowAnyOrigin = true
	}
	return c
}

// Server exposes the engine over HTTP: a buffered JSON endpoint for relay
// integrations and a websocket endpoint for the interactive widget.
type Server struct {
	cfg      Config
	engine   *engine.Engine
	logger   *slog.Logger
	upgrader websocket.Upgrader
	srv      *http.Server
	draining atomic.Bool
}

func New(cfg Config, eng *engine.Engine, logger *slog.Logger) *Server {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:    cfg,
		engine: eng,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
	s.upgrader.CheckOrigin = s.checkOrigin
	return s
}

// Handler builds the route table. Exposed so tests can mount it on httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.ChatPath, s.handleChat)
	mux.HandleFunc(s.cfg.WebsocketPath, s.handleWebsocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.srv = &http.Server{
		Addr:              s.cfg.Addr,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(s.cfg.ReadTimeoutMS) * time.Millisecond,
		WriteTimeout:      time.Duration(s.cfg.WriteTimeoutMS) * time.Millisecond,
		Handler:           s.Handler(),
	}
	go func() {
		<-ctx.Done()
		_ = s.Stop()
	}()
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server_error", "error", err.Error())
		}
	}()
	return nil
}

func (s *Server) Stop() error {
	if !s.draining.CompareAndSwap(false, true) {
		return nil
	}
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(s.cfg.ShutdownTimeoutMS)*time.Millisecond)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

type chatRequest struct {
	TenantID  string `json:"tenant_id"`
	UserID    string `json:"user_id"`
	DeviceID  string `json:"device_id"`
	SessionID string `json:"session_id"`
	Channel   string `json:"channel"`
	ReplyTo   string `json:"reply_to"`
	Message   string `json:"message"`
}

type chatResponse struct {
	FinalAnswer string   `json:"final_answer"`
	Intent      string   `json:"intent"`
	State       string   `json:"state"`
	Missing     []string `json:"missing,omitempty"`
	Language    string   `json:"language"`
	Fallback    bool     `json:"fallback,omitempty"`
}

func (r chatRequest) toEngine() engine.Request {
	return engine.Request{
		TenantID:  r.TenantID,
		UserID:    r.UserID,
		DeviceID:  r.DeviceID,
		SessionID: r.SessionID,
		Channel:   r.Channel,
		ReplyTo:   r.ReplyTo,
		Message:   r.Message,
	}
}

func toChatResponse(reply engine.Reply) chatResponse {
	return chatResponse{
		FinalAnswer: reply.Text,
		Intent:      string(reply.Decision.Intent),
		State:       string(reply.Decision.State),
		Missing:     reply.Decision.Missing,
		Language:    reply.Language.Language,
		Fallback:    reply.Response.Fallback,
	}
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.draining.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	reply, err := s.engine.Handle(r.Context(), req.toEngine())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toChatResponse(reply))
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	if s.draining.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sink := &wsSink{conn: conn}
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req chatRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			sink.sendError("invalid json")
			continue
		}
		if _, err := s.engine.HandleStream(r.Context(), req.toEngine(), sink); err != nil {
			sink.sendError(err.Error())
		}
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if s.cfg.AllowAnyOrigin {
		return true
	}
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	origin = strings.TrimRight(origin, "/")
	originHost := strings.TrimPrefix(origin, "https://")
	originHost = strings.TrimPrefix(originHost, "http://")
	for _, allowed := range s.cfg.AllowedOrigins {
		a := strings.TrimRight(strings.TrimSpace(allowed), "/")
		if a == "" {
			continue
		}
		if strings.HasPrefix(a, "http://") || strings.HasPrefix(a, "https://") {
			if strings.EqualFold(a, origin) {
				return true
			}
			continue
		}
		if strings.EqualFold(a, originHost) {
			return true
		}
	}
	return false
}

// wsSink serializes chunk writes onto one websocket connection.
type wsSink struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsSink) Send(c channel.Chunk) error {
	b, err := json.Marshal(c)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, b)
}

func (s *wsSink) sendError(msg string) {
	b, _ := json.Marshal(map[string]string{"type": "error", "error": msg})
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.WriteMessage(websocket.TextMessage, b)
}
