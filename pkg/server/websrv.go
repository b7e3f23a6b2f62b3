package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/kochj23/webmush/pkg/events"
	"github.com/kochj23/webmush/pkg/gamedb"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16384
	sendQueueSize  = 256
)

// WebServer is the HTTP/WebSocket gateway. Players authenticate over
// REST to obtain a token, then attach a WebSocket session with it.
type WebServer struct {
	game     *Game
	auth     *AuthService
	log      *zap.Logger
	upgrader websocket.Upgrader
}

// NewWebServer builds the gateway around a game.
func NewWebServer(game *Game, auth *AuthService) *WebServer {
	ws := &WebServer{
		game: game,
		auth: auth,
		log:  game.Log,
	}
	ws.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     ws.checkOrigin,
	}
	return ws
}

func (ws *WebServer) checkOrigin(r *http.Request) bool {
	origins := ws.game.Conf.CORSOrigins
	if len(origins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range origins {
		if origin == allowed {
			return true
		}
	}
	return false
}

// Handler returns the gateway's route mux.
func (ws *WebServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/login", ws.handleLogin)
	mux.HandleFunc("POST /api/create", ws.handleCreate)
	mux.HandleFunc("POST /api/refresh", ws.handleRefresh)
	mux.HandleFunc("GET /ws", ws.handleWebSocket)
	mux.HandleFunc("GET /health", ws.handleHealth)
	if ws.game.Metrics != nil {
		mux.Handle("GET /metrics", ws.game.Metrics.Handler())
	}
	return mux
}

// ListenAndServe runs the gateway until the listener fails.
func (ws *WebServer) ListenAndServe(addr string) error {
	ws.log.Info("web gateway listening", zap.String("addr", addr))
	srv := &http.Server{
		Addr:         addr,
		Handler:      ws.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return srv.ListenAndServe()
}

type authRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
	Token    string `json:"token"`
}

type authResponse struct {
	Token  string `json:"token"`
	Player int    `json:"player"`
	Name   string `json:"name"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (ws *WebServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req authRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request")
		return
	}
	token, player, err := ws.auth.Login(req.Name, req.Password)
	if err != nil {
		ws.log.Info("login rejected", zap.String("name", req.Name))
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, authResponse{
		Token: token, Player: int(player), Name: ws.game.DB.Name(player),
	})
}

func (ws *WebServer) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req authRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request")
		return
	}
	token, player, err := ws.auth.CreatePlayer(req.Name, req.Password)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ws.log.Info("player created", zap.String("name", req.Name), zap.Int("ref", int(player)))
	writeJSON(w, http.StatusCreated, authResponse{
		Token: token, Player: int(player), Name: ws.game.DB.Name(player),
	})
}

func (ws *WebServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req authRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request")
		return
	}
	token, err := ws.auth.RefreshToken(req.Token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"name":    ws.game.MudName(),
		"objects": ws.game.DB.Size(),
		"players": ws.game.ConnectionCount(),
		"uptime":  int(time.Since(ws.game.StartTime()).Seconds()),
	})
}

// handleWebSocket upgrades a token-bearing request into a game session.
func (ws *WebServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		tokenStr = r.Header.Get("Authorization")
	}
	claims, err := ws.auth.ValidateToken(tokenStr)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	sess := &wsSession{
		id:     uuid.NewString(),
		game:   ws.game,
		log:    ws.log,
		conn:   conn,
		player: claims.PlayerRef,
		send:   make(chan events.Event, sendQueueSize),
		done:   make(chan struct{}),
	}
	ws.game.Bus.Subscribe(sess.player, sess)
	ws.game.PlayerConnected(sess.player)
	ws.log.Info("session attached",
		zap.String("session", sess.id),
		zap.Int("player", int(sess.player)))

	go sess.writeLoop()
	go sess.readLoop()
}

// wsSession is one live WebSocket connection bound to a player. It
// implements events.Subscriber.
type wsSession struct {
	id     string
	game   *Game
	log    *zap.Logger
	conn   *websocket.Conn
	player gamedb.DBRef
	send   chan events.Event
	done   chan struct{}

	closeOnce sync.Once
}

// Receive queues an event for delivery; a client too slow to drain its
// queue is disconnected.
func (s *wsSession) Receive(ev events.Event) {
	select {
	case <-s.done:
	case s.send <- ev:
	default:
		s.close()
	}
}

// Closed reports whether the session has shut down.
func (s *wsSession) Closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *wsSession) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
		s.game.Bus.Unsubscribe(s.player, s)
		s.game.PlayerDisconnected(s.player)
		s.log.Info("session detached",
			zap.String("session", s.id),
			zap.Int("player", int(s.player)))
	})
}

type wsInbound struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type wsOutbound struct {
	Type   string         `json:"type"`
	Text   string         `json:"text,omitempty"`
	Source int            `json:"source,omitempty"`
	Room   int            `json:"room,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
}

func (s *wsSession) readLoop() {
	defer s.close()
	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg wsInbound
		if err := json.Unmarshal(data, &msg); err != nil {
			// Plain text is accepted as a command line.
			if s.dispatch(string(data)) {
				return
			}
			continue
		}
		switch msg.Type {
		case "command", "":
			if s.dispatch(msg.Text) {
				return
			}
		case "ping":
			// client keepalive; nothing to do
		}
	}
}

// dispatch runs one command line. QUIT ends the session instead of
// reaching the command table.
func (s *wsSession) dispatch(line string) (quit bool) {
	if strings.EqualFold(strings.TrimSpace(line), "QUIT") {
		s.Receive(events.Event{Type: events.EvText, Text: "*** Disconnected ***"})
		return true
	}
	s.game.DispatchCommand(s.player, line)
	return false
}

func (s *wsSession) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.close()
	}()

	for {
		select {
		case <-s.done:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case ev := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			out := wsOutbound{
				Type:   ev.Type.String(),
				Text:   ev.Text,
				Source: int(ev.Source),
				Room:   int(ev.Room),
				Data:   ev.Data,
			}
			if err := s.conn.WriteJSON(out); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
