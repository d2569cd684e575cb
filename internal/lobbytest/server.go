// Package lobbytest is an in-process stand-in for the authoritative lobby
// service. It speaks the same REST and channel protocol and lets tests push
// arbitrary frames.
package lobbytest

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	ptypes "github.com/DoyleJ11/imposter-client/pkg/types"
)

const HostName = "Host"

type Server struct {
	mu       sync.Mutex
	lobbies  map[string]*lobby
	accepted map[string]int
	TTL      time.Duration
	Words    []string
	log      *zap.Logger
}

type lobby struct {
	code      string
	players   []string
	imposters int
	started   bool
	round     int
	word      string
	roles     map[string]string
	createdAt time.Time
	clients   map[*client]string
	pending   map[*client]struct{}
	host      *client
}

type client struct {
	conn *websocket.Conn
	out  chan []byte
}

func New(log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		lobbies:  make(map[string]*lobby),
		accepted: make(map[string]int),
		TTL:      15 * time.Minute,
		Words:    []string{"pizza", "volcano", "library"},
		log:      log,
	}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/lobbies", s.createLobby)
		r.Get("/lobbies/{code}", s.getLobby)
		r.Post("/lobbies/{code}/start", s.startRound)
		r.Post("/lobbies/{code}/end", s.endRound)
		r.Post("/lobbies/{code}/restart", s.restartRound)
		r.Get("/ws/{code}", s.serveWS)
	})
	return r
}

func GenerateCode() (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyz"

	code := make([]byte, 6)
	for i := 0; i < 6; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}

// Create registers a lobby under a fixed code.
func (s *Server) Create(code string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lobbies[code] = &lobby{
		code:      code,
		players:   []string{},
		roles:     map[string]string{},
		createdAt: time.Now(),
		clients:   map[*client]string{},
		pending:   map[*client]struct{}{},
	}
	return code
}

// Remove drops a lobby and hangs up on everyone in it.
func (s *Server) Remove(code string) {
	s.mu.Lock()
	var conns []*websocket.Conn
	if l := s.lobbies[code]; l != nil {
		for c := range l.clients {
			conns = append(conns, c.conn)
		}
		for c := range l.pending {
			conns = append(conns, c.conn)
		}
		if l.host != nil {
			conns = append(conns, l.host.conn)
		}
	}
	delete(s.lobbies, code)
	s.mu.Unlock()

	for _, conn := range conns {
		conn.Close(websocket.StatusGoingAway, "lobby expired")
	}
}

// Accepted counts channel upgrades ever accepted for code.
func (s *Server) Accepted(code string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted[code]
}

func (s *Server) Players(code string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l := s.lobbies[code]; l != nil {
		return append([]string(nil), l.players...)
	}
	return nil
}

// Push sends raw to every registered connection of code and reports how many
// received it.
func (s *Server) Push(code string, raw []byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.lobbies[code]
	if l == nil {
		return 0
	}
	n := 0
	for c := range l.clients {
		if c.send(raw) {
			n++
		}
	}
	if l.host != nil && l.host.send(raw) {
		n++
	}
	return n
}

func (s *Server) createLobby(w http.ResponseWriter, r *http.Request) {
	var code string
	for {
		c, err := GenerateCode()
		if err != nil {
			http.Error(w, "failed to generate code", http.StatusInternalServerError)
			return
		}
		s.mu.Lock()
		_, taken := s.lobbies[c]
		s.mu.Unlock()
		if !taken {
			code = c
			break
		}
	}
	s.Create(code)
	writeJSON(w, ptypes.CreatedLobby{Code: code})
}

func (s *Server) getLobby(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.lobbies[chi.URLParam(r, "code")]
	if l == nil {
		http.Error(w, "lobby not found", http.StatusNotFound)
		return
	}
	expiresAt := l.createdAt.Add(s.TTL)
	writeJSON(w, ptypes.LobbySnapshot{
		Code:      l.code,
		Players:   append([]string(nil), l.players...),
		ExpiresIn: int64(time.Until(expiresAt).Seconds()),
		ExpiresAt: expiresAt,
	})
}

func (s *Server) startRound(w http.ResponseWriter, r *http.Request) {
	var req ptypes.StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	s.deal(w, chi.URLParam(r, "code"), req.Imposters, "game started")
}

func (s *Server) restartRound(w http.ResponseWriter, r *http.Request) {
	var req ptypes.StartRequest
	if r.ContentLength != 0 {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	s.deal(w, chi.URLParam(r, "code"), req.Imposters, "game restarted")
}

// deal assigns roles in roster order, the first n players being impostors,
// and tells every connection about it.
func (s *Server) deal(w http.ResponseWriter, code string, n int, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.lobbies[code]
	if l == nil {
		http.Error(w, "lobby not found", http.StatusNotFound)
		return
	}
	if n <= 0 {
		n = l.imposters
	}
	if n < 1 || n >= len(l.players) {
		http.Error(w, fmt.Sprintf("imposters must be 1 to %d", len(l.players)-1), http.StatusBadRequest)
		return
	}

	l.imposters = n
	l.started = true
	l.word = s.Words[l.round%len(s.Words)]
	l.round++
	l.roles = map[string]string{}
	for i, p := range l.players {
		if i < n {
			l.roles[p] = "imposter"
		} else {
			l.roles[p] = "word"
		}
	}

	for c, name := range l.clients {
		if name != "" {
			c.sendJSON(l.roleMessage(name))
		}
	}
	if l.host != nil {
		l.host.sendJSON(l.hostMessage())
	}
	writeJSON(w, ptypes.StatusReply{Status: status})
}

func (s *Server) endRound(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.lobbies[chi.URLParam(r, "code")]
	if l == nil {
		http.Error(w, "lobby not found", http.StatusNotFound)
		return
	}
	l.started = false
	msg := map[string]any{"type": ptypes.KindGameEnded, "code": l.code}
	for c, name := range l.clients {
		if name != "" {
			c.sendJSON(msg)
		}
	}
	if l.host != nil {
		l.host.sendJSON(msg)
	}
	writeJSON(w, ptypes.StatusReply{Status: "game ended"})
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	s.mu.Lock()
	l := s.lobbies[code]
	s.mu.Unlock()
	if l == nil {
		http.Error(w, "lobby not found", http.StatusNotFound)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	c := &client{conn: conn, out: make(chan []byte, 16)}
	name := r.URL.Query().Get("name")

	// A connection without a name is tracked as pending until its join
	// arrives so Remove can hang up on it too.
	s.mu.Lock()
	s.accepted[code]++
	live := s.lobbies[code] == l
	if live && name == "" {
		l.pending[c] = struct{}{}
	}
	s.mu.Unlock()
	if !live {
		conn.Close(websocket.StatusGoingAway, "lobby expired")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go c.writeLoop(ctx)

	if name == "" {
		name, err = readJoin(ctx, conn)

		s.mu.Lock()
		delete(l.pending, c)
		s.mu.Unlock()
		if err != nil {
			c.sendJSON(map[string]string{"error": err.Error()})
			time.Sleep(50 * time.Millisecond)
			return
		}
	}

	if !s.register(l, c, name) {
		return
	}
	defer s.unregister(l, c, name)

	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}

func readJoin(ctx context.Context, conn *websocket.Conn) (string, error) {
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	_, data, err := conn.Read(readCtx)
	if err != nil {
		return "", err
	}
	var join ptypes.Join
	if err := json.Unmarshal(data, &join); err != nil || join.Type != ptypes.KindJoin {
		return "", fmt.Errorf("first message must be join")
	}
	if join.Name == "" {
		return "", fmt.Errorf("name required")
	}
	return join.Name, nil
}

// register reports false when the lobby was removed while the connection
// was still waiting for its join.
func (s *Server) register(l *lobby, c *client, name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lobbies[l.code] != l {
		return false
	}
	if name == HostName {
		l.host = c
		c.sendJSON(map[string]any{"type": ptypes.KindHostReady, "code": l.code})
		l.broadcastLobby()
		if l.started {
			c.sendJSON(l.hostMessage())
		}
		return true
	}

	l.clients[c] = name
	l.players = append(l.players, name)
	if l.started {
		c.sendJSON(l.roleMessage(name))
	}
	l.broadcastLobby()
	s.log.Debug("player joined", zap.String("code", l.code), zap.String("name", name))
	return true
}

func (s *Server) unregister(l *lobby, c *client, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.host == c {
		l.host = nil
	} else if _, ok := l.clients[c]; ok {
		delete(l.clients, c)
		for i, p := range l.players {
			if p == name {
				l.players = append(l.players[:i], l.players[i+1:]...)
				break
			}
		}
	}
	l.broadcastLobby()
}

func (l *lobby) broadcastLobby() {
	msg := map[string]any{"type": ptypes.KindLobbyState, "code": l.code, "players": append([]string{}, l.players...)}
	for c := range l.clients {
		c.sendJSON(msg)
	}
	if l.host != nil {
		l.host.sendJSON(msg)
	}
}

func (l *lobby) roleMessage(name string) map[string]any {
	role := l.roles[name]
	if role == "" {
		role = "word"
	}
	msg := map[string]any{"type": ptypes.KindGameStarted, "code": l.code, "role": role}
	if role == "word" {
		msg["word"] = l.word
	}
	return msg
}

func (l *lobby) hostMessage() map[string]any {
	return map[string]any{"type": ptypes.KindGameStarted, "code": l.code, "count": len(l.players)}
}

func (c *client) sendJSON(v any) {
	payload, _ := json.Marshal(v)
	c.send(payload)
}

func (c *client) send(payload []byte) bool {
	select {
	case c.out <- payload:
		return true
	default:
		return false
	}
}

func (c *client) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-c.out:
			wctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			_ = c.conn.Write(wctx, websocket.MessageText, payload)
			cancel()
		}
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
