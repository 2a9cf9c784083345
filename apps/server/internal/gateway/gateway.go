// Package gateway 对外 HTTP/WebSocket 接口.
// 身份解析在上游完成 (见部署说明), 这里只认请求头里的玩家 ID.
package gateway

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/dawson0919/texasporker-sub000/apps/server/internal/table"
	"github.com/dawson0919/texasporker-sub000/holdem"
)

const playerHeader = "X-Player-Id"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// 部署在同源反代之后
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Gateway 路由与 websocket 广播
type Gateway struct {
	manager *table.Manager

	mu   sync.Mutex
	subs map[string]map[*websocket.Conn]struct{}
}

func New(manager *table.Manager) *Gateway {
	return &Gateway{
		manager: manager,
		subs:    map[string]map[*websocket.Conn]struct{}{},
	}
}

// Register 挂路由
func (g *Gateway) Register(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/api/tables", g.handleTables)
	mux.HandleFunc("/api/join", g.handleJoin)
	mux.HandleFunc("/api/leave", g.handleLeave)
	mux.HandleFunc("/api/start-hand", g.handleStartHand)
	mux.HandleFunc("/api/action", g.handleAction)
	mux.HandleFunc("/api/timeout", g.handleTimeout)
	mux.HandleFunc("/api/my-cards", g.handleMyCards)
	mux.HandleFunc("/ws", g.handleWS)
}

// Broadcast 实现 table.NotifyFunc, 状态落库后推给订阅这张桌的连接
func (g *Gateway) Broadcast(tableID string, st *holdem.GameState) {
	payload, err := json.Marshal(map[string]any{"type": "state", "tableId": tableID, "state": st})
	if err != nil {
		log.Printf("[Gateway] marshal broadcast failed: %v", err)
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for conn := range g.subs[tableID] {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			conn.Close()
			delete(g.subs[tableID], conn)
		}
	}
}

func (g *Gateway) handleWS(w http.ResponseWriter, r *http.Request) {
	tableID := r.URL.Query().Get("tableId")
	if tableID == "" {
		http.Error(w, "missing tableId", http.StatusBadRequest)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Gateway] ws upgrade failed: %v", err)
		return
	}
	g.mu.Lock()
	if g.subs[tableID] == nil {
		g.subs[tableID] = map[*websocket.Conn]struct{}{}
	}
	g.subs[tableID][conn] = struct{}{}
	g.mu.Unlock()

	// 只收不理, 读错误即断订阅
	go func() {
		defer func() {
			g.mu.Lock()
			delete(g.subs[tableID], conn)
			g.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

type joinRequest struct {
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl"`
}

type tableRequest struct {
	TableID string `json:"tableId"`
}

type actionRequest struct {
	TableID string            `json:"tableId"`
	Action  holdem.ActionType `json:"action"`
	RaiseTo int64             `json:"raiseTo"`
}

func (g *Gateway) handleJoin(w http.ResponseWriter, r *http.Request) {
	playerID, ok := g.requirePlayer(w, r)
	if !ok {
		return
	}
	var req joinRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.DisplayName == "" {
		req.DisplayName = "玩家" + shortID(playerID)
	}
	res, err := g.manager.JoinTable(r.Context(), playerID, req.DisplayName, req.AvatarURL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"tableId": res.TableID, "seatIndex": res.SeatIndex, "state": res.State})
}

func (g *Gateway) handleLeave(w http.ResponseWriter, r *http.Request) {
	playerID, ok := g.requirePlayer(w, r)
	if !ok {
		return
	}
	var req tableRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := g.manager.LeaveTable(r.Context(), req.TableID, playerID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"ok": true})
}

func (g *Gateway) handleStartHand(w http.ResponseWriter, r *http.Request) {
	if _, ok := g.requirePlayer(w, r); !ok {
		return
	}
	var req tableRequest
	if !decodeBody(w, r, &req) {
		return
	}
	st, err := g.manager.StartHand(r.Context(), req.TableID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"state": st})
}

func (g *Gateway) handleAction(w http.ResponseWriter, r *http.Request) {
	playerID, ok := g.requirePlayer(w, r)
	if !ok {
		return
	}
	var req actionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	st, err := g.manager.SubmitAction(r.Context(), req.TableID, playerID, req.Action, req.RaiseTo)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"state": st})
}

// handleTimeout 任何登录方都可触发超时判定, 掉线的人不会挂死整桌
func (g *Gateway) handleTimeout(w http.ResponseWriter, r *http.Request) {
	if _, ok := g.requirePlayer(w, r); !ok {
		return
	}
	var req tableRequest
	if !decodeBody(w, r, &req) {
		return
	}
	st, err := g.manager.ForceTimeout(r.Context(), req.TableID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"state": st})
}

func (g *Gateway) handleMyCards(w http.ResponseWriter, r *http.Request) {
	playerID, ok := g.requirePlayer(w, r)
	if !ok {
		return
	}
	tableID := r.URL.Query().Get("tableId")
	if tableID == "" {
		http.Error(w, "missing tableId", http.StatusBadRequest)
		return
	}
	cards, err := g.manager.MyCards(r.Context(), tableID, playerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"cards": cards})
}

func (g *Gateway) handleTables(w http.ResponseWriter, r *http.Request) {
	summaries, err := g.manager.Summaries(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"tables": summaries})
}

func (g *Gateway) requirePlayer(w http.ResponseWriter, r *http.Request) (string, bool) {
	playerID := r.Header.Get(playerHeader)
	if playerID == "" {
		http.Error(w, "missing "+playerHeader, http.StatusUnauthorized)
		return "", false
	}
	return playerID, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[Gateway] write response failed: %v", err)
	}
}

// writeError 业务错误映射成 HTTP 状态码
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, table.ErrTableNotFound), errors.Is(err, table.ErrSeatNotFound):
		status = http.StatusNotFound
	case errors.Is(err, table.ErrLobbyFull):
		status = http.StatusConflict
	case errors.Is(err, holdem.ErrNotYourTurn),
		errors.Is(err, holdem.ErrInvalidAction),
		errors.Is(err, holdem.ErrNoHandInProgress),
		errors.Is(err, holdem.ErrNotEnoughPlayers),
		errors.Is(err, holdem.ErrTurnExpired),
		errors.Is(err, holdem.ErrSeatNotPlaying),
		errors.Is(err, table.ErrNoDeadline),
		errors.Is(err, table.ErrDeadlineNotExpired):
		status = http.StatusBadRequest
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func shortID(id string) string {
	if len(id) > 4 {
		return id[:4]
	}
	return id
}
