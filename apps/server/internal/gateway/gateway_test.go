package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dawson0919/texasporker-sub000/apps/server/internal/store"
	"github.com/dawson0919/texasporker-sub000/apps/server/internal/table"
	"github.com/dawson0919/texasporker-sub000/holdem"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := holdem.DefaultConfig()
	cfg.Seed = 7
	manager := table.New(cfg, store.NewMemory(), table.WithManualTimers())
	t.Cleanup(manager.Close)

	gw := New(manager)
	mux := http.NewServeMux()
	gw.Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, srv *httptest.Server, path, playerID string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, srv.URL+path, bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if playerID != "" {
		req.Header.Set(playerHeader, playerID)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	resp, err := srv.Client().Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestJoinRequiresPlayerHeader(t *testing.T) {
	srv := newTestServer(t)
	resp := post(t, srv, "/api/join", "", map[string]string{})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestJoinStartActFlow(t *testing.T) {
	srv := newTestServer(t)

	var joined struct {
		TableID   string            `json:"tableId"`
		SeatIndex int               `json:"seatIndex"`
		State     *holdem.GameState `json:"state"`
	}
	resp := post(t, srv, "/api/join", "alice", map[string]string{"displayName": "Alice"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("join status = %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&joined); err != nil {
		t.Fatalf("decode join: %v", err)
	}
	if joined.TableID == "" || joined.State == nil {
		t.Fatalf("bad join response: %+v", joined)
	}

	resp = post(t, srv, "/api/join", "bob", map[string]string{"displayName": "Bob"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("second join status = %d", resp.StatusCode)
	}

	var started struct {
		State *holdem.GameState `json:"state"`
	}
	resp = post(t, srv, "/api/start-hand", "alice", map[string]string{"tableId": joined.TableID})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start status = %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&started); err != nil {
		t.Fatalf("decode start: %v", err)
	}
	st := started.State
	if st == nil || !st.IsHandInProgress {
		t.Fatalf("hand not started: %+v", st)
	}

	// 不是当前行动者的请求要被拒绝
	actor := st.Seats[st.CurrentSeatIndex].PlayerID
	other := "alice"
	if actor == "alice" {
		other = "bob"
	}
	resp = post(t, srv, "/api/action", other,
		map[string]any{"tableId": joined.TableID, "action": "call"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("out-of-turn status = %d, want 400", resp.StatusCode)
	}
	resp = post(t, srv, "/api/action", actor,
		map[string]any{"tableId": joined.TableID, "action": "call"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("action status = %d", resp.StatusCode)
	}
}

func TestMyCardsHidesOtherPlayers(t *testing.T) {
	srv := newTestServer(t)
	var joined struct {
		TableID string `json:"tableId"`
	}
	resp := post(t, srv, "/api/join", "alice", map[string]string{})
	if err := json.NewDecoder(resp.Body).Decode(&joined); err != nil {
		t.Fatalf("decode: %v", err)
	}
	post(t, srv, "/api/join", "bob", map[string]string{})
	post(t, srv, "/api/start-hand", "alice", map[string]string{"tableId": joined.TableID})

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/my-cards?tableId="+joined.TableID, nil)
	req.Header.Set(playerHeader, "alice")
	resp2, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("get my-cards: %v", err)
	}
	defer resp2.Body.Close()
	var cardsResp struct {
		Cards []string `json:"cards"`
	}
	if err := json.NewDecoder(resp2.Body).Decode(&cardsResp); err != nil {
		t.Fatalf("decode cards: %v", err)
	}
	if len(cardsResp.Cards) != 2 {
		t.Fatalf("got %d cards, want 2", len(cardsResp.Cards))
	}

	req.Header.Set(playerHeader, "stranger")
	resp3, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("get stranger cards: %v", err)
	}
	defer resp3.Body.Close()
	if resp3.StatusCode != http.StatusNotFound {
		t.Fatalf("stranger status = %d, want 404", resp3.StatusCode)
	}
}
