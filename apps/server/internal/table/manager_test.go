package table

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/dawson0919/texasporker-sub000/apps/server/internal/store"
	"github.com/dawson0919/texasporker-sub000/holdem"
)

func testConfig() holdem.Config {
	cfg := holdem.DefaultConfig()
	cfg.Seed = 42
	return cfg
}

func newTestManager(t *testing.T, cfg holdem.Config) *Manager {
	t.Helper()
	m := New(cfg, store.NewMemory(), WithManualTimers())
	t.Cleanup(m.Close)
	return m
}

func joinN(t *testing.T, m *Manager, n int) string {
	t.Helper()
	ctx := context.Background()
	var tableID string
	for i := 0; i < n; i++ {
		res, err := m.JoinTable(ctx, fmt.Sprintf("p%d", i), fmt.Sprintf("player-%d", i), "")
		if err != nil {
			t.Fatalf("join p%d: %v", i, err)
		}
		if tableID == "" {
			tableID = res.TableID
		} else if res.TableID != tableID {
			t.Fatalf("p%d landed on table %s, want %s", i, res.TableID, tableID)
		}
	}
	return tableID
}

func TestJoinIsIdempotentPerPlayer(t *testing.T) {
	m := newTestManager(t, testConfig())
	ctx := context.Background()

	first, err := m.JoinTable(ctx, "p0", "player-0", "")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	again, err := m.JoinTable(ctx, "p0", "player-0", "")
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if again.TableID != first.TableID || again.SeatIndex != first.SeatIndex {
		t.Fatalf("rejoin moved player: %s/%d vs %s/%d",
			again.TableID, again.SeatIndex, first.TableID, first.SeatIndex)
	}
}

func TestJoinFillsSeatsThenLobbyFull(t *testing.T) {
	cfg := testConfig()
	m := New(cfg, store.NewMemory(), WithManualTimers(), WithMaxTables(1))
	t.Cleanup(m.Close)
	ctx := context.Background()

	tableID := joinN(t, m, holdem.MaxSeats)
	if tableID == "" {
		t.Fatal("no table created")
	}
	if _, err := m.JoinTable(ctx, "overflow", "late-player", ""); !errors.Is(err, ErrLobbyFull) {
		t.Fatalf("err = %v, want ErrLobbyFull", err)
	}
}

// 两个并发加入不许拿到同一个座位, 座位行也不许互相覆盖
func TestConcurrentJoinsGetDistinctSeats(t *testing.T) {
	m := newTestManager(t, testConfig())
	ctx := context.Background()
	joinN(t, m, 1) // 锚定一张已有人的桌

	for iter := 0; iter < 300; iter++ {
		a := fmt.Sprintf("left-%d", iter)
		b := fmt.Sprintf("right-%d", iter)
		var ra, rb *JoinResult
		var ea, eb error
		var wg sync.WaitGroup
		wg.Add(2)
		go func() { defer wg.Done(); ra, ea = m.JoinTable(ctx, a, a, "") }()
		go func() { defer wg.Done(); rb, eb = m.JoinTable(ctx, b, b, "") }()
		wg.Wait()
		if ea != nil || eb != nil {
			t.Fatalf("iteration %d: join errors %v / %v", iter, ea, eb)
		}
		if ra.TableID == rb.TableID && ra.SeatIndex == rb.SeatIndex {
			t.Fatalf("iteration %d: both players assigned table=%s seat=%d", iter, ra.TableID, ra.SeatIndex)
		}
		for _, want := range []struct {
			player string
			res    *JoinResult
		}{{a, ra}, {b, rb}} {
			rows, err := m.store.ListSeats(ctx, want.res.TableID)
			if err != nil {
				t.Fatalf("iteration %d: list seats: %v", iter, err)
			}
			found := false
			for _, r := range rows {
				if r.PlayerID == want.player && r.SeatIndex == want.res.SeatIndex {
					found = true
					break
				}
			}
			if !found {
				t.Fatalf("iteration %d: %s's seat row for seat %d clobbered", iter, want.player, want.res.SeatIndex)
			}
		}
		if err := m.LeaveTable(ctx, ra.TableID, a); err != nil {
			t.Fatalf("iteration %d: leave %s: %v", iter, a, err)
		}
		if err := m.LeaveTable(ctx, rb.TableID, b); err != nil {
			t.Fatalf("iteration %d: leave %s: %v", iter, b, err)
		}
	}
}

func TestStartHandIsIdempotent(t *testing.T) {
	m := newTestManager(t, testConfig())
	ctx := context.Background()
	tableID := joinN(t, m, 3)

	st, err := m.StartHand(ctx, tableID)
	if err != nil {
		t.Fatalf("start hand: %v", err)
	}
	if !st.IsHandInProgress || st.HandCount != 1 {
		t.Fatalf("inProgress=%v handCount=%d", st.IsHandInProgress, st.HandCount)
	}
	again, err := m.StartHand(ctx, tableID)
	if err != nil {
		t.Fatalf("second start: %v", err)
	}
	if again.HandCount != 1 {
		t.Fatalf("second start dealt a new hand: handCount=%d", again.HandCount)
	}
}

func TestFillWithAIRespectsDeadline(t *testing.T) {
	m := newTestManager(t, testConfig())
	ctx := context.Background()
	tableID := joinN(t, m, 1)

	// 期限未到, 不补位
	st, err := m.FillWithAI(ctx, tableID)
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	occupied := 0
	for _, s := range st.Seats {
		if s != nil {
			occupied++
		}
	}
	if occupied != 1 {
		t.Fatalf("filled before deadline: %d seats", occupied)
	}
}

func TestFillWithAIAfterDeadline(t *testing.T) {
	cfg := testConfig()
	cfg.AutoStartDelay = -time.Second // 期限立即过期
	m := newTestManager(t, cfg)
	ctx := context.Background()
	tableID := joinN(t, m, 1)

	st, err := m.FillWithAI(ctx, tableID)
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	names := map[string]int{}
	for _, s := range st.Seats {
		if s == nil {
			t.Fatal("empty seat after ai fill")
		}
		if s.PlayerType == holdem.PlayerAI {
			names[s.DisplayName]++
			if s.ChipBalance < 2000 || s.ChipBalance >= 10000 {
				t.Fatalf("ai balance %d out of range", s.ChipBalance)
			}
		}
	}
	if len(names) != holdem.MaxSeats-1 {
		t.Fatalf("ai seats = %d, want %d", len(names), holdem.MaxSeats-1)
	}
	for name, n := range names {
		if n > 1 {
			t.Fatalf("ai name %q reused %d times", name, n)
		}
	}

	rows, err := m.store.ListSeats(ctx, tableID)
	if err != nil {
		t.Fatalf("list seats: %v", err)
	}
	if len(rows) != holdem.MaxSeats {
		t.Fatalf("persisted seats = %d, want %d", len(rows), holdem.MaxSeats)
	}
}

func TestLeaveClosesTableWithoutRealPlayers(t *testing.T) {
	m := newTestManager(t, testConfig())
	ctx := context.Background()
	tableID := joinN(t, m, 1)

	if err := m.LeaveTable(ctx, tableID, "p0"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	summaries, err := m.Summaries(ctx)
	if err != nil {
		t.Fatalf("summaries: %v", err)
	}
	if len(summaries) != 0 {
		t.Fatalf("open tables = %d after last real player left", len(summaries))
	}
}

func TestLeaveDuringOwnTurnFoldsFirst(t *testing.T) {
	m := newTestManager(t, testConfig())
	ctx := context.Background()
	tableID := joinN(t, m, 3)

	st, err := m.StartHand(ctx, tableID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	total := st.TotalChips()
	leaver := st.Seats[st.CurrentSeatIndex]
	if err := m.LeaveTable(ctx, tableID, leaver.PlayerID); err != nil {
		t.Fatalf("leave: %v", err)
	}

	after, err := m.store.GetTable(ctx, tableID)
	if err != nil {
		t.Fatalf("get table: %v", err)
	}
	if after.State.Seats[leaver.SeatIndex] != nil {
		t.Fatal("leaver still seated in state")
	}
	// 轮到他的牌局被替他弃牌推进, 没有卡在空座位上
	if after.State.IsHandInProgress && after.State.CurrentSeatIndex == leaver.SeatIndex {
		t.Fatalf("hand still waiting on departed seat %d", leaver.SeatIndex)
	}
	// 离座者带走自己的余额, 已下的注留在池里
	if got := after.State.TotalChips(); got != total-leaver.ChipBalance {
		t.Fatalf("table chips = %d, want %d", got, total-leaver.ChipBalance)
	}
}

func TestReconcileSyncsSeatsFromStore(t *testing.T) {
	st := holdem.NewGameState()
	// 状态里有 0,1; 存档里有 1(余额变了),2(两手之间新加入)
	st.Seats[0] = &holdem.Seat{SeatIndex: 0, PlayerID: "gone", ChipBalance: 5000, Status: holdem.SeatPlaying}
	st.Seats[1] = &holdem.Seat{SeatIndex: 1, PlayerID: "stay", ChipBalance: 1, Bet: 77, TotalInvested: 500, Status: holdem.SeatFolded, IsWinner: true}
	rows := []*store.SeatRow{
		{SeatIndex: 1, PlayerID: "stay", PlayerType: holdem.PlayerReal, Balance: 4321},
		{SeatIndex: 2, PlayerID: "fresh", PlayerType: holdem.PlayerReal, Balance: 9999},
		{SeatIndex: 99, PlayerID: "overflow", PlayerType: holdem.PlayerReal, Balance: 1},
	}
	out := reconcile(st, rows)

	if out.Seats[0] != nil {
		t.Fatal("departed seat not cleared")
	}
	s1 := out.Seats[1]
	if s1.ChipBalance != 4321 || s1.Bet != 0 || s1.TotalInvested != 0 ||
		s1.Status != holdem.SeatWaiting || s1.IsWinner {
		t.Fatalf("seat 1 not resynced: %+v", s1)
	}
	s2 := out.Seats[2]
	if s2 == nil || s2.PlayerID != "fresh" || s2.ChipBalance != 9999 || s2.Status != holdem.SeatWaiting {
		t.Fatalf("joined seat not added: %+v", s2)
	}
	if len(out.Seats) != holdem.MaxSeats {
		t.Fatalf("seats length = %d, want %d", len(out.Seats), holdem.MaxSeats)
	}
}

func TestShowdownCommitsBalancesToStore(t *testing.T) {
	m := newTestManager(t, testConfig())
	ctx := context.Background()
	tableID := joinN(t, m, 2)

	st, err := m.StartHand(ctx, tableID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	// 一直让/跟直到摊牌
	for st.IsHandInProgress {
		seat := st.Seats[st.CurrentSeatIndex]
		action := holdem.ActionCheck
		if seat.Bet < st.CurrentBet {
			action = holdem.ActionCall
		}
		st, err = m.SubmitAction(ctx, tableID, seat.PlayerID, action, 0)
		if err != nil {
			t.Fatalf("action: %v", err)
		}
	}

	rows, err := m.store.ListSeats(ctx, tableID)
	if err != nil {
		t.Fatalf("list seats: %v", err)
	}
	var sum int64
	for _, r := range rows {
		sum += r.Balance
		if len(r.HoleCards) != 0 {
			t.Fatalf("hole cards not cleared after showdown: seat %d", r.SeatIndex)
		}
	}
	if sum != 2*m.cfg.DefaultBuyIn {
		t.Fatalf("persisted balances sum = %d, want %d", sum, 2*m.cfg.DefaultBuyIn)
	}
	for _, r := range rows {
		seat := st.Seats[r.SeatIndex]
		if seat == nil || seat.ChipBalance != r.Balance {
			t.Fatalf("seat %d balance mismatch: state=%v row=%d", r.SeatIndex, seat, r.Balance)
		}
	}
}

// 超时强制弃牌必须和玩家手动弃牌走同一条路径, 产生同样的结果状态.
// 两个同种子的独立环境, 一边手动弃牌一边超时判定, 对比全部牌局字段.
func TestForceTimeoutEqualsManualFold(t *testing.T) {
	cfg := testConfig()
	cfg.TurnTimer = -2 * time.Second // 发牌即超时
	cfg.TimeoutGrace = 0
	ctx := context.Background()

	run := func(viaTimeout bool) *holdem.GameState {
		m := newTestManager(t, cfg)
		tableID := joinN(t, m, 3)
		st, err := m.StartHand(ctx, tableID)
		if err != nil {
			t.Fatalf("start: %v", err)
		}
		actor := st.Seats[st.CurrentSeatIndex]
		if viaTimeout {
			st, err = m.ForceTimeout(ctx, tableID)
		} else {
			st, err = m.SubmitAction(ctx, tableID, actor.PlayerID, holdem.ActionFold, 0)
		}
		if err != nil {
			t.Fatalf("advance (timeout=%v): %v", viaTimeout, err)
		}
		return st
	}

	manual := run(false)
	forced := run(true)

	if manual.CurrentSeatIndex != forced.CurrentSeatIndex {
		t.Fatalf("next seat: manual=%d forced=%d", manual.CurrentSeatIndex, forced.CurrentSeatIndex)
	}
	if manual.PotSize != forced.PotSize || manual.CurrentBet != forced.CurrentBet {
		t.Fatalf("pot/bet diverged: %d/%d vs %d/%d",
			manual.PotSize, manual.CurrentBet, forced.PotSize, forced.CurrentBet)
	}
	if !reflect.DeepEqual(manual.ActedThisRound, forced.ActedThisRound) {
		t.Fatalf("actedThisRound: %v vs %v", manual.ActedThisRound, forced.ActedThisRound)
	}
	for i := range manual.Seats {
		a, b := manual.Seats[i], forced.Seats[i]
		if (a == nil) != (b == nil) {
			t.Fatalf("seat %d occupancy diverged", i)
		}
		if a == nil {
			continue
		}
		if a.Status != b.Status || a.Bet != b.Bet || a.ChipBalance != b.ChipBalance ||
			a.TotalInvested != b.TotalInvested || a.LastAction != b.LastAction {
			t.Fatalf("seat %d diverged: %+v vs %+v", i, a, b)
		}
	}
}

func TestTimedOutBoundaryInstant(t *testing.T) {
	deadline := time.Unix(1000, 0)
	grace := time.Second
	if timedOut(deadline.Add(grace), deadline, grace) {
		t.Fatal("exactly deadline+grace must not count as expired")
	}
	if !timedOut(deadline.Add(grace+time.Nanosecond), deadline, grace) {
		t.Fatal("one step past deadline+grace must count as expired")
	}
	if timedOut(deadline, deadline, grace) {
		t.Fatal("deadline itself must not count as expired")
	}
}

func TestForceTimeoutRejectedBeforeDeadline(t *testing.T) {
	m := newTestManager(t, testConfig())
	ctx := context.Background()
	tableID := joinN(t, m, 3)
	if _, err := m.StartHand(ctx, tableID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := m.ForceTimeout(ctx, tableID); !errors.Is(err, ErrDeadlineNotExpired) {
		t.Fatalf("err = %v, want ErrDeadlineNotExpired", err)
	}
}

func TestForceTimeoutWithoutHand(t *testing.T) {
	m := newTestManager(t, testConfig())
	ctx := context.Background()
	tableID := joinN(t, m, 2)
	if _, err := m.ForceTimeout(ctx, tableID); !errors.Is(err, holdem.ErrNoHandInProgress) {
		t.Fatalf("err = %v, want ErrNoHandInProgress", err)
	}
}

func TestMyCardsOnlyForSeatedPlayer(t *testing.T) {
	m := newTestManager(t, testConfig())
	ctx := context.Background()
	tableID := joinN(t, m, 2)
	if _, err := m.StartHand(ctx, tableID); err != nil {
		t.Fatalf("start: %v", err)
	}
	cs, err := m.MyCards(ctx, tableID, "p0")
	if err != nil {
		t.Fatalf("my cards: %v", err)
	}
	if len(cs) != 2 {
		t.Fatalf("got %d cards, want 2", len(cs))
	}
	if _, err := m.MyCards(ctx, tableID, "stranger"); !errors.Is(err, ErrSeatNotFound) {
		t.Fatalf("err = %v, want ErrSeatNotFound", err)
	}
}
