package table

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/dawson0919/texasporker-sub000/apps/server/internal/store"
	"github.com/dawson0919/texasporker-sub000/card"
	"github.com/dawson0919/texasporker-sub000/holdem"
)

// StartHand 开新手牌. 已在局中时幂等返回当前状态.
// 开局前必做座位对账: 余额以座位行为准, 桌间加入/离开的玩家同步进状态.
func (m *Manager) StartHand(ctx context.Context, tableID string) (*holdem.GameState, error) {
	h := m.handleFor(tableID)
	h.mu.Lock()
	defer h.mu.Unlock()

	t, err := m.getOpenTable(ctx, tableID)
	if err != nil {
		return nil, err
	}
	if t.State.IsHandInProgress {
		return t.State, nil
	}
	rows, err := m.store.ListSeats(ctx, tableID)
	if err != nil {
		return nil, err
	}
	synced := reconcile(t.State, rows)

	now := time.Now()
	st, hole, deck, err := holdem.DealNewHand(m.cfg, synced, h.rng, now)
	if err != nil {
		return nil, err
	}
	if err := m.store.SetHoleCards(ctx, tableID, hole); err != nil {
		return nil, err
	}
	st, err = holdem.RunBots(m.cfg, st, hole, deck, h.brain, now)
	if err != nil {
		return nil, err
	}
	if err := m.finish(ctx, t, st); err != nil {
		return nil, err
	}
	log.Printf("[Table] hand started: table=%s hand=%d dealer=%d", tableID, st.HandCount, st.DealerSeatIndex)
	return st, nil
}

// SubmitAction 处理玩家动作, 随后机器人连锁在同一次调用里跑完
func (m *Manager) SubmitAction(ctx context.Context, tableID, playerID string, action holdem.ActionType, raiseTo int64) (*holdem.GameState, error) {
	h := m.handleFor(tableID)
	h.mu.Lock()
	defer h.mu.Unlock()

	t, err := m.getOpenTable(ctx, tableID)
	if err != nil {
		return nil, err
	}
	seat := t.State.SeatByPlayer(playerID)
	if seat == nil {
		return nil, ErrSeatNotFound
	}
	hole, deck, err := m.loadCards(ctx, tableID, t.State, h)
	if err != nil {
		return nil, err
	}
	st, err := holdem.ProcessAction(m.cfg, t.State, seat.SeatIndex, action, raiseTo, hole, deck, h.brain, time.Now())
	if err != nil {
		return nil, err
	}
	if err := m.finish(ctx, t, st); err != nil {
		return nil, err
	}
	return st, nil
}

// ForceTimeout 任何一方都可以发起超时判定, 防止掉线玩家挂死整桌.
// 校验通过后强制弃牌, 走的正是 SubmitAction 同一条动作路径.
func (m *Manager) ForceTimeout(ctx context.Context, tableID string) (*holdem.GameState, error) {
	h := m.handleFor(tableID)
	h.mu.Lock()
	defer h.mu.Unlock()

	t, err := m.getOpenTable(ctx, tableID)
	if err != nil {
		return nil, err
	}
	st := t.State
	if !st.IsHandInProgress {
		return nil, holdem.ErrNoHandInProgress
	}
	if st.ActionDeadline == nil {
		return nil, ErrNoDeadline
	}
	if !timedOut(time.Now(), *st.ActionDeadline, m.cfg.TimeoutGrace) {
		return nil, ErrDeadlineNotExpired
	}
	hole, deck, err := m.loadCards(ctx, tableID, st, h)
	if err != nil {
		return nil, err
	}
	next, err := holdem.ProcessAction(m.cfg, st, st.CurrentSeatIndex, holdem.ActionFold, 0, hole, deck, h.brain, time.Now())
	if err != nil {
		return nil, err
	}
	if err := m.finish(ctx, t, next); err != nil {
		return nil, err
	}
	log.Printf("[Table] forced fold on timeout: table=%s seat=%d", tableID, st.CurrentSeatIndex)
	return next, nil
}

// MyCards 返回玩家自己的手牌
func (m *Manager) MyCards(ctx context.Context, tableID, playerID string) ([]card.Card, error) {
	t, err := m.getOpenTable(ctx, tableID)
	if err != nil {
		return nil, err
	}
	seat := t.State.SeatByPlayer(playerID)
	if seat == nil {
		return nil, ErrSeatNotFound
	}
	hole, err := m.store.GetHoleCards(ctx, tableID)
	if err != nil {
		return nil, err
	}
	return hole[seat.SeatIndex], nil
}

// timedOut 必须严格越过 deadline+grace 才算超时, 边界时刻不算
func timedOut(now, deadline time.Time, grace time.Duration) bool {
	return now.After(deadline.Add(grace))
}

// loadCards 读手牌并重建牌堆: 把已发出的牌 (手牌+公共牌) 从整副里剔除.
// 无状态服务换实例接手同一手牌也能继续发后续街.
func (m *Manager) loadCards(ctx context.Context, tableID string, st *holdem.GameState, h *handle) (map[int][]card.Card, *card.Deck, error) {
	hole, err := m.store.GetHoleCards(ctx, tableID)
	if err != nil {
		return nil, nil, err
	}
	used := make([]card.Card, 0, 5+2*len(hole))
	used = append(used, st.CommunityCards...)
	for _, cs := range hole {
		used = append(used, cs...)
	}
	return hole, card.NewDeckExcluding(h.rng, used), nil
}

// finish 动作处理的统一收尾: 落库, 结算提交, 推送, 排定时器
func (m *Manager) finish(ctx context.Context, t *store.TableRow, st *holdem.GameState) error {
	// 盲注全下的快进路径下, 一手牌可能在同一次调用里开始并结束,
	// 此时靠 handCount 的增长识别结束
	ended := !st.IsHandInProgress && (t.State.IsHandInProgress || st.HandCount > t.HandCount)
	t.State = st
	t.HandCount = st.HandCount
	if err := m.store.SaveTable(ctx, t); err != nil {
		return err
	}
	if ended {
		if err := m.commitShowdown(ctx, t.ID, st); err != nil {
			return err
		}
	}
	m.push(t.ID, st)
	m.scheduleWake(t.ID, st)
	return nil
}

// commitShowdown 结算后把余额落回权威座位行, 并清掉本手的手牌
func (m *Manager) commitShowdown(ctx context.Context, tableID string, st *holdem.GameState) error {
	balances := map[int]int64{}
	for _, s := range st.Seats {
		if s != nil {
			balances[s.SeatIndex] = s.ChipBalance
		}
	}
	if err := m.store.CommitBalances(ctx, tableID, balances); err != nil {
		return err
	}
	return m.store.SetHoleCards(ctx, tableID, nil)
}

// reconcile 开局前对账: 座位数拉回固定上限, 状态与座位行互相同步,
// 余额永远以持久化为准. 每次开局都要跑, 真人随时会进出.
func reconcile(prev *holdem.GameState, rows []*store.SeatRow) *holdem.GameState {
	st := prev.Clone()
	if len(st.Seats) > holdem.MaxSeats {
		st.Seats = st.Seats[:holdem.MaxSeats]
	}
	for len(st.Seats) < holdem.MaxSeats {
		st.Seats = append(st.Seats, nil)
	}
	byIdx := map[int]*store.SeatRow{}
	for _, r := range rows {
		if r.SeatIndex >= 0 && r.SeatIndex < holdem.MaxSeats {
			byIdx[r.SeatIndex] = r
		}
	}
	for idx := 0; idx < holdem.MaxSeats; idx++ {
		row := byIdx[idx]
		cur := st.Seats[idx]
		switch {
		case row == nil:
			// 两手之间离开的玩家
			st.Seats[idx] = nil
		case cur == nil:
			// 两手之间加入的玩家
			st.Seats[idx] = &holdem.Seat{
				SeatIndex:   idx,
				PlayerType:  row.PlayerType,
				PlayerID:    row.PlayerID,
				DisplayName: row.DisplayName,
				AvatarURL:   row.AvatarURL,
				ChipBalance: row.Balance,
				Status:      holdem.SeatWaiting,
			}
		default:
			cur.ChipBalance = row.Balance
			cur.Bet = 0
			cur.TotalInvested = 0
			cur.Status = holdem.SeatWaiting
			cur.Role = holdem.RoleNone
			cur.LastAction = ""
			cur.HandName = ""
			cur.IsWinner = false
			cur.Winnings = 0
			cur.RevealedCards = nil
		}
	}
	return st
}

// scheduleWake 按状态排下一次自动唤醒:
// 手牌进行中盯 actionDeadline, 否则盯 autoStartAt 自动开下一手.
func (m *Manager) scheduleWake(tableID string, st *holdem.GameState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.noWake {
		return
	}
	h, ok := m.handles[tableID]
	if !ok {
		return
	}
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}

	var at time.Time
	var fn func()
	switch {
	case st.IsHandInProgress && st.ActionDeadline != nil:
		// 多给一点余量, 确保醒来时超时判定必然通过
		at = st.ActionDeadline.Add(m.cfg.TimeoutGrace + 100*time.Millisecond)
		fn = func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if _, err := m.ForceTimeout(ctx, tableID); err != nil &&
				!errors.Is(err, ErrDeadlineNotExpired) && !errors.Is(err, holdem.ErrNoHandInProgress) {
				log.Printf("[Table] timeout check failed: table=%s err=%v", tableID, err)
			}
		}
	case !st.IsHandInProgress && st.AutoStartAt != nil:
		at = *st.AutoStartAt
		fn = func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if _, err := m.StartHand(ctx, tableID); err != nil &&
				!errors.Is(err, holdem.ErrNotEnoughPlayers) && !errors.Is(err, ErrTableNotFound) {
				log.Printf("[Table] auto restart failed: table=%s err=%v", tableID, err)
			}
		}
	default:
		return
	}
	h.timer = time.AfterFunc(time.Until(at), fn)
}

// scheduleAt 建桌时的补位定时器
func (m *Manager) scheduleAt(tableID string, at time.Time, fn func()) {
	h := m.handleFor(tableID)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.noWake {
		return
	}
	if h.fillTimer != nil {
		h.fillTimer.Stop()
	}
	h.fillTimer = time.AfterFunc(time.Until(at), fn)
}
