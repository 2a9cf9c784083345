// Package table 管理牌桌生命周期: 配桌入座, 机器人补位,
// 开手/行动/超时的编排, 以及状态持久化.
// 引擎本身是纯函数, 这里负责串行化和落库.
package table

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dawson0919/texasporker-sub000/apps/server/internal/store"
	"github.com/dawson0919/texasporker-sub000/holdem"
	"github.com/dawson0919/texasporker-sub000/holdem/bot"
)

var (
	// ErrLobbyFull 开桌数已达上限且无空位
	ErrLobbyFull = errors.New("table: lobby full")
	// ErrTableNotFound 牌桌不存在或已关闭
	ErrTableNotFound = errors.New("table: not found")
	// ErrSeatNotFound 玩家不在这张桌上
	ErrSeatNotFound = errors.New("table: seat not found")
	// ErrNoDeadline 当前没有待超时的行动
	ErrNoDeadline = errors.New("table: no action deadline set")
	// ErrDeadlineNotExpired 时限未到, 超时判定被拒绝
	ErrDeadlineNotExpired = errors.New("table: deadline not yet expired")
)

// errNoFreeSeat 加锁重读后发现这张桌已没有空位, 外层换桌重试
var errNoFreeSeat = errors.New("table: no free seat")

// 机器人名字池, 尽量不重名, 用完才回头复用
var aiNames = []string{
	"撲克王", "莎拉", "麥克", "幸運星", "大衛", "小美", "阿傑",
	"龍哥", "鳳姐", "金剛", "翠花", "老王", "小李", "阿強",
	"美玲", "志明", "春嬌", "阿寶", "小鬼", "大師",
}

const defaultMaxTables = 5

// NotifyFunc 状态落库成功后的推送回调 (gateway 接 websocket 广播)
type NotifyFunc func(tableID string, st *holdem.GameState)

// Manager 所有牌桌的编排入口. 每桌一把互斥锁串行化动作,
// 落库再带版本号 CAS, 多实例部署下的并发写也丢不了动作.
type Manager struct {
	cfg       holdem.Config
	store     store.Store
	maxTables int
	notify    NotifyFunc

	mu      sync.Mutex
	handles map[string]*handle
	closed  bool
	noWake  bool
}

// handle 单桌的进程内伴生状态: 锁, 随机源, 决策器, 定时器
type handle struct {
	mu        sync.Mutex
	rng       *rand.Rand
	brain     *bot.Brain
	timer     *time.Timer
	fillTimer *time.Timer
}

// Option 构造参数
type Option func(*Manager)

// WithMaxTables 上限开桌数
func WithMaxTables(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxTables = n
		}
	}
}

// WithNotify 注册状态推送回调
func WithNotify(fn NotifyFunc) Option {
	return func(m *Manager) { m.notify = fn }
}

// WithManualTimers 关掉自动补位/超时/续局定时器, 一切推进靠显式调用.
// 确定性测试用.
func WithManualTimers() Option {
	return func(m *Manager) { m.noWake = true }
}

// SetNotify 构造后补挂推送回调 (gateway 与 Manager 互相引用时用)
func (m *Manager) SetNotify(fn NotifyFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notify = fn
}

// New 创建 Manager
func New(cfg holdem.Config, st store.Store, opts ...Option) *Manager {
	m := &Manager{
		cfg:       cfg,
		store:     st,
		maxTables: defaultMaxTables,
		handles:   map[string]*handle{},
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Close 停掉所有桌的定时器
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	for _, h := range m.handles {
		if h.timer != nil {
			h.timer.Stop()
		}
		if h.fillTimer != nil {
			h.fillTimer.Stop()
		}
	}
}

// handleFor 取或建单桌伴生状态
func (m *Manager) handleFor(tableID string) *handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.handles[tableID]
	if !ok {
		seed := m.cfg.Seed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		rng := rand.New(rand.NewSource(seed))
		h = &handle{rng: rng, brain: bot.New(rng)}
		m.handles[tableID] = h
	}
	return h
}

func (m *Manager) dropHandle(tableID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.handles[tableID]; ok {
		if h.timer != nil {
			h.timer.Stop()
		}
		if h.fillTimer != nil {
			h.fillTimer.Stop()
		}
		delete(m.handles, tableID)
	}
}

// JoinResult 入座结果
type JoinResult struct {
	TableID   string
	SeatIndex int
	State     *holdem.GameState
}

// JoinTable 给玩家找座位: 已在桌上直接返回原座;
// 否则找有空位的开放桌; 再不行就开新桌, 桌数到顶返回 ErrLobbyFull.
func (m *Manager) JoinTable(ctx context.Context, playerID, displayName, avatarURL string) (*JoinResult, error) {
	tables, err := m.store.ListOpenTables(ctx)
	if err != nil {
		return nil, err
	}

	// 已有座位: 幂等返回
	for _, t := range tables {
		seats, err := m.store.ListSeats(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		for _, s := range seats {
			if s.PlayerID == playerID && s.PlayerType == holdem.PlayerReal {
				return &JoinResult{TableID: t.ID, SeatIndex: s.SeatIndex, State: t.State}, nil
			}
		}
	}

	// 找空位
	for _, t := range tables {
		seats, err := m.store.ListSeats(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		occupied := map[int]bool{}
		for _, s := range seats {
			occupied[s.SeatIndex] = true
		}
		for idx := 0; idx < holdem.MaxSeats; idx++ {
			if occupied[idx] {
				continue
			}
			res, err := m.seatPlayer(ctx, t, idx, playerID, displayName, avatarURL)
			if errors.Is(err, errNoFreeSeat) {
				// 候选座位在加锁前被并发加入抢占且桌已坐满, 换下一张桌
				break
			}
			return res, err
		}
	}

	if len(tables) >= m.maxTables {
		return nil, ErrLobbyFull
	}
	t, err := m.createTable(ctx)
	if err != nil {
		return nil, err
	}
	return m.seatPlayer(ctx, t, 0, playerID, displayName, avatarURL)
}

func (m *Manager) createTable(ctx context.Context) (*store.TableRow, error) {
	deadline := time.Now().Add(m.cfg.AutoStartDelay)
	row := &store.TableRow{
		ID:           uuid.NewString(),
		Status:       store.TableOpen,
		FillDeadline: &deadline,
		State:        holdem.NewGameState(),
	}
	if err := m.store.CreateTable(ctx, row); err != nil {
		return nil, err
	}
	log.Printf("[Table] created table=%s fill_deadline=%s", row.ID, deadline.Format(time.RFC3339))
	// 到点没凑齐真人就补机器人开打
	m.scheduleAt(row.ID, deadline, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := m.FillWithAI(ctx, row.ID); err != nil {
			log.Printf("[Table] ai fill failed: table=%s err=%v", row.ID, err)
			return
		}
		if _, err := m.StartHand(ctx, row.ID); err != nil && !errors.Is(err, holdem.ErrNotEnoughPlayers) {
			log.Printf("[Table] auto start failed: table=%s err=%v", row.ID, err)
		}
	})
	return row, nil
}

func (m *Manager) seatPlayer(ctx context.Context, t *store.TableRow, idx int, playerID, displayName, avatarURL string) (*JoinResult, error) {
	h := m.handleFor(t.ID)
	h.mu.Lock()
	defer h.mu.Unlock()

	// 加锁后重读并重新校验: 之前挑的座位可能刚被并发加入占掉
	fresh, err := m.store.GetTable(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	rows, err := m.store.ListSeats(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	occupied := map[int]bool{}
	for _, s := range rows {
		if s.PlayerID == playerID {
			// 同一玩家的并发加入, 幂等返回已有座位
			return &JoinResult{TableID: t.ID, SeatIndex: s.SeatIndex, State: fresh.State}, nil
		}
		occupied[s.SeatIndex] = true
	}
	if occupied[idx] || fresh.State.Seat(idx) != nil {
		idx = -1
		for i := 0; i < holdem.MaxSeats; i++ {
			if !occupied[i] && fresh.State.Seat(i) == nil {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, errNoFreeSeat
		}
	}

	seat := &store.SeatRow{
		TableID:     t.ID,
		SeatIndex:   idx,
		PlayerType:  holdem.PlayerReal,
		PlayerID:    playerID,
		DisplayName: displayName,
		AvatarURL:   avatarURL,
		Balance:     m.cfg.DefaultBuyIn,
	}
	if err := m.store.UpsertSeat(ctx, seat); err != nil {
		return nil, err
	}

	st := fresh.State.Clone()
	st.Seats[idx] = &holdem.Seat{
		SeatIndex:   idx,
		PlayerType:  holdem.PlayerReal,
		PlayerID:    playerID,
		DisplayName: displayName,
		AvatarURL:   avatarURL,
		ChipBalance: m.cfg.DefaultBuyIn,
		Status:      holdem.SeatWaiting,
	}
	fresh.State = st
	if err := m.store.SaveTable(ctx, fresh); err != nil {
		return nil, err
	}
	log.Printf("[Table] player seated: table=%s seat=%d player=%s", t.ID, idx, playerID)
	m.push(t.ID, st)
	return &JoinResult{TableID: t.ID, SeatIndex: idx, State: st}, nil
}

// FillWithAI 补满空位. 补位名字从池里不放回抽取, 桌上已用的名字跳过.
// FillDeadline 未到时不动作, 返回当前状态.
func (m *Manager) FillWithAI(ctx context.Context, tableID string) (*holdem.GameState, error) {
	h := m.handleFor(tableID)
	h.mu.Lock()
	defer h.mu.Unlock()

	t, err := m.getOpenTable(ctx, tableID)
	if err != nil {
		return nil, err
	}
	if t.FillDeadline != nil && t.FillDeadline.After(time.Now()) {
		return t.State, nil
	}
	seats, err := m.store.ListSeats(ctx, tableID)
	if err != nil {
		return nil, err
	}
	occupied := map[int]bool{}
	used := map[string]bool{}
	for _, s := range seats {
		occupied[s.SeatIndex] = true
		used[s.DisplayName] = true
	}
	if len(occupied) >= holdem.MaxSeats {
		return t.State, nil
	}

	pool := make([]string, 0, len(aiNames))
	for _, n := range aiNames {
		if !used[n] {
			pool = append(pool, n)
		}
	}
	h.rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	st := t.State.Clone()
	nameIdx := 0
	for idx := 0; idx < holdem.MaxSeats; idx++ {
		if occupied[idx] {
			continue
		}
		name := "AI_" + uuid.NewString()[:4]
		if len(pool) > 0 {
			name = pool[nameIdx%len(pool)]
			nameIdx++
		}
		balance := 2000 + h.rng.Int63n(8000)
		row := &store.SeatRow{
			TableID:     tableID,
			SeatIndex:   idx,
			PlayerType:  holdem.PlayerAI,
			PlayerID:    "ai-" + uuid.NewString(),
			DisplayName: name,
			Balance:     balance,
		}
		if err := m.store.UpsertSeat(ctx, row); err != nil {
			return nil, err
		}
		st.Seats[idx] = &holdem.Seat{
			SeatIndex:   idx,
			PlayerType:  holdem.PlayerAI,
			PlayerID:    row.PlayerID,
			DisplayName: name,
			ChipBalance: balance,
			Status:      holdem.SeatWaiting,
		}
	}
	t.State = st
	t.FillDeadline = nil
	if err := m.store.SaveTable(ctx, t); err != nil {
		return nil, err
	}
	log.Printf("[Table] ai filled: table=%s", tableID)
	m.push(tableID, st)
	return st, nil
}

// LeaveTable 离座: 删座位行, 清空状态位.
// 桌上没有真人了就关桌并清光机器人.
func (m *Manager) LeaveTable(ctx context.Context, tableID, playerID string) error {
	h := m.handleFor(tableID)
	h.mu.Lock()
	defer h.mu.Unlock()

	t, err := m.getOpenTable(ctx, tableID)
	if err != nil {
		return err
	}
	seats, err := m.store.ListSeats(ctx, tableID)
	if err != nil {
		return err
	}
	var leaving *store.SeatRow
	for _, s := range seats {
		if s.PlayerID == playerID {
			leaving = s
			break
		}
	}
	if leaving == nil {
		return ErrSeatNotFound
	}

	// 局中轮到离座者时先替他弃牌走完状态机, 避免整桌卡在空座位上.
	// 弃牌可能直接结束本手, 所以走完整的 finish 路径.
	if t.State.IsHandInProgress && t.State.CurrentSeatIndex == leaving.SeatIndex {
		hole, deck, err := m.loadCards(ctx, tableID, t.State, h)
		if err != nil {
			return err
		}
		next, err := holdem.ProcessAction(m.cfg, t.State, leaving.SeatIndex, holdem.ActionFold, 0, hole, deck, h.brain, time.Now())
		if err != nil {
			return err
		}
		if err := m.finish(ctx, t, next); err != nil {
			return err
		}
	}

	if err := m.store.DeleteSeat(ctx, tableID, leaving.SeatIndex); err != nil {
		return err
	}

	st := t.State.Clone()
	if s := st.Seat(leaving.SeatIndex); s != nil {
		// 没收走的台面注先进池, 离座不带走已下的注
		st.PotSize += s.Bet
		st.Seats[leaving.SeatIndex] = nil
	}

	realRemain := false
	for _, s := range st.Seats {
		if s != nil && s.PlayerType == holdem.PlayerReal {
			realRemain = true
			break
		}
	}
	if !realRemain {
		if err := m.store.DeleteSeats(ctx, tableID); err != nil {
			return err
		}
		if err := m.store.CloseTable(ctx, tableID); err != nil {
			return err
		}
		m.dropHandle(tableID)
		log.Printf("[Table] closed empty table=%s", tableID)
		return nil
	}

	t.State = st
	if err := m.store.SaveTable(ctx, t); err != nil {
		return err
	}
	log.Printf("[Table] player left: table=%s seat=%d player=%s", tableID, leaving.SeatIndex, playerID)
	m.push(tableID, st)
	return nil
}

func (m *Manager) getOpenTable(ctx context.Context, tableID string) (*store.TableRow, error) {
	t, err := m.store.GetTable(ctx, tableID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTableNotFound
		}
		return nil, err
	}
	if t.Status != store.TableOpen {
		return nil, ErrTableNotFound
	}
	return t, nil
}

func (m *Manager) push(tableID string, st *holdem.GameState) {
	m.mu.Lock()
	fn := m.notify
	m.mu.Unlock()
	if fn != nil {
		fn(tableID, st)
	}
}

// Summary 大厅列表项
type Summary struct {
	TableID   string `json:"tableId"`
	Players   int    `json:"players"`
	RealSeats int    `json:"realSeats"`
	HandCount int    `json:"handCount"`
	InHand    bool   `json:"inHand"`
}

// Summaries 所有开放桌的概览
func (m *Manager) Summaries(ctx context.Context) ([]Summary, error) {
	tables, err := m.store.ListOpenTables(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(tables))
	for _, t := range tables {
		s := Summary{TableID: t.ID, HandCount: t.State.HandCount, InHand: t.State.IsHandInProgress}
		for _, seat := range t.State.Seats {
			if seat == nil {
				continue
			}
			s.Players++
			if seat.PlayerType == holdem.PlayerReal {
				s.RealSeats++
			}
		}
		out = append(out, s)
	}
	return out, nil
}
