package holdem

import (
	"time"

	"github.com/dawson0919/texasporker-sub000/card"
)

// SchemaVersion 当前 GameState 序列化版本, 存档升级时 bump
const SchemaVersion = 1

// MaxSeats 每桌座位上限, 固定值
const MaxSeats = 8

// Stage 牌局阶段
type Stage string

const (
	StageWaiting  Stage = "waiting"
	StagePreflop  Stage = "preflop"
	StageFlop     Stage = "flop"
	StageTurn     Stage = "turn"
	StageRiver    Stage = "river"
	StageShowdown Stage = "showdown"
)

// PlayerType 区分真人与机器人
type PlayerType string

const (
	PlayerReal PlayerType = "real"
	PlayerAI   PlayerType = "ai"
)

// SeatStatus 座位在当前手牌中的状态
type SeatStatus string

const (
	SeatWaiting    SeatStatus = "waiting"
	SeatPlaying    SeatStatus = "playing"
	SeatFolded     SeatStatus = "folded"
	SeatAllIn      SeatStatus = "all-in"
	SeatSittingOut SeatStatus = "sitting-out"
)

// Role 位置角色, 仅用于展示和盲注定位
type Role string

const (
	RoleNone       Role = ""
	RoleDealer     Role = "dealer"
	RoleSmallBlind Role = "small-blind"
	RoleBigBlind   Role = "big-blind"
)

// ActionType 玩家可执行的动作
type ActionType string

const (
	ActionFold  ActionType = "fold"
	ActionCheck ActionType = "check"
	ActionCall  ActionType = "call"
	ActionRaise ActionType = "raise"
	ActionAllIn ActionType = "all-in"
)

// Seat 一个座位的公开状态. 手牌不在这里, 由上层单独保管,
// 只有摊牌后才通过 RevealedCards 公开.
type Seat struct {
	SeatIndex     int         `json:"seatIndex"`
	PlayerType    PlayerType  `json:"playerType"`
	PlayerID      string      `json:"playerId"`
	DisplayName   string      `json:"displayName"`
	AvatarURL     string      `json:"avatarUrl,omitempty"`
	ChipBalance   int64       `json:"chipBalance"`
	Bet           int64       `json:"bet"`
	TotalInvested int64       `json:"totalInvested"`
	Status        SeatStatus  `json:"status"`
	Role          Role        `json:"role,omitempty"`
	LastAction    string      `json:"lastAction,omitempty"`
	HandName      string      `json:"handName,omitempty"`
	IsWinner      bool        `json:"isWinner,omitempty"`
	Winnings      int64       `json:"winnings,omitempty"`
	RevealedCards []card.Card `json:"revealedCards,omitempty"`
}

// ActionEntry 最近一手内发生的动作, 用于前端回放展示
type ActionEntry struct {
	SeatIndex int        `json:"seatIndex"`
	Name      string     `json:"name"`
	Action    ActionType `json:"action"`
	Amount    int64      `json:"amount,omitempty"`
	Stage     Stage      `json:"stage"`
}

// GameState 整桌的权威状态. 所有引擎函数都遵循 copy-on-write:
// 输入状态不被修改, 返回克隆后的新状态.
type GameState struct {
	Schema           int           `json:"schema"`
	Stage            Stage         `json:"stage"`
	CommunityCards   []card.Card   `json:"communityCards"`
	PotSize          int64         `json:"potSize"`
	CurrentBet       int64         `json:"currentBet"`
	CurrentSeatIndex int           `json:"currentSeatIndex"`
	DealerSeatIndex  int           `json:"dealerSeatIndex"`
	LastRaiser       int           `json:"lastRaiser"`
	IsHandInProgress bool          `json:"isHandInProgress"`
	HandCount        int           `json:"handCount"`
	Seats            []*Seat       `json:"seats"`
	ActedThisRound   []int         `json:"actedThisRound"`
	ActionLog        []ActionEntry `json:"actionLog,omitempty"`
	ActionDeadline   *time.Time    `json:"actionDeadline,omitempty"`
	AutoStartAt      *time.Time    `json:"autoStartAt,omitempty"`
}

// NewGameState 返回一张空桌
func NewGameState() *GameState {
	return &GameState{
		Schema:           SchemaVersion,
		Stage:            StageWaiting,
		CommunityCards:   []card.Card{},
		CurrentSeatIndex: -1,
		DealerSeatIndex:  -1,
		LastRaiser:       -1,
		Seats:            make([]*Seat, MaxSeats),
	}
}

// Clone 深拷贝, 引擎所有变换的入口
func (st *GameState) Clone() *GameState {
	out := *st
	out.CommunityCards = append([]card.Card(nil), st.CommunityCards...)
	out.ActedThisRound = append([]int(nil), st.ActedThisRound...)
	out.ActionLog = append([]ActionEntry(nil), st.ActionLog...)
	out.Seats = make([]*Seat, len(st.Seats))
	for i, s := range st.Seats {
		if s == nil {
			continue
		}
		cp := *s
		cp.RevealedCards = append([]card.Card(nil), s.RevealedCards...)
		out.Seats[i] = &cp
	}
	if st.ActionDeadline != nil {
		t := *st.ActionDeadline
		out.ActionDeadline = &t
	}
	if st.AutoStartAt != nil {
		t := *st.AutoStartAt
		out.AutoStartAt = &t
	}
	return &out
}

// Seat 返回指定座位, 越界或空座返回 nil
func (st *GameState) Seat(idx int) *Seat {
	if idx < 0 || idx >= len(st.Seats) {
		return nil
	}
	return st.Seats[idx]
}

// SeatByPlayer 按玩家 ID 找座位
func (st *GameState) SeatByPlayer(playerID string) *Seat {
	for _, s := range st.Seats {
		if s != nil && s.PlayerID == playerID {
			return s
		}
	}
	return nil
}

// OccupiedSeats 所有有人的座位, 按座位号升序
func (st *GameState) OccupiedSeats() []*Seat {
	out := make([]*Seat, 0, len(st.Seats))
	for _, s := range st.Seats {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// NonFolded 本手中尚未弃牌的座位 (playing 或 all-in)
func (st *GameState) NonFolded() []*Seat {
	out := make([]*Seat, 0, len(st.Seats))
	for _, s := range st.Seats {
		if s != nil && (s.Status == SeatPlaying || s.Status == SeatAllIn) {
			out = append(out, s)
		}
	}
	return out
}

// Playing 仍可以行动的座位 (未弃牌且未全下)
func (st *GameState) Playing() []*Seat {
	out := make([]*Seat, 0, len(st.Seats))
	for _, s := range st.Seats {
		if s != nil && s.Status == SeatPlaying {
			out = append(out, s)
		}
	}
	return out
}

// HasActed 座位本轮是否已行动过
func (st *GameState) HasActed(seatIndex int) bool {
	for _, i := range st.ActedThisRound {
		if i == seatIndex {
			return true
		}
	}
	return false
}

func (st *GameState) markActed(seatIndex int) {
	if !st.HasActed(seatIndex) {
		st.ActedThisRound = append(st.ActedThisRound, seatIndex)
	}
}

// NextActiveSeat 从 from 的下一个座位开始顺时针找第一个 playing 座位.
// 找不到返回 -1.
func (st *GameState) NextActiveSeat(from int) int {
	n := len(st.Seats)
	if n == 0 {
		return -1
	}
	for i := 1; i <= n; i++ {
		idx := (from + i) % n
		if idx < 0 {
			idx += n
		}
		s := st.Seats[idx]
		if s != nil && s.Status == SeatPlaying {
			return idx
		}
	}
	return -1
}

// TotalChips 桌上筹码总量 = 所有余额 + 所有当前下注 + 底池.
// 一手牌从发牌到结算这个值不变.
func (st *GameState) TotalChips() int64 {
	total := st.PotSize
	for _, s := range st.Seats {
		if s != nil {
			total += s.ChipBalance + s.Bet
		}
	}
	return total
}
