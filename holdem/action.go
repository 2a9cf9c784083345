package holdem

import (
	"time"

	"github.com/dawson0919/texasporker-sub000/card"
)

// maxChainSteps 机器人连续行动的硬上限. 正常牌局远达不到
// (加注会提高 currentBet, 筹码有限), 这里只防止坏掉的决策器死循环.
const maxChainSteps = 256

// Decision 决策器给出的动作
type Decision struct {
	Action  ActionType
	RaiseTo int64
}

// DecisionView 决策器可见的局面信息
type DecisionView struct {
	Seat       *Seat
	Hole       []card.Card
	Community  []card.Card
	Stage      Stage
	CurrentBet int64
	PotSize    int64
	BigBlind   int64
}

// Decider 机器人决策接口
type Decider interface {
	Decide(view DecisionView) Decision
}

// ApplyAction 对当前行动者应用一个动作并推进状态机:
// 校验全部通过后才落子, 然后处理 "只剩一人" 直赢路径 /
// 下注轮结束推进阶段 / 轮到下一座位. 不触发机器人连锁.
// 输入状态不被修改.
func ApplyAction(cfg Config, prev *GameState, seatIndex int, action ActionType, raiseTo int64, hole map[int][]card.Card, deck *card.Deck, now time.Time) (*GameState, error) {
	st := prev.Clone()
	if err := applyTo(cfg, st, seatIndex, action, raiseTo, now); err != nil {
		return nil, err
	}
	if err := afterAction(cfg, st, hole, deck, now); err != nil {
		return nil, err
	}
	return st, nil
}

// ProcessAction 同 ApplyAction, 但随后让所有轮到的机器人连续行动,
// 直到轮到真人 / 手牌结束. 一次请求内完成整条机器人链.
func ProcessAction(cfg Config, prev *GameState, seatIndex int, action ActionType, raiseTo int64, hole map[int][]card.Card, deck *card.Deck, ai Decider, now time.Time) (*GameState, error) {
	st := prev.Clone()
	st.ActionLog = st.ActionLog[:0]
	if err := applyTo(cfg, st, seatIndex, action, raiseTo, now); err != nil {
		return nil, err
	}
	if err := afterAction(cfg, st, hole, deck, now); err != nil {
		return nil, err
	}
	if err := runBots(cfg, st, hole, deck, ai, now); err != nil {
		return nil, err
	}
	return st, nil
}

// RunBots 在不消耗真人动作的情况下推进: 开局后盲注顶出的全下快进,
// 以及坐在枪口位的机器人连锁. StartHand 之后调用.
func RunBots(cfg Config, prev *GameState, hole map[int][]card.Card, deck *card.Deck, ai Decider, now time.Time) (*GameState, error) {
	st := prev.Clone()
	if err := runBots(cfg, st, hole, deck, ai, now); err != nil {
		return nil, err
	}
	return st, nil
}

func runBots(cfg Config, st *GameState, hole map[int][]card.Card, deck *card.Deck, ai Decider, now time.Time) error {
	// 盲注把所有人都顶成全下: 没有行动者, 直接发完公共牌摊牌
	if st.IsHandInProgress && st.CurrentSeatIndex < 0 {
		return advanceStage(cfg, st, hole, deck, now)
	}
	for steps := 0; st.IsHandInProgress && st.CurrentSeatIndex >= 0; steps++ {
		s := st.Seats[st.CurrentSeatIndex]
		if s == nil || s.PlayerType != PlayerAI {
			return nil
		}
		if steps >= maxChainSteps {
			return InvalidStateError("ai action chain did not terminate")
		}
		d := ai.Decide(DecisionView{
			Seat:       s,
			Hole:       hole[s.SeatIndex],
			Community:  st.CommunityCards,
			Stage:      st.Stage,
			CurrentBet: st.CurrentBet,
			PotSize:    st.PotSize,
			BigBlind:   cfg.BigBlind,
		})
		action, raiseTo := legalize(st, s, d)
		if err := applyTo(cfg, st, s.SeatIndex, action, raiseTo, now); err != nil {
			return err
		}
		if err := afterAction(cfg, st, hole, deck, now); err != nil {
			return err
		}
	}
	return nil
}

// legalize 把决策器输出兜底成合法动作, 坏输出按弃牌处理
func legalize(st *GameState, s *Seat, d Decision) (ActionType, int64) {
	switch d.Action {
	case ActionCheck:
		if s.Bet < st.CurrentBet {
			return ActionFold, 0
		}
		return ActionCheck, 0
	case ActionCall:
		if s.Bet >= st.CurrentBet {
			return ActionCheck, 0
		}
		return ActionCall, 0
	case ActionRaise, ActionAllIn, ActionFold:
		return d.Action, d.RaiseTo
	default:
		return ActionFold, 0
	}
}

// applyTo 校验并落子. 所有校验在任何状态改动之前完成.
func applyTo(cfg Config, st *GameState, seatIndex int, action ActionType, raiseTo int64, now time.Time) error {
	if !st.IsHandInProgress {
		return ErrNoHandInProgress
	}
	if st.CurrentSeatIndex != seatIndex {
		return ErrNotYourTurn
	}
	s := st.Seat(seatIndex)
	if s == nil || s.Status != SeatPlaying {
		return ErrSeatNotPlaying
	}
	// 时限 + 宽限已过后只接受弃牌
	if action != ActionFold && st.ActionDeadline != nil &&
		now.After(st.ActionDeadline.Add(cfg.TimeoutGrace)) {
		return ErrTurnExpired
	}

	var paid int64
	switch action {
	case ActionFold:
		s.Status = SeatFolded

	case ActionCheck:
		if s.Bet < st.CurrentBet {
			return ErrInvalidAction
		}

	case ActionCall:
		if s.Bet >= st.CurrentBet {
			return ErrInvalidAction
		}
		paid = pay(s, st.CurrentBet-s.Bet)

	case ActionRaise:
		target := raiseTo
		if target <= 0 {
			target = st.CurrentBet + cfg.BigBlind
		}
		if target <= s.Bet {
			return ErrInvalidAction
		}
		paid = pay(s, target-s.Bet)
		if s.Bet > st.CurrentBet {
			st.CurrentBet = s.Bet
			st.LastRaiser = seatIndex
			// 加注重开本轮, 其他人需要重新表态
			st.ActedThisRound = st.ActedThisRound[:0]
		}

	case ActionAllIn:
		if s.ChipBalance <= 0 {
			return ErrInvalidAction
		}
		paid = pay(s, s.ChipBalance)
		if s.Bet > st.CurrentBet {
			st.CurrentBet = s.Bet
			st.LastRaiser = seatIndex
			st.ActedThisRound = st.ActedThisRound[:0]
		}

	default:
		return ErrInvalidAction
	}

	s.LastAction = string(action)
	st.markActed(seatIndex)
	st.ActionLog = append(st.ActionLog, ActionEntry{
		SeatIndex: seatIndex,
		Name:      s.DisplayName,
		Action:    action,
		Amount:    paid,
		Stage:     st.Stage,
	})
	return nil
}

// pay 从余额划到当前下注, 不足则全下
func pay(s *Seat, amount int64) int64 {
	if amount > s.ChipBalance {
		amount = s.ChipBalance
	}
	s.ChipBalance -= amount
	s.Bet += amount
	s.TotalInvested += amount
	if s.ChipBalance == 0 {
		s.Status = SeatAllIn
	}
	return amount
}

// afterAction 落子后的推进: 直赢 / 本轮结束 / 下一座位
func afterAction(cfg Config, st *GameState, hole map[int][]card.Card, deck *card.Deck, now time.Time) error {
	if nf := st.NonFolded(); len(nf) == 1 {
		handleLastPlayerWin(cfg, st, nf[0], now)
		return nil
	}
	if isBettingRoundComplete(st) {
		return advanceStage(cfg, st, hole, deck, now)
	}
	next := st.NextActiveSeat(st.CurrentSeatIndex)
	if next < 0 {
		// 其余全是 all-in, 本轮等价于结束
		return advanceStage(cfg, st, hole, deck, now)
	}
	st.CurrentSeatIndex = next
	st.ActionDeadline = actionDeadline(cfg, st.Seats[next], now)
	return nil
}

// IsBettingRoundComplete 所有仍可行动的座位都已表态且跟平了当前注
func IsBettingRoundComplete(st *GameState) bool {
	return isBettingRoundComplete(st)
}

func isBettingRoundComplete(st *GameState) bool {
	playing := st.Playing()
	if len(playing) == 0 {
		return true
	}
	for _, s := range playing {
		if !st.HasActed(s.SeatIndex) || s.Bet != st.CurrentBet {
			return false
		}
	}
	return true
}

// AdvanceStage 收注入池并进入下一阶段. 能下注的座位不足两个时
// 一次性发完公共牌直接摊牌.
func AdvanceStage(cfg Config, prev *GameState, hole map[int][]card.Card, deck *card.Deck, now time.Time) (*GameState, error) {
	st := prev.Clone()
	if err := advanceStage(cfg, st, hole, deck, now); err != nil {
		return nil, err
	}
	return st, nil
}

func advanceStage(cfg Config, st *GameState, hole map[int][]card.Card, deck *card.Deck, now time.Time) error {
	sweepBets(st)
	st.CurrentBet = 0
	st.LastRaiser = -1
	st.ActedThisRound = st.ActedThisRound[:0]

	// 可下注座位不足两个: 发完剩余公共牌直接摊牌
	if len(st.Playing()) <= 1 {
		return runShowdown(cfg, st, hole, deck, now)
	}

	switch st.Stage {
	case StagePreflop:
		cs, err := deck.Deal(3)
		if err != nil {
			return err
		}
		st.CommunityCards = append(st.CommunityCards, cs...)
		st.Stage = StageFlop
	case StageFlop:
		cs, err := deck.Deal(1)
		if err != nil {
			return err
		}
		st.CommunityCards = append(st.CommunityCards, cs...)
		st.Stage = StageTurn
	case StageTurn:
		cs, err := deck.Deal(1)
		if err != nil {
			return err
		}
		st.CommunityCards = append(st.CommunityCards, cs...)
		st.Stage = StageRiver
	case StageRiver:
		return runShowdown(cfg, st, hole, deck, now)
	default:
		return InvalidStateError("advance from stage " + string(st.Stage))
	}

	// 翻牌后每轮由庄位之后的首个可行动座位先手
	st.CurrentSeatIndex = st.NextActiveSeat(st.DealerSeatIndex)
	if st.CurrentSeatIndex < 0 {
		return InvalidStateError("no actor after dealing " + string(st.Stage))
	}
	st.ActionDeadline = actionDeadline(cfg, st.Seats[st.CurrentSeatIndex], now)
	return nil
}

// sweepBets 把台面注收进底池
func sweepBets(st *GameState) {
	for _, s := range st.Seats {
		if s != nil && s.Bet > 0 {
			st.PotSize += s.Bet
			s.Bet = 0
		}
	}
}

// HandleLastPlayerWin 只剩一人未弃牌: 全池归他, 不发牌不比牌不亮牌.
func HandleLastPlayerWin(cfg Config, prev *GameState, now time.Time) (*GameState, error) {
	st := prev.Clone()
	nf := st.NonFolded()
	if len(nf) != 1 {
		return nil, InvalidStateError("last player win with multiple contenders")
	}
	handleLastPlayerWin(cfg, st, nf[0], now)
	return st, nil
}

func handleLastPlayerWin(cfg Config, st *GameState, winner *Seat, now time.Time) {
	sweepBets(st)
	winner.ChipBalance += st.PotSize
	winner.IsWinner = true
	winner.Winnings = st.PotSize
	st.PotSize = 0
	finishHand(cfg, st, now)
}

// finishHand 摊牌/直赢后的收尾: 状态机停表, 约定下一手自动开局时间
func finishHand(cfg Config, st *GameState, now time.Time) {
	st.Stage = StageShowdown
	st.IsHandInProgress = false
	st.CurrentSeatIndex = -1
	st.ActionDeadline = nil
	t := now.Add(cfg.HandRestartDelay)
	st.AutoStartAt = &t
}
