package holdem

import (
	"math/rand"
	"time"

	"github.com/dawson0919/texasporker-sub000/card"
)

// DealNewHand 开一手新牌: 轮转庄位, 下盲注, 洗牌发两张手牌.
// 返回新状态, 按座位号索引的手牌, 以及发剩的牌堆 (后续街继续用).
// 输入状态不被修改.
func DealNewHand(cfg Config, prev *GameState, rng *rand.Rand, now time.Time) (*GameState, map[int][]card.Card, *card.Deck, error) {
	if prev.IsHandInProgress {
		return nil, nil, nil, ErrHandInProgress
	}
	st := prev.Clone()

	// 有筹码的座位才参与本手
	eligible := make([]int, 0, len(st.Seats))
	for i, s := range st.Seats {
		if s == nil {
			continue
		}
		if s.ChipBalance > 0 {
			eligible = append(eligible, i)
		} else {
			s.Status = SeatSittingOut
		}
	}
	if len(eligible) < 2 {
		return nil, nil, nil, ErrNotEnoughPlayers
	}

	for _, i := range eligible {
		s := st.Seats[i]
		s.Status = SeatPlaying
		s.Bet = 0
		s.TotalInvested = 0
		s.Role = RoleNone
		s.LastAction = ""
		s.HandName = ""
		s.IsWinner = false
		s.Winnings = 0
		s.RevealedCards = nil
	}
	st.Stage = StagePreflop
	st.CommunityCards = st.CommunityCards[:0]
	st.PotSize = 0
	st.ActedThisRound = st.ActedThisRound[:0]
	st.ActionLog = st.ActionLog[:0]
	st.IsHandInProgress = true
	st.HandCount++
	st.AutoStartAt = nil

	// 庄位轮转到上一庄之后的首个参与座位
	st.DealerSeatIndex = nextIn(eligible, st.DealerSeatIndex)
	dealer := st.DealerSeatIndex
	var sb, bb int
	if len(eligible) == 2 {
		// 单挑: 庄家即小盲, 翻牌前先行动
		sb = dealer
		bb = nextIn(eligible, dealer)
	} else {
		sb = nextIn(eligible, dealer)
		bb = nextIn(eligible, sb)
	}
	st.Seats[dealer].Role = RoleDealer
	st.Seats[sb].Role = RoleSmallBlind
	st.Seats[bb].Role = RoleBigBlind
	postBlind(st.Seats[sb], cfg.SmallBlind)
	postBlind(st.Seats[bb], cfg.BigBlind)
	st.CurrentBet = cfg.BigBlind
	st.LastRaiser = bb

	deck := card.NewDeck(rng)
	hole := make(map[int][]card.Card, len(eligible))
	for _, i := range eligible {
		cs, err := deck.Deal(2)
		if err != nil {
			return nil, nil, nil, err
		}
		hole[i] = cs
	}

	// 大盲之后的首个可行动座位开枪
	st.CurrentSeatIndex = st.NextActiveSeat(bb)
	if st.CurrentSeatIndex < 0 {
		// 盲注把所有人都顶成全下, 直接进入发剩余公共牌的快进路径
		st.ActionDeadline = nil
	} else {
		st.ActionDeadline = actionDeadline(cfg, st.Seats[st.CurrentSeatIndex], now)
	}
	return st, hole, deck, nil
}

// postBlind 下盲注, 余额不足则全下
func postBlind(s *Seat, amount int64) {
	pay := amount
	if pay > s.ChipBalance {
		pay = s.ChipBalance
	}
	s.ChipBalance -= pay
	s.Bet += pay
	s.TotalInvested += pay
	if s.ChipBalance == 0 {
		s.Status = SeatAllIn
	}
}

// nextIn 在升序座位号列表中找 from 之后的下一个, 环绕
func nextIn(sorted []int, from int) int {
	for _, i := range sorted {
		if i > from {
			return i
		}
	}
	return sorted[0]
}

func actionDeadline(cfg Config, s *Seat, now time.Time) *time.Time {
	d := cfg.TurnTimer
	if s.PlayerType == PlayerAI {
		d = cfg.AITurnTimer
	}
	t := now.Add(d)
	return &t
}
