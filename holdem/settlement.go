package holdem

import (
	"sort"
	"strconv"
	"time"

	"github.com/dawson0919/texasporker-sub000/card"
)

// RunShowdown 摊牌结算: 补齐公共牌, 按投入档位切分边池,
// 逐池比牌分钱. 输入状态不被修改.
func RunShowdown(cfg Config, prev *GameState, hole map[int][]card.Card, deck *card.Deck, now time.Time) (*GameState, error) {
	st := prev.Clone()
	if err := runShowdown(cfg, st, hole, deck, now); err != nil {
		return nil, err
	}
	return st, nil
}

func runShowdown(cfg Config, st *GameState, hole map[int][]card.Card, deck *card.Deck, now time.Time) error {
	sweepBets(st)
	st.CurrentBet = 0
	st.ActedThisRound = st.ActedThisRound[:0]
	for len(st.CommunityCards) < 5 {
		cs, err := deck.Deal(1)
		if err != nil {
			return err
		}
		st.CommunityCards = append(st.CommunityCards, cs...)
	}

	// 参与比牌: 未弃牌且手牌齐全的座位, 升序
	contenders := make([]*Seat, 0, len(st.Seats))
	for _, s := range st.Seats {
		if s != nil && (s.Status == SeatPlaying || s.Status == SeatAllIn) && len(hole[s.SeatIndex]) == 2 {
			contenders = append(contenders, s)
		}
	}
	if len(contenders) == 0 {
		// 没人能摊牌 (手牌缺失): 池子作废清零, 绝不能滚进下一手
		st.PotSize = 0
		finishHand(cfg, st, now)
		return nil
	}

	// 摊牌座位亮牌并标注牌型
	entries := make([]HandEntry, 0, len(contenders))
	for _, s := range contenders {
		r, err := EvaluateHand(hole[s.SeatIndex], st.CommunityCards)
		if err != nil {
			return err
		}
		s.HandName = r.Name
		s.RevealedCards = append([]card.Card(nil), hole[s.SeatIndex]...)
		entries = append(entries, HandEntry{
			PlayerID: strconv.Itoa(s.SeatIndex),
			Hole:     hole[s.SeatIndex],
		})
	}

	// 投入档位: 摊牌者的 totalInvested 去重升序
	levels := make([]int64, 0, len(contenders))
	seen := map[int64]bool{}
	for _, s := range contenders {
		if !seen[s.TotalInvested] {
			seen[s.TotalInvested] = true
			levels = append(levels, s.TotalInvested)
		}
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })

	winnings := map[int]int64{}
	var distributed int64
	var prevLevel int64
	for _, level := range levels {
		if level <= prevLevel {
			continue
		}
		// 本档子池: 每个座位在 (prevLevel, level] 区间的实际投入之和,
		// 弃牌者的沉没投入也计入, 但只按其真实投入封顶
		var subPot int64
		for _, s := range st.Seats {
			if s == nil {
				continue
			}
			hi := s.TotalInvested
			if hi > level {
				hi = level
			}
			if hi > prevLevel {
				subPot += hi - prevLevel
			}
		}

		eligible := make([]HandEntry, 0, len(contenders))
		for i, s := range contenders {
			if s.TotalInvested >= level {
				eligible = append(eligible, entries[i])
			}
		}
		switch len(eligible) {
		case 0:
			// 不可能: 档位来自摊牌者自身的投入
		case 1:
			// 唯一有资格者无争议赢下此池, 不比牌
			idx, _ := strconv.Atoi(eligible[0].PlayerID)
			winnings[idx] += subPot
		default:
			ids, _, err := DetermineWinners(eligible, st.CommunityCards)
			if err != nil {
				return err
			}
			per := subPot / int64(len(ids))
			rem := subPot - per*int64(len(ids))
			for i, id := range ids {
				idx, _ := strconv.Atoi(id)
				winnings[idx] += per
				if i == 0 {
					// 除不尽的零头给座位号最小的赢家, 保证筹码守恒
					winnings[idx] += rem
				}
			}
		}
		distributed += subPot
		prevLevel = level
	}

	// 弃牌者投入超过最高摊牌档位的部分留在池里, 并入主池赢家
	if leftover := st.PotSize - distributed; leftover > 0 {
		best := -1
		var bestScore uint32
		for _, s := range contenders {
			r, err := EvaluateHand(hole[s.SeatIndex], st.CommunityCards)
			if err != nil {
				return err
			}
			if best < 0 || r.Score > bestScore {
				best, bestScore = s.SeatIndex, r.Score
			}
		}
		winnings[best] += leftover
	}

	for idx, w := range winnings {
		if w <= 0 {
			continue
		}
		s := st.Seats[idx]
		s.ChipBalance += w
		s.IsWinner = true
		s.Winnings = w
	}
	st.PotSize = 0
	finishHand(cfg, st, now)
	return nil
}
