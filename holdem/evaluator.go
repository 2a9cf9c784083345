package holdem

import (
	"fmt"
	"sort"

	"github.com/dawson0919/texasporker-sub000/card"
)

// 牌型等级, 数值越大越强
const (
	HandHighCard      byte = 1
	HandPair          byte = 2
	HandTwoPair       byte = 3
	HandThreeOfAKind  byte = 4
	HandStraight      byte = 5
	HandFlush         byte = 6
	HandFullHouse     byte = 7
	HandFourOfAKind   byte = 8
	HandStraightFlush byte = 9
	HandRoyalFlush    byte = 10
)

var handNames = map[byte]string{
	HandHighCard:      "High Card",
	HandPair:          "Pair",
	HandTwoPair:       "Two Pair",
	HandThreeOfAKind:  "Three of a Kind",
	HandStraight:      "Straight",
	HandFlush:         "Flush",
	HandFullHouse:     "Full House",
	HandFourOfAKind:   "Four of a Kind",
	HandStraightFlush: "Straight Flush",
	HandRoyalFlush:    "Royal Flush",
}

// HandName 牌型英文名
func HandName(category byte) string {
	if n, ok := handNames[category]; ok {
		return n
	}
	return "Unknown"
}

// HandResult 一手牌的评估结果. Score 可直接比较, 越大越强:
// 高 bits 是牌型等级, 低 20 bits 是五张决胜牌面 (各 4 bit, 降序).
type HandResult struct {
	Category byte
	Score    uint32
	Name     string
}

// EvaluateHand 从 2 张手牌 + 3~5 张公共牌中选出最强的五张组合.
// 手牌不是恰好两张或总牌数不足 5 张返回错误.
func EvaluateHand(hole []card.Card, community []card.Card) (HandResult, error) {
	if len(hole) != 2 {
		return HandResult{}, fmt.Errorf("holdem: evaluate needs exactly 2 hole cards, got %d", len(hole))
	}
	all := make([]card.Card, 0, 7)
	all = append(all, hole...)
	all = append(all, community...)
	if len(all) < 5 || len(all) > 7 {
		return HandResult{}, fmt.Errorf("holdem: evaluate needs 5~7 cards, got %d", len(all))
	}
	best := uint32(0)
	var bestCat byte
	// 枚举所有 C(n,5) 组合取最大 (7 张时 21 种)
	var pick [5]card.Card
	n := len(all)
	for a := 0; a < n-4; a++ {
		for b := a + 1; b < n-3; b++ {
			for c := b + 1; c < n-2; c++ {
				for d := c + 1; d < n-1; d++ {
					for e := d + 1; e < n; e++ {
						pick[0], pick[1], pick[2], pick[3], pick[4] = all[a], all[b], all[c], all[d], all[e]
						score, cat := eval5(pick)
						if score > best {
							best, bestCat = score, cat
						}
					}
				}
			}
		}
	}
	return HandResult{Category: bestCat, Score: best, Name: HandName(bestCat)}, nil
}

// eval5 对固定五张牌分类并打分
func eval5(cs [5]card.Card) (uint32, byte) {
	var vals [5]int
	flush := true
	for i, c := range cs {
		vals[i] = c.CompareVal() // A 记为 14
		if c.Suit() != cs[0].Suit() {
			flush = false
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(vals[:])))

	// 顺子判定, A-5 特例 (14,5,4,3,2) 以 5 为顶张
	straightHigh := 0
	if vals[0] == 14 && vals[1] == 5 && vals[2] == 4 && vals[3] == 3 && vals[4] == 2 {
		straightHigh = 5
	} else {
		ok := true
		for i := 1; i < 5; i++ {
			if vals[i] != vals[i-1]-1 {
				ok = false
				break
			}
		}
		if ok {
			straightHigh = vals[0]
		}
	}

	if flush && straightHigh == 14 {
		return pack(HandRoyalFlush, 14, 13, 12, 11, 10), HandRoyalFlush
	}
	if flush && straightHigh > 0 {
		return packStraight(HandStraightFlush, straightHigh), HandStraightFlush
	}

	// 按 (张数, 牌面) 排序的分组
	counts := map[int]int{}
	for _, v := range vals {
		counts[v]++
	}
	type group struct{ val, n int }
	groups := make([]group, 0, 5)
	for v, n := range counts {
		groups = append(groups, group{v, n})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].n != groups[j].n {
			return groups[i].n > groups[j].n
		}
		return groups[i].val > groups[j].val
	})

	switch {
	case groups[0].n == 4:
		return pack(HandFourOfAKind, groups[0].val, groups[0].val, groups[0].val, groups[0].val, groups[1].val), HandFourOfAKind
	case groups[0].n == 3 && groups[1].n == 2:
		return pack(HandFullHouse, groups[0].val, groups[0].val, groups[0].val, groups[1].val, groups[1].val), HandFullHouse
	case flush:
		return pack(HandFlush, vals[0], vals[1], vals[2], vals[3], vals[4]), HandFlush
	case straightHigh > 0:
		return packStraight(HandStraight, straightHigh), HandStraight
	case groups[0].n == 3:
		return pack(HandThreeOfAKind, groups[0].val, groups[0].val, groups[0].val, groups[1].val, groups[2].val), HandThreeOfAKind
	case groups[0].n == 2 && groups[1].n == 2:
		return pack(HandTwoPair, groups[0].val, groups[0].val, groups[1].val, groups[1].val, groups[2].val), HandTwoPair
	case groups[0].n == 2:
		return pack(HandPair, groups[0].val, groups[0].val, groups[1].val, groups[2].val, groups[3].val), HandPair
	default:
		return pack(HandHighCard, vals[0], vals[1], vals[2], vals[3], vals[4]), HandHighCard
	}
}

func pack(cat byte, a, b, c, d, e int) uint32 {
	return uint32(cat)<<20 | uint32(a)<<16 | uint32(b)<<12 | uint32(c)<<8 | uint32(d)<<4 | uint32(e)
}

// packStraight 顺子只比顶张, A-5 顺子顶张为 5
func packStraight(cat byte, high int) uint32 {
	if high == 5 {
		// 牌面含 A 但只按顶张 5 比较
		return uint32(cat)<<20 | uint32(5)<<16
	}
	return pack(cat, high, high-1, high-2, high-3, high-4)
}

// HandEntry 摊牌比较的一个参与者
type HandEntry struct {
	PlayerID string
	Hole     []card.Card
}

// DetermineWinners 在同一副公共牌下比较多名玩家, 返回并列最强者的 ID
// (按传入顺序) 和获胜牌型名. 手牌不是恰好两张的条目返回错误.
func DetermineWinners(entries []HandEntry, community []card.Card) ([]string, string, error) {
	if len(entries) == 0 {
		return nil, "", InvalidStateError("no hands to compare")
	}
	var best uint32
	var bestName string
	var winners []string
	for _, e := range entries {
		if len(e.Hole) != 2 {
			return nil, "", fmt.Errorf("holdem: player %s has %d hole cards, want 2", e.PlayerID, len(e.Hole))
		}
		r, err := EvaluateHand(e.Hole, community)
		if err != nil {
			return nil, "", err
		}
		switch {
		case r.Score > best:
			best, bestName = r.Score, r.Name
			winners = winners[:0]
			winners = append(winners, e.PlayerID)
		case r.Score == best:
			winners = append(winners, e.PlayerID)
		}
	}
	return winners, bestName, nil
}
