// Package bot 实现桌上机器人的决策策略.
// 策略只看公开局面和自己的手牌, 不偷看牌堆和他人手牌.
package bot

import (
	"math"
	"math/rand"

	"github.com/dawson0919/texasporker-sub000/card"
	"github.com/dawson0919/texasporker-sub000/holdem"
)

// Brain 一个带独立随机源的决策器, 实现 holdem.Decider.
// 非并发安全, 每桌一个.
type Brain struct {
	rng *rand.Rand

	// 测试钩子: 固定强度 / 关闭诈唬, 用于断言策略下限
	forceStrength *float64
	noBluff       bool
}

// Option 构造参数
type Option func(*Brain)

// ForceStrength 固定强度估值, 跳过真实评牌 (测试用)
func ForceStrength(v float64) Option {
	return func(b *Brain) { b.forceStrength = &v }
}

// DisableBluff 关闭诈唬分支 (测试用)
func DisableBluff() Option {
	return func(b *Brain) { b.noBluff = true }
}

// New 创建决策器. rng 必须非 nil, 由调用方播种以便复现.
func New(rng *rand.Rand, opts ...Option) *Brain {
	b := &Brain{rng: rng}
	for _, o := range opts {
		o(b)
	}
	return b
}

// HandStrength 估算手牌强度, 区间 [0,1].
// 翻牌前按高张/对子/同花/连张打分, 翻牌后直接用牌型等级归一.
func HandStrength(hole, community []card.Card) float64 {
	if len(hole) != 2 {
		return 0.3
	}
	if len(community) >= 3 {
		r, err := holdem.EvaluateHand(hole, community)
		if err != nil {
			return 0.3
		}
		return float64(r.Category) / 10
	}
	// 翻牌前: 0..12 的牌面序, A 最大
	r1 := hole[0].CompareVal() - 2
	r2 := hole[1].CompareVal() - 2
	high := r1
	if r2 > high {
		high = r2
	}
	strength := float64(high) / 13 * 0.4
	gap := r1 - r2
	if gap < 0 {
		gap = -gap
	}
	switch {
	case gap == 0:
		strength += 0.35
	case gap <= 2:
		strength += 0.05
	}
	if hole[0].Suit() == hole[1].Suit() {
		strength += 0.05
	}
	return math.Min(strength, 1.0)
}

// Decide 给出当前局面下的动作
func (b *Brain) Decide(v holdem.DecisionView) holdem.Decision {
	callCost := v.CurrentBet - v.Seat.Bet
	canCheck := callCost <= 0
	preflop := len(v.Community) == 0

	strength := HandStrength(v.Hole, v.Community)
	if b.forceStrength != nil {
		strength = *b.forceStrength
	}

	// ±0.15 均匀噪声, 避免策略可被完全读死
	adjusted := strength + (b.rng.Float64()-0.5)*0.3
	adjusted = math.Max(0, math.Min(1, adjusted))

	// 翻牌前更敢赌
	bluffP := 0.08
	raiseAt := 0.65
	if preflop {
		bluffP = 0.15
		raiseAt = 0.6
	}
	bluff := !b.noBluff && b.rng.Float64() < bluffP

	if adjusted >= raiseAt || bluff {
		if v.Seat.ChipBalance <= callCost {
			return holdem.Decision{Action: holdem.ActionAllIn}
		}
		mult := 2 + b.rng.Float64()*2
		target := v.CurrentBet + int64(float64(v.BigBlind)*mult)
		if limit := v.Seat.ChipBalance + v.Seat.Bet; target > limit {
			target = limit
		}
		return holdem.Decision{Action: holdem.ActionRaise, RaiseTo: target}
	}

	callAt := 0.3
	if preflop {
		callAt = 0.2
	}
	if adjusted >= callAt || (canCheck && adjusted >= 0.1) {
		if canCheck {
			return holdem.Decision{Action: holdem.ActionCheck}
		}
		// 翻牌前补大盲几乎总是值得
		if preflop && callCost <= v.BigBlind {
			return holdem.Decision{Action: holdem.ActionCall}
		}
		stackPortion := float64(callCost) / math.Max(1, float64(v.Seat.ChipBalance))
		potOdds := float64(callCost) / math.Max(1, float64(v.PotSize+callCost))
		if stackPortion <= 0.3 || adjusted > 0.45 || (potOdds < 0.2 && adjusted > 0.2) {
			if callCost >= v.Seat.ChipBalance {
				return holdem.Decision{Action: holdem.ActionAllIn}
			}
			return holdem.Decision{Action: holdem.ActionCall}
		}
		return holdem.Decision{Action: holdem.ActionFold}
	}

	if canCheck {
		return holdem.Decision{Action: holdem.ActionCheck}
	}
	// 牌很烂也偶尔便宜跟注看翻牌
	if preflop && callCost <= v.BigBlind && b.rng.Float64() < 0.3 {
		return holdem.Decision{Action: holdem.ActionCall}
	}
	return holdem.Decision{Action: holdem.ActionFold}
}
