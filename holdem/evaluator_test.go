package holdem

import (
	"strings"
	"testing"

	"github.com/dawson0919/texasporker-sub000/card"
)

func cards(t *testing.T, codes string) []card.Card {
	t.Helper()
	parts := strings.Fields(codes)
	out := make([]card.Card, 0, len(parts))
	for _, p := range parts {
		c, err := card.Parse(p)
		if err != nil {
			t.Fatalf("parse %q: %v", p, err)
		}
		out = append(out, c)
	}
	return out
}

func evalCategory(t *testing.T, hole, community string) byte {
	t.Helper()
	r, err := EvaluateHand(cards(t, hole), cards(t, community))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	return r.Category
}

func TestEvaluateHandCategories(t *testing.T) {
	tests := []struct {
		name      string
		hole      string
		community string
		want      byte
	}{
		{"royal flush", "As Ks", "Qs Js Ts 2h 3d", HandRoyalFlush},
		{"straight flush", "9h 8h", "7h 6h 5h As Kd", HandStraightFlush},
		{"steel wheel", "Ah 2h", "3h 4h 5h Ks Qd", HandStraightFlush},
		{"four of a kind", "Ac Ad", "Ah As Kd 2c 3h", HandFourOfAKind},
		{"full house", "Kc Kd", "Kh 2s 2d 7c 9h", HandFullHouse},
		{"flush", "Ad 2d", "7d 9d Jd Ks Qh", HandFlush},
		{"straight", "9c 8d", "7h 6s 5d Ac Kh", HandStraight},
		{"wheel", "Ac 2d", "3h 4s 5d Kc Qh", HandStraight},
		{"three of a kind", "Qc Qd", "Qh 2s 7d 9c Kh", HandThreeOfAKind},
		{"two pair", "Jc Jd", "4h 4s 8d 9c Kh", HandTwoPair},
		{"pair", "Tc Td", "2h 5s 8d 9c Kh", HandPair},
		{"high card", "Ac 8d", "2h 5s 7d Jc Kh", HandHighCard},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := evalCategory(t, tt.hole, tt.community)
			if got != tt.want {
				t.Fatalf("category = %s, want %s", HandName(got), HandName(tt.want))
			}
		})
	}
}

func TestEvaluateHandNeedsFiveCards(t *testing.T) {
	if _, err := EvaluateHand(cards(t, "Ah Ad"), cards(t, "2c 3d")); err == nil {
		t.Fatal("expected error with 4 cards")
	}
}

func TestEvaluateHandRequiresTwoHoleCards(t *testing.T) {
	if _, err := EvaluateHand(cards(t, "Ah"), cards(t, "2c 3d 4h 5s 6d")); err == nil {
		t.Fatal("expected error with one hole card")
	}
	if _, err := EvaluateHand(cards(t, "Ah Ad Ac"), cards(t, "2c 3d 4h 5s")); err == nil {
		t.Fatal("expected error with three hole cards")
	}
}

func TestWheelLosesToSixHighStraight(t *testing.T) {
	wheel, err := EvaluateHand(cards(t, "Ac 2d"), cards(t, "3h 4s 5d Kc 9h"))
	if err != nil {
		t.Fatalf("evaluate wheel: %v", err)
	}
	six, err := EvaluateHand(cards(t, "6c 2d"), cards(t, "3h 4s 5d Kc 9h"))
	if err != nil {
		t.Fatalf("evaluate six-high: %v", err)
	}
	if wheel.Score >= six.Score {
		t.Fatalf("wheel %d should lose to six-high straight %d", wheel.Score, six.Score)
	}
}

func TestKickerBreaksTie(t *testing.T) {
	board := "Qh Qs 7d 4c 2h"
	aceKick, err := EvaluateHand(cards(t, "Ac 9d"), cards(t, board))
	if err != nil {
		t.Fatal(err)
	}
	kingKick, err := EvaluateHand(cards(t, "Kc 9h"), cards(t, board))
	if err != nil {
		t.Fatal(err)
	}
	if aceKick.Score <= kingKick.Score {
		t.Fatalf("ace kicker %d should beat king kicker %d", aceKick.Score, kingKick.Score)
	}
}

func TestDetermineWinnersSplitsTies(t *testing.T) {
	// 两人都只打公共牌, 必然平分
	board := cards(t, "Ah As Kd Kc Qh")
	ids, name, err := DetermineWinners([]HandEntry{
		{PlayerID: "0", Hole: cards(t, "2c 3d")},
		{PlayerID: "1", Hole: cards(t, "2h 3s")},
	}, board)
	if err != nil {
		t.Fatalf("determine: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("winners = %v, want both", ids)
	}
	if name != "Two Pair" {
		t.Fatalf("hand name = %q, want Two Pair", name)
	}
}

func TestDetermineWinnersOrderIndependent(t *testing.T) {
	board := cards(t, "2h 5s 8d Jc Kh")
	entries := []HandEntry{
		{PlayerID: "a", Hole: cards(t, "Ac Ad")},
		{PlayerID: "b", Hole: cards(t, "Kc Qd")},
		{PlayerID: "c", Hole: cards(t, "7c 6d")},
	}
	ids1, _, err := DetermineWinners(entries, board)
	if err != nil {
		t.Fatal(err)
	}
	reversed := []HandEntry{entries[2], entries[1], entries[0]}
	ids2, _, err := DetermineWinners(reversed, board)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids1) != 1 || len(ids2) != 1 || ids1[0] != ids2[0] {
		t.Fatalf("winner depends on order: %v vs %v", ids1, ids2)
	}
	if ids1[0] != "a" {
		t.Fatalf("winner = %s, want a (pair of aces)", ids1[0])
	}
}

func TestDetermineWinnersRejectsBadHole(t *testing.T) {
	board := cards(t, "2h 5s 8d Jc Kh")
	if _, _, err := DetermineWinners([]HandEntry{{PlayerID: "x", Hole: cards(t, "Ac")}}, board); err == nil {
		t.Fatal("expected error for one-card hole")
	}
}
