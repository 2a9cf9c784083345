package card

import (
	"errors"
	"math/rand"
)

var ErrInsufficientCards = errors.New("card: not enough cards in deck")

// Deck 一副未发出的牌。洗牌使用注入的 rng，方便测试固定种子。
type Deck struct {
	cards []Card
	rng   *rand.Rand
}

// NewDeck returns a full 52-card deck, shuffled with rng.
func NewDeck(rng *rand.Rand) *Deck {
	d := &Deck{rng: rng}
	d.Reset()
	return d
}

// NewDeckExcluding builds a fresh deck with every card in used removed,
// then shuffles the remainder. This is how a deck is rebuilt mid-hand from
// persisted hole/community cards (the deck itself is never persisted).
func NewDeckExcluding(rng *rand.Rand, used []Card) *Deck {
	d := &Deck{rng: rng}
	d.cards = d.cards[:0]
	for _, c := range FullDeck() {
		if Contains(used, c) {
			continue
		}
		d.cards = append(d.cards, c)
	}
	d.shuffle()
	return d
}

// Reset refills the deck with all 52 cards and shuffles (Fisher-Yates).
func (d *Deck) Reset() {
	d.cards = FullDeck()
	d.shuffle()
}

func (d *Deck) shuffle() {
	d.rng.Shuffle(len(d.cards), func(i, j int) {
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	})
}

// Deal removes and returns n cards from the front of the deck.
func (d *Deck) Deal(n int) ([]Card, error) {
	if n > len(d.cards) {
		return nil, ErrInsufficientCards
	}
	out := make([]Card, n)
	copy(out, d.cards[:n])
	d.cards = d.cards[n:]
	return out, nil
}

// Remaining 剩余牌数
func (d *Deck) Remaining() int {
	return len(d.cards)
}
