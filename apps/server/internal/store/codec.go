package store

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dawson0919/texasporker-sub000/card"
	"github.com/dawson0919/texasporker-sub000/holdem"
)

func encodeState(st *holdem.GameState) (string, error) {
	raw, err := json.Marshal(st)
	if err != nil {
		return "", fmt.Errorf("store: encode state: %w", err)
	}
	return string(raw), nil
}

func decodeState(raw string) (*holdem.GameState, error) {
	st := holdem.NewGameState()
	if err := json.Unmarshal([]byte(raw), st); err != nil {
		return nil, fmt.Errorf("store: decode state: %w", err)
	}
	return st, nil
}

// encodeCards "As Td" 形式, 空切片存空串
func encodeCards(cs []card.Card) string {
	parts := make([]string, 0, len(cs))
	for _, c := range cs {
		parts = append(parts, c.Code())
	}
	return strings.Join(parts, " ")
}

func decodeCards(raw string) ([]card.Card, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parts := strings.Fields(raw)
	out := make([]card.Card, 0, len(parts))
	for _, p := range parts {
		c, err := card.Parse(p)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
