package holdem

import "errors"

var (
	// ErrNotYourTurn 不是该座位的行动回合
	ErrNotYourTurn = errors.New("holdem: not your turn")
	// ErrInvalidAction 动作在当前局面下不合法 (如有人下注时 check)
	ErrInvalidAction = errors.New("holdem: invalid action")
	// ErrNoHandInProgress 当前没有进行中的手牌
	ErrNoHandInProgress = errors.New("holdem: no hand in progress")
	// ErrHandInProgress 手牌进行中, 不能重复开局
	ErrHandInProgress = errors.New("holdem: hand already in progress")
	// ErrNotEnoughPlayers 可开局座位不足两个
	ErrNotEnoughPlayers = errors.New("holdem: not enough players to start")
	// ErrTurnExpired 行动时限已过, 只接受弃牌
	ErrTurnExpired = errors.New("holdem: turn expired")
	// ErrSeatNotPlaying 座位已弃牌/全下/旁观, 不能行动
	ErrSeatNotPlaying = errors.New("holdem: seat cannot act")
)

// InvalidStateError 状态机被破坏时的不可恢复错误
type InvalidStateError string

func (e InvalidStateError) Error() string {
	return "holdem: invalid state: " + string(e)
}
