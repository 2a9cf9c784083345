package holdem

import "time"

// Config 引擎参数. 零值不可用, 请从 DefaultConfig 出发修改.
type Config struct {
	SmallBlind int64
	BigBlind   int64

	// DefaultBuyIn 新入座玩家的初始筹码
	DefaultBuyIn int64

	// TurnTimer 真人座位的行动时限
	TurnTimer time.Duration
	// AITurnTimer 机器人座位的行动时限, 比真人短
	AITurnTimer time.Duration
	// TimeoutGrace 服务端判定超时前的宽限, 吸收网络延迟
	TimeoutGrace time.Duration
	// AutoStartDelay 人数不足时等待真人加入的窗口, 到期补满机器人
	AutoStartDelay time.Duration
	// HandRestartDelay 一手结束后到自动开下一手的间隔
	HandRestartDelay time.Duration

	// Seed 随机种子, 0 表示按时间播种. 测试用固定值复现牌局.
	Seed int64
}

// DefaultConfig 标准桌配置
func DefaultConfig() Config {
	return Config{
		SmallBlind:       50,
		BigBlind:         100,
		DefaultBuyIn:     10000,
		TurnTimer:        10 * time.Second,
		AITurnTimer:      3 * time.Second,
		TimeoutGrace:     1 * time.Second,
		AutoStartDelay:   5 * time.Minute,
		HandRestartDelay: 4 * time.Second,
	}
}
