// Package store 持久化牌桌与座位. 牌桌状态整体按 JSON 存一行,
// 写入带版本号 CAS, 并发写丢失的一方拿到 ErrVersionConflict 重试.
package store

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/dawson0919/texasporker-sub000/card"
	"github.com/dawson0919/texasporker-sub000/holdem"
)

var (
	// ErrNotFound 牌桌或座位不存在
	ErrNotFound = errors.New("store: not found")
	// ErrVersionConflict CAS 写入失败, 状态已被并发修改
	ErrVersionConflict = errors.New("store: version conflict")
)

// 牌桌状态
const (
	TableOpen   = "open"
	TableClosed = "closed"
)

// TableRow 一张牌桌的持久化形态
type TableRow struct {
	ID           string
	Status       string
	FillDeadline *time.Time
	HandCount    int
	Version      int64
	State        *holdem.GameState
}

// SeatRow 一个座位的权威行. 跨手牌的余额以这里为准,
// 手牌只存在这里, 绝不进 TableRow.State.
type SeatRow struct {
	TableID     string
	SeatIndex   int
	PlayerType  holdem.PlayerType
	PlayerID    string
	DisplayName string
	AvatarURL   string
	Balance     int64
	HoleCards   []card.Card
}

// Store 牌桌持久化接口
type Store interface {
	CreateTable(ctx context.Context, row *TableRow) error
	// GetTable 读取牌桌, 不存在返回 ErrNotFound
	GetTable(ctx context.Context, id string) (*TableRow, error)
	// SaveTable 按 row.Version CAS 写入, 成功后 row.Version 自增.
	// 版本不匹配返回 ErrVersionConflict.
	SaveTable(ctx context.Context, row *TableRow) error
	ListOpenTables(ctx context.Context) ([]*TableRow, error)
	CloseTable(ctx context.Context, id string) error

	ListSeats(ctx context.Context, tableID string) ([]*SeatRow, error)
	UpsertSeat(ctx context.Context, s *SeatRow) error
	DeleteSeat(ctx context.Context, tableID string, seatIndex int) error
	DeleteSeats(ctx context.Context, tableID string) error

	// SetHoleCards 整桌覆盖写入本手的手牌, 未列出的座位清空
	SetHoleCards(ctx context.Context, tableID string, hole map[int][]card.Card) error
	GetHoleCards(ctx context.Context, tableID string) (map[int][]card.Card, error)
	// CommitBalances 摊牌后把结算余额落回座位行
	CommitBalances(ctx context.Context, tableID string, balances map[int]int64) error

	Close() error
}

// NewFromEnv 按 STORAGE_MODE 选择后端: memory / sqlite(local) / postgres.
// 返回实际启用的后端名用于启动日志.
func NewFromEnv() (Store, string, error) {
	mode := strings.ToLower(strings.TrimSpace(os.Getenv("STORAGE_MODE")))
	switch mode {
	case "", "memory":
		return NewMemory(), "memory", nil
	case "local", "sqlite":
		s, err := NewSQLiteFromEnv()
		if err != nil {
			return nil, "", err
		}
		return s, "sqlite", nil
	case "postgres", "postgresql", "db":
		s, err := NewPostgresFromEnv()
		if err != nil {
			return nil, "", err
		}
		return s, "postgres", nil
	default:
		return nil, "", errors.New("store: unknown STORAGE_MODE " + mode)
	}
}
