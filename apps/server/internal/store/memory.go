package store

import (
	"context"
	"sync"

	"github.com/dawson0919/texasporker-sub000/card"
)

// Memory 进程内存储, 开发与测试用. 所有读写返回深拷贝,
// 调用方改返回值不会污染存档.
type Memory struct {
	mu     sync.Mutex
	tables map[string]*TableRow
	seats  map[string]map[int]*SeatRow
}

func NewMemory() *Memory {
	return &Memory{
		tables: map[string]*TableRow{},
		seats:  map[string]map[int]*SeatRow{},
	}
}

func (m *Memory) Close() error { return nil }

func copyTable(row *TableRow) *TableRow {
	cp := *row
	if row.FillDeadline != nil {
		t := *row.FillDeadline
		cp.FillDeadline = &t
	}
	if row.State != nil {
		cp.State = row.State.Clone()
	}
	return &cp
}

func copySeat(s *SeatRow) *SeatRow {
	cp := *s
	cp.HoleCards = append([]card.Card(nil), s.HoleCards...)
	return &cp
}

func (m *Memory) CreateTable(_ context.Context, row *TableRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := copyTable(row)
	if cp.Version == 0 {
		cp.Version = 1
	}
	m.tables[cp.ID] = cp
	row.Version = cp.Version
	return nil
}

func (m *Memory) GetTable(_ context.Context, id string) (*TableRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.tables[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyTable(row), nil
}

func (m *Memory) SaveTable(_ context.Context, row *TableRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.tables[row.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Version != row.Version {
		return ErrVersionConflict
	}
	cp := copyTable(row)
	cp.Version++
	m.tables[row.ID] = cp
	row.Version = cp.Version
	return nil
}

func (m *Memory) ListOpenTables(_ context.Context) ([]*TableRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*TableRow{}
	for _, row := range m.tables {
		if row.Status == TableOpen {
			out = append(out, copyTable(row))
		}
	}
	return out, nil
}

func (m *Memory) CloseTable(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.tables[id]
	if !ok {
		return ErrNotFound
	}
	row.Status = TableClosed
	return nil
}

func (m *Memory) ListSeats(_ context.Context, tableID string) ([]*SeatRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*SeatRow{}
	for _, s := range m.seats[tableID] {
		out = append(out, copySeat(s))
	}
	return out, nil
}

func (m *Memory) UpsertSeat(_ context.Context, s *SeatRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byIdx, ok := m.seats[s.TableID]
	if !ok {
		byIdx = map[int]*SeatRow{}
		m.seats[s.TableID] = byIdx
	}
	byIdx[s.SeatIndex] = copySeat(s)
	return nil
}

func (m *Memory) DeleteSeat(_ context.Context, tableID string, seatIndex int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.seats[tableID], seatIndex)
	return nil
}

func (m *Memory) DeleteSeats(_ context.Context, tableID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.seats, tableID)
	return nil
}

func (m *Memory) SetHoleCards(_ context.Context, tableID string, hole map[int][]card.Card) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for idx, s := range m.seats[tableID] {
		s.HoleCards = append([]card.Card(nil), hole[idx]...)
	}
	return nil
}

func (m *Memory) GetHoleCards(_ context.Context, tableID string) (map[int][]card.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[int][]card.Card{}
	for idx, s := range m.seats[tableID] {
		if len(s.HoleCards) > 0 {
			out[idx] = append([]card.Card(nil), s.HoleCards...)
		}
	}
	return out, nil
}

func (m *Memory) CommitBalances(_ context.Context, tableID string, balances map[int]int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for idx, bal := range balances {
		if s, ok := m.seats[tableID][idx]; ok {
			s.Balance = bal
		}
	}
	return nil
}
