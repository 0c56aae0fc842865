package mocks

import (
	"context"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/stretchr/testify/mock"
)

// MockConn is a testify mock of driver.Conn.
//
// Expectations are keyed by (ctx, query, args...) for the query methods.
type MockConn struct {
	mock.Mock
}

var _ driver.Conn = (*MockConn)(nil)

func queryArgs(ctx context.Context, query string, args []any) []any {
	return append([]any{ctx, query}, args...)
}

func (m *MockConn) Contributors() []string {
	return m.Called().Get(0).([]string)
}

func (m *MockConn) ServerVersion() (*driver.ServerVersion, error) {
	ret := m.Called()
	v, _ := ret.Get(0).(*driver.ServerVersion)
	return v, ret.Error(1)
}

func (m *MockConn) Select(ctx context.Context, _ any, query string, args ...any) error {
	return m.Called(queryArgs(ctx, query, args)...).Error(0)
}

func (m *MockConn) Query(ctx context.Context, query string, args ...any) (driver.Rows, error) {
	ret := m.Called(queryArgs(ctx, query, args)...)
	rows, _ := ret.Get(0).(driver.Rows)
	return rows, ret.Error(1)
}

func (m *MockConn) QueryRow(ctx context.Context, query string, args ...any) driver.Row {
	row, _ := m.Called(queryArgs(ctx, query, args)...).Get(0).(driver.Row)
	return row
}

func (m *MockConn) Exec(ctx context.Context, query string, args ...any) error {
	return m.Called(queryArgs(ctx, query, args)...).Error(0)
}

func (m *MockConn) AsyncInsert(ctx context.Context, query string, wait bool, args ...any) error {
	return m.Called(append([]any{ctx, query, wait}, args...)...).Error(0)
}

func (m *MockConn) PrepareBatch(ctx context.Context, query string, opts ...driver.PrepareBatchOption) (driver.Batch, error) {
	callArgs := []any{ctx, query}
	for _, opt := range opts {
		callArgs = append(callArgs, opt)
	}
	ret := m.Called(callArgs...)
	batch, _ := ret.Get(0).(driver.Batch)
	return batch, ret.Error(1)
}

func (m *MockConn) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockConn) Stats() driver.Stats {
	stats, _ := m.Called().Get(0).(driver.Stats)
	return stats
}

func (m *MockConn) Close() error {
	return m.Called().Error(0)
}

// Row is a driver.Row that copies fixed values into Scan destinations.
// Supported destination types are *uint64, **uint64, *int64, *string and *bool.
type Row struct {
	Values []any
	ErrVal error
}

var _ driver.Row = Row{}

func (r Row) Err() error {
	return r.ErrVal
}

func (r Row) Scan(dest ...any) error {
	if r.ErrVal != nil {
		return r.ErrVal
	}
	for i := range dest {
		if i >= len(r.Values) {
			break
		}
		switch d := dest[i].(type) {
		case *uint64:
			*d = r.Values[i].(uint64)
		case **uint64:
			*d, _ = r.Values[i].(*uint64)
		case *int64:
			*d = r.Values[i].(int64)
		case *string:
			*d = r.Values[i].(string)
		case *bool:
			*d = r.Values[i].(bool)
		}
	}
	return nil
}

func (r Row) ScanStruct(dest any) error {
	return r.Scan(dest)
}
