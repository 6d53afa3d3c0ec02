package transport

import (
	"bytes"
	"context"
	"io"
)

// Memory serves a document held in memory.
type Memory struct {
	data []byte
}

var _ Transport = (*Memory)(nil)
var _ Streamer = (*Memory)(nil)

// NewMemory returns a transport over data. data must not be modified afterwards.
func NewMemory(data []byte) *Memory {
	return &Memory{data: data}
}

func (m *Memory) Length(context.Context) (int64, error) {
	return int64(len(m.data)), nil
}

func (m *Memory) FetchRange(ctx context.Context, begin, end int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkRange(begin, end, int64(len(m.data))); err != nil {
		return nil, err
	}
	return append([]byte(nil), m.data[begin:end]...), nil
}

func (m *Memory) Stream(context.Context) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(m.data)), nil
}

func (m *Memory) Close() error { return nil }
