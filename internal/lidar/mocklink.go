package lidar

import (
	"bytes"
	"sync"
	"time"
)

// mockStream is an in-memory ByteStream used by tests to synthesize device
// traffic without a real serial port.
type mockStream struct {
	mu sync.Mutex

	// inbound holds bytes the "device" has sent, waiting to be read.
	inbound bytes.Buffer

	// outbound records everything written to the "device".
	outbound bytes.Buffer

	dtr    bool
	closed bool
}

func newMockStream() *mockStream {
	return &mockStream{}
}

// feed appends bytes to the inbound queue, as if the device had sent them.
func (m *mockStream) feed(b []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inbound.Write(b)
}

func (m *mockStream) written() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.outbound.Bytes()...)
}

func (m *mockStream) ReadExact(buf []byte, timeout time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrIOFailure
	}

	n, _ := m.inbound.Read(buf)
	return n, nil
}

func (m *mockStream) WriteAll(buf []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrIOFailure
	}
	m.outbound.Write(buf)
	return nil
}

func (m *mockStream) SetDTR(on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dtr = on
	return nil
}

func (m *mockStream) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
