package lidar

import (
	"fmt"
	"time"
)

// transactionEngine implements C2: one-shot command exchange with timeout.
// It owns no concurrency control of its own — the Driver facade is
// responsible for stopping the pump before issuing a command transaction.
type transactionEngine struct {
	link ByteStream
}

func newTransactionEngine(link ByteStream) *transactionEngine {
	return &transactionEngine{link: link}
}

// sendCommand encodes and writes a command frame. payload may be nil for
// commands without the has-payload bit set.
func (e *transactionEngine) sendCommand(cmd byte, payload []byte) error {
	frame := encodeCommand(cmd, payload)
	if err := e.link.WriteAll(frame); err != nil {
		return err
	}
	return nil
}

// waitForBytes reads exactly n bytes, tracking the deadline across
// however many underlying reads it takes; a short read when the deadline
// is reached surfaces as ErrTimeout.
func (e *transactionEngine) waitForBytes(n int, timeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(timeout)
	buf := make([]byte, n)
	got := 0

	for got < n {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return buf[:got], ErrTimeout
		}

		read, err := e.link.ReadExact(buf[got:], remaining)
		if err != nil {
			return buf[:got], fmt.Errorf("%w: %v", ErrIOFailure, err)
		}
		got += read

		if read == 0 && time.Now().After(deadline) {
			return buf[:got], ErrTimeout
		}
	}

	return buf, nil
}

// waitResponseHeader scans the inbound stream for the 0xA5 0x5A sync pair,
// discarding bytes before it, then decodes the 5 bytes that follow into a
// ResponseHeader. The overall timeout is measured from the first call.
func (e *transactionEngine) waitResponseHeader(timeout time.Duration) (ResponseHeader, error) {
	deadline := time.Now().Add(timeout)

	one := make([]byte, 1)
	sawFirstSync := false

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ResponseHeader{}, ErrTimeout
		}

		n, err := e.link.ReadExact(one, remaining)
		if err != nil {
			return ResponseHeader{}, fmt.Errorf("%w: %v", ErrIOFailure, err)
		}
		if n == 0 {
			if time.Now().After(deadline) {
				return ResponseHeader{}, ErrTimeout
			}
			continue
		}

		if !sawFirstSync {
			if one[0] == ansSyncByte1 {
				sawFirstSync = true
			}
			continue
		}

		if one[0] == ansSyncByte2 {
			rest, err := e.waitForBytes(5, time.Until(deadline))
			if err != nil {
				return ResponseHeader{}, err
			}
			var b [5]byte
			copy(b[:], rest)
			return decodeResponseHeader(b), nil
		}

		// Not the second sync byte: re-arm looking for syncByte1, but this
		// byte itself might already be it.
		sawFirstSync = one[0] == ansSyncByte1
	}
}

// readPayload reads exactly n bytes of response payload.
func (e *transactionEngine) readPayload(n int, timeout time.Duration) ([]byte, error) {
	return e.waitForBytes(n, timeout)
}
