package lidar

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// ByteStream is the driver's only substrate: a serial-like duplex byte
// stream with a timed, short-read-tolerant read primitive and DTR control.
// Abstracting it behind an interface, rather than depending on go.bug.st/serial
// directly, lets tests substitute an in-memory stream (see mocklink.go).
type ByteStream interface {
	// ReadExact reads up to len(buf) bytes, blocking until timeout elapses
	// or the buffer is full, whichever comes first. It returns the number
	// of bytes actually placed into buf; a short read on timeout is not an
	// error, callers track progress via the returned count.
	ReadExact(buf []byte, timeout time.Duration) (n int, err error)

	// WriteAll writes the entire buffer or returns an error.
	WriteAll(buf []byte) error

	// SetDTR raises (true) or lowers (false) the DTR line.
	SetDTR(on bool) error

	// Close closes the underlying link. Safe to call more than once.
	Close() error
}

// serialStream is the concrete ByteStream backed by go.bug.st/serial.
type serialStream struct {
	port serial.Port
}

// OpenSerial opens a tty at the given baud rate with 8N1 framing, the
// configuration every device in this family expects.
func OpenSerial(portName string, baudRate int) (ByteStream, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrIOFailure, portName, err)
	}

	if err := port.ResetInputBuffer(); err != nil {
		port.Close()
		return nil, fmt.Errorf("%w: flushing %s: %v", ErrIOFailure, portName, err)
	}

	return &serialStream{port: port}, nil
}

func (s *serialStream) ReadExact(buf []byte, timeout time.Duration) (int, error) {
	if err := s.port.SetReadTimeout(timeout); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrIOFailure, err)
	}

	total := 0
	for total < len(buf) {
		n, err := s.port.Read(buf[total:])
		total += n
		if err != nil {
			return total, fmt.Errorf("%w: %v", ErrIOFailure, err)
		}
		if n == 0 {
			// Timeout elapsed with no further bytes available.
			return total, nil
		}
	}
	return total, nil
}

func (s *serialStream) WriteAll(buf []byte) error {
	written := 0
	for written < len(buf) {
		n, err := s.port.Write(buf[written:])
		if err != nil {
			return fmt.Errorf("%w: %v", ErrIOFailure, err)
		}
		written += n
	}
	return nil
}

func (s *serialStream) SetDTR(on bool) error {
	if err := s.port.SetDTR(on); err != nil {
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	return nil
}

func (s *serialStream) Close() error {
	return s.port.Close()
}
