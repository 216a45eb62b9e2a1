package lidar

import "errors"

// Error taxonomy surfaced across the driver's facade. Internal recovery
// (bad checksum, lost framing) never reaches the caller as an error value;
// it is folded back into the parser state machine instead.
var (
	// ErrIOFailure indicates the serial link failed to read or write, or
	// has been closed out from under an in-flight operation.
	ErrIOFailure = errors.New("lidar: io failure")

	// ErrTimeout indicates a deadline elapsed before the operation completed.
	ErrTimeout = errors.New("lidar: timeout")

	// ErrProtocol indicates an unexpected response: wrong header type or a
	// payload size mismatch. A response whose sync bytes never arrive
	// surfaces as ErrTimeout instead.
	ErrProtocol = errors.New("lidar: protocol error")

	// ErrInvalidState indicates the operation is illegal given the
	// driver's current connected/scanning state.
	ErrInvalidState = errors.New("lidar: invalid state")

	// ErrNotScanning is returned by GrabScanData when the driver is not
	// scanning: StartScan has not been called, or Stop has ended the scan.
	ErrNotScanning = errors.New("lidar: not scanning")

	// ErrAlreadyConnected is returned by Connect when the link is already open.
	ErrAlreadyConnected = errors.New("lidar: already connected")
)
