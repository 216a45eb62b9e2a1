package lidar

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultTimeout is the operational envelope's default command/grab timeout.
const DefaultTimeout = 2000 * time.Millisecond

// Version identifies this driver, the analogue of the original SDK's
// getSDKVersion, surfaced by the CLI's --version flag.
const Version = "0.1.0"

// Device model IDs recognized by the driver.
const (
	ModelF4 byte = 1
	ModelT1 byte = 2
	ModelF2 byte = 3
	ModelS4 byte = 4
	ModelG4 byte = 5
	ModelX4 byte = 6
)

// ModelName returns the human-readable name for a model ID, or "unknown".
func ModelName(id byte) string {
	switch id {
	case ModelF4:
		return "F4"
	case ModelT1:
		return "T1"
	case ModelF2:
		return "F2"
	case ModelS4:
		return "S4"
	case ModelG4:
		return "G4"
	case ModelX4:
		return "X4"
	default:
		return "unknown"
	}
}

// DeviceInfo is the decoded response to the device-info command.
type DeviceInfo struct {
	Model         byte
	FirmwareMajor byte
	FirmwareMinor byte
	FirmwarePatch byte
	Hardware      byte
	Serial        []byte
}

// Health is the decoded response to the health command. Status 2 is an
// advisory to the caller to reset the device.
type Health struct {
	Status    byte
	ErrorCode uint16
}

// Driver is the facade: lifecycle, intensity mode, and the
// grab/ascend operations. A Driver is safe to call from one consumer
// goroutine concurrent with its own acquisition pump; concurrent
// consumers are not supported.
type Driver struct {
	log *logrus.Entry

	mu sync.Mutex

	link ByteStream
	txn  *transactionEngine

	connected     bool
	scanning      bool
	intensityMode bool

	parser *ScanParser

	latestScan  []Node
	scanGen     int
	lastReadGen int
	scanErr     error

	dataCh chan struct{}

	cancelPump context.CancelFunc
	pumpDone   chan struct{}

	rotationSink func([]Node)
}

// New returns a disconnected Driver.
func New(log *logrus.Entry) *Driver {
	return &Driver{
		log:    log,
		dataCh: make(chan struct{}),
	}
}

// Connect opens the serial link at 8N1 and initializes state. DTR is
// raised (motor off) until a scan is started.
func (d *Driver) Connect(port string, baudRate int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return ErrAlreadyConnected
	}

	link, err := OpenSerial(port, baudRate)
	if err != nil {
		return err
	}
	if err := link.SetDTR(true); err != nil {
		link.Close()
		return err
	}

	d.link = link
	d.txn = newTransactionEngine(link)
	d.connected = true
	d.scanErr = nil
	d.latestScan = nil
	d.scanGen = 0
	d.lastReadGen = 0

	return nil
}

// Disconnect stops the pump if running and closes the link. Idempotent.
func (d *Driver) Disconnect() error {
	d.Stop()

	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil
	}

	if d.link != nil {
		d.link.Close()
	}
	d.link = nil
	d.txn = nil
	d.connected = false
	return nil
}

// SetRotationSink registers a callback invoked with every completed
// rotation, alongside the grab-data slot GrabScanData reads from. It lets
// a caller (e.g. cmd/lidarctl) fan rotations out to external subscribers,
// such as a publish.Bus, without GrabScanData's pull-based consumers ever
// needing to know the sink exists. Pass nil to stop fanning out.
func (d *Driver) SetRotationSink(sink func([]Node)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rotationSink = sink
}

// SetIntensities toggles intensity mode. Must be called while not scanning.
func (d *Driver) SetIntensities(on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.scanning {
		return ErrInvalidState
	}
	d.intensityMode = on
	return nil
}

func (d *Driver) requireIdleCommandPath() (*transactionEngine, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil, fmt.Errorf("%w: not connected", ErrInvalidState)
	}
	if d.scanning {
		return nil, fmt.Errorf("%w: stop scanning first", ErrInvalidState)
	}
	return d.txn, nil
}

// GetDeviceInfo exchanges the device-info command.
func (d *Driver) GetDeviceInfo(timeout time.Duration) (DeviceInfo, error) {
	txn, err := d.requireIdleCommandPath()
	if err != nil {
		return DeviceInfo{}, err
	}

	if err := txn.sendCommand(cmdGetDeviceInfo, nil); err != nil {
		return DeviceInfo{}, err
	}

	header, err := txn.waitResponseHeader(timeout)
	if err != nil {
		return DeviceInfo{}, err
	}
	if header.Type != AnsTypeDeviceInfo || header.Size != 20 {
		return DeviceInfo{}, fmt.Errorf("%w: unexpected device-info header %+v", ErrProtocol, header)
	}

	payload, err := txn.readPayload(20, timeout)
	if err != nil {
		return DeviceInfo{}, err
	}

	return decodeDeviceInfo(payload), nil
}

// decodeDeviceInfo parses the 20-byte device-info payload. The firmware
// minor/patch swap when minor==0 is a preserved quirk of the source
// driver; its intent (cosmetic vs. firmware-range-specific) is unclear
// so the decode keeps it as observed on real devices.
func decodeDeviceInfo(payload []byte) DeviceInfo {
	model := payload[0]
	firmware := binary.LittleEndian.Uint16(payload[1:3])
	hardware := payload[3]
	serial := append([]byte(nil), payload[4:20]...)

	major := byte(firmware >> 8)
	low := byte(firmware & 0xFF)
	minor := low / 10
	patch := low % 10
	if minor == 0 {
		minor, patch = patch, minor
	}

	return DeviceInfo{
		Model:         model,
		FirmwareMajor: major,
		FirmwareMinor: minor,
		FirmwarePatch: patch,
		Hardware:      hardware,
		Serial:        serial,
	}
}

// GetHealth exchanges the health command.
func (d *Driver) GetHealth(timeout time.Duration) (Health, error) {
	txn, err := d.requireIdleCommandPath()
	if err != nil {
		return Health{}, err
	}

	if err := txn.sendCommand(cmdGetDeviceHealth, nil); err != nil {
		return Health{}, err
	}

	header, err := txn.waitResponseHeader(timeout)
	if err != nil {
		return Health{}, err
	}
	if header.Type != AnsTypeDeviceHealth || header.Size != 3 {
		return Health{}, fmt.Errorf("%w: unexpected health header %+v", ErrProtocol, header)
	}

	payload, err := txn.readPayload(3, timeout)
	if err != nil {
		return Health{}, err
	}

	return Health{
		Status:    payload[0],
		ErrorCode: binary.LittleEndian.Uint16(payload[1:3]),
	}, nil
}

// GetSamplingRate exchanges the sampling-rate query command.
func (d *Driver) GetSamplingRate(timeout time.Duration) (byte, error) {
	txn, err := d.requireIdleCommandPath()
	if err != nil {
		return 0, err
	}

	if err := txn.sendCommand(cmdGetSamplingRate, nil); err != nil {
		return 0, err
	}

	header, err := txn.waitResponseHeader(timeout)
	if err != nil {
		return 0, err
	}
	if header.Size != 1 {
		return 0, fmt.Errorf("%w: unexpected sampling-rate header %+v", ErrProtocol, header)
	}

	payload, err := txn.readPayload(1, timeout)
	if err != nil {
		return 0, err
	}
	return payload[0], nil
}

// SetSamplingRate exchanges the sampling-rate set command.
func (d *Driver) SetSamplingRate(rate byte, timeout time.Duration) error {
	txn, err := d.requireIdleCommandPath()
	if err != nil {
		return err
	}
	return txn.sendCommand(cmdSetSamplingRate, []byte{rate})
}

// Reset sends the reset command. It only writes: no response is awaited.
func (d *Driver) Reset() error {
	d.mu.Lock()
	connected := d.connected
	txn := d.txn
	d.mu.Unlock()

	if !connected {
		return fmt.Errorf("%w: not connected", ErrInvalidState)
	}
	return txn.sendCommand(cmdReset, nil)
}

// StartScan sends the scan command, confirms the measurement-stream
// header, starts the motor (DTR low), and spawns the acquisition pump.
func (d *Driver) StartScan(force bool, timeout time.Duration) error {
	d.mu.Lock()
	if !d.connected {
		d.mu.Unlock()
		return fmt.Errorf("%w: not connected", ErrInvalidState)
	}
	if d.scanning {
		d.mu.Unlock()
		return fmt.Errorf("%w: already scanning", ErrInvalidState)
	}
	txn := d.txn
	link := d.link
	intensity := d.intensityMode
	d.mu.Unlock()

	cmd := cmdScan
	if force {
		cmd = cmdForceScan
	}
	if err := txn.sendCommand(cmd, nil); err != nil {
		return err
	}

	header, err := txn.waitResponseHeader(timeout)
	if err != nil {
		return err
	}
	if header.Type != AnsTypeMeasurement {
		return fmt.Errorf("%w: unexpected scan-start header %+v", ErrProtocol, header)
	}

	if err := link.SetDTR(false); err != nil {
		return err
	}

	parser := NewScanParser(intensity)
	ctx, cancel := context.WithCancel(context.Background())
	pumpDone := make(chan struct{})

	d.mu.Lock()
	d.scanning = true
	d.scanErr = nil
	d.parser = parser
	d.cancelPump = cancel
	d.pumpDone = pumpDone
	d.mu.Unlock()

	p := &pump{
		link:       link,
		parser:     parser,
		log:        d.log.WithField("component", "pump"),
		onRotation: d.publishRotation,
		onFatal:    d.pumpFatal,
	}

	go func() {
		defer close(pumpDone)
		p.run(ctx)
	}()

	return nil
}

// publishRotation is the pump's onRotation callback: it swaps the
// completed rotation into the latest-scan slot, signals any waiter, and
// fans the rotation out to the registered sink, if any.
func (d *Driver) publishRotation(nodes []Node) {
	d.mu.Lock()
	d.latestScan = nodes
	d.scanGen++
	ch := d.dataCh
	d.dataCh = make(chan struct{})
	sink := d.rotationSink
	d.mu.Unlock()

	close(ch)

	if sink != nil {
		sink(nodes)
	}
}

// pumpFatal is the pump's onFatal callback: fatal I/O ends scanning and
// the error is surfaced to subsequent GrabScanData calls.
func (d *Driver) pumpFatal(err error) {
	d.log.WithField("error", err).Error("acquisition pump exiting on fatal I/O error")

	d.mu.Lock()
	d.scanning = false
	d.scanErr = fmt.Errorf("%w: %v", ErrIOFailure, err)
	ch := d.dataCh
	d.dataCh = make(chan struct{})
	d.mu.Unlock()

	close(ch)
}

// Stop sends the stop command, halts the pump, and stops the motor (DTR high).
// Idempotent.
func (d *Driver) Stop() error {
	d.mu.Lock()
	if !d.scanning {
		d.mu.Unlock()
		return nil
	}
	txn := d.txn
	link := d.link
	cancel := d.cancelPump
	pumpDone := d.pumpDone
	d.mu.Unlock()

	// stop is a write-only command: no response header follows.
	if txn != nil {
		txn.sendCommand(cmdStop, nil)
	}

	if cancel != nil {
		cancel()
	}
	if pumpDone != nil {
		<-pumpDone
	}

	d.mu.Lock()
	d.scanning = false
	d.cancelPump = nil
	d.pumpDone = nil
	d.mu.Unlock()

	if link != nil {
		link.SetDTR(true)
	}

	return nil
}

// GrabScanData waits up to timeout for a completed rotation that started
// strictly after the one last returned, then copies it out.
func (d *Driver) GrabScanData(timeout time.Duration) ([]Node, error) {
	d.mu.Lock()
	if d.scanErr != nil {
		err := d.scanErr
		d.mu.Unlock()
		return nil, err
	}
	if !d.scanning {
		d.mu.Unlock()
		return nil, ErrNotScanning
	}

	targetGen := d.lastReadGen
	ch := d.dataCh
	haveNew := d.scanGen > targetGen
	d.mu.Unlock()

	if !haveNew {
		select {
		case <-ch:
		case <-time.After(timeout):
			return nil, ErrTimeout
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.scanErr != nil {
		return nil, d.scanErr
	}
	if d.scanGen <= targetGen {
		// Spurious wakeup with no new rotation actually published.
		return nil, ErrTimeout
	}

	result := make([]Node, len(d.latestScan))
	copy(result, d.latestScan)
	d.lastReadGen = d.scanGen
	return result, nil
}

// IsConnected reports whether the serial link is open.
func (d *Driver) IsConnected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}

// IsScanning reports whether the acquisition pump is running.
func (d *Driver) IsScanning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.scanning
}
