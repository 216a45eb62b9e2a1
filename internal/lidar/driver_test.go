package lidar

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func newTestDriver(stream *mockStream) *Driver {
	d := New(logrus.NewEntry(logrus.New()))
	d.link = stream
	d.txn = newTransactionEngine(stream)
	d.connected = true
	return d
}

// Device info happy path, matching a real G4 response capture.
func TestDriverGetDeviceInfoHappyPath(t *testing.T) {
	stream := newMockStream()
	stream.feed([]byte{0xA5, 0x5A, 0x14, 0x00, 0x00, 0x00, 0x04})
	payload := []byte{
		0x05,       // model = G4
		0x30, 0x01, // firmware: major=1, low=0x30=48 -> minor=4, patch=8
		0x02, // hardware
		0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07,
		0x08, 0x09, 0x0A, 0x0B, 0x0C, 0x0D, 0x0E, 0x0F,
	}
	stream.feed(payload)

	d := newTestDriver(stream)
	info, err := d.GetDeviceInfo(time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if info.Model != ModelG4 {
		t.Errorf("model = %d, want %d (%s)", info.Model, ModelG4, ModelName(ModelG4))
	}
	if info.FirmwareMajor != 1 || info.FirmwareMinor != 4 || info.FirmwarePatch != 8 {
		t.Errorf("firmware = %d.%d.%d, want 1.4.8", info.FirmwareMajor, info.FirmwareMinor, info.FirmwarePatch)
	}
	if info.Hardware != 2 {
		t.Errorf("hardware = %d, want 2", info.Hardware)
	}
	for i, want := range payload[4:20] {
		if info.Serial[i] != want {
			t.Fatalf("serial[%d] = %#x, want %#x", i, info.Serial[i], want)
		}
	}

	written := stream.written()
	if len(written) != 2 || written[0] != 0xA5 || written[1] != cmdGetDeviceInfo {
		t.Fatalf("unexpected outbound command: % x", written)
	}
}

// Health response reporting a device in the error state.
func TestDriverGetHealthBad(t *testing.T) {
	stream := newMockStream()
	stream.feed([]byte{0xA5, 0x5A, 0x03, 0x00, 0x00, 0x00, 0x06, 0x02, 0x07, 0x00})

	d := newTestDriver(stream)
	health, err := d.GetHealth(time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if health.Status != 2 {
		t.Errorf("status = %d, want 2", health.Status)
	}
	if health.ErrorCode != 0x0007 {
		t.Errorf("error code = %#x, want %#x", health.ErrorCode, 0x0007)
	}
}

func TestDriverCommandsRejectedWhileScanning(t *testing.T) {
	stream := newMockStream()
	d := newTestDriver(stream)
	d.scanning = true

	if _, err := d.GetDeviceInfo(time.Second); err == nil {
		t.Fatal("expected error requesting device info while scanning")
	}
	if _, err := d.GetHealth(time.Second); err == nil {
		t.Fatal("expected error requesting health while scanning")
	}
}

func TestDriverGrabScanDataWithoutScanning(t *testing.T) {
	d := newTestDriver(newMockStream())
	if _, err := d.GrabScanData(10 * time.Millisecond); err != ErrNotScanning {
		t.Fatalf("expected ErrNotScanning, got %v", err)
	}
}

func TestDriverGrabScanDataDeliversOneRotationPerWait(t *testing.T) {
	d := newTestDriver(newMockStream())
	d.scanning = true

	first := []Node{{AngleFixed: 100}}
	second := []Node{{AngleFixed: 200}}

	d.publishRotation(first)

	got, err := d.GrabScanData(time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].AngleFixed != 100 {
		t.Fatalf("unexpected first rotation: %+v", got)
	}

	// No new rotation published yet: must time out rather than re-deliver.
	if _, err := d.GrabScanData(20 * time.Millisecond); err != ErrTimeout {
		t.Fatalf("expected ErrTimeout on repeat grab, got %v", err)
	}

	done := make(chan struct{})
	go func() {
		d.publishRotation(second)
		close(done)
	}()
	<-done

	got, err = d.GrabScanData(time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].AngleFixed != 200 {
		t.Fatalf("unexpected second rotation: %+v", got)
	}
}

func TestDriverPublishRotationCallsRotationSink(t *testing.T) {
	d := newTestDriver(newMockStream())
	d.scanning = true

	var gotCalls int
	var lastNodes []Node
	d.SetRotationSink(func(nodes []Node) {
		gotCalls++
		lastNodes = nodes
	})

	nodes := []Node{{AngleFixed: 300}}
	d.publishRotation(nodes)

	if gotCalls != 1 {
		t.Fatalf("expected the rotation sink to be called once, got %d", gotCalls)
	}
	if len(lastNodes) != 1 || lastNodes[0].AngleFixed != 300 {
		t.Fatalf("unexpected nodes delivered to the rotation sink: %+v", lastNodes)
	}

	d.SetRotationSink(nil)
	d.publishRotation([]Node{{AngleFixed: 400}})
	if gotCalls != 1 {
		t.Fatalf("expected no further calls after clearing the rotation sink, got %d", gotCalls)
	}
}

func TestDriverGrabScanDataSurfacesPumpFatal(t *testing.T) {
	d := newTestDriver(newMockStream())
	d.scanning = true

	d.pumpFatal(io.ErrClosedPipe)

	if _, err := d.GrabScanData(time.Second); err == nil {
		t.Fatal("expected pump error to surface from GrabScanData")
	}
	if d.IsScanning() {
		t.Fatal("expected scanning to be cleared after a fatal pump error")
	}
}
