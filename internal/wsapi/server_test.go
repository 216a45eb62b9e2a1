package wsapi

import (
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/dividat/lidar-driver/internal/lidar"
)

func newTestHandle() *Handle {
	return NewHandle(lidar.New(logrus.NewEntry(logrus.New())), logrus.NewEntry(logrus.New()))
}

func TestHandleGetStatusWhenDisconnected(t *testing.T) {
	h := newTestHandle()
	reply := h.handle(Command{GetStatus: &GetStatus{}})
	if reply.Status == nil {
		t.Fatal("expected a Status reply")
	}
	if reply.Status.Connected || reply.Status.Scanning {
		t.Fatalf("expected a disconnected/idle status, got %+v", reply.Status)
	}
}

func TestHandleConnectFailureYieldsFailureMessage(t *testing.T) {
	h := newTestHandle()
	reply := h.handle(Command{Connect: &Connect{Port: "/dev/nonexistent-for-tests", BaudRate: 115200}})
	if reply.Failure == nil {
		t.Fatalf("expected a Failure reply for an unopenable port, got %+v", reply)
	}
}

func TestHandleGrabScanBeforeScanningYieldsFailure(t *testing.T) {
	h := newTestHandle()
	reply := h.handle(Command{GrabScan: &GrabScan{TimeoutMS: 10}})
	if reply.Failure == nil {
		t.Fatal("expected a Failure reply when grabbing before any scan has started")
	}
}

func TestHandleUnrecognizedCommandYieldsFailure(t *testing.T) {
	h := newTestHandle()
	reply := h.handle(Command{})
	if reply.Failure == nil {
		t.Fatal("expected a Failure reply for an empty command")
	}
}

func TestScanDataMessageConvertsNodes(t *testing.T) {
	nodes := []lidar.Node{
		{AngleFixed: uint16(90*64) << 1, DistanceFixed: 4000, SyncQuality: lidar.DefaultQuality | lidar.Sync},
	}
	msg := scanDataMessage(nodes)
	if len(msg.Angles) != 1 || len(msg.DistancesM) != 1 || len(msg.Qualities) != 1 {
		t.Fatalf("unexpected message shape: %+v", msg)
	}
	if msg.DistancesM[0] != 1.0 {
		t.Errorf("distance = %f, want 1.0", msg.DistancesM[0])
	}
}
