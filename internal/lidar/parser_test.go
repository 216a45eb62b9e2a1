package lidar

import (
	"encoding/binary"
	"testing"
)

// buildPackage encodes a full on-wire package (preamble through body),
// computing its checksum via encodePackage.
func buildPackage(ct, count byte, firstDeg, lastDeg float64, body []byte) []byte {
	first := uint16(int(firstDeg*64)<<1) | 1
	last := uint16(int(lastDeg*64)<<1) | 1
	h := packageHeader{ct: ct, count: count, firstAngleRaw: first, lastAngleRaw: last}
	return encodePackage(h, body)
}

func feedAll(p *ScanParser, data []byte) []Node {
	var nodes []Node
	for _, b := range data {
		nodes = append(nodes, p.Feed(b)...)
	}
	return nodes
}

// Single package, no intensity, 4 samples.
func TestParserSinglePackageStandardMode(t *testing.T) {
	body := []byte{40, 80, 120, 160} // raw distance bytes -> mm = raw/4
	data := buildPackage(ctRingStart, 4, 128, 157, body)

	p := NewScanParser(false)
	nodes := feedAll(p, data)

	if len(nodes) != 4 {
		t.Fatalf("expected 4 nodes, got %d", len(nodes))
	}

	wantDistances := []uint16{40, 80, 120, 160}
	for i, n := range nodes {
		if n.DistanceFixed != wantDistances[i] {
			t.Errorf("node %d: distance_fixed = %d, want %d", i, n.DistanceFixed, wantDistances[i])
		}
		if n.AngleDegrees() < 0 || n.AngleDegrees() >= 360 {
			t.Errorf("node %d: angle %f out of [0,360)", i, n.AngleDegrees())
		}
	}

	if !nodes[0].IsSync() {
		t.Error("first node of a RingStart package should carry Sync")
	}
	for i := 1; i < len(nodes); i++ {
		if nodes[i].IsSync() {
			t.Errorf("node %d should not carry Sync", i)
		}
	}
}

// Same package but ct's low bit clear: parser should produce all NotSync nodes.
func TestParserNonRingStartPackageAllNotSync(t *testing.T) {
	body := []byte{40, 80, 120, 160}
	data := buildPackage(ctNormal, 4, 128, 157, body)

	p := NewScanParser(false)
	nodes := feedAll(p, data)

	if len(nodes) != 4 {
		t.Fatalf("expected 4 nodes, got %d", len(nodes))
	}
	for i, n := range nodes {
		if n.IsSync() {
			t.Errorf("node %d should not carry Sync in a non-ring-start package", i)
		}
	}
}

// A corrupted checksum drops the whole package.
func TestParserDropsBadChecksum(t *testing.T) {
	body := []byte{40, 80, 120, 160}
	data := buildPackage(ctRingStart, 4, 128, 157, body)

	// Flip one distance byte after encoding, invalidating the checksum.
	data[len(data)-1] ^= 0xFF

	p := NewScanParser(false)
	nodes := feedAll(p, data)

	if len(nodes) != 0 {
		t.Fatalf("expected zero nodes from a corrupted package, got %d", len(nodes))
	}
	if p.DroppedChecksums() != 1 {
		t.Fatalf("expected one dropped-checksum count, got %d", p.DroppedChecksums())
	}
	if p.state != stateAwaitPH1 {
		t.Fatalf("parser should return to AwaitPH1 after a bad checksum, state = %v", p.state)
	}
}

// Framing resync — garbage bytes before a valid package must
// be skipped, and the package's samples still emitted.
func TestParserResyncsAfterGarbage(t *testing.T) {
	body := []byte{1, 2}
	valid := buildPackage(ctRingStart, 2, 10, 20, body)

	data := append([]byte{0xFF, 0xFF, 0x55, 0x55}, valid...)

	p := NewScanParser(false)
	nodes := feedAll(p, data)

	if len(nodes) != 2 {
		t.Fatalf("expected 2 nodes after resync, got %d", len(nodes))
	}
}

// Intensity mode decodes (quality, distance) pairs.
func TestParserIntensityMode(t *testing.T) {
	body := []byte{7, 100, 9, 200} // (quality=7,dist=100),(quality=9,dist=200)
	data := buildPackage(ctNormal, 2, 30, 40, body)

	p := NewScanParser(true)
	nodes := feedAll(p, data)

	if len(nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(nodes))
	}
	if nodes[0].DistanceFixed != 100 || nodes[1].DistanceFixed != 200 {
		t.Fatalf("unexpected distances: %+v", nodes)
	}
}

func TestWrapFixedAngle(t *testing.T) {
	cases := []struct{ in, want int }{
		{0, 0},
		{fullCircleFixed - 1, fullCircleFixed - 1},
		{fullCircleFixed, 0},
		{-1, fullCircleFixed - 1},
		{-fullCircleFixed, 0},
	}
	for _, c := range cases {
		if got := wrapFixedAngle(c.in); got != c.want {
			t.Errorf("wrapFixedAngle(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestHeaderParsingLittleEndian(t *testing.T) {
	var buf [8]byte
	buf[0] = ctRingStart
	buf[1] = 5
	binary.LittleEndian.PutUint16(buf[2:4], 1234)
	binary.LittleEndian.PutUint16(buf[4:6], 5678)
	binary.LittleEndian.PutUint16(buf[6:8], 9999)

	p := NewScanParser(false)
	p.state = stateHeader
	for _, b := range buf {
		p.Feed(b)
	}

	if p.header.ct != ctRingStart || p.header.count != 5 {
		t.Fatalf("unexpected header: %+v", p.header)
	}
	if p.header.firstAngleRaw != 1234 || p.header.lastAngleRaw != 5678 || p.header.checksum != 9999 {
		t.Fatalf("unexpected header fields: %+v", p.header)
	}
}
