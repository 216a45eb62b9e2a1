package lidar

import (
	"encoding/binary"
	"math"
)

// fullCircleFixed is 360 degrees expressed in the 6-fractional-bit fixed
// point unit used for angles (360 * 64).
const fullCircleFixed = 360 * 64

type parserState int

const (
	stateAwaitPH1 parserState = iota
	stateAwaitPH2
	stateHeader
	stateBody
)

// ScanParser implements the package reassembly state machine:
// it consumes the inbound byte stream one byte at a time and, once a full
// package has been collected and its checksum verified, emits the package's
// samples as decoded Nodes.
//
// A ScanParser is not safe for concurrent use; the acquisition pump is its
// sole owner.
type ScanParser struct {
	intensity bool

	state parserState

	headerBuf []byte
	header    packageHeader

	bodyBuf    []byte
	bodyNeeded int

	lastScanFrequency byte
	droppedChecksums  int
}

// NewScanParser returns a parser ready to start hunting for the preamble.
func NewScanParser(intensity bool) *ScanParser {
	return &ScanParser{
		intensity: intensity,
		state:     stateAwaitPH1,
		headerBuf: make([]byte, 0, 8),
	}
}

// SetIntensity switches the per-sample body width the parser expects. The
// driver facade does not call this (it builds a fresh parser with the
// current mode on every StartScan); the parser itself has no opinion on
// when it is called — it just resets mid-package state so a toggle never
// leaves it waiting on a stale body length.
func (p *ScanParser) SetIntensity(on bool) {
	p.intensity = on
	p.state = stateAwaitPH1
	p.headerBuf = p.headerBuf[:0]
	p.bodyBuf = nil
}

// DroppedChecksums is the running count of packages discarded for a
// checksum mismatch, exposed for diagnostics.
func (p *ScanParser) DroppedChecksums() int {
	return p.droppedChecksums
}

// LastScanFrequency returns the scan-frequency code of the most recently
// verified package's ct byte (diagnostic only).
func (p *ScanParser) LastScanFrequency() byte {
	return p.lastScanFrequency
}

// Feed advances the state machine by one byte, returning any Nodes emitted
// as a result (zero or more, only ever non-empty when a package's body and
// checksum have both completed on this call).
func (p *ScanParser) Feed(b byte) []Node {
	switch p.state {
	case stateAwaitPH1:
		if b == 0x55 {
			p.state = stateAwaitPH2
		}
		return nil

	case stateAwaitPH2:
		switch b {
		case 0xAA:
			p.state = stateHeader
			p.headerBuf = p.headerBuf[:0]
		case 0x55:
			// stay, in case of repeated 0x55 bytes before the real pair
		default:
			p.state = stateAwaitPH1
		}
		return nil

	case stateHeader:
		p.headerBuf = append(p.headerBuf, b)
		if len(p.headerBuf) < 8 {
			return nil
		}
		p.header = packageHeader{
			ct:            p.headerBuf[0],
			count:         p.headerBuf[1],
			firstAngleRaw: binary.LittleEndian.Uint16(p.headerBuf[2:4]),
			lastAngleRaw:  binary.LittleEndian.Uint16(p.headerBuf[4:6]),
			checksum:      binary.LittleEndian.Uint16(p.headerBuf[6:8]),
		}
		if p.header.count == 0 {
			// Degenerate package, nothing to reassemble; resync.
			p.state = stateAwaitPH1
			return nil
		}
		p.bodyNeeded = bodySize(p.header.count, p.intensity)
		p.bodyBuf = make([]byte, 0, p.bodyNeeded)
		p.state = stateBody
		return nil

	case stateBody:
		p.bodyBuf = append(p.bodyBuf, b)
		if len(p.bodyBuf) < p.bodyNeeded {
			return nil
		}
		p.state = stateAwaitPH1
		return p.verify()

	default:
		p.state = stateAwaitPH1
		return nil
	}
}

// verify checks the completed package's checksum and, on success, decodes
// its body into Nodes. On mismatch it discards the package (checksum_error,
// internal only) and returns nil.
func (p *ScanParser) verify() []Node {
	computed := packageChecksum(p.header, p.bodyBuf)
	if computed != p.header.checksum {
		p.droppedChecksums++
		return nil
	}

	p.lastScanFrequency = p.header.ScanFrequencyCode()
	return p.decodeSamples()
}

// decodeSamples converts a verified package's header and body into Nodes,
// applying angle interpolation and the distance-dependent angle correction.
func (p *ScanParser) decodeSamples() []Node {
	count := int(p.header.count)

	first := int(p.header.firstAngleRaw >> 1)
	last := int(p.header.lastAngleRaw >> 1)
	if last < first {
		last += fullCircleFixed
	}

	nodes := make([]Node, count)
	ringStart := p.header.isRingStart()

	for i := 0; i < count; i++ {
		var angleRaw int
		if count == 1 {
			angleRaw = first
		} else {
			angleRaw = first + (last-first)*i/(count-1)
		}
		angleRaw = wrapFixedAngle(angleRaw)

		var distanceFixed uint16
		var quality byte
		if p.intensity {
			quality = p.bodyBuf[i*2]
			distanceFixed = uint16(p.bodyBuf[i*2+1])
		} else {
			distanceFixed = uint16(p.bodyBuf[i])
			quality = DefaultQuality >> 2
		}

		checkBit := byte(uint16(distanceFixed)^uint16(angleRaw)) & 0x01

		correctedAngleRaw := angleRaw
		if distanceFixed > 0 {
			correctedAngleRaw = wrapFixedAngle(angleRaw - angleCorrectionFixed(distanceFixed))
		}

		syncFlag := NotSync
		if i == 0 && ringStart {
			syncFlag = Sync
		}

		nodes[i] = Node{
			SyncQuality:   (quality << 2) | checkBit | byte(syncFlag),
			AngleFixed:    uint16(correctedAngleRaw<<1) | uint16(checkBit),
			DistanceFixed: distanceFixed,
		}
	}

	return nodes
}

// wrapFixedAngle folds a fixed-point angle (degrees * 64) into [0, 360*64).
func wrapFixedAngle(raw int) int {
	raw %= fullCircleFixed
	if raw < 0 {
		raw += fullCircleFixed
	}
	return raw
}

// angleCorrectionFixed computes the distance-dependent physical angle
// offset for a given distance, in the same degrees*64 fixed-point unit.
func angleCorrectionFixed(distanceFixed uint16) int {
	distanceMM := float64(distanceFixed) / 4.0
	correctionDeg := math.Atan(21.8*(155.3-distanceMM)/(155.3*distanceMM)) * 180 / math.Pi
	return int(math.Round(correctionDeg * 64))
}
