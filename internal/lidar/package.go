package lidar

import "encoding/binary"

// PackagePreamble is the sync word that opens every sample package. On the
// wire it is the byte 0x55 followed by 0xAA; its uint16 value seeds the
// package checksum.
const PackagePreamble uint16 = 0x55AA

// MaxSamplesPerPackage bounds the body length field (1 byte, 1..255).
const MaxSamplesPerPackage = 255

// CT values: the low bit of the package's ct byte distinguishes a
// scan-start package from a normal one; the upper bits carry an opaque
// scan-frequency code, preserved for diagnostics but never required for
// correctness.
const (
	ctNormal    byte = 0x00
	ctRingStart byte = 0x01
	// ctTail mirrors the original SDK's CT enum value 2. It is never
	// produced by this decoder (only the low bit is wire-significant)
	// but kept as a named constant for parity with devices that set it.
	ctTail byte = 0x02
)

// packageHeader is the 10-byte header shared by both body variants
// (2 preamble + ct + count + 2 first_angle + 2 last_angle + 2 checksum).
type packageHeader struct {
	ct              byte
	count           byte
	firstAngleRaw   uint16 // includes check bit
	lastAngleRaw    uint16 // includes check bit
	checksum        uint16
}

func (h packageHeader) isRingStart() bool {
	return h.ct&0x01 == ctRingStart
}

// ScanFrequencyCode extracts the opaque upper-bit scan-frequency info from ct.
func (h packageHeader) ScanFrequencyCode() byte {
	return h.ct >> 1
}

// packageChecksum computes the 16-bit XOR checksum over a package: seeded
// with PH XOR (ct<<8 | count), folded with first_angle, every body sample
// viewed as a 16-bit little-endian word, and finally last_angle.
func packageChecksum(h packageHeader, body []byte) uint16 {
	checksum := PackagePreamble ^ (uint16(h.ct)<<8 | uint16(h.count))
	checksum ^= h.firstAngleRaw

	for _, w := range checksumWords(body) {
		checksum ^= w
	}

	checksum ^= h.lastAngleRaw
	return checksum
}

// encodePackage serializes a full package (used by tests to synthesize
// device traffic, and available to callers that need to round-trip captures).
func encodePackage(h packageHeader, body []byte) []byte {
	h.checksum = packageChecksum(h, body)

	buf := make([]byte, 0, 10+len(body))
	// The preamble is transmitted as the literal bytes 0x55, 0xAA (the
	// order the package-parser state machine scans for), not as
	// a little-endian encoding of the uint16 value 0x55AA.
	buf = append(buf, 0x55, 0xAA)
	buf = append(buf, h.ct, h.count)

	var angles [4]byte
	binary.LittleEndian.PutUint16(angles[0:2], h.firstAngleRaw)
	binary.LittleEndian.PutUint16(angles[2:4], h.lastAngleRaw)
	buf = append(buf, angles[:]...)

	var checksum [2]byte
	binary.LittleEndian.PutUint16(checksum[:], h.checksum)
	buf = append(buf, checksum[:]...)

	buf = append(buf, body...)
	return buf
}

// sampleBytes returns the per-sample body width: 1 byte (distance only) in
// standard mode, 2 bytes (quality, distance) in intensity mode. This mirrors
// the original SDK's PackageSampleBytes static, which the device toggles
// only with the intensity-mode flag, never by model.
func sampleBytes(intensity bool) int {
	if intensity {
		return 2
	}
	return 1
}

// bodySize returns the body length in bytes for count samples under the
// given intensity mode.
func bodySize(count byte, intensity bool) int {
	return int(count) * sampleBytes(intensity)
}

// checksumWords groups raw body bytes into 16-bit little-endian words for
// checksum purposes, regardless of mode: in intensity mode each (quality,
// distance) pair already forms one word; in standard mode consecutive
// distance bytes are paired up, with a lone trailing byte padded with a
// zero high byte.
func checksumWords(body []byte) []uint16 {
	words := make([]uint16, 0, (len(body)+1)/2)
	for i := 0; i < len(body); i += 2 {
		if i+1 < len(body) {
			words = append(words, binary.LittleEndian.Uint16(body[i:i+2]))
		} else {
			words = append(words, uint16(body[i]))
		}
	}
	return words
}
