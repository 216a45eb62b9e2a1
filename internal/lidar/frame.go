package lidar

import "encoding/binary"

// Command bytes understood by the device.
const (
	cmdStop              byte = 0x65
	cmdScan              byte = 0x60
	cmdForceScan         byte = 0x61
	cmdReset             byte = 0x80
	cmdGetDeviceInfo     byte = 0x90
	cmdGetDeviceHealth   byte = 0x92
	cmdGetSamplingRate   byte = 0xD1
	cmdSetSamplingRate   byte = 0xD0

	cmdSyncByte  byte = 0xA5
	ansSyncByte1 byte = 0xA5
	ansSyncByte2 byte = 0x5A
)

// Response header type values.
const (
	AnsTypeDeviceInfo   byte = 0x04
	AnsTypeDeviceHealth byte = 0x06
	AnsTypeMeasurement  byte = 0x81
)

// ResponseHeader is the 7-byte frame the device sends ahead of every reply.
// The wire layout packs a 30-bit size and a 2-bit subType into a single
// little-endian uint32; we never mirror that as a Go bit-field (per the
// platform-dependent layout hazard), we mask and shift explicitly instead.
type ResponseHeader struct {
	Size    uint32
	SubType byte
	Type    byte
}

// encodeCommand serializes a command frame for the host-to-device direction.
//
//	[0xA5][cmd][size?][payload?][checksum?]
//
// The size/payload/checksum are only present when the caller actually
// supplies a payload — commands like GetDeviceInfo (0x90) numerically carry
// the "has-payload" bit in their cmd value but are sent with no payload and
// get the bare 2-byte frame, matching the device's own traffic captures.
func encodeCommand(cmd byte, payload []byte) []byte {
	if len(payload) == 0 {
		return []byte{cmdSyncByte, cmd}
	}

	buf := make([]byte, 0, 4+len(payload))
	buf = append(buf, cmdSyncByte, cmd, byte(len(payload)))
	buf = append(buf, payload...)

	var checksum byte
	for _, b := range buf {
		checksum ^= b
	}
	buf = append(buf, checksum)
	return buf
}

// decodeResponseHeader parses the 5 bytes following a recognized
// [0xA5][0x5A] sync pair (the rest of the 7-byte header).
func decodeResponseHeader(b [5]byte) ResponseHeader {
	packed := binary.LittleEndian.Uint32(b[0:4])
	return ResponseHeader{
		Size:    packed & 0x3FFFFFFF,
		SubType: byte(packed >> 30),
		Type:    b[4],
	}
}
