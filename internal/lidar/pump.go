package lidar

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// MaxScanNodes is the capacity of the ring used for one rotation's worth
// of samples.
const MaxScanNodes = 2048

// pumpReadChunk bounds how many bytes the pump asks the link for in one
// ReadExact call; it just needs to be large enough to amortize syscalls
// without holding the read for too long between ctx cancellation checks.
const pumpReadChunk = 256

// pumpReadTimeout bounds a single ReadExact call inside the pump loop so
// that a stalled device doesn't prevent the pump from noticing cancellation.
const pumpReadTimeout = 500 * time.Millisecond

// pump is C4: the background task that drives the ScanParser over the
// inbound byte stream, reassembles complete rotations, and hands them to
// the driver via onRotation. It owns no locks; all synchronization happens
// in onRotation/onFatal, which are supplied by the Driver.
type pump struct {
	link   ByteStream
	parser *ScanParser
	log    *logrus.Entry

	onRotation func([]Node)
	onFatal    func(error)
}

// run drains the link until ctx is cancelled or a fatal I/O error occurs.
// Transient parse errors (bad checksum, lost framing) are absorbed by the
// parser itself and never reach this loop as an error.
func (p *pump) run(ctx context.Context) {
	scratch := make([]Node, 0, MaxScanNodes)
	discarding := false
	buf := make([]byte, pumpReadChunk)

	for {
		if ctx.Err() != nil {
			return
		}

		n, err := p.link.ReadExact(buf, pumpReadTimeout)
		if err != nil {
			p.onFatal(err)
			return
		}

		for i := 0; i < n; i++ {
			for _, node := range p.parser.Feed(buf[i]) {
				if node.IsSync() {
					if len(scratch) >= 1 {
						p.onRotation(scratch)
					}
					scratch = make([]Node, 0, MaxScanNodes)
					discarding = false
				}

				if discarding {
					continue
				}

				if len(scratch) >= MaxScanNodes {
					p.log.Warn("scan buffer full before next sync, discarding samples")
					discarding = true
					continue
				}

				scratch = append(scratch, node)
			}
		}
	}
}
