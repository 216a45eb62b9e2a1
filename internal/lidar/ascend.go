package lidar

import "sort"

// AscendScanData reorders a rotation's worth of Nodes to begin at the
// smallest angle. The input is expected to already be
// near-monotonic modulo 360° (as produced by the acquisition pump), so the
// default strategy is a rotation rather than a full sort: find the node
// with the smallest angle, rotate the slice so it lands at index 0. Nodes
// with no return (distance 0) are not treated specially — they keep their
// position relative to the rotation, since they still carry a valid angle.
//
// If the rotated sequence still isn't monotonically non-decreasing modulo
// 360° (more than one wrap), this falls back to a stable sort by angle,
// since the input turned out not to be the near-monotonic shape the
// rotation strategy assumes.
func AscendScanData(nodes []Node) []Node {
	if len(nodes) < 2 {
		return nodes
	}

	minIdx := 0
	for i := 1; i < len(nodes); i++ {
		if nodes[i].AngleDegrees() < nodes[minIdx].AngleDegrees() {
			minIdx = i
		}
	}

	rotated := make([]Node, 0, len(nodes))
	rotated = append(rotated, nodes[minIdx:]...)
	rotated = append(rotated, nodes[:minIdx]...)

	if !monotoneWithAtMostOneWrap(rotated) {
		sort.SliceStable(rotated, func(i, j int) bool {
			return rotated[i].AngleFixed < rotated[j].AngleFixed
		})
	}

	copy(nodes, rotated)
	return nodes
}

// monotoneWithAtMostOneWrap reports whether angle(i) <= angle(i+1) holds
// for every i except at most one position (the wrap allowance of I4).
func monotoneWithAtMostOneWrap(nodes []Node) bool {
	violations := 0
	for i := 0; i+1 < len(nodes); i++ {
		if nodes[i+1].AngleDegrees() < nodes[i].AngleDegrees() {
			violations++
			if violations > 1 {
				return false
			}
		}
	}
	return true
}
