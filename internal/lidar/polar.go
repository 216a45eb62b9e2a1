package lidar

import "math"

// PolarPoint is a Node reduced to plain floating-point polar coordinates,
// the shape an external consumer (e.g. a robotic-middleware publisher)
// would want before building its own scan message. Producing this is a
// pure transform of already-decoded Nodes, distinct from the out-of-scope
// message construction/filtering/topic-publication logic, which belong to callers.
type PolarPoint struct {
	AngleRadians float64
	DistanceM    float64
	Quality      byte
}

// ToPolar converts a rotation's Nodes to radians/metres. Nodes with no
// return keep their angle and report a zero distance.
func ToPolar(nodes []Node) []PolarPoint {
	points := make([]PolarPoint, len(nodes))
	for i, n := range nodes {
		points[i] = PolarPoint{
			AngleRadians: n.AngleDegrees() * math.Pi / 180.0,
			DistanceM:    n.DistanceMM() / 1000.0,
			Quality:      n.Quality(),
		}
	}
	return points
}
