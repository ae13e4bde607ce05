package weather

import "math"

// Point is one raw observation value. Weight is only used by AggVecDir, where
// it carries the wind speed paired with a direction.
type Point struct {
	Timestamp int64
	Value     float64
	Weight    float64
}

// Aggregate reduces the points of one slot. The returned sample carries the
// slot end as timestamp except for AggMaxTime and AggMinTime, which report the
// time of the first extreme. An empty slot yields an invalid sample.
func Aggregate(agg Aggregation, slotEnd int64, points []Point) Sample {
	if len(points) == 0 {
		return Sample{Timestamp: slotEnd}
	}

	switch agg {
	case AggLast:
		last := points[0]
		for _, p := range points[1:] {
			if p.Timestamp >= last.Timestamp {
				last = p
			}
		}
		return Sample{Timestamp: slotEnd, Value: last.Value, Valid: true}

	case AggSum, AggAvg:
		var sum float64
		for _, p := range points {
			sum += p.Value
		}
		if agg == AggAvg {
			sum /= float64(len(points))
		}
		return Sample{Timestamp: slotEnd, Value: sum, Valid: true}

	case AggMax, AggMin, AggMaxTime, AggMinTime:
		best := points[0]
		for _, p := range points[1:] {
			switch agg {
			case AggMax, AggMaxTime:
				if p.Value > best.Value || (p.Value == best.Value && p.Timestamp < best.Timestamp) {
					best = p
				}
			default:
				if p.Value < best.Value || (p.Value == best.Value && p.Timestamp < best.Timestamp) {
					best = p
				}
			}
		}
		ts := slotEnd
		if agg == AggMaxTime || agg == AggMinTime {
			ts = best.Timestamp
		}
		return Sample{Timestamp: ts, Value: best.Value, Valid: true}

	case AggVecDir:
		var x, y float64
		for _, p := range points {
			rad := (90 - p.Value) * math.Pi / 180
			x += p.Weight * math.Cos(rad)
			y += p.Weight * math.Sin(rad)
		}
		if x == 0 && y == 0 {
			return Sample{Timestamp: slotEnd}
		}
		return Sample{Timestamp: slotEnd, Value: VectorDirection(x, y), Valid: true}
	}

	return Sample{Timestamp: slotEnd}
}

// VectorDirection converts summed wind vector components (x east, y north)
// into a compass bearing in [0, 360).
func VectorDirection(x, y float64) float64 {
	deg := 90 - math.Atan2(y, x)*180/math.Pi
	for deg < 0 {
		deg += 360
	}
	for deg >= 360 {
		deg -= 360
	}
	return deg
}
