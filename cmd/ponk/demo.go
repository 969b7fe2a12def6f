package main

import (
	"math"

	"github.com/madmappersoftware/Ponk/internal/protocol"
)

// Demo scene: a white circle orbiting the origin and a fixed red triangle.
const (
	circlePoints   = 1024
	circleRadius   = 0.5
	circleOrbit    = 0.2
	circleSpeed    = 3 // radians per second of animation time
	trianglePoints = 4 // closed: the last vertex repeats the first
	triangleRadius = 0.5
)

// demoFrame returns the demo paths at animation time t (seconds) in the
// given point format.
func demoFrame(t float64, format uint8) []protocol.Path {
	cx := circleOrbit * math.Cos(t*circleSpeed)
	cy := circleOrbit * math.Sin(t*circleSpeed)

	circle := protocol.Path{
		Format: format,
		MetaData: []protocol.MetaData{
			protocol.NewMetaData("PATHNUMB", 1),
			protocol.NewMetaData("MAXSPEED", 1),
		},
		Points: make([]protocol.Point, circlePoints),
	}
	for i := range circle.Points {
		a := float64(i) / (circlePoints - 1) * 2 * math.Pi
		circle.Points[i] = protocol.Point{
			X: float32(cx + circleRadius*math.Cos(a)),
			Y: float32(cy + circleRadius*math.Sin(a)),
			R: 1, G: 1, B: 1,
		}
	}

	triangle := protocol.Path{
		Format:   format,
		MetaData: []protocol.MetaData{protocol.NewMetaData("PATHNUMB", 2)},
		Points:   make([]protocol.Point, trianglePoints),
	}
	for i := range triangle.Points {
		a := float64(i) / (trianglePoints - 1) * 2 * math.Pi
		triangle.Points[i] = protocol.Point{
			X: float32(triangleRadius * math.Cos(a)),
			Y: float32(triangleRadius * math.Sin(a)),
			R: 1,
		}
	}

	return []protocol.Path{circle, triangle}
}
