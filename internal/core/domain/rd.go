package domain

import (
	"math"
	"strconv"
)

// RDReference is the Amersfoort reference point of the Rijksdriehoek grid.
var RDReference = Coordinate{Lat: 52.1551744, Lng: 5.38720621}

const (
	rdOffsetX = 155000.0
	rdOffsetY = 463000.0
	rdScale   = 0.36
)

type rdTerm struct {
	p, q int
	coef float64
}

var rdTermsX = []rdTerm{
	{0, 1, 190094.945},
	{1, 1, -11832.228},
	{2, 1, -114.221},
	{0, 3, -32.391},
	{1, 0, -0.705},
	{3, 1, -2.34},
	{1, 3, -0.608},
	{0, 2, -0.008},
	{2, 3, 0.148},
}

// The (1,2) coefficient is read as -157.984; older tables split it in two.
var rdTermsY = []rdTerm{
	{1, 0, 309056.544},
	{0, 2, 3638.893},
	{2, 0, 73.077},
	{1, 2, -157.984},
	{3, 0, 59.788},
	{0, 1, 0.433},
	{2, 2, -6.439},
	{1, 1, -0.032},
	{0, 4, 0.092},
	{1, 4, -0.054},
}

// RDPoint is a position on the Dutch national grid (EPSG:28992), in metres.
type RDPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// String renders "X,Y" with six decimals.
func (p RDPoint) String() string {
	return strconv.FormatFloat(p.X, 'f', DefaultPrecision, 64) + "," + strconv.FormatFloat(p.Y, 'f', DefaultPrecision, 64)
}

// ToRD projects c onto the Rijksdriehoek grid around RDReference.
func (c Coordinate) ToRD() RDPoint {
	return c.Project(RDReference)
}

// Project evaluates the RD polynomial expansion of c around ref.
func (c Coordinate) Project(ref Coordinate) RDPoint {
	dLat := rdScale * (c.Lat - ref.Lat)
	dLng := rdScale * (c.Lng - ref.Lng)

	x := rdOffsetX
	for _, t := range rdTermsX {
		x += t.coef * math.Pow(dLat, float64(t.p)) * math.Pow(dLng, float64(t.q))
	}
	y := rdOffsetY
	for _, t := range rdTermsY {
		y += t.coef * math.Pow(dLat, float64(t.p)) * math.Pow(dLng, float64(t.q))
	}
	return RDPoint{X: x, Y: y}
}
