// Copyright 2025 The ChapaUY Authors
//
// SPDX-License-Identifier: Apache-2.0
package spatial

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// Projection names accepted by ProjectionByName.
const (
	AlbersConusName = "albers-conus"
	WebMercatorName = "web-mercator"
)

// ErrUnknownProjection is returned by ProjectionByName.
var ErrUnknownProjection = errors.New("spatial: unknown projection")

// Projection maps geographic coordinates to a planar coordinate system in
// meters.
type Projection interface {
	Name() string
	Project(p Point) orb.Point
}

// ProjectionByName returns the named projection.
func ProjectionByName(name string) (Projection, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case AlbersConusName, "epsg:5070", "5070":
		return AlbersConus, nil
	case WebMercatorName, "epsg:3857", "3857":
		return WebMercator, nil
	default:
		return nil, fmt.Errorf("%w: %q (expected one of %s)", ErrUnknownProjection, name, strings.Join(ProjectionNames(), ", "))
	}
}

// ProjectionNames lists the canonical projection names.
func ProjectionNames() []string {
	names := []string{AlbersConusName, WebMercatorName}
	slices.Sort(names)

	return names
}

// ProjectAll projects every point.
func ProjectAll(proj Projection, points []Point) []orb.Point {
	out := make([]orb.Point, len(points))
	for i, p := range points {
		out[i] = proj.Project(p)
	}

	return out
}

/////////////////////////////////////////
/// Albers

// AlbersEqualArea is an ellipsoidal Albers equal-area conic projection,
// following Snyder, "Map Projections: A Working Manual", pp. 101-102.
type AlbersEqualArea struct {
	name string
	a, e float64
	// central meridian in radians
	lambda0    float64
	n, c, rho0 float64
}

// NewAlbersEqualArea builds the projection for an ellipsoid with semi-major
// axis a and inverse flattening invF. Angles are in degrees. There is no
// false origin.
func NewAlbersEqualArea(name string, a, invF, lat1, lat2, lat0, lng0 float64) *AlbersEqualArea {
	f := 1 / invF
	e := math.Sqrt(2*f - f*f)

	phi1, phi2, phi0 := radians(lat1), radians(lat2), radians(lat0)

	m1, m2 := albersM(phi1, e), albersM(phi2, e)
	q0, q1, q2 := albersQ(phi0, e), albersQ(phi1, e), albersQ(phi2, e)

	n := (m1*m1 - m2*m2) / (q2 - q1)
	c := m1*m1 + n*q1

	return &AlbersEqualArea{
		name:    name,
		a:       a,
		e:       e,
		lambda0: radians(lng0),
		n:       n,
		c:       c,
		rho0:    a * math.Sqrt(c-n*q0) / n,
	}
}

// AlbersConus is NAD83 / Conus Albers (EPSG:5070) on the GRS80 ellipsoid.
var AlbersConus = NewAlbersEqualArea(AlbersConusName, 6378137, 298.257222101, 29.5, 45.5, 23, -96)

// Name implements Projection.
func (p *AlbersEqualArea) Name() string {
	return p.name
}

// Project implements Projection.
func (p *AlbersEqualArea) Project(pt Point) orb.Point {
	q := albersQ(radians(pt.Lat), p.e)
	rho := p.a * math.Sqrt(p.c-p.n*q) / p.n
	theta := p.n * (radians(pt.Lng) - p.lambda0)

	return orb.Point{rho * math.Sin(theta), p.rho0 - rho*math.Cos(theta)}
}

func albersM(phi, e float64) float64 {
	sin := math.Sin(phi)

	return math.Cos(phi) / math.Sqrt(1-e*e*sin*sin)
}

func albersQ(phi, e float64) float64 {
	sin := math.Sin(phi)
	es := e * sin

	return (1 - e*e) * (sin/(1-es*es) - 1/(2*e)*math.Log((1-es)/(1+es)))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

/////////////////////////////////////////
/// Mercator

type webMercator struct{}

// WebMercator is the spherical pseudo-Mercator used by web maps (EPSG:3857).
var WebMercator Projection = webMercator{}

func (webMercator) Name() string {
	return WebMercatorName
}

func (webMercator) Project(pt Point) orb.Point {
	return project.Point(orb.Point{pt.Lng, pt.Lat}, project.WGS84.ToMercator)
}
