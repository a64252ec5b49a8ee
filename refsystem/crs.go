// Package refsystem implements the reference-system and indexing
// primitives of the cube (component A): CRS identity/equality, coordinate
// transforms, and the per-dimension indexing rules (regular, irregular,
// fixed) shared by the tile grid calculator and the query planner.
package refsystem

import (
	"math"

	"github.com/paulmach/orb"
)

// Projection is the multi-dispatch surface re-architected as an explicit
// interface (§9): every reference system the cube understands implements
// it, and To/Equal are the only two operations the rest of the system
// needs from a CRS.
type Projection interface {
	// Authority is the canonical identifier, e.g. "EPSG:4326".
	Authority() string
	// Equal implements the looser-than-string-equality rule of §4.A:
	// two CRS are equal iff their authority strings match or their
	// underlying projection parameters compare equal.
	Equal(other Projection) bool
	// To builds a Transform from this projection to other.
	To(other Projection) (Transform, error)
}

// Transform maps a point from a Projection's space to another's.
type Transform interface {
	Point(p orb.Point) (orb.Point, error)
}

// Geographic is a geodetic longitude/latitude Projection (e.g. EPSG:4326).
type Geographic struct {
	Auth string
}

func (g Geographic) Authority() string { return g.Auth }

func (g Geographic) Equal(other Projection) bool {
	if o, ok := other.(Geographic); ok {
		return g.Auth == o.Auth
	}
	return sameAuthority(g, other)
}

func (g Geographic) To(other Projection) (Transform, error) {
	return newTransform(g, other)
}

// Projected is a planar Projection defined by an authority string and the
// affine parameters that place it relative to WGS84 geographic space; the
// parameter comparison of §4.A's CRS-equality rule operates on these.
type Projected struct {
	Auth           string
	// FalseEasting/FalseNorthing/ScaleFactor/CentralMeridian are the
	// minimal set of parameters this cube tracks for equality-by-value;
	// a real deployment would carry the full projection parameter set.
	FalseEasting    float64
	FalseNorthing   float64
	ScaleFactor     float64
	CentralMeridian float64
	// MetersPerUnit converts the projection's native linear unit to metres,
	// used by the Web-Mercator-style approximate transform below.
	MetersPerUnit float64
}

func (p Projected) Authority() string { return p.Auth }

func (p Projected) Equal(other Projection) bool {
	if o, ok := other.(Projected); ok {
		if p.Auth == o.Auth {
			return true
		}
		return p.FalseEasting == o.FalseEasting &&
			p.FalseNorthing == o.FalseNorthing &&
			p.ScaleFactor == o.ScaleFactor &&
			p.CentralMeridian == o.CentralMeridian
	}
	return sameAuthority(p, other)
}

func (p Projected) To(other Projection) (Transform, error) {
	return newTransform(p, other)
}

func sameAuthority(a, b Projection) bool {
	return a.Authority() != "" && a.Authority() == b.Authority()
}

// newTransform builds a Transform between two reference systems. Equal
// systems get the identity. Geographic<->Projected uses the spherical Web
// Mercator forward/inverse formulae (EPSG:3857, §8 scenario 4) for every
// Projected, whatever its authority. Any other pair -- two Geographic
// systems with different authorities, or two Projected systems that are
// not Equal -- returns an error.
func newTransform(src, dst Projection) (Transform, error) {
	if src.Equal(dst) {
		return identityTransform{}, nil
	}

	switch s := src.(type) {
	case Geographic:
		if d, ok := dst.(Projected); ok {
			return geoToMercator{dst: d}, nil
		}
	case Projected:
		if d, ok := dst.(Geographic); ok {
			_ = d
			return mercatorToGeo{src: s}, nil
		}
	}
	return nil, ErrUnsupportedTransform
}

type identityTransform struct{}

func (identityTransform) Point(p orb.Point) (orb.Point, error) { return p, nil }

const earthRadius = 6378137.0 // WGS84 semi-major axis, metres

type geoToMercator struct{ dst Projected }

func (t geoToMercator) Point(p orb.Point) (orb.Point, error) {
	lon, lat := p[0], p[1]
	if lat <= -90 || lat >= 90 {
		return orb.Point{}, ErrReprojectOutOfRange
	}
	x := earthRadius * lon * math.Pi / 180.0
	y := earthRadius * math.Log(math.Tan(math.Pi/4.0+lat*math.Pi/360.0))
	unit := t.dst.MetersPerUnit
	if unit == 0 {
		unit = 1
	}
	return orb.Point{t.dst.FalseEasting + x/unit, t.dst.FalseNorthing + y/unit}, nil
}

type mercatorToGeo struct{ src Projected }

func (t mercatorToGeo) Point(p orb.Point) (orb.Point, error) {
	unit := t.src.MetersPerUnit
	if unit == 0 {
		unit = 1
	}
	x := (p[0] - t.src.FalseEasting) * unit
	y := (p[1] - t.src.FalseNorthing) * unit
	lon := (x / earthRadius) * 180.0 / math.Pi
	lat := (2*math.Atan(math.Exp(y/earthRadius)) - math.Pi/2.0) * 180.0 / math.Pi
	return orb.Point{lon, lat}, nil
}

// TransformRing densifies a ring of points (adding vertices every ~100km
// of great-circle distance along each edge, per §4.A) before applying t to
// each vertex, so that curvature introduced by the destination projection
// is preserved rather than interpolated linearly between far-apart source
// vertices.
func TransformRing(t Transform, ring orb.Ring) (orb.Ring, error) {
	densified := Densify(ring, 100_000)
	out := make(orb.Ring, len(densified))
	for i, p := range densified {
		tp, err := t.Point(p)
		if err != nil {
			return nil, err
		}
		out[i] = tp
	}
	return out, nil
}

// Densify inserts additional vertices along each edge of ring so that no
// segment exceeds maxSpacingMeters of great-circle distance, using the
// haversine formula on the assumption the ring is in geographic
// (lon/lat degrees) coordinates.
func Densify(ring orb.Ring, maxSpacingMeters float64) orb.Ring {
	if len(ring) < 2 {
		return ring
	}
	out := make(orb.Ring, 0, len(ring))
	for i := 0; i < len(ring)-1; i++ {
		a, b := ring[i], ring[i+1]
		out = append(out, a)
		dist := haversine(a, b)
		if dist > maxSpacingMeters {
			n := int(math.Ceil(dist / maxSpacingMeters))
			for k := 1; k < n; k++ {
				frac := float64(k) / float64(n)
				out = append(out, orb.Point{
					a[0] + (b[0]-a[0])*frac,
					a[1] + (b[1]-a[1])*frac,
				})
			}
		}
	}
	out = append(out, ring[len(ring)-1])
	return out
}

func haversine(a, b orb.Point) float64 {
	toRad := math.Pi / 180.0
	lat1, lat2 := a[1]*toRad, b[1]*toRad
	dLat := (b[1] - a[1]) * toRad
	dLon := (b[0] - a[0]) * toRad
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadius * math.Asin(math.Sqrt(h))
}
