package geometry

import "sort"

// ConvexHull returns the convex hull of points in counter-clockwise order
// using the monotone chain construction. Collinear boundary points are
// dropped. Fewer than three distinct points are returned unchanged.
func ConvexHull(points []Point2D) []Point2D {
	if len(points) < 3 {
		return points
	}

	pts := make([]Point2D, len(points))
	copy(pts, points)
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].X != pts[j].X {
			return pts[i].X < pts[j].X
		}
		return pts[i].Y < pts[j].Y
	})

	hull := make([]Point2D, 0, 2*len(pts))
	// Lower hull
	for _, p := range pts {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	// Upper hull
	lower := len(hull) + 1
	for i := len(pts) - 2; i >= 0; i-- {
		p := pts[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}

	return hull[:len(hull)-1]
}

// InConvexPolygon reports whether p lies inside or on the boundary of a
// counter-clockwise convex polygon such as the one returned by ConvexHull.
func InConvexPolygon(p Point2D, polygon []Point2D) bool {
	if len(polygon) < 3 {
		return false
	}
	n := len(polygon)
	for i := 0; i < n; i++ {
		if cross(polygon[i], polygon[(i+1)%n], p) < 0 {
			return false
		}
	}
	return true
}

// cross computes the cross product of vectors OA and OB.
func cross(o, a, b Point2D) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}
