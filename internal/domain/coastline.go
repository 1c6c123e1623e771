package domain

import (
	"github.com/paulmach/orb"
)

// DefaultWaterThreshold is the NDWI value above which a pixel is water.
const DefaultWaterThreshold = 0.1

// CoastlineVector is the land/water boundary of a region as polylines in
// lon/lat. It is empty when the region is all land or all water.
type CoastlineVector struct {
	Lines []orb.LineString
}

// Empty reports whether no boundary was found.
func (v CoastlineVector) Empty() bool { return len(v.Lines) == 0 }

// MultiLineString returns the boundary as one geometry.
func (v CoastlineVector) MultiLineString() orb.MultiLineString {
	return orb.MultiLineString(v.Lines)
}

// corner is a pixel corner in grid coordinates.
type corner struct{ col, row int }

type edge struct{ a, b corner }

// ExtractCoastline traces the boundary between water pixels (value above
// waterThreshold) and land pixels (valid, at or below it) of a composite.
// Only pixels whose centres lie inside region take part; nodata pixels are
// neither land nor water. Boundary vertices sit on pixel corners.
func ExtractCoastline(region Region, composite IndexRaster, waterThreshold float64) CoastlineVector {
	g := composite.Grid
	const (
		outside = iota
		land
		water
	)
	class := make([]uint8, g.Width*g.Height)
	var nWater, nLand int
	for row := 0; row < g.Height; row++ {
		for col := 0; col < g.Width; col++ {
			v, ok := composite.Values.At(col, row)
			if !ok || !region.Contains(g.PixelCenter(col, row)) {
				continue
			}
			if v > waterThreshold {
				class[row*g.Width+col] = water
				nWater++
			} else {
				class[row*g.Width+col] = land
				nLand++
			}
		}
	}
	if nWater == 0 || nLand == 0 {
		return CoastlineVector{}
	}

	isLand := func(col, row int) bool {
		if col < 0 || row < 0 || col >= g.Width || row >= g.Height {
			return false
		}
		return class[row*g.Width+col] == land
	}

	var edges []edge
	for row := 0; row < g.Height; row++ {
		for col := 0; col < g.Width; col++ {
			if class[row*g.Width+col] != water {
				continue
			}
			if isLand(col, row-1) {
				edges = append(edges, edge{corner{col, row}, corner{col + 1, row}})
			}
			if isLand(col+1, row) {
				edges = append(edges, edge{corner{col + 1, row}, corner{col + 1, row + 1}})
			}
			if isLand(col, row+1) {
				edges = append(edges, edge{corner{col, row + 1}, corner{col + 1, row + 1}})
			}
			if isLand(col-1, row) {
				edges = append(edges, edge{corner{col, row}, corner{col, row + 1}})
			}
		}
	}

	var out CoastlineVector
	for _, chain := range chainEdges(edges) {
		line := make(orb.LineString, 0, len(chain))
		for _, c := range simplifyCollinear(chain) {
			line = append(line, g.Corner(c.col, c.row))
		}
		out.Lines = append(out.Lines, line)
	}
	return out
}

// chainEdges joins unit edges sharing corners into maximal polylines. Chains
// start at corners that are not interior to a path so open lines are not
// split; remaining edges form closed rings. Output is deterministic for a
// given edge order.
func chainEdges(edges []edge) [][]corner {
	adj := make(map[corner][]int, len(edges)*2)
	for i, e := range edges {
		adj[e.a] = append(adj[e.a], i)
		adj[e.b] = append(adj[e.b], i)
	}
	used := make([]bool, len(edges))

	walk := func(start corner, first int) []corner {
		path := []corner{start}
		cur, next := start, first
		for next >= 0 {
			used[next] = true
			e := edges[next]
			if e.a == cur {
				cur = e.b
			} else {
				cur = e.a
			}
			path = append(path, cur)
			next = -1
			for _, i := range adj[cur] {
				if !used[i] {
					next = i
					break
				}
			}
		}
		return path
	}

	var chains [][]corner
	for _, e := range edges {
		for _, c := range [2]corner{e.a, e.b} {
			if len(adj[c]) == 2 {
				continue
			}
			for _, i := range adj[c] {
				if !used[i] {
					chains = append(chains, walk(c, i))
				}
			}
		}
	}
	for i, e := range edges {
		if !used[i] {
			chains = append(chains, walk(e.a, i))
		}
	}
	return chains
}

// simplifyCollinear drops interior vertices on straight runs.
func simplifyCollinear(path []corner) []corner {
	if len(path) < 3 {
		return path
	}
	out := []corner{path[0]}
	for i := 1; i < len(path)-1; i++ {
		prev, cur, next := out[len(out)-1], path[i], path[i+1]
		if (cur.col-prev.col)*(next.row-cur.row) == (cur.row-prev.row)*(next.col-cur.col) {
			continue
		}
		out = append(out, cur)
	}
	return append(out, path[len(path)-1])
}
