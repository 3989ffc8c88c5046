package query

import (
	"strings"

	"github.com/dreamcity/orderflow-monitor/internal/models"
	"github.com/dreamcity/orderflow-monitor/internal/status"
)

// Axis is the rollup dimension a tile filters on.
type Axis string

const (
	AxisOverall  Axis = "overall"
	AxisTech     Axis = "tech"
	AxisBusiness Axis = "business"
	AxisSLA      Axis = "sla"
)

// TileIDs is the fixed enumeration counted for every snapshot.
var TileIDs = []string{
	"overall_GREEN", "overall_AMBER", "overall_RED",
	"tech_GREEN", "tech_AMBER", "tech_RED",
	"business_GREEN", "business_AMBER", "business_RED",
	"sla_OK", "sla_AT_RISK", "sla_BREACH",
}

// Tile is a parsed tile id: an axis and the upper-cased value it must equal.
type Tile struct {
	Axis  Axis
	Value string
}

// ParseTile splits a tile id on its first underscore. ok is false for empty
// or unrecognised ids, which select the full set.
func ParseTile(id string) (Tile, bool) {
	prefix, value, found := strings.Cut(id, "_")
	if !found {
		return Tile{}, false
	}
	switch axis := Axis(prefix); axis {
	case AxisOverall, AxisTech, AxisBusiness, AxisSLA:
		return Tile{Axis: axis, Value: strings.ToUpper(value)}, true
	}
	return Tile{}, false
}

// Matches reports whether the rollup's value on the tile axis equals the tile value.
func (t Tile) Matches(r models.Rollup) bool {
	return t.axisValue(r) == t.Value
}

func (t Tile) axisValue(r models.Rollup) string {
	switch t.Axis {
	case AxisOverall:
		return string(r.Overall())
	case AxisTech:
		return string(r.TechHealth())
	case AxisBusiness:
		return string(r.BusinessHealth())
	case AxisSLA:
		return string(r.SLAState())
	}
	return ""
}

// Filter returns the rollups selected by tileID, in input order. An empty or
// unrecognised id returns a copy of the whole set.
func Filter(rollups []models.Rollup, tileID string) []models.Rollup {
	tile, ok := ParseTile(tileID)
	if !ok {
		return append([]models.Rollup(nil), rollups...)
	}
	out := make([]models.Rollup, 0)
	for _, r := range rollups {
		if tile.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}

// CountsByTile counts every id in TileIDs in a single pass.
func CountsByTile(rollups []models.Rollup) map[string]int {
	counts := make(map[string]int, len(TileIDs))
	for _, id := range TileIDs {
		counts[id] = 0
	}
	for _, r := range rollups {
		counts[string(AxisOverall)+"_"+string(r.Overall())]++
		counts[string(AxisTech)+"_"+string(r.TechHealth())]++
		counts[string(AxisBusiness)+"_"+string(r.BusinessHealth())]++
		counts[string(AxisSLA)+"_"+string(r.SLAState())]++
	}
	return counts
}

// slaColor is the SLA axis expressed on the health lattice.
func slaColor(r models.Rollup) status.Health {
	return status.SLAStateToHealth(r.SLAState())
}
