package viz

import (
	"fmt"
	"math"
	"strings"

	"github.com/i474232898/ecosync/internal/weather"
)

// LayerKind names a renderable layer.
type LayerKind string

const (
	LayerHeatmap  LayerKind = "heatmap"
	LayerBoundary LayerKind = "boundary"
	LayerScatter  LayerKind = "scatter"
	LayerArc      LayerKind = "arc"
	LayerText     LayerKind = "text"
)

// LayerOrder is the draw order; later layers render on top.
var LayerOrder = []LayerKind{LayerHeatmap, LayerBoundary, LayerScatter, LayerArc, LayerText}

// ParseLayerKind accepts a layer name, including "geojson" for the boundary.
func ParseLayerKind(s string) (LayerKind, error) {
	switch k := LayerKind(strings.ToLower(strings.TrimSpace(s))); k {
	case LayerHeatmap, LayerBoundary, LayerScatter, LayerArc, LayerText:
		return k, nil
	case "geojson":
		return LayerBoundary, nil
	}
	return "", &weather.ValidationError{Field: "layers", Reason: fmt.Sprintf("unknown layer %q", s)}
}

// LayerToggles records which layers are enabled. Missing kinds are off.
type LayerToggles map[LayerKind]bool

// DefaultToggles enables the heatmap only.
func DefaultToggles() LayerToggles {
	return LayerToggles{LayerHeatmap: true}
}

// ParseToggles converts a name->bool map, rejecting unknown names.
func ParseToggles(in map[string]bool) (LayerToggles, error) {
	out := make(LayerToggles, len(in))
	for name, on := range in {
		kind, err := ParseLayerKind(name)
		if err != nil {
			return nil, err
		}
		out[kind] = on
	}
	return out, nil
}

// Clone returns an independent copy.
func (t LayerToggles) Clone() LayerToggles {
	out := make(LayerToggles, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Merge overlays other onto a copy of t.
func (t LayerToggles) Merge(other LayerToggles) LayerToggles {
	out := t.Clone()
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Equal reports whether both enable the same kinds.
func (t LayerToggles) Equal(other LayerToggles) bool {
	for _, k := range LayerOrder {
		if t[k] != other[k] {
			return false
		}
	}
	return true
}

// RGBA is a renderer color as 0-255 channels; 3-channel colors omit alpha.
type RGBA []int

// LayerSpec is one renderable layer: encoding rules plus prepared data.
type LayerSpec struct {
	Kind         LayerKind      `json:"kind"`
	ID           string         `json:"id"`
	RenderParams map[string]any `json:"renderParams"`
	Data         any            `json:"data"`
}

// Encodings.
const (
	heatmapRadiusPixels = 60
	heatmapIntensity    = 1.0
	heatmapThreshold    = 0.05

	scatterRadiusScale = 1000.0
	scatterMinPixels   = 3
	scatterMaxPixels   = 30
	scatterFullScale   = 50.0
	scatterOpacity     = 200

	textStride = 10

	maxArcs   = 20
	arcOffset = 5

	boundaryVertices = 64
	boundaryRadius   = 0.5
)

var (
	heatmapRamp = []RGBA{
		{0, 255, 0, 25},
		{255, 255, 0, 85},
		{255, 165, 0, 127},
		{255, 0, 0, 170},
		{139, 0, 0, 255},
	}
	arcSourceColor    = RGBA{99, 102, 241}
	arcTargetColor    = RGBA{139, 92, 246}
	boundaryLineColor = RGBA{99, 102, 241, 200}
)

// HeatPoint is a weighted heatmap sample.
type HeatPoint struct {
	Position [2]float64 `json:"position"`
	Weight   float64    `json:"weight"`
}

// ScatterPoint is a scatter circle with its derived radius and fill.
type ScatterPoint struct {
	Position  [2]float64 `json:"position"`
	Value     float64    `json:"value"`
	Radius    float64    `json:"radius"`
	FillColor RGBA       `json:"fillColor"`
}

// Label is a text annotation.
type Label struct {
	Position [2]float64 `json:"position"`
	Text     string     `json:"text"`
}

// Arc connects two sample points.
type Arc struct {
	Source [2]float64 `json:"source"`
	Target [2]float64 `json:"target"`
	Value  float64    `json:"value"`
}

// Polygon is a GeoJSON polygon feature.
type Polygon struct {
	Type     string          `json:"type"`
	Geometry PolygonGeometry `json:"geometry"`
}

type PolygonGeometry struct {
	Type        string         `json:"type"`
	Coordinates [][][2]float64 `json:"coordinates"`
}

// Compose builds the enabled layers in LayerOrder. Grid-backed layers are
// omitted for an empty grid; the boundary needs only boundaryCenter.
func Compose(grid SampleGrid, active LayerToggles, boundaryCenter weather.Coordinate) []LayerSpec {
	layers := make([]LayerSpec, 0, len(LayerOrder))
	for _, kind := range LayerOrder {
		if !active[kind] {
			continue
		}
		if kind == LayerBoundary {
			layers = append(layers, boundaryLayer(boundaryCenter))
			continue
		}
		if len(grid) == 0 {
			continue
		}
		switch kind {
		case LayerHeatmap:
			layers = append(layers, heatmapLayer(grid))
		case LayerScatter:
			layers = append(layers, scatterLayer(grid))
		case LayerArc:
			layers = append(layers, arcLayer(grid))
		case LayerText:
			layers = append(layers, textLayer(grid))
		}
	}
	return layers
}

func heatmapLayer(grid SampleGrid) LayerSpec {
	data := make([]HeatPoint, len(grid))
	for i, p := range grid {
		data[i] = HeatPoint{Position: p.Position.LonLat(), Weight: p.Weight}
	}
	return LayerSpec{
		Kind: LayerHeatmap,
		ID:   "heatmap-layer",
		RenderParams: map[string]any{
			"radiusPixels": heatmapRadiusPixels,
			"intensity":    heatmapIntensity,
			"threshold":    heatmapThreshold,
			"colorRange":   heatmapRamp,
		},
		Data: data,
	}
}

func scatterLayer(grid SampleGrid) LayerSpec {
	data := make([]ScatterPoint, len(grid))
	for i, p := range grid {
		data[i] = ScatterPoint{
			Position:  p.Position.LonLat(),
			Value:     p.Value,
			Radius:    math.Abs(p.Value) * scatterRadiusScale,
			FillColor: scatterColor(p.Value),
		}
	}
	return LayerSpec{
		Kind: LayerScatter,
		ID:   "scatter-layer",
		RenderParams: map[string]any{
			"radiusMinPixels": scatterMinPixels,
			"radiusMaxPixels": scatterMaxPixels,
			"opacity":         scatterOpacity,
		},
		Data: data,
	}
}

// scatterColor moves from green toward red as |v| approaches scatterFullScale.
func scatterColor(v float64) RGBA {
	n := math.Min(math.Abs(v)/scatterFullScale, 1)
	return RGBA{
		int(math.Round(255 * n)),
		int(math.Round(255 * (1 - n))),
		100,
		scatterOpacity,
	}
}

func textLayer(grid SampleGrid) LayerSpec {
	data := make([]Label, 0, (len(grid)+textStride-1)/textStride)
	for i := 0; i < len(grid); i += textStride {
		p := grid[i]
		data = append(data, Label{Position: p.Position.LonLat(), Text: fmt.Sprintf("%.1f", p.Value)})
	}
	return LayerSpec{
		Kind: LayerText,
		ID:   "text-layer",
		RenderParams: map[string]any{
			"size":         12,
			"color":        RGBA{255, 255, 255, 255},
			"outlineWidth": 2,
			"outlineColor": RGBA{0, 0, 0, 255},
		},
		Data: data,
	}
}

// arcLayer links point i to point (i+5) mod n for the first 20 points.
func arcLayer(grid SampleGrid) LayerSpec {
	n := len(grid)
	count := min(maxArcs, n)
	data := make([]Arc, count)
	for i := 0; i < count; i++ {
		src, dst := grid[i], grid[(i+arcOffset)%n]
		data[i] = Arc{
			Source: src.Position.LonLat(),
			Target: dst.Position.LonLat(),
			Value:  (src.Value + dst.Value) / 2,
		}
	}
	return LayerSpec{
		Kind: LayerArc,
		ID:   "arc-layer",
		RenderParams: map[string]any{
			"sourceColor": arcSourceColor,
			"targetColor": arcTargetColor,
			"width":       2,
			"opacity":     0.3,
		},
		Data: data,
	}
}

func boundaryLayer(center weather.Coordinate) LayerSpec {
	return LayerSpec{
		Kind: LayerBoundary,
		ID:   "geojson-layer",
		RenderParams: map[string]any{
			"filled":             false,
			"stroked":            true,
			"lineColor":          boundaryLineColor,
			"lineWidth":          3,
			"lineWidthMinPixels": 2,
		},
		Data: BoundaryRing(center),
	}
}

// BoundaryRing is an illustrative circular outline of radius 0.5 degrees, not
// an administrative boundary. The ring has 64 distinct vertices and repeats
// the first to close.
func BoundaryRing(center weather.Coordinate) Polygon {
	ring := make([][2]float64, 0, boundaryVertices+1)
	for i := 0; i < boundaryVertices; i++ {
		angle := float64(i) / boundaryVertices * 2 * math.Pi
		ring = append(ring, [2]float64{
			center.Lon + math.Cos(angle)*boundaryRadius,
			center.Lat + math.Sin(angle)*boundaryRadius,
		})
	}
	ring = append(ring, ring[0])
	return Polygon{
		Type:     "Feature",
		Geometry: PolygonGeometry{Type: "Polygon", Coordinates: [][][2]float64{ring}},
	}
}
