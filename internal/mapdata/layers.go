// Package mapdata assembles the GeoJSON layers the map view toggles between.
package mapdata

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cuencahub/hub-backend/internal/areaselect"
	"github.com/cuencahub/hub-backend/internal/projects"
	"github.com/cuencahub/hub-backend/internal/reports"
	"github.com/cuencahub/hub-backend/internal/sensors"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

const (
	LayerReports      = "reports"
	LayerDevices      = "devices"
	LayerProjects     = "projects"
	LayerProjectAreas = "project_areas"
)

// DefaultLayers is used when the request names none.
var DefaultLayers = []string{LayerReports, LayerDevices, LayerProjects}

var known = map[string]bool{
	LayerReports:      true,
	LayerDevices:      true,
	LayerProjects:     true,
	LayerProjectAreas: true,
}

var errBadBBox = errors.New("bbox must be minLng,minLat,maxLng,maxLat")

// ParseLayers splits a comma separated list, drops duplicates and rejects
// unknown names.
func ParseLayers(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return DefaultLayers, nil
	}
	var out []string
	seen := map[string]bool{}
	for _, name := range strings.Split(raw, ",") {
		name = strings.TrimSpace(strings.ToLower(name))
		if name == "" || seen[name] {
			continue
		}
		if !known[name] {
			return nil, fmt.Errorf("unknown layer %q", name)
		}
		seen[name] = true
		out = append(out, name)
	}
	if len(out) == 0 {
		return DefaultLayers, nil
	}
	return out, nil
}

// ParseBBox reads "minLng,minLat,maxLng,maxLat". Empty input means no filter.
func ParseBBox(raw string) (*orb.Bound, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return nil, errBadBBox
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, errBadBBox
		}
		v[i] = f
	}
	if v[0] > v[2] || v[1] > v[3] {
		return nil, errBadBBox
	}
	b := orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}
	return &b, nil
}

// Entities are the rows a FeatureCollection is built from.
type Entities struct {
	Reports  []reports.Report
	Devices  []sensors.Device
	Projects []projects.Project
}

// BuildLayers renders the requested layers. Each feature carries its layer
// name in the "layer" property.
func BuildLayers(layers []string, e Entities) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, layer := range layers {
		switch layer {
		case LayerReports:
			for _, r := range e.Reports {
				f := pointFeature(r.ID, LayerReports, r.Point())
				f.Properties["title"] = r.Title
				f.Properties["category"] = string(r.Category)
				f.Properties["severity"] = string(r.Severity)
				f.Properties["status"] = string(r.Status)
				f.Properties["evidence_count"] = len(r.EvidenceURLs)
				f.Properties["created_at"] = r.CreatedAt
				fc.Append(f)
			}
		case LayerDevices:
			for _, d := range e.Devices {
				f := pointFeature(d.ID, LayerDevices, d.Point())
				f.Properties["name"] = d.Name
				f.Properties["kind"] = d.Kind
				f.Properties["status"] = string(d.Status)
				if d.LastSeenAt != nil {
					f.Properties["last_seen_at"] = *d.LastSeenAt
				}
				fc.Append(f)
			}
		case LayerProjects:
			for _, p := range e.Projects {
				f := pointFeature(p.ID, LayerProjects, p.Point())
				projectProps(f, p)
				fc.Append(f)
			}
		case LayerProjectAreas:
			for _, p := range e.Projects {
				if len(p.Area) == 0 {
					continue
				}
				aoi, err := areaselect.ParseGeoJSON(p.Area)
				if err != nil {
					continue
				}
				f := geojson.NewFeature(aoi.Polygon())
				f.ID = p.ID
				f.Properties["layer"] = LayerProjectAreas
				projectProps(f, p)
				f.Properties["area_sq_m"] = p.AreaSqM
				fc.Append(f)
			}
		}
	}
	return fc
}

func pointFeature(id, layer string, p orb.Point) *geojson.Feature {
	f := geojson.NewFeature(p)
	f.ID = id
	f.Properties["layer"] = layer
	return f
}

func projectProps(f *geojson.Feature, p projects.Project) {
	f.Properties["title"] = p.Title
	f.Properties["slug"] = p.Slug
	f.Properties["status"] = string(p.Status)
	f.Properties["category"] = p.Category
}
