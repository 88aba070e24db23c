package mapdata

import (
	"net/http"
	"slices"

	"github.com/cuencahub/hub-backend/internal/db"
	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb"
	"gorm.io/gorm"
)

const maxFeaturesPerLayer = 2000

// LayersHandler serves GET /map/layers?layers=...&bbox=...
func LayersHandler(w http.ResponseWriter, r *http.Request) {
	layers, err := ParseLayers(r.URL.Query().Get("layers"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	bbox, err := ParseBBox(r.URL.Query().Get("bbox"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var e Entities
	if slices.Contains(layers, LayerReports) {
		if err := within(db.DB.Order("created_at DESC"), bbox).Limit(maxFeaturesPerLayer).Find(&e.Reports).Error; err != nil {
			http.Error(w, "Failed to load reports", http.StatusInternalServerError)
			return
		}
	}
	if slices.Contains(layers, LayerDevices) {
		if err := within(db.DB.Order("name ASC"), bbox).Limit(maxFeaturesPerLayer).Find(&e.Devices).Error; err != nil {
			http.Error(w, "Failed to load devices", http.StatusInternalServerError)
			return
		}
	}
	if slices.Contains(layers, LayerProjects) || slices.Contains(layers, LayerProjectAreas) {
		if err := within(db.DB.Order("created_at DESC"), bbox).Limit(maxFeaturesPerLayer).Find(&e.Projects).Error; err != nil {
			http.Error(w, "Failed to load projects", http.StatusInternalServerError)
			return
		}
	}

	body, err := BuildLayers(layers, e).MarshalJSON()
	if err != nil {
		http.Error(w, "Failed to encode layers", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.Write(body)
}

func within(q *gorm.DB, b *orb.Bound) *gorm.DB {
	if b == nil {
		return q
	}
	return q.Where("longitude BETWEEN ? AND ? AND latitude BETWEEN ? AND ?",
		b.Min.Lon(), b.Max.Lon(), b.Min.Lat(), b.Max.Lat())
}

func SetupRoutes() http.Handler {
	r := chi.NewRouter()
	r.Get("/layers", LayersHandler)
	return r
}

