package sensors

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cuencahub/hub-backend/internal/db"
	"github.com/cuencahub/hub-backend/internal/metrics"
	"github.com/cuencahub/hub-backend/internal/utils"
	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

// DeviceKeyHeader carries the plaintext device key on ingest requests.
const DeviceKeyHeader = "X-Device-Key"

var now = time.Now

type deviceInput struct {
	Name     *string         `json:"name"`
	Kind     *string         `json:"kind"`
	Status   *DeviceStatus   `json:"status"`
	Location *utils.Location `json:"location"`
}

func ListDevices(w http.ResponseWriter, r *http.Request) {
	q := db.DB.Order("name ASC")
	if s := r.URL.Query().Get("status"); s != "" {
		if !DeviceStatus(s).Valid() {
			http.Error(w, errBadStatus.Error(), http.StatusBadRequest)
			return
		}
		q = q.Where("status = ?", s)
	}
	if mine, _ := strconv.ParseBool(r.URL.Query().Get("mine")); mine {
		userID, ok := utils.GetUserIDFromContext(r.Context())
		if !ok {
			http.Error(w, "Sign in to list your devices", http.StatusUnauthorized)
			return
		}
		q = q.Where("owner_id = ?", userID)
	}

	var devices []Device
	if err := q.Find(&devices).Error; err != nil {
		http.Error(w, "Failed to load devices", http.StatusInternalServerError)
		return
	}
	if devices == nil {
		devices = []Device{}
	}
	utils.WriteJSON(w, http.StatusOK, devices)
}

// CreateDevice registers a device and returns its key. The key is never shown
// again.
func CreateDevice(w http.ResponseWriter, r *http.Request) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var input deviceInput
	if err := utils.DecodeJSON(w, r, &input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if input.Name == nil || input.Kind == nil || input.Location == nil {
		http.Error(w, "Name, kind and location are required", http.StatusBadRequest)
		return
	}

	device := Device{
		ID:      utils.GenerateUUID(),
		Status:  DeviceActive,
		OwnerID: userID,
	}
	if err := input.apply(&device); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	plain, hash, err := newDeviceKey()
	if err != nil {
		http.Error(w, "Failed to generate device key", http.StatusInternalServerError)
		return
	}
	device.KeyHash = hash

	if err := db.DB.Create(&device).Error; err != nil {
		http.Error(w, "Failed to register device", http.StatusInternalServerError)
		return
	}

	slog.Info("device registered", "component", "sensors", "device_id", device.ID, "kind", device.Kind)
	utils.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"device":  device,
		"api_key": plain,
	})
}

func UpdateDevice(w http.ResponseWriter, r *http.Request) {
	device, ok := loadOwned(w, r)
	if !ok {
		return
	}

	var input deviceInput
	if err := utils.DecodeJSON(w, r, &input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := input.apply(device); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := db.DB.Save(device).Error; err != nil {
		http.Error(w, "Failed to update device", http.StatusInternalServerError)
		return
	}
	utils.WriteJSON(w, http.StatusOK, device)
}

// RotateKey replaces the device key; the old key stops working immediately.
func RotateKey(w http.ResponseWriter, r *http.Request) {
	device, ok := loadOwned(w, r)
	if !ok {
		return
	}

	plain, hash, err := newDeviceKey()
	if err != nil {
		http.Error(w, "Failed to generate device key", http.StatusInternalServerError)
		return
	}
	if err := db.DB.Model(device).Update("key_hash", hash).Error; err != nil {
		http.Error(w, "Failed to rotate key", http.StatusInternalServerError)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"api_key": plain})
}

func DeleteDevice(w http.ResponseWriter, r *http.Request) {
	device, ok := loadOwned(w, r)
	if !ok {
		return
	}

	err := db.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("device_id = ?", device.ID).Delete(&Reading{}).Error; err != nil {
			return err
		}
		return tx.Delete(device).Error
	})
	if err != nil {
		http.Error(w, "Failed to delete device", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// IngestHandler accepts one sample from a device authenticated by its key.
func IngestHandler(w http.ResponseWriter, r *http.Request) {
	var input Uplink
	if err := utils.DecodeJSON(w, r, &input); err != nil {
		reject(w, "bad_payload", "Invalid request body", http.StatusBadRequest)
		return
	}

	key := strings.TrimSpace(r.Header.Get(DeviceKeyHeader))
	if key == "" || input.DeviceID == "" {
		reject(w, "unauthenticated", "Device id and key are required", http.StatusUnauthorized)
		return
	}

	device, err := FindDevice(r.Context(), input.DeviceID)
	if err != nil || !keyMatches(device.KeyHash, key) {
		reject(w, "unauthenticated", "Unknown device or key", http.StatusUnauthorized)
		return
	}

	reading, err := Record(r.Context(), device, input)
	var invalid *InvalidReadingError
	switch {
	case errors.Is(err, ErrDeviceInactive):
		reject(w, "inactive", "Device is inactive", http.StatusForbidden)
		return
	case errors.As(err, &invalid):
		reject(w, "invalid_reading", invalid.Error(), http.StatusUnprocessableEntity)
		return
	case err != nil:
		slog.Error("failed to store reading", "component", "sensors", "device_id", device.ID, "error", err)
		http.Error(w, "Failed to store reading", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, reading)
}

// ReadingsHandler returns a device's readings in [from, to], newest first.
func ReadingsHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	deviceID := query.Get("device_id")
	if deviceID == "" {
		http.Error(w, "device_id is required", http.StatusBadRequest)
		return
	}

	q := db.DB.Where("device_id = ?", deviceID).Order("recorded_at DESC")
	if v := query.Get("from"); v != "" {
		from, err := parseTimeParam(v, false)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		q = q.Where("recorded_at >= ?", from)
	}
	if v := query.Get("to"); v != "" {
		to, err := parseTimeParam(v, true)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		q = q.Where("recorded_at <= ?", to)
	}

	limit := 500
	if v := query.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, 5000)
	}

	var readings []Reading
	if err := q.Limit(limit).Find(&readings).Error; err != nil {
		http.Error(w, "Failed to load readings", http.StatusInternalServerError)
		return
	}
	if readings == nil {
		readings = []Reading{}
	}
	utils.WriteJSON(w, http.StatusOK, readings)
}

func reject(w http.ResponseWriter, reason, msg string, status int) {
	metrics.SensorRejected.WithLabelValues(reason).Inc()
	http.Error(w, msg, status)
}

func loadOwned(w http.ResponseWriter, r *http.Request) (*Device, bool) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return nil, false
	}

	var device Device
	err := db.DB.First(&device, "id = ?", chi.URLParam(r, "id")).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		http.Error(w, "Device not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		http.Error(w, "DB error", http.StatusInternalServerError)
		return nil, false
	}
	if device.OwnerID != userID {
		http.Error(w, "Only the owner can modify this device", http.StatusForbidden)
		return nil, false
	}
	return &device, true
}

func (in deviceInput) apply(d *Device) error {
	name, kind := d.Name, d.Kind
	if in.Name != nil {
		name = strings.TrimSpace(*in.Name)
	}
	if in.Kind != nil {
		kind = strings.ToLower(strings.TrimSpace(*in.Kind))
	}
	if err := validateDevice(name, kind); err != nil {
		return err
	}
	d.Name, d.Kind = name, kind

	if in.Status != nil {
		if !in.Status.Valid() {
			return errBadStatus
		}
		d.Status = *in.Status
	}
	if in.Location != nil {
		if err := in.Location.Validate(); err != nil {
			return err
		}
		d.Location = *in.Location
	}
	return nil
}
