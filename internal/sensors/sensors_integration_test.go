package sensors_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/cuencahub/hub-backend/internal/db"
	"github.com/cuencahub/hub-backend/internal/middleware"
	"github.com/cuencahub/hub-backend/internal/sensors"
	"github.com/cuencahub/hub-backend/internal/utils"
	"github.com/joho/godotenv"
)

var dbAvailable bool

type cookieSessions struct{}

func (cookieSessions) FindSessionByID(id string) (utils.SessionData, error) {
	if id == "" {
		return utils.SessionData{}, errors.New("no session")
	}
	return utils.SessionData{UserID: id, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func TestMain(m *testing.M) {
	_ = godotenv.Load("../../.env.local")

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		os.Exit(m.Run())
	}
	if err := db.Connect(databaseURL); err != nil {
		fmt.Fprintf(os.Stderr, "skipping sensors integration tests: %v\n", err)
		os.Exit(m.Run())
	}
	dbAvailable = true
	sensors.Init()

	os.Exit(m.Run())
}

func requireDB(t *testing.T) {
	t.Helper()
	if !dbAvailable {
		t.Skip("skipping integration test (requires DATABASE_URL)")
	}
}

func ingest(t *testing.T, h http.Handler, key, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/ingest", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(sensors.DeviceKeyHeader, key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// registerDevice creates a device through the API and returns it with its key.
func registerDevice(t *testing.T, owner string) (sensors.Device, string) {
	t.Helper()
	h := sensors.DeviceRoutes(cookieSessions{})
	req := httptest.NewRequest(http.MethodPost, "/",
		strings.NewReader(`{"name":"Estación Yanuncay","kind":"multiparameter","location":{"latitude":-2.91,"longitude":-79.03}}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: owner})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register device: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var out struct {
		Device sensors.Device `json:"device"`
		APIKey string         `json:"api_key"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		db.DB.Where("device_id = ?", out.Device.ID).Delete(&sensors.Reading{})
		db.DB.Delete(&sensors.Device{}, "id = ?", out.Device.ID)
	})
	return out.Device, out.APIKey
}

func TestIngestRequiresKeyWithoutDatabase(t *testing.T) {
	h := sensors.IngestRoutes(100, 100)

	rec := ingest(t, h, "", `{"device_id":"d1","readings":{"ph":7.1}}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("missing key: expected 401, got %d", rec.Code)
	}

	rec = ingest(t, h, "hubk_abc", `{"readings":{"ph":7.1}}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("missing device id: expected 401, got %d", rec.Code)
	}

	rec = ingest(t, h, "hubk_abc", `{"device_id":`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body: expected 400, got %d", rec.Code)
	}
}

func TestIngestRateLimited(t *testing.T) {
	h := sensors.IngestRoutes(0.001, 1)

	first := ingest(t, h, "", `{"device_id":"d1","readings":{"ph":7.1}}`)
	if first.Code == http.StatusTooManyRequests {
		t.Fatal("first request should pass the limiter")
	}
	second := ingest(t, h, "", `{"device_id":"d1","readings":{"ph":7.1}}`)
	if second.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", second.Code)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestIngestDeviceKeyAuth(t *testing.T) {
	requireDB(t)
	device, key := registerDevice(t, utils.GenerateUUID())
	h := sensors.IngestRoutes(100, 100)
	body := fmt.Sprintf(`{"device_id":%q,"readings":{"ph":7.3,"temperature":13.2}}`, device.ID)

	if rec := ingest(t, h, key+"x", body); rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong key: expected 401, got %d", rec.Code)
	}
	if rec := ingest(t, h, key, `{"device_id":"no-such-device","readings":{"ph":7}}`); rec.Code != http.StatusUnauthorized {
		t.Errorf("unknown device: expected 401, got %d", rec.Code)
	}

	rec := ingest(t, h, key, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("valid ingest: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var reading sensors.Reading
	if err := json.NewDecoder(rec.Body).Decode(&reading); err != nil {
		t.Fatal(err)
	}
	if reading.DeviceID != device.ID || reading.PH == nil || *reading.PH != 7.3 {
		t.Errorf("unexpected reading %+v", reading)
	}
	if reading.Turbidity != nil {
		t.Error("absent measurement should stay null")
	}

	var stored sensors.Device
	if err := db.DB.First(&stored, "id = ?", device.ID).Error; err != nil {
		t.Fatal(err)
	}
	if stored.LastSeenAt == nil {
		t.Error("ingest should bump last_seen_at")
	}
}

func TestIngestRejectsInvalidReading(t *testing.T) {
	requireDB(t)
	device, key := registerDevice(t, utils.GenerateUUID())
	h := sensors.IngestRoutes(100, 100)

	rec := ingest(t, h, key, fmt.Sprintf(`{"device_id":%q,"readings":{"ph":15}}`, device.ID))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("out of range: expected 422, got %d", rec.Code)
	}

	future := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	rec = ingest(t, h, key, fmt.Sprintf(`{"device_id":%q,"recorded_at":%q,"readings":{"ph":7}}`, device.ID, future))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("future timestamp: expected 422, got %d", rec.Code)
	}

	var n int64
	db.DB.Model(&sensors.Reading{}).Where("device_id = ?", device.ID).Count(&n)
	if n != 0 {
		t.Errorf("rejected readings should not be stored, found %d", n)
	}
}

func TestIngestInactiveDevice(t *testing.T) {
	requireDB(t)
	device, key := registerDevice(t, utils.GenerateUUID())
	if err := db.DB.Model(&sensors.Device{}).Where("id = ?", device.ID).Update("status", sensors.DeviceInactive).Error; err != nil {
		t.Fatal(err)
	}

	rec := ingest(t, sensors.IngestRoutes(100, 100), key, fmt.Sprintf(`{"device_id":%q,"readings":{"ph":7}}`, device.ID))
	if rec.Code != http.StatusForbidden {
		t.Errorf("inactive device: expected 403, got %d", rec.Code)
	}
}

func TestRecord(t *testing.T) {
	requireDB(t)
	device, _ := registerDevice(t, utils.GenerateUUID())
	ctx := context.Background()

	found, err := sensors.FindDevice(ctx, device.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := sensors.FindDevice(ctx, "no-such-device"); !errors.Is(err, sensors.ErrUnknownDevice) {
		t.Errorf("expected ErrUnknownDevice, got %v", err)
	}

	ph, temp := 6.9, 12.5
	at := time.Now().Add(-10 * time.Minute).UTC().Truncate(time.Second)
	reading, err := sensors.Record(ctx, found, sensors.Uplink{
		DeviceID:   device.ID,
		RecordedAt: &at,
		Readings:   sensors.Values{PH: &ph, Temperature: &temp},
	})
	if err != nil {
		t.Fatal(err)
	}
	if reading.ID == 0 || !reading.RecordedAt.Equal(at) {
		t.Errorf("unexpected reading %+v", reading)
	}

	bad := 20.0
	_, err = sensors.Record(ctx, found, sensors.Uplink{DeviceID: device.ID, Readings: sensors.Values{PH: &bad}})
	var invalid *sensors.InvalidReadingError
	if !errors.As(err, &invalid) {
		t.Errorf("expected InvalidReadingError, got %v", err)
	}

	found.Status = sensors.DeviceInactive
	if _, err := sensors.Record(ctx, found, sensors.Uplink{DeviceID: device.ID, Readings: sensors.Values{PH: &ph}}); !errors.Is(err, sensors.ErrDeviceInactive) {
		t.Errorf("expected ErrDeviceInactive, got %v", err)
	}

	var n int64
	db.DB.Model(&sensors.Reading{}).Where("device_id = ?", device.ID).Count(&n)
	if n != 1 {
		t.Errorf("expected exactly one stored reading, got %d", n)
	}
}
