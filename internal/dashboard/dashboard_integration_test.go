package dashboard_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/cuencahub/hub-backend/internal/analysis"
	"github.com/cuencahub/hub-backend/internal/dashboard"
	"github.com/cuencahub/hub-backend/internal/db"
	"github.com/cuencahub/hub-backend/internal/middleware"
	"github.com/cuencahub/hub-backend/internal/projects"
	"github.com/cuencahub/hub-backend/internal/reports"
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
		fmt.Fprintf(os.Stderr, "skipping dashboard integration tests: %v\n", err)
		os.Exit(m.Run())
	}
	dbAvailable = true
	reports.Init(reports.Settings{})
	sensors.Init()
	projects.Init()
	analysis.Init(analysis.Settings{})

	os.Exit(m.Run())
}

func requireDB(t *testing.T) {
	t.Helper()
	if !dbAvailable {
		t.Skip("skipping integration test (requires DATABASE_URL)")
	}
}

func seedRuns(t *testing.T, userID string, n int) []string {
	t.Helper()
	var ids []string
	for i := 0; i < n; i++ {
		run := analysis.AnalysisRun{
			ID:        utils.GenerateUUID(),
			UserID:    userID,
			DateStart: "2024-01-01",
			DateEnd:   "2024-01-31",
			Status:    analysis.RunSucceeded,
			CreatedAt: time.Now().Add(time.Duration(i) * time.Second),
		}
		if err := db.DB.Create(&run).Error; err != nil {
			t.Fatal(err)
		}
		ids = append(ids, run.ID)
	}
	t.Cleanup(func() { db.DB.Delete(&analysis.AnalysisRun{}, "id IN ?", ids) })
	return ids
}

func TestBuildScopesRecentRunsToCaller(t *testing.T) {
	requireDB(t)
	alice, bob := utils.GenerateUUID(), utils.GenerateUUID()
	aliceRuns := seedRuns(t, alice, 2)
	seedRuns(t, bob, 3)

	s, err := dashboard.Build(context.Background(), alice)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.RecentRuns) != len(aliceRuns) {
		t.Fatalf("expected %d runs, got %d", len(aliceRuns), len(s.RecentRuns))
	}
	for _, run := range s.RecentRuns {
		if run.UserID != alice {
			t.Errorf("run %s belongs to %s", run.ID, run.UserID)
		}
		if len(run.Result) != 0 || len(run.Area) != 0 {
			t.Error("recent runs should omit payloads")
		}
	}

	anon, err := dashboard.Build(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if anon.RecentRuns == nil || len(anon.RecentRuns) != 0 {
		t.Errorf("anonymous callers should get an empty list, got %v", anon.RecentRuns)
	}
}

func TestBuildLatestReadingPerDevice(t *testing.T) {
	requireDB(t)
	device := sensors.Device{
		ID: utils.GenerateUUID(), Name: "Estación Machángara", Kind: "multiparameter",
		Status: sensors.DeviceActive, OwnerID: utils.GenerateUUID(), KeyHash: "x",
		Location: utils.Location{Latitude: -2.86, Longitude: -78.98},
	}
	if err := db.DB.Create(&device).Error; err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		db.DB.Where("device_id = ?", device.ID).Delete(&sensors.Reading{})
		db.DB.Delete(&sensors.Device{}, "id = ?", device.ID)
	})

	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	samples := []struct {
		offset time.Duration
		ph     float64
	}{{0, 7.0}, {40 * time.Minute, 7.4}, {20 * time.Minute, 6.8}}
	for _, sm := range samples {
		ph := sm.ph
		r := sensors.Reading{DeviceID: device.ID, RecordedAt: base.Add(sm.offset), PH: &ph}
		if err := db.DB.Create(&r).Error; err != nil {
			t.Fatal(err)
		}
	}

	s, err := dashboard.Build(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	var found []dashboard.LatestReading
	for _, lr := range s.LatestReadings {
		if lr.DeviceID == device.ID {
			found = append(found, lr)
		}
	}
	if len(found) != 1 {
		t.Fatalf("expected one latest reading for the device, got %d", len(found))
	}
	if found[0].DeviceName != device.Name || found[0].PH == nil || *found[0].PH != 7.4 {
		t.Errorf("expected the newest reading (ph 7.4), got %+v", found[0])
	}
	if s.Devices[string(sensors.DeviceActive)] < 1 {
		t.Errorf("active device count missing: %v", s.Devices)
	}
}

func TestSummaryHandlerSession(t *testing.T) {
	requireDB(t)
	owner := utils.GenerateUUID()
	seedRuns(t, owner, 1)
	seedRuns(t, utils.GenerateUUID(), 1)
	h := dashboard.SetupRoutes(cookieSessions{})

	summary := func(userID string) dashboard.Summary {
		t.Helper()
		req := httptest.NewRequest(http.MethodGet, "/summary", nil)
		if userID != "" {
			req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: userID})
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var s dashboard.Summary
		if err := json.NewDecoder(rec.Body).Decode(&s); err != nil {
			t.Fatal(err)
		}
		return s
	}

	if s := summary(""); len(s.RecentRuns) != 0 {
		t.Errorf("anonymous summary leaked %d runs", len(s.RecentRuns))
	}
	s := summary(owner)
	if len(s.RecentRuns) != 1 || s.RecentRuns[0].UserID != owner {
		t.Errorf("expected only the caller's run, got %+v", s.RecentRuns)
	}
}
