package reports_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cuencahub/hub-backend/internal/auth"
	"github.com/cuencahub/hub-backend/internal/db"
	"github.com/cuencahub/hub-backend/internal/middleware"
	"github.com/cuencahub/hub-backend/internal/reports"
	"github.com/cuencahub/hub-backend/internal/storage"
	"github.com/cuencahub/hub-backend/internal/utils"
	"github.com/joho/godotenv"
)

var dbAvailable bool

var testServer *httptest.Server

// 1x1 PNG
var tinyPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0a, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

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
		fmt.Fprintf(os.Stderr, "skipping reports integration tests: %v\n", err)
		os.Exit(m.Run())
	}
	dbAvailable = true

	dir, err := os.MkdirTemp("", "reports-evidence")
	if err != nil {
		fmt.Fprintf(os.Stderr, "temp dir: %v\n", err)
		os.Exit(1)
	}
	store, err := storage.NewFileStore(dir, "/files", 1<<20)
	if err != nil {
		fmt.Fprintf(os.Stderr, "file store: %v\n", err)
		os.Exit(1)
	}

	auth.Init(auth.Settings{SessionTTL: time.Hour})
	reports.Init(reports.Settings{Store: store})
	testServer = httptest.NewServer(reports.SetupRoutes(cookieSessions{}))

	code := m.Run()
	testServer.Close()
	os.RemoveAll(dir)
	os.Exit(code)
}

func send(t *testing.T, req *http.Request, userID string) *http.Response {
	t.Helper()
	if userID != "" {
		req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: userID})
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func jsonRequest(t *testing.T, method, path, body string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(method, testServer.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestReportLifecycle(t *testing.T) {
	if !dbAvailable {
		t.Skip("skipping integration test (requires DATABASE_URL)")
	}
	reporter := utils.GenerateUUID()
	other := utils.GenerateUUID()

	resp := send(t, jsonRequest(t, http.MethodPost, "/",
		`{"title":"Descarga de aguas grises","category":"water_quality","severity":"high","location":{"latitude":-2.9,"longitude":-79.0}}`), reporter)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", resp.StatusCode)
	}
	var rep reports.Report
	if err := json.NewDecoder(resp.Body).Decode(&rep); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.DB.Delete(&reports.Report{}, "id = ?", rep.ID) })
	if rep.Status != reports.StatusOpen {
		t.Errorf("expected open, got %s", rep.Status)
	}

	resp = send(t, jsonRequest(t, http.MethodGet, "/?mine=true", ""), reporter)
	var mine []reports.Report
	if err := json.NewDecoder(resp.Body).Decode(&mine); err != nil {
		t.Fatal(err)
	}
	if len(mine) != 1 || mine[0].ID != rep.ID {
		t.Errorf("mine filter returned %+v", mine)
	}

	if resp := send(t, jsonRequest(t, http.MethodGet, "/?mine=true", ""), ""); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("anonymous mine: expected 401, got %d", resp.StatusCode)
	}
	if resp := send(t, jsonRequest(t, http.MethodGet, "/?category=flooding", ""), ""); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad category: expected 400, got %d", resp.StatusCode)
	}

	if resp := send(t, jsonRequest(t, http.MethodPatch, "/"+rep.ID, `{"status":"resolved"}`), other); resp.StatusCode != http.StatusForbidden {
		t.Errorf("non-reporter update: expected 403, got %d", resp.StatusCode)
	}
	if resp := send(t, jsonRequest(t, http.MethodPatch, "/"+rep.ID, `{"status":"in_review"}`), reporter); resp.StatusCode != http.StatusOK {
		t.Errorf("reporter update: expected 200, got %d", resp.StatusCode)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("evidence", "foto.png")
	fw.Write(tinyPNG)
	mw.Close()
	req, _ := http.NewRequest(http.MethodPost, testServer.URL+"/"+rep.ID+"/evidence", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp = send(t, req, reporter)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("evidence: expected 200, got %d", resp.StatusCode)
	}
	var withEvidence reports.Report
	if err := json.NewDecoder(resp.Body).Decode(&withEvidence); err != nil {
		t.Fatal(err)
	}
	if len(withEvidence.EvidenceURLs) != 1 || !strings.HasPrefix(withEvidence.EvidenceURLs[0], "/files/evidence/") {
		t.Errorf("unexpected evidence urls %v", withEvidence.EvidenceURLs)
	}

	if resp := send(t, jsonRequest(t, http.MethodDelete, "/"+rep.ID, ""), reporter); resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete: expected 204, got %d", resp.StatusCode)
	}
}

func evidenceRequest(t *testing.T, reportID string, n int) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for i := 0; i < n; i++ {
		fw, err := mw.CreateFormFile("evidence", fmt.Sprintf("foto-%d.png", i))
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(tinyPNG)
	}
	mw.Close()
	req, err := http.NewRequest(http.MethodPost, testServer.URL+"/"+reportID+"/evidence", &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestEvidenceAppendsConcurrently(t *testing.T) {
	if !dbAvailable {
		t.Skip("skipping integration test (requires DATABASE_URL)")
	}
	reporter := utils.GenerateUUID()

	resp := send(t, jsonRequest(t, http.MethodPost, "/",
		`{"title":"Basura en la orilla","category":"waste","severity":"medium","location":{"latitude":-2.89,"longitude":-79.01}}`), reporter)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", resp.StatusCode)
	}
	var rep reports.Report
	if err := json.NewDecoder(resp.Body).Decode(&rep); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.DB.Delete(&reports.Report{}, "id = ?", rep.ID) })

	const uploads = 4
	reqs := make([]*http.Request, uploads)
	for i := range reqs {
		reqs[i] = evidenceRequest(t, rep.ID, 1)
		reqs[i].AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: reporter})
	}

	var wg sync.WaitGroup
	codes := make([]int, uploads)
	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req *http.Request) {
			defer wg.Done()
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return
			}
			codes[i] = resp.StatusCode
			resp.Body.Close()
		}(i, req)
	}
	wg.Wait()
	for i, code := range codes {
		if code != http.StatusOK {
			t.Errorf("upload %d: expected 200, got %d", i, code)
		}
	}

	var stored reports.Report
	if err := db.DB.First(&stored, "id = ?", rep.ID).Error; err != nil {
		t.Fatal(err)
	}
	if len(stored.EvidenceURLs) != uploads {
		t.Fatalf("expected %d evidence urls, got %d: %v", uploads, len(stored.EvidenceURLs), stored.EvidenceURLs)
	}

	resp = send(t, evidenceRequest(t, rep.ID, 2), reporter)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("over the cap: expected 400, got %d", resp.StatusCode)
	}
	resp = send(t, evidenceRequest(t, rep.ID, 1), reporter)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("last slot: expected 200, got %d", resp.StatusCode)
	}
	var full reports.Report
	if err := json.NewDecoder(resp.Body).Decode(&full); err != nil {
		t.Fatal(err)
	}
	if len(full.EvidenceURLs) != uploads+1 {
		t.Errorf("response should carry every stored url, got %v", full.EvidenceURLs)
	}
}
