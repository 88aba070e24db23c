package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cuencahub/hub-backend/internal/db"
	"github.com/cuencahub/hub-backend/internal/metrics"
	"github.com/cuencahub/hub-backend/internal/sensors"
	"github.com/cuencahub/hub-backend/internal/utils"
	"gorm.io/gorm/clause"
)

const (
	SignatureHeader  = "X-Gateway-Signature"
	DeliveryIDHeader = "X-Gateway-Delivery-Id"

	maxUplinks = 500
)

type gatewayBatch struct {
	Uplinks []sensors.Uplink `json:"uplinks"`
}

type uplinkError struct {
	Index    int    `json:"index"`
	DeviceID string `json:"device_id"`
	Error    string `json:"error"`
}

type gatewayResult struct {
	Duplicate bool          `json:"duplicate,omitempty"`
	Accepted  int           `json:"accepted"`
	Rejected  int           `json:"rejected"`
	Errors    []uplinkError `json:"errors,omitempty"`
}

// GatewayWebhook accepts a signed batch of uplinks relayed by a telemetry
// gateway. Devices are trusted by the gateway signature, not by device keys.
func GatewayWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MiB
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Payload too large or unreadable", http.StatusRequestEntityTooLarge)
		return
	}
	defer r.Body.Close()

	if settings.GatewaySecret == "" {
		http.Error(w, "Gateway webhook is not configured", http.StatusServiceUnavailable)
		return
	}
	sid := strings.TrimSpace(r.Header.Get(DeliveryIDHeader))
	if sid == "" {
		http.Error(w, "Missing delivery id", http.StatusBadRequest)
		return
	}
	if !verifySignature(r.Header.Get(SignatureHeader), sid, raw, settings.GatewaySecret) {
		metrics.SensorRejected.WithLabelValues("bad_signature").Inc()
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	var batch gatewayBatch
	if err := json.Unmarshal(raw, &batch); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(batch.Uplinks) == 0 || len(batch.Uplinks) > maxUplinks {
		http.Error(w, "Batch must hold between 1 and 500 uplinks", http.StatusBadRequest)
		return
	}

	delivery := Delivery{ID: sid, Source: "gateway", Payload: db.JSONB(raw)}
	res := db.DB.WithContext(r.Context()).Clauses(clause.OnConflict{DoNothing: true}).Create(&delivery)
	if res.Error != nil {
		slog.Error("failed to record delivery", "component", "webhooks", "delivery_id", sid, "error", res.Error)
		http.Error(w, "Failed to record delivery", http.StatusInternalServerError)
		return
	}
	if res.RowsAffected == 0 {
		utils.WriteJSON(w, http.StatusOK, gatewayResult{Duplicate: true})
		return
	}

	out := recordBatch(r.Context(), batch.Uplinks)

	if err := db.DB.Model(&delivery).Updates(map[string]any{
		"accepted": out.Accepted,
		"rejected": out.Rejected,
	}).Error; err != nil {
		slog.Warn("failed to update delivery counts", "component", "webhooks", "delivery_id", sid, "error", err)
	}
	slog.Info("gateway delivery processed", "component", "webhooks",
		"delivery_id", sid, "accepted", out.Accepted, "rejected", out.Rejected)

	utils.WriteJSON(w, http.StatusOK, out)
}

// recordBatch stores each uplink independently; one bad sample never drops the rest.
func recordBatch(ctx context.Context, uplinks []sensors.Uplink) gatewayResult {
	var out gatewayResult
	for i, u := range uplinks {
		reason, err := recordOne(ctx, u)
		if err != nil {
			metrics.SensorRejected.WithLabelValues(reason).Inc()
			out.Rejected++
			out.Errors = append(out.Errors, uplinkError{Index: i, DeviceID: u.DeviceID, Error: err.Error()})
			continue
		}
		out.Accepted++
	}
	return out
}

func recordOne(ctx context.Context, u sensors.Uplink) (string, error) {
	if u.DeviceID == "" {
		return "unauthenticated", sensors.ErrUnknownDevice
	}
	device, err := sensors.FindDevice(ctx, u.DeviceID)
	if err != nil {
		return "unauthenticated", err
	}
	if _, err := sensors.Record(ctx, device, u); err != nil {
		var invalid *sensors.InvalidReadingError
		switch {
		case errors.Is(err, sensors.ErrDeviceInactive):
			return "inactive", err
		case errors.As(err, &invalid):
			return "invalid_reading", err
		}
		return "store_failed", err
	}
	return "", nil
}

// verifySignature checks sig == "sha256=" + hex(HMAC-SHA256(secret, body || deliveryID)).
func verifySignature(sig, sid string, raw []byte, secret string) bool {
	if !strings.HasPrefix(sig, "sha256=") {
		return false
	}
	expected := "sha256=" + sign(secret, sid, raw)
	return hmac.Equal([]byte(sig), []byte(expected))
}

func sign(secret, sid string, raw []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(raw)
	mac.Write([]byte(sid))
	return hex.EncodeToString(mac.Sum(nil))
}
