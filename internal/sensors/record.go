package sensors

import (
	"context"
	"errors"
	"time"

	"github.com/cuencahub/hub-backend/internal/db"
	"github.com/cuencahub/hub-backend/internal/metrics"
	"gorm.io/gorm"
)

var (
	ErrUnknownDevice  = errors.New("unknown device")
	ErrDeviceInactive = errors.New("device is inactive")
)

// InvalidReadingError is returned when an uplink fails value or time checks.
type InvalidReadingError struct{ Err error }

func (e *InvalidReadingError) Error() string { return e.Err.Error() }
func (e *InvalidReadingError) Unwrap() error { return e.Err }

// Uplink is one sample as sent by a device or relayed by a gateway.
type Uplink struct {
	DeviceID   string     `json:"device_id"`
	RecordedAt *time.Time `json:"recorded_at"`
	Readings   Values     `json:"readings"`
}

// FindDevice loads a device by id, mapping a miss to ErrUnknownDevice.
func FindDevice(ctx context.Context, id string) (*Device, error) {
	var device Device
	err := db.DB.WithContext(ctx).First(&device, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUnknownDevice
	}
	if err != nil {
		return nil, err
	}
	return &device, nil
}

// Record validates u and stores it for device, bumping last_seen_at in the
// same transaction.
func Record(ctx context.Context, device *Device, u Uplink) (*Reading, error) {
	if device.Status == DeviceInactive {
		return nil, ErrDeviceInactive
	}
	if err := u.Readings.validate(); err != nil {
		return nil, &InvalidReadingError{err}
	}
	at, err := recordedAt(u.RecordedAt, now())
	if err != nil {
		return nil, &InvalidReadingError{err}
	}

	reading := Reading{
		DeviceID:        device.ID,
		RecordedAt:      at,
		PH:              u.Readings.PH,
		Temperature:     u.Readings.Temperature,
		Turbidity:       u.Readings.Turbidity,
		DissolvedOxygen: u.Readings.DissolvedOxygen,
		Conductivity:    u.Readings.Conductivity,
	}
	err = db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&reading).Error; err != nil {
			return err
		}
		return tx.Model(device).Update("last_seen_at", now().UTC()).Error
	})
	if err != nil {
		return nil, err
	}

	metrics.SensorReadings.WithLabelValues(device.Kind).Inc()
	return &reading, nil
}
