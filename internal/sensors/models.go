package sensors

import (
	"time"

	"github.com/cuencahub/hub-backend/internal/utils"
)

type DeviceStatus string

const (
	DeviceActive      DeviceStatus = "active"
	DeviceInactive    DeviceStatus = "inactive"
	DeviceMaintenance DeviceStatus = "maintenance"
)

func (s DeviceStatus) Valid() bool {
	switch s {
	case DeviceActive, DeviceInactive, DeviceMaintenance:
		return true
	}
	return false
}

// Device is a field sensor station. Only the bcrypt hash of its key is kept.
type Device struct {
	ID             string       `gorm:"primaryKey" json:"id"`
	Name           string       `gorm:"not null" json:"name"`
	Kind           string       `gorm:"not null" json:"kind"`
	Status         DeviceStatus `gorm:"index;not null" json:"status"`
	utils.Location `gorm:"embedded"`
	OwnerID        string       `gorm:"index;not null" json:"owner_id"`
	KeyHash        string       `gorm:"not null" json:"-"`
	LastSeenAt     *time.Time   `json:"last_seen_at"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Reading is one sample. Absent measurements stay NULL.
type Reading struct {
	ID              uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	DeviceID        string    `gorm:"index:idx_readings_device_time,priority:1;not null" json:"device_id"`
	RecordedAt      time.Time `gorm:"index:idx_readings_device_time,priority:2;not null" json:"recorded_at"`
	ReceivedAt      time.Time `gorm:"autoCreateTime" json:"received_at"`
	PH              *float64  `gorm:"column:ph" json:"ph,omitempty"`
	Temperature     *float64  `json:"temperature,omitempty"`
	Turbidity       *float64  `json:"turbidity,omitempty"`
	DissolvedOxygen *float64  `json:"dissolved_oxygen,omitempty"`
	Conductivity    *float64  `json:"conductivity,omitempty"`
}

func (Device) TableName() string  { return "sensors.devices" }
func (Reading) TableName() string { return "sensors.readings" }
