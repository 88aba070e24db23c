package webhooks

import (
	"time"

	"github.com/cuencahub/hub-backend/internal/db"
)

// Delivery is the inbox row for one gateway webhook call. Its id is the
// gateway's delivery id, so a redelivered batch is recognised and skipped.
type Delivery struct {
	ID         string    `gorm:"primaryKey" json:"id"`
	Source     string    `gorm:"not null" json:"source"`
	Payload    db.JSONB  `json:"-"`
	Accepted   int       `json:"accepted"`
	Rejected   int       `json:"rejected"`
	ReceivedAt time.Time `gorm:"autoCreateTime" json:"received_at"`
}

func (Delivery) TableName() string { return "webhooks.deliveries" }
