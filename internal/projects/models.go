package projects

import (
	"time"

	"github.com/cuencahub/hub-backend/internal/db"
	"github.com/cuencahub/hub-backend/internal/utils"
	"github.com/lib/pq"
)

type Status string

const (
	StatusPlanning  Status = "planning"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPlanning, StatusActive, StatusCompleted:
		return true
	}
	return false
}

const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

type Project struct {
	ID             string         `gorm:"primaryKey" json:"id"`
	Slug           string         `gorm:"uniqueIndex;not null" json:"slug"`
	Title          string         `gorm:"not null" json:"title"`
	Description    string         `json:"description"`
	Category       string         `gorm:"index" json:"category"`
	Status         Status         `gorm:"index;not null" json:"status"`
	utils.Location `gorm:"embedded"`
	Area           db.JSONB       `json:"area,omitempty"`
	AreaSqM        float64        `json:"area_sq_m,omitempty"`
	Tags           pq.StringArray `gorm:"type:text[]" json:"tags"`
	OwnerID        string         `gorm:"index;not null" json:"owner_id"`
	MemberCount    int64          `gorm:"-" json:"member_count"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

type Member struct {
	ProjectID string    `gorm:"primaryKey" json:"project_id"`
	UserID    string    `gorm:"primaryKey" json:"user_id"`
	Role      string    `gorm:"not null" json:"role"`
	FullName  string    `gorm:"-" json:"full_name"`
	JoinedAt  time.Time `gorm:"autoCreateTime" json:"joined_at"`
}

type Comment struct {
	ID         string    `gorm:"primaryKey" json:"id"`
	ProjectID  string    `gorm:"index;not null" json:"project_id"`
	UserID     string    `gorm:"not null" json:"user_id"`
	Body       string    `gorm:"not null" json:"body"`
	AuthorName string    `gorm:"-" json:"author_name"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Project) TableName() string { return "projects.projects" }
func (Member) TableName() string  { return "projects.members" }
func (Comment) TableName() string { return "projects.comments" }
