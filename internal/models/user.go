package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Role string

const (
	RoleFreelancer Role = "freelancer"
	RoleOwner      Role = "owner"
)

// Label is the human wording used by the signup form ("project owner").
func (r Role) Label() string {
	if r == RoleOwner {
		return "project owner"
	}
	return string(r)
}

func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "freelancer":
		return RoleFreelancer, true
	case "owner", "project_owner", "project owner":
		return RoleOwner, true
	}
	return "", false
}

// internal/models/user.go
type User struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Username string    `gorm:"type:varchar(150);uniqueIndex;not null" json:"username"`
	Email    string    `gorm:"type:varchar(254);uniqueIndex;not null" json:"email"`

	Password string `gorm:"not null" json:"-"`

	FirstName string `gorm:"type:varchar(150)" json:"first_name"`
	LastName  string `gorm:"type:varchar(150)" json:"last_name"`
	Profile   string `gorm:"type:text" json:"profile"` // free-text description

	ProfilePhoto   string         `gorm:"type:text" json:"profile_photo"`
	PhotoTransform datatypes.JSON `json:"photo_transform,omitempty"` // { flip_h, flip_v }

	IsFreelancer bool `gorm:"not null;default:false;index" json:"is_freelancer"`
	IsOwner      bool `gorm:"not null;default:false" json:"is_owner"`
	IsActive     bool `gorm:"not null;default:true" json:"is_active"`

	Skills []Skill `gorm:"many2many:user_skills;" json:"skills"`

	DateJoined time.Time `gorm:"autoCreateTime;index" json:"date_joined"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return
}

func (u *User) Role() Role {
	if u.IsFreelancer {
		return RoleFreelancer
	}
	return RoleOwner
}

func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

func (u *User) SkillNames() []string {
	out := make([]string, 0, len(u.Skills))
	for _, s := range u.Skills {
		out = append(out, s.Name)
	}
	return out
}

// PhotoTransform is applied to an uploaded profile photo before it is stored.
type PhotoTransform struct {
	FlipH bool `json:"flip_h"`
	FlipV bool `json:"flip_v"`
}

func (u *User) Transform() PhotoTransform {
	var t PhotoTransform
	if len(u.PhotoTransform) > 0 {
		_ = json.Unmarshal(u.PhotoTransform, &t)
	}
	return t
}
