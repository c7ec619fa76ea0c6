package models

import (
	"time"
)

// UserData is the profile shape returned by GET /user/me.
type UserData struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name,omitempty"`
	Email       string `json:"email,omitempty"`
	Role        string `json:"role,omitempty"`
	Institution string `json:"institution,omitempty"`
	Country     string `json:"country,omitempty"`
}

type User struct {
	ID           string    `gorm:"primaryKey;size:36"        json:"id"`
	Email        string    `gorm:"uniqueIndex;not null"      json:"email"`
	Name         string    `gorm:"not null"                  json:"name"`
	PasswordHash string    `gorm:"not null"                  json:"-"`
	Role         string    `gorm:"not null;default:USER"     json:"role"`
	Institution  string    `json:"institution"`
	Country      string    `json:"country"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u User) Profile() UserData {
	return UserData{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Role:        u.Role,
		Institution: u.Institution,
		Country:     u.Country,
	}
}

type RefreshToken struct {
	ID        uint   `gorm:"primaryKey"            json:"id"`
	JTI       string `gorm:"uniqueIndex;not null"  json:"jti"`
	TokenHash string `gorm:"uniqueIndex;not null"  json:"-"`
	UserID    string `gorm:"index;not null"        json:"user_id"`
	ExpiresAt int64  `gorm:"not null"              json:"expires_at"`
	Revoked   bool   `gorm:"default:false"         json:"revoked"`
}

type Script struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Name        string    `gorm:"not null"           json:"name"`
	Slug        string    `gorm:"index"              json:"slug"`
	Description string    `json:"description"`
	Status      string    `gorm:"index"              json:"status"`
	Public      bool      `json:"public"`
	UserID      string    `gorm:"index"              json:"user_id"`
	UserName    string    `json:"user_name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Execution struct {
	ID         string     `gorm:"primaryKey;size:36" json:"id"`
	ScriptID   string     `gorm:"index"              json:"script_id"`
	ScriptName string     `json:"script_name"`
	UserID     string     `gorm:"index"              json:"user_id"`
	UserName   string     `json:"user_name"`
	UserEmail  string     `json:"user_email"`
	Status     string     `gorm:"index"              json:"status"`
	Progress   int        `json:"progress"`
	StartDate  time.Time  `gorm:"index"              json:"start_date"`
	EndDate    *time.Time `json:"end_date"`
	Duration   float64    `json:"duration"`
	Params     string     `json:"params"`
	Results    string     `json:"results"`
}

// Log sources.
const (
	LogExecution = "execution"
	LogDocker    = "docker"
	LogScript    = "script"
)

// Log is one line of execution, container or script output.
type Log struct {
	ID           uint      `gorm:"primaryKey"                          json:"id"`
	Source       string    `gorm:"index:idx_log_parent;not null"       json:"-"`
	ParentID     string    `gorm:"index:idx_log_parent;size:36;not null" json:"-"`
	Level        string    `json:"level,omitempty"`
	Text         string    `json:"text"`
	RegisterDate time.Time `gorm:"index"                               json:"register_date"`
}
