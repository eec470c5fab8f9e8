package models

import (
	"time"
)

type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleTeacher UserRole = "teacher"
	RoleAdmin   UserRole = "admin"
)

// User mirrors the identity provider's directory; this service only reads it.
type User struct {
	ID           string   `json:"id" gorm:"primaryKey;size:255"`
	FullName     string   `json:"full_name" gorm:"not null;size:100"`
	Email        string   `json:"email" gorm:"uniqueIndex;not null;size:255"`
	Role         UserRole `json:"role" gorm:"size:20;index"`
	Organization string   `json:"organization" gorm:"size:100;index"`
	IsActive     bool     `json:"is_active" gorm:"default:true"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

type Batch struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Name         string    `json:"name" gorm:"not null;size:100"`
	Organization string    `json:"organization" gorm:"size:100;index"`
	CreatedAt    time.Time `json:"created_at"`
}

func (Batch) TableName() string {
	return "batches"
}

type BatchStudent struct {
	BatchID   uint   `json:"batch_id" gorm:"primaryKey"`
	StudentID string `json:"student_id" gorm:"primaryKey;size:255;index"`
}

func (BatchStudent) TableName() string {
	return "batch_students"
}

// Actor is the authenticated caller of an operation, resolved per request.
type Actor struct {
	UserID       string   `json:"user_id"`
	Role         UserRole `json:"role"`
	Organization string   `json:"organization"`
}

func (a Actor) IsFaculty() bool {
	return a.Role == RoleTeacher || a.Role == RoleAdmin
}

// SameOrganization treats an empty organization on either side as unscoped.
func (a Actor) SameOrganization(org string) bool {
	return a.Organization == "" || org == "" || a.Organization == org
}
