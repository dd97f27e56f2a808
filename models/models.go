package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Roles a user account can hold.
const (
	RoleAdmin   = "admin"
	RoleBranch  = "branch"
	RoleStudent = "student"
	RoleParent  = "parent"
)

// User is a login account. Branch managers, students and parents carry the
// branch they belong to; admins do not.
type User struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Username     string    `gorm:"uniqueIndex;size:100;not null" json:"username"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Role         string    `gorm:"size:20;not null;index" json:"role"`
	Name         string    `gorm:"size:100;not null" json:"name"`
	Email        string    `gorm:"size:255" json:"email,omitempty"`
	Phone        string    `gorm:"size:30" json:"phone,omitempty"`
	BranchID     *string   `gorm:"size:64;index" json:"branchId,omitempty"`
	IsActive     bool      `gorm:"not null;default:true" json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// Branch is a franchise location.
type Branch struct {
	ID           string    `gorm:"primaryKey;size:64" json:"id"`
	Name         string    `gorm:"size:100;not null" json:"name"`
	Address      string    `gorm:"size:255" json:"address,omitempty"`
	Phone        string    `gorm:"size:30" json:"phone,omitempty"`
	ManagerName  string    `gorm:"size:100" json:"managerName,omitempty"`
	DisplayOrder int       `gorm:"not null;default:0" json:"displayOrder"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (b *Branch) BeforeCreate(*gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// Student is the academic profile attached to a student login.
type Student struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	UserID         string    `gorm:"size:36;uniqueIndex;not null" json:"userId"`
	BranchID       string    `gorm:"size:64;index;not null" json:"branchId"`
	School         string    `gorm:"size:100" json:"school,omitempty"`
	Grade          string    `gorm:"size:20;index" json:"grade,omitempty"` // school year, e.g. 고1
	ParentPhone    string    `gorm:"size:30" json:"parentPhone,omitempty"`
	EnrollmentDate time.Time `json:"enrollmentDate"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (s *Student) BeforeCreate(*gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.EnrollmentDate.IsZero() {
		s.EnrollmentDate = time.Now()
	}
	return nil
}

// Parent is the profile attached to a parent login.
type Parent struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	UserID    string    `gorm:"size:36;uniqueIndex;not null" json:"userId"`
	BranchID  string    `gorm:"size:64;index;not null" json:"branchId"`
	CreatedAt time.Time `json:"createdAt"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (p *Parent) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// StudentParent links a parent to a student.
type StudentParent struct {
	StudentID string `gorm:"primaryKey;size:36" json:"studentId"`
	ParentID  string `gorm:"primaryKey;size:36" json:"parentId"`
}

// Clazz is a class (group of students) inside a branch.
type Clazz struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Name        string    `gorm:"size:100;not null" json:"name"`
	BranchID    string    `gorm:"size:64;index;not null" json:"branchId"`
	Grade       string    `gorm:"size:20" json:"grade,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (Clazz) TableName() string { return "classes" }

func (c *Clazz) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// StudentClass assigns a student to a class.
type StudentClass struct {
	StudentID string `gorm:"primaryKey;size:36" json:"studentId"`
	ClassID   string `gorm:"primaryKey;size:36;index" json:"classId"`
}
