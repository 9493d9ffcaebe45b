package model

import "time"

type User struct {
	ID            int64
	CadetNumber   string
	Username      string
	Email         string
	ContactNumber *string
	Address       *string
	District      *string
	Role          string
	SchoolID      *int64
	PasswordHash  string
	CreatedAt     time.Time
}

type School struct {
	ID               int64
	Name             string
	District         string
	Municipality     string
	WardNumber       int
	AreaName         *string
	OfficialEmail    *string
	PhoneNumber      string
	Website          *string
	PrincipalName    string
	PrincipalContact string
	TeacherName      *string
	TeacherContact   *string
	Notes            *string
	IsActive         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
	TrainingSessions []TrainingSession
}

type TrainingSession struct {
	ID          int64
	SchoolID    int64
	NCCBatch    string
	StartDate   time.Time
	PassoutDate *time.Time
	Division    string
}

const (
	DivisionJunior = "junior"
	DivisionSenior = "senior"
)

type Stats struct {
	TotalSchools     int64
	ActiveSchools    int64
	TotalSessions    int64
	DistrictsCovered int64
}
