package entry

import "time"

// User is a registered cardholder looked up by RFID tag.
type User struct {
	UserID     string     `json:"userId"`
	IDNumber   string     `json:"idNumber"`
	RFIDTag    string     `json:"rfidTag"`
	FirstName  string     `json:"firstName"`
	LastName   string     `json:"lastName"`
	Email      *string    `json:"email,omitempty"`
	UserType   string     `json:"userType"`
	College    string     `json:"college"`
	Department string     `json:"department"`
	YearLevel  *string    `json:"yearLevel,omitempty"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// FullName joins first and last name for display.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// Entry method values.
const (
	MethodRFID   = "rfid"
	MethodManual = "manual"
)

// Entry status values.
const (
	StatusSuccess   = "success"
	StatusDuplicate = "duplicate"
	StatusError     = "error"
)

// User status values.
const (
	UserActive   = "active"
	UserInactive = "inactive"
)

// User type values.
const (
	TypeStudent = "student"
	TypeFaculty = "faculty"
)

// Entry is one attendance attempt. Rows are append-only from the scan
// path; administrative edit/delete goes through the admin endpoints.
type Entry struct {
	LogID          string    `json:"logId"`
	UserID         string    `json:"userId"`
	EntryTimestamp time.Time `json:"entryTimestamp"`
	EntryMethod    string    `json:"entryMethod"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"createdAt"`
	User           *User     `json:"user,omitempty"`
}
