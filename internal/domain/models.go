package domain

import (
	"encoding/json"
	"io"
	"time"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// ParseStatus rejects anything outside the closed set of application statuses.
func ParseStatus(raw string) (Status, error) {
	switch s := Status(raw); s {
	case StatusPending, StatusApproved, StatusRejected:
		return s, nil
	default:
		return "", NewFieldError("status", "must be one of pending, approved, rejected")
	}
}

const dateLayout = "2006-01-02"

// Date is a calendar date without a time of day.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func ParseDate(raw string) (Date, error) {
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return Date{}, NewFieldError("dob", "must be a valid date in YYYY-MM-DD format")
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

func (d Date) String() string {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

type Application struct {
	ID              int64      `json:"id"`
	FullName        string     `json:"full_name"`
	DateOfBirth     Date       `json:"dob"`
	IDNumber        string     `json:"id_number"`
	Country         string     `json:"country"`
	Address         string     `json:"address"`
	SelfieRef       *string    `json:"selfie"`
	IDDocumentRef   *string    `json:"id_doc"`
	Status          Status     `json:"status"`
	RejectionReason *string    `json:"rejection_reason"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       *time.Time `json:"updated_at"`
}

// StatusView is the public projection of an application: enough to answer a
// status poll and nothing identifying beyond the id number.
type StatusView struct {
	IDNumber        string    `json:"id_number"`
	Status          Status    `json:"status"`
	RejectionReason *string   `json:"rejection_reason"`
	CreatedAt       time.Time `json:"created_at"`
}

func (a Application) StatusView() StatusView {
	return StatusView{
		IDNumber:        a.IDNumber,
		Status:          a.Status,
		RejectionReason: a.RejectionReason,
		CreatedAt:       a.CreatedAt,
	}
}

// Submission is the applicant-supplied part of an application. Dob stays raw
// until validation so the offending field can be reported.
type Submission struct {
	FullName    string `json:"full_name" validate:"required,min=2,max=255"`
	DateOfBirth string `json:"dob" validate:"required,datetime=2006-01-02"`
	IDNumber    string `json:"id_number" validate:"required,min=5,max=50"`
	Country     string `json:"country" validate:"required,min=2,max=100"`
	Address     string `json:"address" validate:"required,min=10,max=500"`
	Selfie      *Upload
	IDDocument  *Upload
}

// Upload is a document as received from the applicant, not yet validated.
type Upload struct {
	Filename string
	Content  io.Reader
}

type Bucket string

const (
	BucketSelfies Bucket = "selfies"
	BucketIDDocs  Bucket = "id_docs"
)

// Document is an upload that passed type, size and integrity checks.
type Document struct {
	Ext         string
	ContentType string
	Data        []byte
}

type ListFilter struct {
	Status *Status `json:"status"`
	Offset int     `json:"skip" validate:"gte=0"`
	Limit  int     `json:"limit" validate:"gte=1,lte=1000"`
}

const DefaultListLimit = 100

type Stats struct {
	Total    int64 `json:"total_submissions"`
	Approved int64 `json:"approved"`
	Rejected int64 `json:"rejected"`
	Pending  int64 `json:"pending"`
}

// StatusUpdate is a compare-and-swap on an application's status.
type StatusUpdate struct {
	ID              int64
	From            Status
	To              Status
	RejectionReason *string
	UpdatedAt       time.Time
}

type Principal struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"-"`
}

const RoleAdmin = "admin"
