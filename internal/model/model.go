// Package model provides data-structs for internal app-usage
package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

type Status string

const (
	StatusCreated    Status = "created"
	StatusInProgress Status = "in_progress"
	StatusFailed     Status = "failed"
	StatusDone       Status = "done"
)

var StatusMap = map[Status]bool{
	StatusCreated:    true,
	StatusInProgress: true,
	StatusFailed:     true,
	StatusDone:       true,
}

// DefaultTolerance - RGB-distance threshold used when caller gives none
const DefaultTolerance = 50.0

//---------------------

// Removal - one background-removal job as it is kept in the history table
type Removal struct {
	UID        uuid.UUID   `json:"uid"`
	SourceRef  string      `json:"source"`
	Tolerance  float64     `json:"tolerance"`
	Status     Status      `json:"status,omitempty"`
	FailReason string      `json:"fail_reason,omitempty"`
	ResultRef  string      `json:"result,omitempty"`
	Background string      `json:"background,omitempty"`
	Erased     int         `json:"erased_pixels,omitempty"`
	Notes      StringSlice `json:"notes,omitempty"`
	CreatedAt  *time.Time  `json:"created_at,omitempty"`
	UpdatedAt  *time.Time  `json:"updated_at,omitempty"`
}

// RemovalRequest - raw input from HTTP/CLI before validation
type RemovalRequest struct {
	Image     string   `json:"image"`
	Tolerance *float64 `json:"tolerance,omitempty"`
}

// UploadData - multipart upload of a source photo
type UploadData struct {
	File        multipart.File
	ContentType string
	Size        int64
	Tolerance   *float64
}

//-------------------

type ListRequest struct {
	Page  int    `form:"page"`
	Limit int    `form:"limit"`
	Sort  string `form:"sort"`
	Order string `form:"order"`
}

const (
	ByUUID    = "uid"
	ByCreated = "created"
	OrderASC  = "ascend"
	OrderDESC = "descend"
)

// ------------------

var (
	ErrCommon500          error = errors.New("something went wrong. Try again later")   // 500
	ErrIncorrectQuery     error = errors.New("incorrect query parameters")              // 400
	ErrIncorrectID        error = errors.New("incorrect removal UUID")                  // 400
	ErrRemovalNotFound    error = errors.New("specified removal UUID doesn't exist")    // 404
	ErrResultNotReady     error = errors.New("requested removal has no result")         // 404
	ErrEmptySource        error = errors.New("empty/incorrect source image provided")   // 400
	ErrIncorrectTolerance error = errors.New("tolerance must be a non-negative number") // 400
	ErrIncorrectSize      error = errors.New("incorrect thumbnail size provided")       // 400
	ErrUnsupportedFormat  error = errors.New("unsupported source image format")         // 400
	ErrSourceNotAllowed   error = errors.New("source image location is not allowed")    // 400
	ErrMalformedMessage   error = errors.New("malformed boundary message")
)

//--------------------

const (
	JPEG = "image/jpeg"
	PNG  = "image/png"
	GIF  = "image/gif"
	WEBP = "image/webp"
)

var GetImageFileExt = map[string]string{
	JPEG: ".jpg",
	PNG:  ".png",
	GIF:  ".gif",
	WEBP: ".webp",
}

var InImageTypeMap = map[string]bool{
	JPEG: true,
	PNG:  true,
	GIF:  true,
	WEBP: true,
}

var GetCType = map[imaging.Format]string{
	imaging.JPEG: JPEG,
	imaging.GIF:  GIF,
	imaging.PNG:  PNG,
}

//--------------------

type StringSlice []string

func (s *StringSlice) Scan(value any) error {
	if value == nil {
		*s = []string{}
		return nil
	}

	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("invalid type for StringSlice")
	}

	if err := json.Unmarshal(b, s); err != nil {
		return fmt.Errorf("failed to unmarshal JSONB to []StringSlice: %w", err)
	}
	return nil
}

func (s StringSlice) Value() (driver.Value, error) {
	if len(s) == 0 || s == nil {
		return []byte(`[]`), nil
	}
	res, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal []StringSlice to JSONB: %w", err)
	}

	return res, nil
}
