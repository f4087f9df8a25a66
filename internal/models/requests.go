package models

import (
	"errors"
	"fmt"
)

var (
	ErrNoTableSelected = errors.New("a table must be selected for the booking")
	ErrInvalidRequest  = errors.New("invalid request")
)

// CreateTableRequest carries the input for placing a new table on the
// floor plan. Width and height are derived from the shape.
type CreateTableRequest struct {
	Shape   TableShape `json:"shape"`
	X       float64    `json:"x"`
	Y       float64    `json:"y"`
	Section string     `json:"section"`
}

// Validate checks the request before it reaches the registry.
func (r *CreateTableRequest) Validate() error {
	if !r.Shape.Valid() {
		return fmt.Errorf("%w: unknown shape %q", ErrInvalidRequest, r.Shape)
	}
	return nil
}

// UpdateTableRequest carries a partial table update. Nil fields are left
// untouched.
type UpdateTableRequest struct {
	Capacity *int     `json:"capacity,omitempty"`
	X        *float64 `json:"x,omitempty"`
	Y        *float64 `json:"y,omitempty"`
	Section  *string  `json:"section,omitempty"`
	IsVip    *bool    `json:"isVip,omitempty"`
}

// Validate checks the request before it reaches the registry.
func (r *UpdateTableRequest) Validate() error {
	if r.Capacity != nil && *r.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive", ErrInvalidRequest)
	}
	return nil
}

// BookingRequest carries the input for creating or editing a booking.
type BookingRequest struct {
	GuestName       string `json:"guestName"`
	Phone           string `json:"phone"`
	Email           string `json:"email"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	PartySize       int    `json:"partySize"`
	Duration        int    `json:"duration"`
	TableID         string `json:"tableId"`
	SpecialRequests string `json:"specialRequests"`
}

// Validate checks the request before it reaches the ledger. A selected
// table is the one guard the source enforces beyond native form checks.
func (r *BookingRequest) Validate() error {
	if r.TableID == "" {
		return ErrNoTableSelected
	}
	if r.GuestName == "" {
		return fmt.Errorf("%w: guest name is required", ErrInvalidRequest)
	}
	if r.PartySize <= 0 {
		return fmt.Errorf("%w: party size must be positive", ErrInvalidRequest)
	}
	if _, _, err := ParseClock(r.Time); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if len(r.Date) != 10 {
		return fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidRequest)
	}
	return nil
}

// WalkInRequest seats a guest without a prior reservation; the ledger
// creates the booking retroactively at the current time.
type WalkInRequest struct {
	TableID   string `json:"tableId"`
	GuestName string `json:"guestName"`
	PartySize int    `json:"partySize"`
	Phone     string `json:"phone"`
}

// Validate checks the request before seating.
func (r *WalkInRequest) Validate() error {
	if r.TableID == "" {
		return ErrNoTableSelected
	}
	if r.GuestName == "" {
		return fmt.Errorf("%w: guest name is required", ErrInvalidRequest)
	}
	if r.PartySize <= 0 {
		return fmt.Errorf("%w: party size must be positive", ErrInvalidRequest)
	}
	return nil
}

// PartySizeBucket is a list-filter bucket over booking party sizes.
type PartySizeBucket string

const (
	BucketAny       PartySizeBucket = "any"
	BucketOneTwo    PartySizeBucket = "1-2"
	BucketThreeFour PartySizeBucket = "3-4"
	BucketFiveEight PartySizeBucket = "5-8"
	BucketNinePlus  PartySizeBucket = "9+"
)

// Matches reports whether a party size falls in the bucket.
func (b PartySizeBucket) Matches(size int) bool {
	switch b {
	case BucketOneTwo:
		return size >= 1 && size <= 2
	case BucketThreeFour:
		return size >= 3 && size <= 4
	case BucketFiveEight:
		return size >= 5 && size <= 8
	case BucketNinePlus:
		return size >= 9
	default:
		return true
	}
}
