// Package models defines the core domain records shared by the floor plan,
// booking ledger and dashboard components. All records are identified by
// string ids and serialized as JSON through the key-value store.
package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TableShape is the drawn shape of a table on the floor plan.
type TableShape string

const (
	ShapeRound     TableShape = "round"
	ShapeSquare    TableShape = "square"
	ShapeRectangle TableShape = "rectangle"
)

// DefaultSize returns the layout width and height for a shape.
func (s TableShape) DefaultSize() (width, height float64) {
	switch s {
	case ShapeSquare:
		return 80, 80
	case ShapeRectangle:
		return 100, 60
	default:
		return 60, 60
	}
}

// Valid reports whether s is one of the known shapes.
func (s TableShape) Valid() bool {
	switch s {
	case ShapeRound, ShapeSquare, ShapeRectangle:
		return true
	}
	return false
}

// Table is a physical table on the floor plan. X, Y, Width and Height are
// layout-only and carry no domain meaning.
type Table struct {
	ID       string     `json:"id"`
	Shape    TableShape `json:"shape"`
	Capacity int        `json:"capacity"`
	X        float64    `json:"x"`
	Y        float64    `json:"y"`
	Width    float64    `json:"width"`
	Height   float64    `json:"height"`
	Section  string     `json:"section"`
	IsVip    bool       `json:"isVip"`
}

// NumericID extracts the numeric part of a table id ("T12" -> 12).
// Returns 0 when the id carries no digits.
func (t *Table) NumericID() int {
	digits := strings.Builder{}
	for _, r := range t.ID {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	n, _ := strconv.Atoi(digits.String())
	return n
}

// TableState is the live occupancy state of a table.
type TableState string

const (
	StateAvailable TableState = "available"
	StateReserved  TableState = "reserved"
	StateOccupied  TableState = "occupied"
	StateCleaning  TableState = "cleaning"
)

// Valid reports whether s is one of the known states.
func (s TableState) Valid() bool {
	switch s {
	case StateAvailable, StateReserved, StateOccupied, StateCleaning:
		return true
	}
	return false
}

// TableStatus links a table to its live state and, when reserved or
// occupied, to the booking that holds it. Exactly one record exists per
// table.
type TableStatus struct {
	TableID       string     `json:"tableId"`
	Status        TableState `json:"status"`
	ReservationID string     `json:"reservation,omitempty"`
}

// BookingStatus is the lifecycle status of a booking record.
type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

// Booking is a reservation for a table. Date is a zero-padded ISO date
// ("2006-01-02") and Time is "HH:MM"; both sort lexicographically.
type Booking struct {
	ID              string        `json:"id"`
	GuestName       string        `json:"guestName"`
	Phone           string        `json:"phone"`
	Email           string        `json:"email,omitempty"`
	Date            string        `json:"date"`
	Time            string        `json:"time"`
	PartySize       int           `json:"partySize"`
	Duration        int           `json:"duration"`
	TableID         string        `json:"tableId"`
	SpecialRequests string        `json:"specialRequests,omitempty"`
	Status          BookingStatus `json:"status"`
}

// StartMinutes returns the booking start as minutes since midnight.
func (b *Booking) StartMinutes() int {
	return parseClockMinutes(b.Time)
}

// EndMinutes returns the booking end as minutes since midnight.
func (b *Booking) EndMinutes() int {
	return b.StartMinutes() + b.Duration
}

// OverlapsSlot reports whether the booking covers the given clock interval
// on its own date. Half-open [start, end) semantics.
func (b *Booking) OverlapsSlot(date string, startMin, endMin int) bool {
	if b.Date != date {
		return false
	}
	return b.StartMinutes() < endMin && startMin < b.EndMinutes()
}

// IsUpcoming reports whether the booking starts strictly after now.
func (b *Booking) IsUpcoming(now time.Time) bool {
	today := now.Format("2006-01-02")
	if b.Date > today {
		return true
	}
	if b.Date < today {
		return false
	}
	return b.StartMinutes() > now.Hour()*60+now.Minute()
}

// RestaurantInfo is the singleton configuration record read by the
// calendar grid and new-booking defaults.
type RestaurantInfo struct {
	Name                string `json:"name"`
	OpeningTime         string `json:"openingTime"`
	ClosingTime         string `json:"closingTime"`
	ReservationDuration int    `json:"reservationDuration"`
}

// OpenHour returns the opening hour, 10 when unset or malformed.
func (r *RestaurantInfo) OpenHour() int {
	return clockHourOr(r.OpeningTime, 10)
}

// CloseHour returns the closing hour, 22 when unset or malformed.
func (r *RestaurantInfo) CloseHour() int {
	return clockHourOr(r.ClosingTime, 22)
}

// DefaultRestaurantInfo returns the first-run settings record.
func DefaultRestaurantInfo() RestaurantInfo {
	return RestaurantInfo{
		Name:                "Restaurant Name",
		OpeningTime:         "10:00",
		ClosingTime:         "22:00",
		ReservationDuration: 90,
	}
}

// ParseClock validates an "HH:MM" string and returns its components.
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("invalid time format: %s", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid hour: %w", err)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid minute: %w", err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("time out of range: %s", s)
	}
	return hour, minute, nil
}

func parseClockMinutes(s string) int {
	h, m, err := ParseClock(s)
	if err != nil {
		return 0
	}
	return h*60 + m
}

func clockHourOr(s string, def int) int {
	h, _, err := ParseClock(s)
	if err != nil {
		return def
	}
	return h
}
