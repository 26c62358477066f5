package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// SeatStatus is the occupancy state of a seat. It is derived from the
// assignment ledger and only written by the allocation and repair services.
type SeatStatus string

// Seat statuses.
const (
	SeatStatusVacant      SeatStatus = "vacant"
	SeatStatusOccupied    SeatStatus = "occupied"
	SeatStatusUnavailable SeatStatus = "unavailable"
)

// Valid reports whether s is a known seat status.
func (s SeatStatus) Valid() bool {
	switch s {
	case SeatStatusVacant, SeatStatusOccupied, SeatStatusUnavailable:
		return true
	}
	return false
}

const seatIDPrefix = "seat_"

// MaxSeatNumber is the largest number the seats.seat_number column holds.
const MaxSeatNumber = math.MaxInt32

// Seat is one physical, numbered location.
type Seat struct {
	ID          string     `db:"id" json:"id"`
	SeatNumber  int        `db:"seat_number" json:"seat_number"`
	Row         int        `db:"row_number" json:"row"`
	Col         int        `db:"col_number" json:"col"`
	Status      SeatStatus `db:"status" json:"status"`
	IsActive    bool       `db:"is_active" json:"is_active"`
	LastUpdated time.Time  `db:"last_updated" json:"last_updated"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// Available reports whether the seat can take a new occupant.
func (s Seat) Available() bool {
	return s.IsActive && s.Status == SeatStatusVacant
}

// SeatID derives the seat key from its number.
func SeatID(number int) string {
	return fmt.Sprintf("%s%d", seatIDPrefix, number)
}

// SeatNumberFromID parses the number out of a seat key.
func SeatNumberFromID(id string) (int, bool) {
	if !strings.HasPrefix(id, seatIDPrefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(id, seatIDPrefix))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// GridPosition maps a 1-based seat number onto a row-major grid with the given column count.
func GridPosition(number, columns int) (row, col int) {
	if columns <= 0 {
		columns = 1
	}
	return (number-1)/columns + 1, (number-1)%columns + 1
}

// NewSeat builds a vacant, active seat for number.
func NewSeat(number, columns int, now time.Time) Seat {
	row, col := GridPosition(number, columns)
	return Seat{
		ID:          SeatID(number),
		SeatNumber:  number,
		Row:         row,
		Col:         col,
		Status:      SeatStatusVacant,
		IsActive:    true,
		LastUpdated: now,
		CreatedAt:   now,
	}
}

// SeatFilter narrows seat listings. Available implies active and vacant.
type SeatFilter struct {
	Status    *SeatStatus
	Active    *bool
	Available bool
}

// SeatStatusCount is one bucket of a grouped seat count.
type SeatStatusCount struct {
	Status   SeatStatus `db:"status"`
	IsActive bool       `db:"is_active"`
	Count    int        `db:"count"`
}
