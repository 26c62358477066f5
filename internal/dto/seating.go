package dto

// CreateSeatRequest registers a single seat. Row and column are derived from the number.
type CreateSeatRequest struct {
	SeatNumber int `json:"seatNumber" validate:"required,gt=0,lte=2147483647"`
}

// SetSeatActiveRequest toggles administrative availability.
type SetSeatActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

// SeatListQuery carries the GET /seats filters.
type SeatListQuery struct {
	Status    string `form:"status" validate:"omitempty,oneof=vacant occupied unavailable"`
	Active    *bool  `form:"active"`
	Available bool   `form:"available"`
}

// AssignSeatRequest binds a student to a seat.
type AssignSeatRequest struct {
	SeatID     string `json:"seatId" validate:"required"`
	StudentID  string `json:"studentId" validate:"required"`
	AssignedBy string `json:"assignedBy" validate:"omitempty,max=128"`
	Notes      string `json:"notes" validate:"omitempty,max=500"`
}

// UnassignSeatRequest releases the active binding of exactly this seat/student pair.
type UnassignSeatRequest struct {
	SeatID       string `json:"seatId" validate:"required"`
	StudentID    string `json:"studentId" validate:"required"`
	UnassignedBy string `json:"unassignedBy" validate:"omitempty,max=128"`
	Notes        string `json:"notes" validate:"omitempty,max=500"`
}

// AssignmentListQuery filters the assignment ledger listing.
type AssignmentListQuery struct {
	SeatID    string `form:"seatId"`
	StudentID string `form:"studentId"`
	Status    string `form:"status"`
	Page      int    `form:"page" validate:"omitempty,min=1"`
	PageSize  int    `form:"pageSize" validate:"omitempty,min=1,max=500"`
	SortOrder string `form:"sortOrder" validate:"omitempty,oneof=asc desc ASC DESC"`
}

// ProvisionSeatsRequest creates a contiguous seat number range.
type ProvisionSeatsRequest struct {
	StartNumber int `json:"startNumber" validate:"required,gt=0,lte=2147483647"`
	Count       int `json:"count" validate:"required,gt=0,lte=1000"`
}

// BulkAssignRequest pairs students with seats in seat-number order.
type BulkAssignRequest struct {
	StudentIDs []string `json:"studentIds" validate:"required,min=1,dive,required"`
}

// BulkAssignResponse reports how many pairs were written.
type BulkAssignResponse struct {
	Requested int         `json:"requested"`
	Assigned  int         `json:"assigned"`
	Items     interface{} `json:"items"`
}
