package todo

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("todo not found")

type ToDo struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Completed bool      `json:"completed"`
	UserID    int64     `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type CreateToDoRequest struct {
	Title     string `json:"title" binding:"required"`
	Completed bool   `json:"completed"`
}

type UpdateToDoRequest struct {
	Title     string `json:"title" binding:"required"`
	Completed bool   `json:"completed"`
}

// ListFilter carries skip/limit paging for owner-scoped listing.
type ListFilter struct {
	Skip  int
	Limit int
}
