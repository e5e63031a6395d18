package batch

import "github.com/google/uuid"

const (
	OpDownload = "download"
	OpDelete   = "delete"
)

type RunRequest struct {
	IDs []uuid.UUID `json:"ids" validate:"required,min=1,dive,required"`
	Op  string      `json:"op" validate:"required,oneof=download delete"`
}

type ItemFailure struct {
	ID   uuid.UUID `json:"id"`
	Code string    `json:"code"`
}

type RunResponse struct {
	Succeeded []uuid.UUID   `json:"succeeded"`
	Failed    []ItemFailure `json:"failed"`
	Total     int           `json:"total"`
}
