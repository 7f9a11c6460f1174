package insurance

import (
	"time"

	"github.com/google/uuid"
)

// Card maps to the health_insurance table.
type Card struct {
	ID           uuid.UUID `db:"id" json:"id"`
	PatientID    uuid.UUID `db:"patient_id" json:"patient_id"`
	HolderName   string    `db:"holder_name" json:"holder_name"`
	CardNumber   string    `db:"card_number" json:"card_number"`
	Provider     string    `db:"provider" json:"provider"`
	ValidFrom    time.Time `db:"valid_from" json:"valid_from"`
	ValidTo      time.Time `db:"valid_to" json:"valid_to"`
	CardImageURL *string   `db:"card_image_url" json:"card_image_url,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// CreateRequest is the payload for registering a card.
type CreateRequest struct {
	PatientID    uuid.UUID `json:"patient_id" validate:"required"`
	HolderName   string    `json:"holder_name" validate:"required,max=200"`
	CardNumber   string    `json:"card_number" validate:"required,alphanum,min=10,max=20"`
	Provider     string    `json:"provider" validate:"required"`
	ValidFrom    string    `json:"valid_from" validate:"required"`
	ValidTo      string    `json:"valid_to" validate:"required"`
	CardImageURL *string   `json:"card_image_url" validate:"omitempty,url"`
}
