package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Client is a purchasing customer. ConsultantID records the first consultant
// the client was associated with and never changes afterwards.
type Client struct {
	ID                snowflake.ID  `json:"id" gorm:"primaryKey"`
	ConsultantID      *snowflake.ID `json:"consultant_id,omitempty" gorm:"index"`
	Name              string        `json:"name" gorm:"type:text;not null"`
	Email             string        `json:"email" gorm:"type:varchar(320);not null;uniqueIndex"`
	Phone             string        `json:"phone,omitempty" gorm:"type:varchar(32)"`
	FirstAssociatedAt *time.Time    `json:"first_associated_at,omitempty" gorm:"index"`
	CreatedAt         time.Time     `json:"created_at" gorm:"not null"`
	UpdatedAt         time.Time     `json:"updated_at" gorm:"not null"`
}

func (Client) TableName() string { return "clients" }

var ErrInvalidEmail = errors.New("invalid_client_email")

type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}
