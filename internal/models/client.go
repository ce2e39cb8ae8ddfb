package models

import (
	"time"
)

// Client is a dispatcher-provisioned client record with the same
// placeholder-then-linked account lifecycle as Driver.
type Client struct {
	ID            string    `db:"id" json:"id"`
	AccountID     string    `db:"account_id" json:"account_id"`
	AccountLinked bool      `db:"account_linked" json:"account_linked"`
	InviteEmail   string    `db:"invite_email" json:"invite_email"`
	Name          string    `db:"name" json:"name"`
	CompanyName   string    `db:"company_name" json:"company_name"`
	Phone         string    `db:"phone" json:"phone"`
	Email         string    `db:"email" json:"email"`
	Active        bool      `db:"active" json:"active"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// NewClient provisions a client with a placeholder account reference.
func NewClient(name, companyName, phone, email string) *Client {
	now := GetCurrentTime()

	return &Client{
		ID:            GenerateID("cli"),
		AccountID:     GenerateID("tmp"),
		AccountLinked: false,
		InviteEmail:   email,
		Name:          name,
		CompanyName:   companyName,
		Phone:         phone,
		Email:         email,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
