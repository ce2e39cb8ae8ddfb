package models

import (
	"fmt"
	"time"
)

// AvailabilityStatus is the closed set of driver availability states.
type AvailabilityStatus string

const (
	DriverAvailable    AvailabilityStatus = "available"
	DriverNotAvailable AvailabilityStatus = "not_available"
	DriverResetting    AvailabilityStatus = "resetting"
	DriverMaintenance  AvailabilityStatus = "maintenance"
)

// ParseAvailabilityStatus validates a raw availability value.
func ParseAvailabilityStatus(raw string) (AvailabilityStatus, error) {
	switch s := AvailabilityStatus(raw); s {
	case DriverAvailable, DriverNotAvailable, DriverResetting, DriverMaintenance:
		return s, nil
	}
	return "", fmt.Errorf("unknown availability status %q", raw)
}

// Driver is a dispatcher-provisioned driver record. AccountID starts as a
// placeholder; AccountLinked flips when the invited person signs up with the
// matching email. Drivers referenced by historical loads are deactivated,
// never deleted.
type Driver struct {
	ID                 string             `db:"id" json:"id"`
	AccountID          string             `db:"account_id" json:"account_id"`
	AccountLinked      bool               `db:"account_linked" json:"account_linked"`
	InviteEmail        string             `db:"invite_email" json:"invite_email"`
	Name               string             `db:"name" json:"name"`
	TruckType          TrailerType        `db:"truck_type" json:"truck_type"`
	TruckNumber        string             `db:"truck_number" json:"truck_number"`
	AvailabilityStatus AvailabilityStatus `db:"availability_status" json:"availability_status"`
	AvailableAt        *time.Time         `db:"available_at" json:"available_at,omitempty"`
	Active             bool               `db:"active" json:"active"`
	CreatedAt          time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time          `db:"updated_at" json:"updated_at"`
}

// NewDriver provisions a driver with a placeholder account reference.
func NewDriver(name, inviteEmail string, truckType TrailerType, truckNumber string) *Driver {
	now := GetCurrentTime()

	return &Driver{
		ID:                 GenerateID("drv"),
		AccountID:          GenerateID("tmp"),
		AccountLinked:      false,
		InviteEmail:        inviteEmail,
		Name:               name,
		TruckType:          truckType,
		TruckNumber:        truckNumber,
		AvailabilityStatus: DriverAvailable,
		Active:             true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}
