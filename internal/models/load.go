package models

import (
	"fmt"
	"time"
)

// LoadStatus is the closed set of lifecycle states for a load. Values
// outside this set are rejected at the store boundary.
type LoadStatus string

const (
	LoadStatusPending           LoadStatus = "pending"
	LoadStatusAssigned          LoadStatus = "assigned"
	LoadStatusArrived           LoadStatus = "arrived"
	LoadStatusLoaded            LoadStatus = "loaded"
	LoadStatusInTransit         LoadStatus = "in_transit"
	LoadStatusArrivedAtDelivery LoadStatus = "arrived_at_delivery"
	LoadStatusDelivered         LoadStatus = "delivered"
)

// statusRank orders the lifecycle. Status only ever moves to a higher rank.
var statusRank = map[LoadStatus]int{
	LoadStatusPending:           0,
	LoadStatusAssigned:          1,
	LoadStatusArrived:           2,
	LoadStatusLoaded:            3,
	LoadStatusInTransit:         4,
	LoadStatusArrivedAtDelivery: 5,
	LoadStatusDelivered:         6,
}

// ParseLoadStatus validates a raw status value from the store or the wire.
func ParseLoadStatus(raw string) (LoadStatus, error) {
	s := LoadStatus(raw)

	if _, ok := statusRank[s]; !ok {
		return "", fmt.Errorf("unknown load status %q", raw)
	}

	return s, nil
}

// Rank returns the position of the status in the lifecycle ordering.
func (s LoadStatus) Rank() int {
	return statusRank[s]
}

// Before reports whether s precedes other in the lifecycle ordering.
func (s LoadStatus) Before(other LoadStatus) bool {
	return statusRank[s] < statusRank[other]
}

// Terminal reports whether the status is the end of the lifecycle.
func (s LoadStatus) Terminal() bool {
	return s == LoadStatusDelivered
}

// Transition names a guarded status change a driver or dispatcher can
// request on a load.
type Transition string

const (
	TransitionAssign           Transition = "assign"
	TransitionArrive           Transition = "arrive"
	TransitionLoad             Transition = "load"
	TransitionDepart           Transition = "depart"
	TransitionArriveAtDelivery Transition = "arrive_at_delivery"
	TransitionDeliver          Transition = "deliver"
)

// TransitionSpec describes the legal predecessors, target state, and
// timestamp column of one transition.
type TransitionSpec struct {
	From            []LoadStatus
	To              LoadStatus
	TimestampColumn string
}

// transitionCatalog is the single source of truth for legal transitions.
// Deliver lists two predecessors: the arrived-at-delivery stage is optional
// and drivers may mark a load delivered straight from in-transit.
var transitionCatalog = map[Transition]TransitionSpec{
	TransitionAssign: {
		From:            []LoadStatus{LoadStatusPending},
		To:              LoadStatusAssigned,
		TimestampColumn: "assigned_at",
	},
	TransitionArrive: {
		From:            []LoadStatus{LoadStatusAssigned},
		To:              LoadStatusArrived,
		TimestampColumn: "arrived_at",
	},
	TransitionLoad: {
		From:            []LoadStatus{LoadStatusArrived},
		To:              LoadStatusLoaded,
		TimestampColumn: "loaded_at",
	},
	TransitionDepart: {
		From:            []LoadStatus{LoadStatusLoaded},
		To:              LoadStatusInTransit,
		TimestampColumn: "in_transit_at",
	},
	TransitionArriveAtDelivery: {
		From:            []LoadStatus{LoadStatusInTransit},
		To:              LoadStatusArrivedAtDelivery,
		TimestampColumn: "arrived_at_delivery_at",
	},
	TransitionDeliver: {
		From:            []LoadStatus{LoadStatusInTransit, LoadStatusArrivedAtDelivery},
		To:              LoadStatusDelivered,
		TimestampColumn: "delivered_at",
	},
}

// ParseTransition validates a raw transition name.
func ParseTransition(raw string) (Transition, error) {
	t := Transition(raw)

	if _, ok := transitionCatalog[t]; !ok {
		return "", fmt.Errorf("unknown transition %q", raw)
	}

	return t, nil
}

// Spec returns the catalog entry for the transition.
func (t Transition) Spec() TransitionSpec {
	return transitionCatalog[t]
}

// LegalFrom reports whether the transition may be applied to a load
// currently in the given status.
func (t Transition) LegalFrom(status LoadStatus) bool {
	for _, from := range transitionCatalog[t].From {
		if from == status {
			return true
		}
	}
	return false
}

// DriverTransitions are the transitions performed by the assigned driver,
// in lifecycle order.
var DriverTransitions = []Transition{
	TransitionArrive,
	TransitionLoad,
	TransitionDepart,
	TransitionArriveAtDelivery,
	TransitionDeliver,
}

// TrailerType is the closed set of supported trailer types.
type TrailerType string

const (
	TrailerFlatBed   TrailerType = "Flat Bed"
	TrailerStepDeck  TrailerType = "Step Deck"
	TrailerMinifloat TrailerType = "Minifloat"
	TrailerOneTon    TrailerType = "1Ton"
)

// ParseTrailerType validates a raw trailer type.
func ParseTrailerType(raw string) (TrailerType, error) {
	switch t := TrailerType(raw); t {
	case TrailerFlatBed, TrailerStepDeck, TrailerMinifloat, TrailerOneTon:
		return t, nil
	}
	return "", fmt.Errorf("unknown trailer type %q", raw)
}

// MaxWeightLbs is the practical ceiling for a single load.
const MaxWeightLbs = 100000

// PaymentStatus values for the optional payment side channel
const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
	PaymentStatusFailed  = "failed"
)

// Load is the central entity: one shipment moving through the lifecycle.
type Load struct {
	ID                  string      `db:"id" json:"id"`
	ClientID            string      `db:"client_id" json:"client_id"`
	OriginAddress       string      `db:"origin_address" json:"origin_address"`
	DestinationAddress  string      `db:"destination_address" json:"destination_address"`
	TrailerType         TrailerType `db:"trailer_type" json:"trailer_type"`
	WeightLbs           int         `db:"weight_lbs" json:"weight_lbs"`
	PickupDate          time.Time   `db:"pickup_date" json:"pickup_date"`
	PickupTime          *string     `db:"pickup_time" json:"pickup_time,omitempty"`
	DeliveryDate        *time.Time  `db:"delivery_date" json:"delivery_date,omitempty"`
	DeliveryTime        *string     `db:"delivery_time" json:"delivery_time,omitempty"`
	DeliveryASAP        bool        `db:"delivery_asap" json:"delivery_asap"`
	Status              LoadStatus  `db:"status" json:"status"`

	// Transition timestamps, each set exactly once when its transition
	// commits and never cleared.
	AssignedAt          *time.Time `db:"assigned_at" json:"assigned_at,omitempty"`
	ArrivedAt           *time.Time `db:"arrived_at" json:"arrived_at,omitempty"`
	LoadedAt            *time.Time `db:"loaded_at" json:"loaded_at,omitempty"`
	InTransitAt         *time.Time `db:"in_transit_at" json:"in_transit_at,omitempty"`
	ArrivedAtDeliveryAt *time.Time `db:"arrived_at_delivery_at" json:"arrived_at_delivery_at,omitempty"`
	DeliveredAt         *time.Time `db:"delivered_at" json:"delivered_at,omitempty"`

	// Assignment fields, written together in one update at assign time.
	// DriverName is a display snapshot, not a live reference.
	DriverID    *string    `db:"driver_id" json:"driver_id,omitempty"`
	DriverName  *string    `db:"driver_name" json:"driver_name,omitempty"`
	TruckNumber *string    `db:"truck_number" json:"truck_number,omitempty"`
	PriceCents  *int64     `db:"price_cents" json:"price_cents,omitempty"`
	ETA         *time.Time `db:"eta" json:"eta,omitempty"`

	// Delivery proof. A Delivered load with no signature is a degraded but
	// valid terminal state.
	ClientSignatureURL *string    `db:"client_signature_url" json:"client_signature_url,omitempty"`
	SignatureTimestamp *time.Time `db:"signature_timestamp" json:"signature_timestamp,omitempty"`

	// Payment side channel, meaningful only when PaymentRequired.
	PaymentRequired bool       `db:"payment_required" json:"payment_required"`
	PaymentStatus   string     `db:"payment_status" json:"payment_status"`
	PaymentIntentID *string    `db:"payment_intent_id" json:"payment_intent_id,omitempty"`
	PaidAt          *time.Time `db:"paid_at" json:"paid_at,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// NewLoad creates a pending load for the given client.
func NewLoad(clientID, origin, destination string, trailer TrailerType, weightLbs int, pickupDate time.Time) *Load {
	now := GetCurrentTime()

	return &Load{
		ID:                 GenerateID("lod"),
		ClientID:           clientID,
		OriginAddress:      origin,
		DestinationAddress: destination,
		TrailerType:        trailer,
		WeightLbs:          weightLbs,
		PickupDate:         pickupDate,
		Status:             LoadStatusPending,
		PaymentStatus:      PaymentStatusPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}
