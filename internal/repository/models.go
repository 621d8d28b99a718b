package repository

import (
	"fmt"
	"time"
)

// Cents is a monetary amount in hundredths of the currency unit
type Cents int64

// String formats the amount with two decimals, e.g. 37.50
func (c Cents) String() string {
	sign := ""
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}

// User represents an account allowed to log in
type User struct {
	ID           int64
	Username     string
	PasswordHash string `json:"-"`
	Role         string
	IsActive     bool
	CreatedAt    time.Time
}

// Animal represents an animal record
type Animal struct {
	ID           int64
	TagID        string
	Name         string
	Species      string
	Sex          string
	DOB          *time.Time
	EnclosureID  *int64
	HealthStatus string
	LastCheckup  *time.Time
	Notes        string
	CreatedAt    time.Time

	// Populated by List only
	EnclosureName *string
}

// Enclosure represents a habitat animals can be housed in
type Enclosure struct {
	ID        int64
	Name      string
	Type      string
	Capacity  int
	Location  string
	Notes     string
	CreatedAt time.Time

	// Populated by List only
	AnimalCount int
}

// FeedSchedule represents a recurring feeding for one animal
type FeedSchedule struct {
	ID           int64
	AnimalID     int64
	FeedItem     string
	Quantity     string
	ScheduleTime string // HH:MM
	Frequency    string
	CreatedAt    time.Time

	// Populated by List only
	AnimalName    string
	AnimalSpecies string
}

// TicketType represents a sellable admission category
type TicketType struct {
	ID        int64
	Name      string
	Price     Cents
	Active    bool
	CreatedAt time.Time
}

// Ticket represents a completed sale. Prices are snapshots taken at sale
// time and never follow later changes to the ticket type.
type Ticket struct {
	ID           int64
	TicketTypeID int64
	BuyerName    string
	Quantity     int
	UnitPrice    Cents
	TotalPrice   Cents
	IssuedBy     int64
	IssuedAt     time.Time

	// Populated by List only
	TicketTypeName string
}

// SalesSummary aggregates tickets over a time window
type SalesSummary struct {
	Count   int64
	Revenue Cents
}

// AuditRecord is an immutable entry describing a completed mutation
type AuditRecord struct {
	ID        int64
	UserID    int64
	Action    string
	Entity    string
	EntityID  *int64
	Details   *string
	CreatedAt time.Time

	// Populated by Recent only; empty when the actor was deleted
	Username string
}
