package model

import "time"

// Event is an entry of the event catalog.
//
// Fields:
//  ID         – events.id
//  Name       – events.name
//  Location   – events.location
//  StartDate  – events.start_date
//  EndDate    – events.end_date
//  PriceCents – events.price_cents
type Event struct {
	ID         uint64    `json:"id"`
	Name       string    `json:"name"`
	Location   string    `json:"location"`
	StartDate  time.Time `json:"start_date"`
	EndDate    time.Time `json:"end_date"`
	PriceCents uint32    `json:"price_cents"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
