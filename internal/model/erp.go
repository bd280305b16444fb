// Package model holds the domain entities: establishments (ERPs), their
// accessibility records and user subscriptions, plus the typed accessor table
// that lets the merge engine and the exporters iterate accessibility fields
// generically without reflection.
package model

import "time"

// Source identifies where an establishment record came from.
type Source string

const (
	// SourcePublic is a record entered directly by a citizen contributor.
	SourcePublic Source = "public"
	// SourceAdmin is a record entered through the back office.
	SourceAdmin Source = "admin"

	SourceServicePublic Source = "service_public"
	SourceGendarmerie   Source = "gendarmerie"
	SourceSirene        Source = "sirene"
	SourceVaccination   Source = "centres_vaccination"
	SourceAPIEntreprise Source = "api_entreprise"
)

// humanSources are direct human entry rather than bulk import.
var humanSources = map[Source]bool{
	SourcePublic: true,
	SourceAdmin:  true,
}

// Erp is an establishment open to the public (Établissement Recevant du
// Public): identity, location and provenance. Accessibility data lives in the
// one-to-one Accessibilite record.
type Erp struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
	Nom  string `json:"nom"`
	// NomNormalise is the case- and accent-folded name, maintained on save
	// and used by the duplicate scan to group candidates.
	NomNormalise string `json:"nom_normalise"`
	Activite     string `json:"activite"`

	Numero     string  `json:"numero"`
	Voie       string  `json:"voie"`
	Commune    string  `json:"commune"`
	CodePostal string  `json:"code_postal"`
	CodeInsee  string  `json:"code_insee"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	// Geohash is the precision-7 cell of the location, maintained on save.
	Geohash string `json:"geohash"`

	Source   Source `json:"source"`
	SourceID string `json:"source_id,omitempty"`
	UserID   string `json:"user_id,omitempty"`
	// BusinessOwner marks a record created by the establishment's owner.
	BusinessOwner bool `json:"was_created_by_business_owner"`
	// Administration marks a record created by a public administration.
	Administration bool `json:"was_created_by_administration"`

	Published         bool `json:"published"`
	PermanentlyClosed bool `json:"permanently_closed"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsHumanSource reports whether the record was entered by a human rather than
// imported from a bulk dataset.
func (e *Erp) IsHumanSource() bool {
	return humanSources[e.Source]
}

// Subscription is a user watching an establishment for changes.
type Subscription struct {
	ID        string    `json:"id"`
	ErpID     string    `json:"erp_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
