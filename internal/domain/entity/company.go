package entity

import "time"

// Company representa una organización: emisor (entidad propia de la consultora) o deudor (cliente).
type Company struct {
	ID        string
	Name      string
	TaxID     string // NIF / VAT ID
	Address   string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
