package model

import "time"

type Product struct {
	ID           string    `db:"id" json:"id"`
	OwnerID      string    `db:"owner_id" json:"ownerId"`
	Name         string    `db:"name" json:"name"`
	WarrantyDate time.Time `db:"warranty_date" json:"warrantyDate"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

type CreateProductParams struct {
	OwnerID      string
	Name         string
	WarrantyDate time.Time
}
