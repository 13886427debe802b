package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/warrantykeeper/warranty-server-go/internal/model"
)

type ProductRepository interface {
	Create(ctx context.Context, params model.CreateProductParams) (*model.Product, error)
	FindByID(ctx context.Context, id string) (*model.Product, error)
	FindByOwner(ctx context.Context, ownerID string) ([]model.Product, error)
	FindActive(ctx context.Context, asOf time.Time) ([]model.Product, error)
	UpdateName(ctx context.Context, id, name string) error
	UpdateWarrantyDate(ctx context.Context, id string, date time.Time) error
	Delete(ctx context.Context, id string) error
}

type productRepo struct {
	db *sqlx.DB
}

func NewProductRepository(db *sqlx.DB) ProductRepository {
	return &productRepo{db: db}
}

func (r *productRepo) Create(ctx context.Context, params model.CreateProductParams) (*model.Product, error) {
	var p model.Product
	err := r.db.GetContext(ctx, &p, `
		INSERT INTO products (id, owner_id, name, warranty_date)
		VALUES ($1, $2, $3, $4)
		RETURNING *
	`, uuid.NewString(), params.OwnerID, params.Name, params.WarrantyDate)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *productRepo) FindByID(ctx context.Context, id string) (*model.Product, error) {
	var p model.Product
	err := r.db.GetContext(ctx, &p, `SELECT * FROM products WHERE id = $1`, id)
	return HandleNotFound(&p, err)
}

func (r *productRepo) FindByOwner(ctx context.Context, ownerID string) ([]model.Product, error) {
	var products []model.Product
	err := r.db.SelectContext(ctx, &products, `
		SELECT * FROM products
		WHERE owner_id = $1
		ORDER BY warranty_date ASC
	`, ownerID)
	return products, err
}

// FindActive returns products across all owners whose warranty has not yet
// run out as of the given date, in warranty_date order. A product with
// warranty_date before asOf never appears again.
func (r *productRepo) FindActive(ctx context.Context, asOf time.Time) ([]model.Product, error) {
	var products []model.Product
	err := r.db.SelectContext(ctx, &products, `
		SELECT * FROM products
		WHERE warranty_date >= $1
		ORDER BY warranty_date ASC
	`, asOf)
	return products, err
}

func (r *productRepo) UpdateName(ctx context.Context, id, name string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE products SET name = $2 WHERE id = $1
	`, id, name)
	return err
}

func (r *productRepo) UpdateWarrantyDate(ctx context.Context, id string, date time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE products SET warranty_date = $2 WHERE id = $1
	`, id, date)
	return err
}

func (r *productRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	return err
}
