package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bloemendal/storefront/internal/recovery/app"
)

type VariantRepo struct {
	db *sql.DB
}

func NewVariantRepo(db *sql.DB) *VariantRepo {
	return &VariantRepo{db: db}
}

const selectVariant = `
SELECT id, stock, color, color_hex, COALESCE(image_url, ''),
	is_presale, presale_expected_date
FROM product_variants WHERE id = $1`

func (r *VariantRepo) Get(ctx context.Context, variantID string) (app.Variant, error) {
	var v app.Variant
	row := r.db.QueryRowContext(ctx, selectVariant, variantID)
	err := row.Scan(&v.ID, &v.Stock, &v.Color, &v.ColorHex, &v.Image,
		&v.IsPresale, &v.PresaleExpectedDate)
	if errors.Is(err, sql.ErrNoRows) {
		return app.Variant{}, fmt.Errorf("variant %s not found", variantID)
	}
	if err != nil {
		return app.Variant{}, fmt.Errorf("select variant: %w", err)
	}
	return v, nil
}
