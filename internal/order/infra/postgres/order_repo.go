package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bloemendal/storefront/internal/order/app"
	"github.com/bloemendal/storefront/internal/order/domain"
	"github.com/google/uuid"
)

type OrderRepo struct {
	db *sql.DB
}

func NewOrderRepo(db *sql.DB) *OrderRepo {
	return &OrderRepo{db: db}
}

func (r *OrderRepo) execTX(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	err = fn(tx)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx err: %w; rollback err: %v", err, rbErr)
		}
		return err
	}

	return tx.Commit()
}

const insertOrder = `
INSERT INTO orders (
	id, email, status, payment_status,
	subtotal, discount_amount, shipping_cost, total, promo_code,
	ship_name, ship_street, ship_house_number, ship_addition, ship_postcode, ship_city, ship_country,
	bill_name, bill_street, bill_house_number, bill_addition, bill_postcode, bill_city, bill_country,
	checkout_started_at, created_at, updated_at
) VALUES (
	$1, $2, $3, $4,
	$5, $6, $7, $8, $9,
	$10, $11, $12, $13, $14, $15, $16,
	$17, $18, $19, $20, $21, $22, $23,
	$24, $25, $25
)`

const insertOrderItem = `
INSERT INTO order_items (
	id, order_id, product_id, variant_id, product_name, size, color, sku,
	quantity, price_at_purchase, subtotal, image_url,
	is_presale, presale_expected_date
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

func (r *OrderRepo) CreateTx(ctx context.Context, order domain.Order) (domain.Order, error) {
	now := time.Now().UTC()
	order.ID = uuid.NewString()
	order.CreatedAt = now
	order.UpdatedAt = now

	err := r.execTX(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, insertOrder,
			order.ID, order.Email, order.Status, order.PaymentStatus,
			order.Subtotal, order.DiscountAmount, order.ShippingCost, order.Total, nullString(order.PromoCode),
			order.ShippingAddress.Name, order.ShippingAddress.Street, order.ShippingAddress.HouseNumber,
			order.ShippingAddress.Addition, order.ShippingAddress.Postcode, order.ShippingAddress.City,
			order.ShippingAddress.Country,
			order.BillingAddress.Name, order.BillingAddress.Street, order.BillingAddress.HouseNumber,
			order.BillingAddress.Addition, order.BillingAddress.Postcode, order.BillingAddress.City,
			order.BillingAddress.Country,
			order.CheckoutStartedAt, now,
		)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		for i := range order.Items {
			it := &order.Items[i]
			it.ID = uuid.NewString()
			it.OrderID = order.ID

			_, err := tx.ExecContext(ctx, insertOrderItem,
				it.ID, it.OrderID, it.ProductID, it.VariantID, it.ProductName, it.Size, it.Color, it.SKU,
				it.Quantity, it.PriceAtPurchase, it.Subtotal, it.ImageURL,
				it.IsPresale, it.PresaleExpectedDate,
			)
			if err != nil {
				return fmt.Errorf("insert item %d: %w", i, err)
			}
		}

		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	return order, nil
}

const selectOrder = `
SELECT id, email, status, payment_status,
	subtotal, discount_amount, shipping_cost, total, COALESCE(promo_code, ''),
	ship_name, ship_street, ship_house_number, ship_addition, ship_postcode, ship_city, ship_country,
	bill_name, bill_street, bill_house_number, bill_addition, bill_postcode, bill_city, bill_country,
	checkout_started_at, COALESCE(payment_intent_id, ''), created_at, updated_at
FROM orders WHERE id = $1`

const selectOrderItems = `
SELECT id, order_id, product_id, variant_id, product_name, size, color, sku,
	quantity, price_at_purchase, subtotal, image_url,
	is_presale, presale_expected_date
FROM order_items WHERE order_id = $1 ORDER BY created_at, id`

func (r *OrderRepo) Get(ctx context.Context, id string) (domain.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return domain.Order{}, fmt.Errorf("%w: invalid order id %q", app.ErrNotFound, id)
	}

	var o domain.Order
	row := r.db.QueryRowContext(ctx, selectOrder, id)
	err := row.Scan(
		&o.ID, &o.Email, &o.Status, &o.PaymentStatus,
		&o.Subtotal, &o.DiscountAmount, &o.ShippingCost, &o.Total, &o.PromoCode,
		&o.ShippingAddress.Name, &o.ShippingAddress.Street, &o.ShippingAddress.HouseNumber,
		&o.ShippingAddress.Addition, &o.ShippingAddress.Postcode, &o.ShippingAddress.City,
		&o.ShippingAddress.Country,
		&o.BillingAddress.Name, &o.BillingAddress.Street, &o.BillingAddress.HouseNumber,
		&o.BillingAddress.Addition, &o.BillingAddress.Postcode, &o.BillingAddress.City,
		&o.BillingAddress.Country,
		&o.CheckoutStartedAt, &o.PaymentIntentID, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, app.ErrNotFound
	}
	if err != nil {
		return domain.Order{}, fmt.Errorf("select order: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, selectOrderItems, id)
	if err != nil {
		return domain.Order{}, fmt.Errorf("select order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it domain.Item
		err := rows.Scan(
			&it.ID, &it.OrderID, &it.ProductID, &it.VariantID, &it.ProductName, &it.Size, &it.Color, &it.SKU,
			&it.Quantity, &it.PriceAtPurchase, &it.Subtotal, &it.ImageURL,
			&it.IsPresale, &it.PresaleExpectedDate,
		)
		if err != nil {
			return domain.Order{}, fmt.Errorf("scan order item: %w", err)
		}
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return domain.Order{}, fmt.Errorf("iterate order items: %w", err)
	}

	return o, nil
}

func (r *OrderRepo) SetPaymentIntent(ctx context.Context, id, intentID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET payment_intent_id = $2, updated_at = now() WHERE id = $1`,
		id, intentID)
	if err != nil {
		return fmt.Errorf("set payment intent: %w", err)
	}
	return requireRow(res)
}

func (r *OrderRepo) SetPaymentStatus(ctx context.Context, id string, status domain.PaymentStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE orders SET payment_status = $2, updated_at = now() WHERE id = $1`,
		id, status)
	if err != nil {
		return fmt.Errorf("set payment status: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return app.ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
