package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/star-events-ticketing/internal/model"
)

const promotionColumns = `id, code, description, discount_percentage, max_discount_amount, start_date, end_date,
	max_uses, current_uses, is_active, created_at, updated_at`

// PromotionRepo stores discount codes. Codes are kept upper-case.
type PromotionRepo struct {
	db *sql.DB
}

func NewPromotionRepo(db *sql.DB) *PromotionRepo {
	return &PromotionRepo{db: db}
}

// NormalizeCode is the canonical form codes are stored and looked up in.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func scanPromotion(s scanner) (*model.Promotion, error) {
	var (
		p       model.Promotion
		maxDisc decimal.NullDecimal
		maxUses sql.NullInt64
	)
	if err := s.Scan(&p.ID, &p.Code, &p.Description, &p.DiscountPercentage, &maxDisc, &p.StartDate, &p.EndDate,
		&maxUses, &p.CurrentUses, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if maxDisc.Valid {
		d := maxDisc.Decimal
		p.MaxDiscountAmount = &d
	}
	if maxUses.Valid {
		n := int(maxUses.Int64)
		p.MaxUses = &n
	}
	return &p, nil
}

func (r *PromotionRepo) queryPromotions(ctx context.Context, q string, args ...any) ([]model.Promotion, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Promotion
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// Create inserts a promotion. A code that already exists yields
// ErrDuplicateCode.
func (r *PromotionRepo) Create(ctx context.Context, p *model.Promotion) error {
	p.Code = NormalizeCode(p.Code)
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO promotions (code, description, discount_percentage, max_discount_amount, start_date, end_date,
			max_uses, current_uses, is_active, created_at, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		p.Code, p.Description, p.DiscountPercentage, nullDecimal(p.MaxDiscountAmount), p.StartDate.UTC(), p.EndDate.UTC(),
		p.MaxUses, 0, p.IsActive, now, now)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicateCode
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	p.CurrentUses = 0
	p.CreatedAt, p.UpdatedAt = now, now
	return nil
}

func (r *PromotionRepo) GetByID(ctx context.Context, id uint64) (*model.Promotion, error) {
	p, err := scanPromotion(r.db.QueryRowContext(ctx, "SELECT "+promotionColumns+" FROM promotions WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPromotionNotFound
	}
	return p, err
}

// GetByCodeTx looks a code up inside the caller's transaction.
func (r *PromotionRepo) GetByCodeTx(ctx context.Context, tx *sql.Tx, code string) (*model.Promotion, error) {
	return r.getByCode(ctx, tx, code)
}

// GetByCode looks a code up outside a transaction, for booking previews.
func (r *PromotionRepo) GetByCode(ctx context.Context, code string) (*model.Promotion, error) {
	return r.getByCode(ctx, r.db, code)
}

func (r *PromotionRepo) getByCode(ctx context.Context, q querier, code string) (*model.Promotion, error) {
	p, err := scanPromotion(q.QueryRowContext(ctx,
		"SELECT "+promotionColumns+" FROM promotions WHERE code = ?", NormalizeCode(code)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPromotionNotFound
	}
	return p, err
}

// List returns every promotion, newest first.
func (r *PromotionRepo) List(ctx context.Context) ([]model.Promotion, error) {
	return r.queryPromotions(ctx, "SELECT "+promotionColumns+" FROM promotions ORDER BY created_at DESC, id DESC")
}

// ListActive returns the promotions usable at now. The usage cap is
// checked in Go so the query stays portable.
func (r *PromotionRepo) ListActive(ctx context.Context, now time.Time) ([]model.Promotion, error) {
	all, err := r.queryPromotions(ctx,
		"SELECT "+promotionColumns+" FROM promotions WHERE is_active = 1 AND start_date <= ? AND end_date >= ? ORDER BY end_date, id",
		now.UTC(), now.UTC())
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, p := range all {
		if p.Usable(now) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Update overwrites the editable fields. CurrentUses is never touched here,
// and max_uses cannot drop below the uses already taken: that returns
// ErrConflict.
func (r *PromotionRepo) Update(ctx context.Context, p *model.Promotion) error {
	p.Code = NormalizeCode(p.Code)
	res, err := r.db.ExecContext(ctx,
		`UPDATE promotions SET code = ?, description = ?, discount_percentage = ?, max_discount_amount = ?,
			start_date = ?, end_date = ?, max_uses = ?, is_active = ?, updated_at = ?
		 WHERE id = ? AND (? IS NULL OR current_uses <= ?)`,
		p.Code, p.Description, p.DiscountPercentage, nullDecimal(p.MaxDiscountAmount),
		p.StartDate.UTC(), p.EndDate.UTC(), p.MaxUses, p.IsActive, time.Now().UTC(), p.ID,
		p.MaxUses, p.MaxUses)
	if isDuplicate(err) {
		return ErrDuplicateCode
	}
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	// zero rows: either the id is unknown or the cap is below current_uses
	var exists int
	err = r.db.QueryRowContext(ctx, "SELECT 1 FROM promotions WHERE id = ?", p.ID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrPromotionNotFound
	}
	if err != nil {
		return err
	}
	return ErrConflict
}

// Delete removes a promotion. Bookings keep the code they were sold with.
func (r *PromotionRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM promotions WHERE id = ?", id)
	return affectedOr(res, err, ErrPromotionNotFound)
}

// ClaimUseTx increments current_uses only while the cap has not been
// reached. It returns false when the last use was taken concurrently.
func (r *PromotionRepo) ClaimUseTx(ctx context.Context, tx *sql.Tx, id uint64) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`UPDATE promotions SET current_uses = current_uses + 1, updated_at = ?
		 WHERE id = ? AND is_active = 1 AND (max_uses IS NULL OR current_uses < max_uses)`,
		time.Now().UTC(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}
