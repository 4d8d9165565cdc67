package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository stores providers and treatment prices in the relational
// database.
type Repository struct {
	pool dbtx
}

// NewRepository initializes a repo backed by pgxpool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("catalog: pgx pool required")
	}
	return &Repository{pool: pool}
}

func newRepositoryWithDB(db dbtx) *Repository {
	return &Repository{pool: db}
}

// CreateProvider inserts a provider profile owned by the given user.
func (r *Repository) CreateProvider(ctx context.Context, userID uuid.UUID, req *CreateProviderRequest) (*Provider, error) {
	p := &Provider{
		ID:            uuid.New(),
		UserID:        userID,
		Name:          req.Name,
		Description:   req.Description,
		City:          req.City,
		Country:       req.Country,
		Phone:         req.Phone,
		Website:       req.Website,
		LicenseNumber: req.LicenseNumber,
	}
	query := `
		INSERT INTO providers (id, user_id, name, description, city, country, phone, website, license_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`
	if err := r.pool.QueryRow(ctx, query,
		p.ID, p.UserID, p.Name, p.Description, p.City, p.Country, p.Phone, p.Website, p.LicenseNumber,
	).Scan(&p.CreatedAt); err != nil {
		return nil, fmt.Errorf("catalog: insert provider: %w", err)
	}
	return p, nil
}

// GetProvider fetches a provider by id.
func (r *Repository) GetProvider(ctx context.Context, id uuid.UUID) (*Provider, error) {
	query := `
		SELECT id, user_id, name, description, city, country, phone, website, license_number, verified, created_at
		FROM providers
		WHERE id = $1
	`
	var p Provider
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.UserID, &p.Name, &p.Description, &p.City, &p.Country,
		&p.Phone, &p.Website, &p.LicenseNumber, &p.Verified, &p.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProviderNotFound
		}
		return nil, fmt.Errorf("catalog: select provider: %w", err)
	}
	return &p, nil
}

// ListProviders returns providers, optionally filtered by country and a
// case-insensitive name/treatment search.
func (r *Repository) ListProviders(ctx context.Context, country, search string) ([]Provider, error) {
	query := `
		SELECT DISTINCT p.id, p.user_id, p.name, p.description, p.city, p.country,
		       p.phone, p.website, p.license_number, p.verified, p.created_at
		FROM providers p
		LEFT JOIN treatment_prices tp ON tp.provider_id = p.id
		WHERE ($1 = '' OR lower(p.country) = lower($1))
		  AND ($2 = '' OR p.name ILIKE '%' || $2 || '%' OR tp.treatment_name ILIKE '%' || $2 || '%')
		ORDER BY p.name
	`
	rows, err := r.pool.Query(ctx, query, strings.TrimSpace(country), strings.TrimSpace(search))
	if err != nil {
		return nil, fmt.Errorf("catalog: list providers: %w", err)
	}
	defer rows.Close()

	var out []Provider
	for rows.Next() {
		var p Provider
		if err := rows.Scan(
			&p.ID, &p.UserID, &p.Name, &p.Description, &p.City, &p.Country,
			&p.Phone, &p.Website, &p.LicenseNumber, &p.Verified, &p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("catalog: scan provider: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetTreatmentPrice fetches a priced offering by id.
func (r *Repository) GetTreatmentPrice(ctx context.Context, id uuid.UUID) (*TreatmentPrice, error) {
	query := `
		SELECT id, provider_id, treatment_name, amount_cents, currency, description, version, updated_at
		FROM treatment_prices
		WHERE id = $1
	`
	var tp TreatmentPrice
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&tp.ID, &tp.ProviderID, &tp.TreatmentName, &tp.AmountCents,
		&tp.Currency, &tp.Description, &tp.Version, &tp.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPriceNotFound
		}
		return nil, fmt.Errorf("catalog: select price: %w", err)
	}
	return &tp, nil
}

// ListPrices returns all priced offerings for a provider.
func (r *Repository) ListPrices(ctx context.Context, providerID uuid.UUID) ([]TreatmentPrice, error) {
	query := `
		SELECT id, provider_id, treatment_name, amount_cents, currency, description, version, updated_at
		FROM treatment_prices
		WHERE provider_id = $1
		ORDER BY treatment_name
	`
	rows, err := r.pool.Query(ctx, query, providerID)
	if err != nil {
		return nil, fmt.Errorf("catalog: list prices: %w", err)
	}
	defer rows.Close()

	var out []TreatmentPrice
	for rows.Next() {
		var tp TreatmentPrice
		if err := rows.Scan(
			&tp.ID, &tp.ProviderID, &tp.TreatmentName, &tp.AmountCents,
			&tp.Currency, &tp.Description, &tp.Version, &tp.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("catalog: scan price: %w", err)
		}
		out = append(out, tp)
	}
	return out, rows.Err()
}

// CreatePrice inserts a new priced offering at version 1.
func (r *Repository) CreatePrice(ctx context.Context, providerID uuid.UUID, req *UpsertPriceRequest) (*TreatmentPrice, error) {
	tp := &TreatmentPrice{
		ID:            uuid.New(),
		ProviderID:    providerID,
		TreatmentName: req.TreatmentName,
		AmountCents:   req.AmountCents,
		Currency:      strings.ToUpper(req.Currency),
		Description:   req.Description,
		Version:       1,
	}
	query := `
		INSERT INTO treatment_prices (id, provider_id, treatment_name, amount_cents, currency, description, version)
		VALUES ($1, $2, $3, $4, $5, $6, 1)
		RETURNING updated_at
	`
	if err := r.pool.QueryRow(ctx, query,
		tp.ID, tp.ProviderID, tp.TreatmentName, tp.AmountCents, tp.Currency, tp.Description,
	).Scan(&tp.UpdatedAt); err != nil {
		return nil, fmt.Errorf("catalog: insert price: %w", err)
	}
	return tp, nil
}

// UpdatePrice reprices an offering and bumps its version so outstanding
// payment intents against the old amount are invalidated.
func (r *Repository) UpdatePrice(ctx context.Context, id uuid.UUID, req *UpsertPriceRequest) (*TreatmentPrice, error) {
	query := `
		UPDATE treatment_prices
		SET treatment_name = $2, amount_cents = $3, currency = $4, description = $5,
		    version = version + 1, updated_at = now()
		WHERE id = $1
		RETURNING id, provider_id, treatment_name, amount_cents, currency, description, version, updated_at
	`
	var tp TreatmentPrice
	if err := r.pool.QueryRow(ctx, query,
		id, req.TreatmentName, req.AmountCents, strings.ToUpper(req.Currency), req.Description,
	).Scan(
		&tp.ID, &tp.ProviderID, &tp.TreatmentName, &tp.AmountCents,
		&tp.Currency, &tp.Description, &tp.Version, &tp.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPriceNotFound
		}
		return nil, fmt.Errorf("catalog: update price: %w", err)
	}
	return &tp, nil
}
