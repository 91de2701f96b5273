// Package postgres persists listings and their snapshots in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"hearth/internal/listing/models"
	id "hearth/pkg/domain"
	"hearth/pkg/platform/sentinel"
	"hearth/pkg/platform/tx"
)

//go:embed schema.sql
var schema string

// Postgres error codes the store maps to sentinels.
const (
	pqUniqueViolation      = "23505"
	pqSerializationFailure = "40001"
)

// Store implements the listing and version stores on one database. Calls made
// with a context carrying a transaction (see RunInTx) run inside it.
type Store struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the tables if they do not exist.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply listing schema: %w", err)
	}
	return nil
}

type listingRow struct {
	ID               uuid.UUID     `db:"id"`
	OwnerID          uuid.UUID     `db:"owner_id"`
	Status           string        `db:"status"`
	CurrentVersion   int           `db:"current_version"`
	PublishedVersion sql.NullInt32 `db:"published_version"`
	Revision         int64         `db:"revision"`
	CreatedAt        time.Time     `db:"created_at"`
	UpdatedAt        time.Time     `db:"updated_at"`
}

const listingColumns = `id, owner_id, status, current_version, published_version, revision, created_at, updated_at`

func (s *Store) FindByID(ctx context.Context, listingID id.ListingID) (*models.Listing, error) {
	var row listingRow
	err := tx.Pick(ctx, s.db).GetContext(ctx, &row,
		`SELECT `+listingColumns+` FROM listings WHERE id = $1`, uuid.UUID(listingID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find listing: %w", err)
	}
	return row.toModel()
}

func (s *Store) Create(ctx context.Context, l *models.Listing) error {
	_, err := tx.Pick(ctx, s.db).ExecContext(ctx, `
		INSERT INTO listings (`+listingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		uuid.UUID(l.ID), uuid.UUID(l.OwnerID), l.Status.String(), l.CurrentVersion,
		nullVersion(l.PublishedVersion), l.Revision, l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return mapWriteError("create listing", err)
	}
	return nil
}

// Update writes l only if the stored revision still equals expectedRevision.
func (s *Store) Update(ctx context.Context, l *models.Listing, expectedRevision int64) error {
	next := expectedRevision + 1
	res, err := tx.Pick(ctx, s.db).ExecContext(ctx, `
		UPDATE listings SET
			status = $2,
			current_version = $3,
			published_version = $4,
			revision = $5,
			updated_at = $6
		WHERE id = $1 AND revision = $7
	`,
		uuid.UUID(l.ID), l.Status.String(), l.CurrentVersion, nullVersion(l.PublishedVersion),
		next, l.UpdatedAt, expectedRevision,
	)
	if err != nil {
		return mapWriteError("update listing", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update listing: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	l.Revision = next
	return nil
}

func (s *Store) ListByOwner(ctx context.Context, ownerID id.UserID) ([]*models.Listing, error) {
	var rows []listingRow
	err := tx.Pick(ctx, s.db).SelectContext(ctx, &rows, `
		SELECT `+listingColumns+` FROM listings
		WHERE owner_id = $1
		ORDER BY updated_at DESC, id
	`, uuid.UUID(ownerID))
	if err != nil {
		return nil, fmt.Errorf("list listings by owner: %w", err)
	}
	out := make([]*models.Listing, 0, len(rows))
	for _, row := range rows {
		l, err := row.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

func (r listingRow) toModel() (*models.Listing, error) {
	status, err := models.ParseStatus(r.Status)
	if err != nil {
		return nil, err
	}
	l := &models.Listing{
		ID:             id.ListingID(r.ID),
		OwnerID:        id.UserID(r.OwnerID),
		Status:         status,
		CurrentVersion: r.CurrentVersion,
		Revision:       r.Revision,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if r.PublishedVersion.Valid {
		pv := int(r.PublishedVersion.Int32)
		l.PublishedVersion = &pv
	}
	return l, nil
}

func nullVersion(v *int) sql.NullInt32 {
	if v == nil {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: int32(*v), Valid: true}
}

func mapWriteError(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation, pqSerializationFailure:
			return sentinel.ErrConflict
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// -----------------------------------------------------------------------------
// Snapshots
// -----------------------------------------------------------------------------

type versionRow struct {
	ID           uuid.UUID           `db:"id"`
	ListingID    uuid.UUID           `db:"listing_id"`
	VersionNo    int                 `db:"version_no"`
	Title        string              `db:"title"`
	Description  string              `db:"description"`
	PriceAmount  decimal.NullDecimal `db:"price_amount"`
	CurrencyCode sql.NullString      `db:"currency_code"`
	Country      sql.NullString      `db:"country"`
	City         sql.NullString      `db:"city"`
	Street       sql.NullString      `db:"street"`
	PostalCode   sql.NullString      `db:"postal_code"`
	Area         decimal.NullDecimal `db:"area"`
	Rooms        sql.NullInt32       `db:"rooms"`
	Floor        sql.NullInt32       `db:"floor"`
	PropertyType sql.NullString      `db:"property_type"`
	MediaRefs    pq.StringArray      `db:"media_refs"`
	CreatedAt    time.Time           `db:"created_at"`
}

const versionColumns = `id, listing_id, version_no, title, description, price_amount, currency_code,
	country, city, street, postal_code, area, rooms, floor, property_type, media_refs, created_at`

func (s *Store) Append(ctx context.Context, v *models.Version) error {
	row := toVersionRow(v)
	_, err := sqlx.NamedExecContext(ctx, tx.Pick(ctx, s.db), `
		INSERT INTO listing_versions (`+versionColumns+`)
		VALUES (:id, :listing_id, :version_no, :title, :description, :price_amount, :currency_code,
			:country, :city, :street, :postal_code, :area, :rooms, :floor, :property_type, :media_refs, :created_at)
	`, row)
	if err != nil {
		return mapWriteError("append listing version", err)
	}
	return nil
}

func (s *Store) FindByListingAndVersion(ctx context.Context, listingID id.ListingID, versionNo int) (*models.Version, error) {
	var row versionRow
	err := tx.Pick(ctx, s.db).GetContext(ctx, &row,
		`SELECT `+versionColumns+` FROM listing_versions WHERE listing_id = $1 AND version_no = $2`,
		uuid.UUID(listingID), versionNo)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find listing version: %w", err)
	}
	return row.toModel(), nil
}

func toVersionRow(v *models.Version) versionRow {
	c := v.Content
	row := versionRow{
		ID:           uuid.UUID(v.ID),
		ListingID:    uuid.UUID(v.ListingID),
		VersionNo:    v.VersionNo,
		Title:        c.Title,
		Description:  c.Description,
		CurrencyCode: nullString(c.Price.CurrencyCode),
		PropertyType: nullString(string(c.PropertyType)),
		MediaRefs:    pq.StringArray(append([]string{}, c.MediaRefs...)),
		CreatedAt:    v.CreatedAt,
	}
	if c.Price.Amount != nil {
		row.PriceAmount = decimal.NewNullDecimal(*c.Price.Amount)
	}
	if c.Address != nil {
		row.Country = nullString(c.Address.Country)
		row.City = nullString(c.Address.City)
		row.Street = nullStringPtr(c.Address.Street)
		row.PostalCode = nullStringPtr(c.Address.PostalCode)
	}
	if c.Area != nil {
		row.Area = decimal.NewNullDecimal(*c.Area)
	}
	row.Rooms = nullInt(c.Rooms)
	row.Floor = nullInt(c.Floor)
	return row
}

func (r versionRow) toModel() *models.Version {
	c := models.Content{
		Title:        r.Title,
		Description:  r.Description,
		Price:        models.Price{CurrencyCode: r.CurrencyCode.String},
		PropertyType: models.PropertyType(r.PropertyType.String),
		MediaRefs:    append([]string{}, r.MediaRefs...),
	}
	if r.PriceAmount.Valid {
		amount := r.PriceAmount.Decimal
		c.Price.Amount = &amount
	}
	if r.Country.Valid {
		c.Address = &models.Address{Country: r.Country.String, City: r.City.String}
		if r.Street.Valid {
			street := r.Street.String
			c.Address.Street = &street
		}
		if r.PostalCode.Valid {
			postal := r.PostalCode.String
			c.Address.PostalCode = &postal
		}
	}
	if r.Area.Valid {
		area := r.Area.Decimal
		c.Area = &area
	}
	if r.Rooms.Valid {
		rooms := int(r.Rooms.Int32)
		c.Rooms = &rooms
	}
	if r.Floor.Valid {
		floor := int(r.Floor.Int32)
		c.Floor = &floor
	}
	return &models.Version{
		ID:        id.VersionID(r.ID),
		ListingID: id.ListingID(r.ListingID),
		VersionNo: r.VersionNo,
		Content:   c,
		CreatedAt: r.CreatedAt,
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt(v *int) sql.NullInt32 {
	if v == nil {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: int32(*v), Valid: true}
}
