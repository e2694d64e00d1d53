package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/shortkit/shortkit/internal/models"
)

var (
	// ErrNotFound means no row matched the lookup.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate means an insert hit a uniqueness constraint. For short
	// links that is the store arbitrating a code race.
	ErrDuplicate = errors.New("duplicate key")
)

type PostgresRepository struct {
	pool *pgxpool.Pool
	sb   squirrel.StatementBuilderType
}

func NewPostgresRepository(ctx context.Context, dsn, migrationsPath string) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := runMigrations(dsn, migrationsPath); err != nil {
		return nil, fmt.Errorf("migrations failed: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresRepository{
		pool: pool,
		sb:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}, nil
}

func runMigrations(dsn, migrationsPath string) error {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open database for migrations: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database for migrations: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(migrationsPath, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

const linkColumns = "id, long_url, short_code, custom_code, owner_id, clicks, is_active, expires_at, created_at, updated_at"

func scanLink(row pgx.Row) (*models.ShortLink, error) {
	var link models.ShortLink
	err := row.Scan(
		&link.ID, &link.LongURL, &link.ShortCode, &link.CustomCode, &link.OwnerID,
		&link.Clicks, &link.IsActive, &link.ExpiresAt, &link.CreatedAt, &link.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan link: %w", err)
	}
	return &link, nil
}

// SaveLink inserts a new short link. A code collision (short_code or
// custom_code already reserved, active or not) comes back as ErrDuplicate.
func (p *PostgresRepository) SaveLink(ctx context.Context, link *models.ShortLink) error {
	query, args, err := p.sb.
		Insert("short_links").
		Columns("id", "long_url", "short_code", "custom_code", "owner_id", "expires_at").
		Values(link.ID, link.LongURL, link.ShortCode, link.CustomCode, link.OwnerID, link.ExpiresAt).
		Suffix("RETURNING clicks, is_active, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	err = p.pool.QueryRow(ctx, query, args...).
		Scan(&link.Clicks, &link.IsActive, &link.CreatedAt, &link.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert link: %w", err)
	}

	return nil
}

// CodeInUse reports whether code is reserved as either a short code or a
// custom code, on any row regardless of is_active. Deactivated codes are
// never recycled.
func (p *PostgresRepository) CodeInUse(ctx context.Context, code string) (bool, error) {
	query, args, err := p.sb.
		Select("1").
		From("short_links").
		Where(squirrel.Or{
			squirrel.Eq{"short_code": code},
			squirrel.Eq{"custom_code": code},
		}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}

	var one int
	err = p.pool.QueryRow(ctx, query, args...).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query row: %w", err)
	}
	return true, nil
}

// FindActiveByCode resolves a code to its link, excluding deactivated and
// expired rows.
func (p *PostgresRepository) FindActiveByCode(ctx context.Context, code string) (*models.ShortLink, error) {
	query, args, err := p.sb.
		Select(linkColumns).
		From("short_links").
		Where(squirrel.Eq{"short_code": code, "is_active": true}).
		Where(squirrel.Or{
			squirrel.Eq{"expires_at": nil},
			squirrel.Gt{"expires_at": time.Now()},
		}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	return scanLink(p.pool.QueryRow(ctx, query, args...))
}

// FindActiveByOwnerAndURL backs createLink idempotency: one active row per
// (owner, long URL).
func (p *PostgresRepository) FindActiveByOwnerAndURL(ctx context.Context, ownerID uuid.UUID, longURL string) (*models.ShortLink, error) {
	query, args, err := p.sb.
		Select(linkColumns).
		From("short_links").
		Where(squirrel.Eq{"owner_id": ownerID, "long_url": longURL, "is_active": true}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	return scanLink(p.pool.QueryRow(ctx, query, args...))
}

// FindActiveByOwnerAndCode fetches one of the owner's active links for stats.
func (p *PostgresRepository) FindActiveByOwnerAndCode(ctx context.Context, ownerID uuid.UUID, code string) (*models.ShortLink, error) {
	query, args, err := p.sb.
		Select(linkColumns).
		From("short_links").
		Where(squirrel.Eq{"short_code": code, "owner_id": ownerID, "is_active": true}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	return scanLink(p.pool.QueryRow(ctx, query, args...))
}

// ListByOwner returns one page of the owner's active links, newest first,
// plus the total active count for pagination.
func (p *PostgresRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, offset, limit int) ([]models.ShortLink, int64, error) {
	query, args, err := p.sb.
		Select(linkColumns).
		From("short_links").
		Where(squirrel.Eq{"owner_id": ownerID, "is_active": true}).
		OrderBy("created_at DESC").
		Offset(uint64(offset)).
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build query: %w", err)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query links: %w", err)
	}
	defer rows.Close()

	var links []models.ShortLink
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, 0, err
		}
		links = append(links, *link)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	countQuery, countArgs, err := p.sb.
		Select("COUNT(*)").
		From("short_links").
		Where(squirrel.Eq{"owner_id": ownerID, "is_active": true}).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}

	var total int64
	if err := p.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count links: %w", err)
	}

	return links, total, nil
}

// AddClicks adds n to the durable click counter. The counter only grows.
func (p *PostgresRepository) AddClicks(ctx context.Context, code string, n int64) error {
	query, args, err := p.sb.
		Update("short_links").
		Set("clicks", squirrel.Expr("clicks + ?", n)).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"short_code": code}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	if _, err := p.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("add clicks: %w", err)
	}
	return nil
}

// Deactivate soft-deletes the owner's link. The WHERE clause is the
// compare-and-set: a row that is already inactive, or owned by someone else,
// affects zero rows and reports ErrNotFound.
func (p *PostgresRepository) Deactivate(ctx context.Context, ownerID uuid.UUID, code string) error {
	query, args, err := p.sb.
		Update("short_links").
		Set("is_active", false).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"short_code": code, "owner_id": ownerID, "is_active": true}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	cmdTag, err := p.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deactivate link: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertClickEvents writes a batch of per-click analytics rows in one
// transaction. Used by the analytics worker, not by the request path.
func (p *PostgresRepository) InsertClickEvents(ctx context.Context, events []models.ClickEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	builder := p.sb.
		Insert("click_events").
		Columns("short_code", "occurred_at", "user_agent", "referrer")
	for _, e := range events {
		builder = builder.Values(e.ShortCode, e.OccurredAt, e.UserAgent, e.Referrer)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build insert query: %w", err)
	}

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert click events: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (p *PostgresRepository) CreateAccount(ctx context.Context, account *models.Account) error {
	query, args, err := p.sb.
		Insert("accounts").
		Columns("id", "username", "email", "password_hash").
		Values(account.ID, account.Username, account.Email, account.PasswordHash).
		Suffix("RETURNING is_active, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}

	err = p.pool.QueryRow(ctx, query, args...).Scan(&account.IsActive, &account.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (p *PostgresRepository) FindAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	return p.findAccount(ctx, squirrel.Eq{"email": email})
}

func (p *PostgresRepository) FindAccountByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return p.findAccount(ctx, squirrel.Eq{"id": id})
}

func (p *PostgresRepository) findAccount(ctx context.Context, where squirrel.Eq) (*models.Account, error) {
	query, args, err := p.sb.
		Select("id", "username", "email", "password_hash", "is_active", "created_at").
		From("accounts").
		Where(where).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var account models.Account
	err = p.pool.QueryRow(ctx, query, args...).Scan(
		&account.ID, &account.Username, &account.Email,
		&account.PasswordHash, &account.IsActive, &account.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query row: %w", err)
	}
	return &account, nil
}

func (p *PostgresRepository) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *PostgresRepository) Close() error {
	p.pool.Close()
	return nil
}
