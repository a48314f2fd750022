package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/linemk/shop-bot/internal/domain/models"
)

var ErrUserNotFound = errors.New("user not found")

// ErrLocked возвращается, если не удалось дождаться блокировки строки (lock_timeout)
var ErrLocked = errors.New("resource is locked, please try again")

type UserStorage interface {
	GetUserByExternalID(ctx context.Context, externalID int64) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	// EnsureUserTx создаёт пользователя при отсутствии и блокирует его строку до конца транзакции
	EnsureUserTx(ctx context.Context, tx *sql.Tx, externalID int64) (*models.User, error)
	LockUserByExternalIDTx(ctx context.Context, tx *sql.Tx, externalID int64) (*models.User, error)
	SetLanguage(ctx context.Context, externalID int64, lang models.Language) error
	UpdateProfileTx(ctx context.Context, tx *sql.Tx, id int64, name, phone, address string) error
	ConsumeFirstUsageTx(ctx context.Context, tx *sql.Tx, id int64) error
}

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) UserStorage {
	return &userRepository{db: db}
}

const userColumns = "id, telegram_id, language, name, phone, address, is_first_usage"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	var lang sql.NullString
	if err := row.Scan(&user.ID, &user.ExternalID, &lang, &user.Name, &user.Phone, &user.Address, &user.IsFirstUsage); err != nil {
		return nil, err
	}
	if lang.Valid {
		l := models.Language(lang.String)
		user.Language = &l
	}
	return user, nil
}

func (r *userRepository) GetUserByExternalID(ctx context.Context, externalID int64) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE telegram_id = $1", externalID)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (r *userRepository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// EnsureUserTx — upsert по telegram_id. DO UPDATE вместо DO NOTHING нужен,
// чтобы RETURNING вернул строку и она оказалась заблокирована.
func (r *userRepository) EnsureUserTx(ctx context.Context, tx *sql.Tx, externalID int64) (*models.User, error) {
	query := `INSERT INTO users (telegram_id) VALUES ($1)
	          ON CONFLICT (telegram_id) DO UPDATE SET telegram_id = EXCLUDED.telegram_id
	          RETURNING ` + userColumns
	user, err := scanUser(tx.QueryRowContext(ctx, query, externalID))
	if err != nil {
		return nil, fmt.Errorf("failed to ensure user: %w", err)
	}
	return user, nil
}

func (r *userRepository) LockUserByExternalIDTx(ctx context.Context, tx *sql.Tx, externalID int64) (*models.User, error) {
	row := tx.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE telegram_id = $1 FOR UPDATE", externalID)
	user, err := scanUser(row)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "55P03" { // lock_not_available
			return nil, fmt.Errorf("%w: %v", ErrLocked, err)
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (r *userRepository) SetLanguage(ctx context.Context, externalID int64, lang models.Language) error {
	query := `INSERT INTO users (telegram_id, language) VALUES ($1, $2)
	          ON CONFLICT (telegram_id) DO UPDATE SET language = EXCLUDED.language`
	if _, err := r.db.ExecContext(ctx, query, externalID, string(lang)); err != nil {
		return fmt.Errorf("failed to set language: %w", err)
	}
	return nil
}

func (r *userRepository) UpdateProfileTx(ctx context.Context, tx *sql.Tx, id int64, name, phone, address string) error {
	res, err := tx.ExecContext(ctx, "UPDATE users SET name = $1, phone = $2, address = $3 WHERE id = $4", name, phone, address, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *userRepository) ConsumeFirstUsageTx(ctx context.Context, tx *sql.Tx, id int64) error {
	res, err := tx.ExecContext(ctx, "UPDATE users SET is_first_usage = FALSE WHERE id = $1", id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}
