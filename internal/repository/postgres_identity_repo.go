package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/stampcard/internal/model"
)

// pgUniqueViolation はPostgreSQLの一意制約違反のエラーコード。
const pgUniqueViolation = "23505"

// PostgresIdentityRepo はPostgreSQLを使用したidentityリポジトリ。
type PostgresIdentityRepo struct {
	db *sql.DB
}

// NewPostgresIdentityRepo はPostgresIdentityRepoを生成する。
func NewPostgresIdentityRepo(db *sql.DB) *PostgresIdentityRepo {
	return &PostgresIdentityRepo{db: db}
}

// FindByProviderKey は (provider, provider_key) でidentityを検索する。
// 見つからない場合はnilを返す。
func (r *PostgresIdentityRepo) FindByProviderKey(ctx context.Context, provider, providerKey string) (*model.AuthIdentity, error) {
	identity := &model.AuthIdentity{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, provider, provider_key, created_at
		 FROM auth_identities
		 WHERE provider = $1 AND provider_key = $2`,
		provider, providerKey,
	).Scan(&identity.ID, &identity.UserID, &identity.Provider, &identity.ProviderKey, &identity.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}

	return identity, nil
}

// CreateUserWithProfile はユーザー、プロフィール、identityを同一トランザクションで作成する。
// (provider, provider_key) の一意制約違反時はErrDuplicateIdentityを返す。
// 同時初回ログインのレースは後着側がこのエラーを受けて既存行を読み直す。
func (r *PostgresIdentityRepo) CreateUserWithProfile(ctx context.Context, user *model.User, profile *model.Profile, identity *model.AuthIdentity) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, stamps, is_admin, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $4)`,
		user.ID, user.Stamps, user.IsAdmin, now,
	)
	if err != nil {
		return wrapIdentityInsertError("failed to insert user", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO user_profiles (user_id, username, mail_address, description, job, hobbies, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		profile.UserID, profile.Username, profile.MailAddress,
		profile.Description, profile.Job, profile.Hobbies, now,
	)
	if err != nil {
		return wrapIdentityInsertError("failed to insert profile", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO auth_identities (user_id, provider, provider_key, created_at)
		 VALUES ($1, $2, $3, $4)`,
		identity.UserID, identity.Provider, identity.ProviderKey, now,
	)
	if err != nil {
		return wrapIdentityInsertError("failed to insert identity", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// wrapIdentityInsertError は一意制約違反をErrDuplicateIdentityに正規化する。
func wrapIdentityInsertError(msg string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
		return ErrDuplicateIdentity
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// compile-time interface check
var _ IdentityRepository = (*PostgresIdentityRepo)(nil)
