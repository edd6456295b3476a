package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/stampcard/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, stamps, is_admin, created_at, updated_at FROM users WHERE id = $1`,
		id,
	).Scan(&user.ID, &user.Stamps, &user.IsAdmin, &user.CreatedAt, &user.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	return user, nil
}

// CreateIfAbsent は指定IDのユーザーが存在しなければstamps=0で作成し、
// 現在の行を返す。同時初回アクセスは主キー制約で解決する。
func (r *PostgresUserRepo) CreateIfAbsent(ctx context.Context, id string) (*model.User, error) {
	now := time.Now()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, stamps, is_admin, created_at, updated_at)
		 VALUES ($1, 0, FALSE, $2, $2)
		 ON CONFLICT (id) DO NOTHING`,
		id, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	// 他リクエストが先に作成していた場合も含め、現在の行を読み直す
	user, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user disappeared after insert: %s", id)
	}
	return user, nil
}

// ApplyGrant はスタンプ+1とADDイベント追記を同一トランザクションで実行する。
// 上限はmodel.StampCapでクランプされるが、イベントは常に追記される。
func (r *PostgresUserRepo) ApplyGrant(ctx context.Context, userID, reason string) (int, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()

	// ユーザー未作成の場合はstamps=0で作成してから加算する
	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, stamps, is_admin, created_at, updated_at)
		 VALUES ($1, 0, FALSE, $2, $2)
		 ON CONFLICT (id) DO NOTHING`,
		userID, now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to ensure user: %w", err)
	}

	var newStamps int
	err = tx.QueryRowContext(ctx,
		`UPDATE users SET stamps = LEAST($2, stamps + 1), updated_at = $3
		 WHERE id = $1
		 RETURNING stamps`,
		userID, model.StampCap, now,
	).Scan(&newStamps)
	if err != nil {
		return 0, fmt.Errorf("failed to increment stamps: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO stamp_events (user_id, created_at, reason, event_type)
		 VALUES ($1, $2, $3, $4)`,
		userID, now, reason, string(model.EventTypeAdd),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert stamp event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return newStamps, nil
}

// ApplyReset はスタンプ0化とRESETイベント追記を同一トランザクションで実行する。
func (r *PostgresUserRepo) ApplyReset(ctx context.Context, userID, reason string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, stamps, is_admin, created_at, updated_at)
		 VALUES ($1, 0, FALSE, $2, $2)
		 ON CONFLICT (id) DO NOTHING`,
		userID, now,
	)
	if err != nil {
		return fmt.Errorf("failed to ensure user: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE users SET stamps = 0, updated_at = $2 WHERE id = $1`,
		userID, now,
	)
	if err != nil {
		return fmt.Errorf("failed to reset stamps: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO stamp_events (user_id, created_at, reason, event_type)
		 VALUES ($1, $2, $3, $4)`,
		userID, now, reason, string(model.EventTypeReset),
	)
	if err != nil {
		return fmt.Errorf("failed to insert stamp event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// SetAdmin は管理者フラグを更新する。
func (r *PostgresUserRepo) SetAdmin(ctx context.Context, userID string, isAdmin bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_admin = $2, updated_at = $3 WHERE id = $1`,
		userID, isAdmin, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to update admin flag: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %s", userID)
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
