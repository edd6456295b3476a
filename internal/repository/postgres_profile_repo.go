package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/stampcard/internal/model"
)

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

// FindByUserID は指定ユーザーのプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	profile := &model.Profile{}
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, username, mail_address, description, job, hobbies, updated_at
		 FROM user_profiles WHERE user_id = $1`,
		userID,
	).Scan(
		&profile.UserID, &profile.Username, &profile.MailAddress,
		&profile.Description, &profile.Job, &profile.Hobbies, &profile.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}

	return profile, nil
}

// Update はusername、description、job、hobbiesを更新する。
// mail_addressは作成後不変のため更新対象に含めない。
// 書き込んだupdated_atはprofileに反映されるため、呼び出し側は
// 更新後の行を読み直さずにそのまま応答に使える。
func (r *PostgresProfileRepo) Update(ctx context.Context, profile *model.Profile) error {
	err := r.db.QueryRowContext(ctx,
		`UPDATE user_profiles
		 SET username = $2, description = $3, job = $4, hobbies = $5, updated_at = $6
		 WHERE user_id = $1
		 RETURNING updated_at`,
		profile.UserID, profile.Username, profile.Description,
		profile.Job, profile.Hobbies, time.Now(),
	).Scan(&profile.UpdatedAt)

	if err == sql.ErrNoRows {
		return fmt.Errorf("profile not found: %s", profile.UserID)
	}
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)
