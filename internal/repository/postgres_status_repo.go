package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/stampcard/internal/model"
)

// PostgresStatusRepo はPostgreSQLを使用したステータス投影リポジトリ。
// 読み取り専用。REPEATABLE READの読み取りトランザクションで全行を
// 同一スナップショットから読むため、並行する付与・リセットの
// コミットが途中で混ざることはない。
type PostgresStatusRepo struct {
	db *sql.DB
}

// NewPostgresStatusRepo はPostgresStatusRepoを生成する。
func NewPostgresStatusRepo(db *sql.DB) *PostgresStatusRepo {
	return &PostgresStatusRepo{db: db}
}

// Snapshot はユーザー行、直近イベント、プロフィールを単一スナップショットで取得する。
// 未作成の行はnil（イベントは空リスト）として返す。
func (r *PostgresStatusRepo) Snapshot(ctx context.Context, userID string, eventLimit int) (*StatusSnapshot, error) {
	// MVCCスナップショットのみが必要なので読み取りはロック待ちしない
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{
		Isolation: sql.LevelRepeatableRead,
		ReadOnly:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to begin status snapshot: %w", err)
	}
	defer tx.Rollback()

	snap := &StatusSnapshot{}

	user := &model.User{}
	err = tx.QueryRowContext(ctx,
		`SELECT id, stamps, is_admin, created_at, updated_at FROM users WHERE id = $1`,
		userID,
	).Scan(&user.ID, &user.Stamps, &user.IsAdmin, &user.CreatedAt, &user.UpdatedAt)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to read user snapshot: %w", err)
	}
	if err == nil {
		snap.User = user
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id, user_id, created_at, reason, event_type
		 FROM stamp_events
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		userID, eventLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read event snapshot: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		event := &model.StampEvent{}
		var eventType string
		if err := rows.Scan(&event.ID, &event.UserID, &event.CreatedAt, &event.Reason, &eventType); err != nil {
			return nil, fmt.Errorf("failed to scan stamp event: %w", err)
		}
		event.EventType = model.EventType(eventType)
		snap.Events = append(snap.Events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stamp events: %w", err)
	}

	profile := &model.Profile{}
	err = tx.QueryRowContext(ctx,
		`SELECT user_id, username, mail_address, description, job, hobbies, updated_at
		 FROM user_profiles WHERE user_id = $1`,
		userID,
	).Scan(
		&profile.UserID, &profile.Username, &profile.MailAddress,
		&profile.Description, &profile.Job, &profile.Hobbies, &profile.UpdatedAt,
	)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to read profile snapshot: %w", err)
	}
	if err == nil {
		snap.Profile = profile
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit status snapshot: %w", err)
	}

	return snap, nil
}

// compile-time interface check
var _ StatusRepository = (*PostgresStatusRepo)(nil)
