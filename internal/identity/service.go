// Package identity はログインidentityとプロフィールのドメインロジックを提供する。
//
// 1つの外部identity（localメールまたはOAuthのsubject）は必ず1ユーザーに
// 解決される。localログインのユーザー名照合は意図的に弱い第二要素であり、
// セキュリティ境界ではない（MVPの制約として仕様に明記されている）。
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/hitoshi/stampcard/internal/model"
	"github.com/hitoshi/stampcard/internal/repository"
)

// Sanitizer はプロフィール自由テキストのサニタイズインターフェース。
type Sanitizer interface {
	Sanitize(raw string) string
}

// Recorder は登録イベントを計測するインターフェース。
type Recorder interface {
	RecordSignup(provider string)
}

// ProfileFields は登録時のプロフィール自由テキスト。
type ProfileFields struct {
	Description string
	Job         string
	Hobbies     string
}

// ProfileUpdate はプロフィール編集の入力。
// MailAddressは照合専用で、既存値と異なる場合はMailImmutableで失敗する。
type ProfileUpdate struct {
	Username    string
	MailAddress string
	Description string
	Job         string
	Hobbies     string
}

// Service はidentity解決・登録・プロフィール編集のサービス層。
type Service struct {
	identRepo   repository.IdentityRepository
	profileRepo repository.ProfileRepository
	sanitizer   Sanitizer
	recorder    Recorder
}

// NewService はServiceを生成する。recorderはnilを許容する。
func NewService(identRepo repository.IdentityRepository, profileRepo repository.ProfileRepository, sanitizer Sanitizer, recorder Recorder) *Service {
	return &Service{
		identRepo:   identRepo,
		profileRepo: profileRepo,
		sanitizer:   sanitizer,
		recorder:    recorder,
	}
}

// ResolveLocal は正規化済みメールアドレスでlocal identityを検索し、
// ユーザーIDを返す。見つからない場合はUSER_NOT_FOUND。
func (s *Service) ResolveLocal(ctx context.Context, mailAddress string) (string, error) {
	normalized := NormalizeMail(mailAddress)
	if normalized == "" {
		return "", model.NewValidationError("mailAddress")
	}

	ident, err := s.identRepo.FindByProviderKey(ctx, model.ProviderLocal, normalized)
	if err != nil {
		return "", fmt.Errorf("failed to resolve local identity: %w", err)
	}
	if ident == nil {
		return "", model.NewUserNotFoundError()
	}
	return ident.UserID, nil
}

// SignupLocal はローカル登録を行い、新規ユーザーIDを返す。
// 同一の正規化済みメールでlocal identityが既に存在する場合は
// DUPLICATE_SIGNUPで失敗する。ユーザー・プロフィール・identityは
// 同一トランザクションで作成され、同時登録のレースは一意制約で
// 片方だけが成功する。
func (s *Service) SignupLocal(ctx context.Context, username, mailAddress string, fields ProfileFields) (string, error) {
	username = NormalizeUsername(username)
	if username == "" {
		return "", model.NewValidationError("username")
	}
	normalizedMail := NormalizeMail(mailAddress)
	if normalizedMail == "" {
		return "", model.NewValidationError("mailAddress")
	}

	userID := uuid.New().String()
	user := &model.User{ID: userID}
	profile := &model.Profile{
		UserID:      userID,
		Username:    username,
		MailAddress: normalizedMail,
		Description: s.sanitizer.Sanitize(fields.Description),
		Job:         s.sanitizer.Sanitize(fields.Job),
		Hobbies:     s.sanitizer.Sanitize(fields.Hobbies),
	}
	ident := &model.AuthIdentity{
		UserID:      userID,
		Provider:    model.ProviderLocal,
		ProviderKey: normalizedMail,
	}

	if err := s.identRepo.CreateUserWithProfile(ctx, user, profile, ident); err != nil {
		if errors.Is(err, repository.ErrDuplicateIdentity) {
			return "", model.NewDuplicateSignupError(normalizedMail)
		}
		return "", fmt.Errorf("failed to create local user: %w", err)
	}

	if s.recorder != nil {
		s.recorder.RecordSignup(model.ProviderLocal)
	}

	slog.Info("local user signed up",
		slog.String("user_id", userID),
		slog.String("mail_address", normalizedMail),
	)

	return userID, nil
}

// ResolveOrCreateOAuth は (provider, providerKey) をユーザーIDに解決する。
// 未登録の場合はユーザー・プロフィール・identityを同時に作成し、
// プロフィールは外部プロバイダーのプロフィール情報で初期化する。
// 同時初回ログインのレースでは後着側が既存行を読み直して同じIDを返す。
func (s *Service) ResolveOrCreateOAuth(ctx context.Context, provider, providerKey, displayName, email string) (string, error) {
	if provider == "" || providerKey == "" {
		return "", model.NewBadRequestError("provider")
	}

	ident, err := s.identRepo.FindByProviderKey(ctx, provider, providerKey)
	if err != nil {
		return "", fmt.Errorf("failed to find oauth identity: %w", err)
	}
	if ident != nil {
		return ident.UserID, nil
	}

	username := NormalizeUsername(displayName)
	if username == "" {
		username = "user"
	}

	userID := uuid.New().String()
	user := &model.User{ID: userID}
	profile := &model.Profile{
		UserID:      userID,
		Username:    username,
		MailAddress: NormalizeMail(email),
	}
	newIdent := &model.AuthIdentity{
		UserID:      userID,
		Provider:    provider,
		ProviderKey: providerKey,
	}

	err = s.identRepo.CreateUserWithProfile(ctx, user, profile, newIdent)
	if errors.Is(err, repository.ErrDuplicateIdentity) {
		// 同時初回ログインで他リクエストが先に作成した。既存行を読み直す。
		existing, findErr := s.identRepo.FindByProviderKey(ctx, provider, providerKey)
		if findErr != nil {
			return "", fmt.Errorf("failed to re-read oauth identity: %w", findErr)
		}
		if existing == nil {
			return "", fmt.Errorf("oauth identity disappeared after conflict: %s/%s", provider, providerKey)
		}
		return existing.UserID, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to create oauth user: %w", err)
	}

	if s.recorder != nil {
		s.recorder.RecordSignup(provider)
	}

	slog.Info("oauth user created",
		slog.String("user_id", userID),
		slog.String("provider", provider),
	)

	return userID, nil
}

// LoginLocal はメールアドレスでidentityを解決し、保存済みプロフィールの
// ユーザー名（正規化後）と入力が一致する場合にユーザーIDを返す。
// メールアドレスは大文字小文字を区別しない。不一致はUSERNAME_MISMATCH。
func (s *Service) LoginLocal(ctx context.Context, username, mailAddress string) (string, error) {
	userID, err := s.ResolveLocal(ctx, mailAddress)
	if err != nil {
		return "", err
	}

	profile, err := s.profileRepo.FindByUserID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to find profile for login: %w", err)
	}
	if profile == nil {
		return "", model.NewUserNotFoundError()
	}

	if NormalizeUsername(profile.Username) != NormalizeUsername(username) {
		return "", model.NewUsernameMismatchError()
	}

	slog.Info("local user logged in", slog.String("user_id", userID))
	return userID, nil
}

// UpdateProfile はusername、description、job、hobbiesを更新して返す。
// usernameが正規化後に空の場合はVALIDATION_ERRORで失敗し、保存内容は
// 変更されない。メールアドレスは不変であり、既存値と（大文字小文字を
// 無視して）異なる値が渡された場合はMAIL_IMMUTABLEで失敗する。
func (s *Service) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (*model.Profile, error) {
	existing, err := s.profileRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}
	if existing == nil {
		return nil, model.NewUserNotFoundError()
	}

	username := NormalizeUsername(update.Username)
	if username == "" {
		return nil, model.NewValidationError("username")
	}

	if update.MailAddress != "" && NormalizeMail(update.MailAddress) != existing.MailAddress {
		return nil, model.NewMailImmutableError()
	}

	existing.Username = username
	existing.Description = s.sanitizer.Sanitize(update.Description)
	existing.Job = s.sanitizer.Sanitize(update.Job)
	existing.Hobbies = s.sanitizer.Sanitize(update.Hobbies)

	if err := s.profileRepo.Update(ctx, existing); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	return existing, nil
}
