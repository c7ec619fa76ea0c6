package mockapi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Skotchmaster/trends_dashboard/internal/hash"
	"github.com/Skotchmaster/trends_dashboard/internal/models"
	"github.com/Skotchmaster/trends_dashboard/internal/tokens"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenRevoked       = errors.New("refresh token expired or revoked")
)

type GormRepo struct {
	DB *gorm.DB
}

func (r *GormRepo) Migrate() error {
	return r.DB.AutoMigrate(&models.User{}, &models.RefreshToken{}, &models.Script{}, &models.Execution{}, &models.Log{})
}

func (r *GormRepo) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !hash.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

func (r *GormRepo) UserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// EmailTaken reports whether another account than id uses email.
func (r *GormRepo) EmailTaken(ctx context.Context, email, id string) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&models.User{}).Where("email = ? AND id <> ?", email, id).Count(&count).Error
	return count > 0, err
}

func (r *GormRepo) UserExists(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error
	return count > 0, err
}

func (r *GormRepo) UpdateProfile(ctx context.Context, id string, fields map[string]any) (*models.User, error) {
	if err := r.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields).Error; err != nil {
		return nil, err
	}
	return r.UserByID(ctx, id)
}

func (r *GormRepo) ChangePassword(ctx context.Context, id, oldPassword, newPassword string) error {
	user, err := r.UserByID(ctx, id)
	if err != nil {
		return err
	}
	if !hash.CheckPassword(user.PasswordHash, oldPassword) {
		return ErrInvalidCredentials
	}
	h, err := hash.HashPassword(newPassword)
	if err != nil {
		return err
	}
	return r.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("password_hash", h).Error
}

func (r *GormRepo) SaveRefresh(ctx context.Context, token, jti, userID string, exp time.Time) error {
	rt := models.RefreshToken{
		JTI:       jti,
		TokenHash: tokens.Sha256Hex(token),
		UserID:    userID,
		ExpiresAt: exp.Unix(),
	}
	if err := r.DB.WithContext(ctx).Create(&rt).Error; err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}
	return nil
}

// ActiveRefresh checks that token is stored, unrevoked and unexpired.
func (r *GormRepo) ActiveRefresh(ctx context.Context, token string, now time.Time) (*models.RefreshToken, error) {
	var rt models.RefreshToken
	err := r.DB.WithContext(ctx).Where("token_hash = ?", tokens.Sha256Hex(token)).First(&rt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTokenRevoked
	}
	if err != nil {
		return nil, err
	}
	if rt.Revoked || rt.ExpiresAt < now.Unix() {
		return nil, ErrTokenRevoked
	}
	return &rt, nil
}

func (r *GormRepo) RevokeRefresh(ctx context.Context, token, userID string) error {
	return r.DB.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("token_hash = ? AND user_id = ?", tokens.Sha256Hex(token), userID).
		Update("revoked", true).Error
}

func (r *GormRepo) RevokeAll(ctx context.Context, userID string) error {
	return r.DB.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked = ?", userID, false).
		Update("revoked", true).Error
}

// ListQuery is one page of a filtered, sorted listing.
type ListQuery struct {
	Page    int
	PerPage int
	OrderBy string
	Where   []condition
}

func (q ListQuery) offset() int {
	return (q.Page - 1) * q.PerPage
}

func list[T any](ctx context.Context, db *gorm.DB, q ListQuery) ([]T, int64, error) {
	base := apply(db.WithContext(ctx).Model(new(T)), q.Where)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count: %w", err)
	}

	var items []T
	tx := base.Session(&gorm.Session{})
	if q.OrderBy != "" {
		tx = tx.Order(q.OrderBy)
	}
	if err := tx.Offset(q.offset()).Limit(q.PerPage).Find(&items).Error; err != nil {
		return nil, 0, fmt.Errorf("list: %w", err)
	}
	return items, total, nil
}

func (r *GormRepo) Users(ctx context.Context, q ListQuery) ([]models.User, int64, error) {
	return list[models.User](ctx, r.DB, q)
}

func (r *GormRepo) Scripts(ctx context.Context, q ListQuery) ([]models.Script, int64, error) {
	return list[models.Script](ctx, r.DB, q)
}

func (r *GormRepo) Executions(ctx context.Context, q ListQuery) ([]models.Execution, int64, error) {
	return list[models.Execution](ctx, r.DB, q)
}

func first[T any](ctx context.Context, db *gorm.DB, id string) (*T, error) {
	var item T
	if err := db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *GormRepo) ExecutionByID(ctx context.Context, id string) (*models.Execution, error) {
	return first[models.Execution](ctx, r.DB, id)
}

func (r *GormRepo) ScriptByID(ctx context.Context, id string) (*models.Script, error) {
	return first[models.Script](ctx, r.DB, id)
}

func (r *GormRepo) UpdateScript(ctx context.Context, id string, fields map[string]any) (*models.Script, error) {
	if err := r.DB.WithContext(ctx).Model(&models.Script{}).Where("id = ?", id).Updates(fields).Error; err != nil {
		return nil, err
	}
	return r.ScriptByID(ctx, id)
}

// Logs returns up to limit lines of one parent, oldest first. A limit of
// zero or less returns all of them.
func (r *GormRepo) Logs(ctx context.Context, source, parentID string, limit int) ([]models.Log, error) {
	tx := r.DB.WithContext(ctx).Where("source = ? AND parent_id = ?", source, parentID).Order("register_date ASC, id ASC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	var logs []models.Log
	if err := tx.Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("logs: %w", err)
	}
	return logs, nil
}
