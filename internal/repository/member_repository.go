package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"task-ledger/internal/model"
)

// MemberRepository remembers the users who have talked to the bot.
type MemberRepository struct {
	db *gorm.DB
}

func NewMemberRepository(db *gorm.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

// Remember stores the latest profile of a Telegram user. A known user has
// every name field overwritten, blank ones included.
func (r *MemberRepository) Remember(ctx context.Context, telegramID int64, firstName, lastName, username string) error {
	member := model.Member{
		TelegramID: telegramID,
		FirstName:  firstName,
		LastName:   lastName,
		Username:   username,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "telegram_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"first_name", "last_name", "username", "updated_at"}),
	}).Create(&member).Error
	if err != nil {
		return fmt.Errorf("remember member: %w", classify(err))
	}
	return nil
}

// FindByTelegramID returns gorm.ErrRecordNotFound for unknown users.
func (r *MemberRepository) FindByTelegramID(ctx context.Context, telegramID int64) (*model.Member, error) {
	var member model.Member
	if err := r.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&member).Error; err != nil {
		return nil, err
	}
	return &member, nil
}
