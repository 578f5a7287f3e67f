package repository

import (
	"github.com/BorisBinyaminov/eSIM/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// userRepository implements the UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository instance
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// GetByID retrieves a user by their ID
func (r *userRepository) GetByID(id uint) (*models.User, error) {
	var user models.User
	err := r.db.First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByTelegramID retrieves a user by their external Telegram identity
func (r *userRepository) GetByTelegramID(telegramID string) (*models.User, error) {
	var user models.User
	err := r.db.Where("telegram_id = ?", telegramID).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Upsert creates the user on first contact and refreshes the display name
// afterwards, keyed by the Telegram identity.
func (r *userRepository) Upsert(user *models.User) error {
	if err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "telegram_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"username",
			"updated_at",
		}),
	}).Create(user).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return r.db.Where("telegram_id = ?", user.TelegramID).First(user).Error
}
