package repository

import "github.com/BorisBinyaminov/eSIM/app/models"

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	GetByID(id uint) (*models.User, error)
	GetByTelegramID(telegramID string) (*models.User, error)
	Upsert(user *models.User) error
}

// ProfileRepository defines the interface for eSIM ledger operations. It
// satisfies the provisioning engine's repository dependency.
type ProfileRepository interface {
	GetByICCID(iccid string) (*models.EsimProfile, error)
	GetByEsimTranNo(esimTranNo string) (*models.EsimProfile, error)
	ListByUser(userID uint) ([]models.EsimProfile, error)
	CreateProfiles(profiles []*models.EsimProfile) error
	UpdateFields(iccid string, fields map[string]interface{}) error
	Count() (int64, error)
}
