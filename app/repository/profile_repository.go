package repository

import (
	"github.com/BorisBinyaminov/eSIM/app/models"
	"gorm.io/gorm"
)

// profileRepository implements the ProfileRepository interface
type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new eSIM ledger repository instance
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

// GetByICCID retrieves a ledger row by its ICCID
func (r *profileRepository) GetByICCID(iccid string) (*models.EsimProfile, error) {
	var profile models.EsimProfile
	err := r.db.Where("iccid = ?", iccid).First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetByEsimTranNo resolves a per-profile transaction reference to its
// ledger row through the indexed esim_tran_no column.
func (r *profileRepository) GetByEsimTranNo(esimTranNo string) (*models.EsimProfile, error) {
	var profile models.EsimProfile
	err := r.db.Where("esim_tran_no = ?", esimTranNo).First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// ListByUser retrieves all ledger rows owned by a user
func (r *profileRepository) ListByUser(userID uint) ([]models.EsimProfile, error) {
	var profiles []models.EsimProfile
	err := r.db.Where("user_id = ?", userID).Find(&profiles).Error
	return profiles, err
}

// CreateProfiles writes the rows of one purchase in a single transaction.
// Either every allocated profile lands in the ledger or none does.
func (r *profileRepository) CreateProfiles(profiles []*models.EsimProfile) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		for _, profile := range profiles {
			if err := tx.Create(profile).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateFields applies a partial update to the row keyed by ICCID.
func (r *profileRepository) UpdateFields(iccid string, fields map[string]interface{}) error {
	return r.db.Model(&models.EsimProfile{}).Where("iccid = ?", iccid).Updates(fields).Error
}

// Count returns the total number of ledger rows
func (r *profileRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.EsimProfile{}).Count(&count).Error
	return count, err
}
