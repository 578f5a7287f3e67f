package models

import "time"

// Provider status vocabulary, stored verbatim. SmdpStatus tracks profile
// enrollment on the SM-DP+ side, EsimStatus tracks device-side activation.
const (
	SmdpStatusReleased = "RELEASED"
	SmdpStatusEnabled  = "ENABLED"
	SmdpStatusDisabled = "DISABLED"
	SmdpStatusDeleted  = "DELETED"

	EsimStatusGotResource = "GOT_RESOURCE"
	EsimStatusInUse       = "IN_USE"
	EsimStatusUsedUp      = "USED_UP"
	EsimStatusDeleted     = "DELETED"
)

// SupportTopUpRecharge is the provider flag value marking a package as
// top-up capable.
const SupportTopUpRecharge = 2

// EsimProfile is one ledger row per allocated profile, keyed by ICCID. A
// single upstream order may fan out into several rows sharing OrderNo and
// TransactionID. Rows are never deleted; cancellation arrives as a status
// transition through reconciliation.
//
// Prices are kept in provider integer units (1/10000 USD), volumes in
// bytes. OrderUsage is stored exactly as reported, even when it exceeds
// TotalVolume.
type EsimProfile struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	UserID         uint       `gorm:"not null;index" json:"user_id"`
	ICCID          string     `gorm:"type:varchar(32);uniqueIndex;not null" json:"iccid"`
	PackageCode    string     `gorm:"type:varchar(64);not null" json:"package_code"`
	OrderNo        string     `gorm:"type:varchar(64);not null;index" json:"order_no"`
	TransactionID  string     `gorm:"type:varchar(64);not null;index" json:"transaction_id"`
	EsimTranNo     string     `gorm:"type:varchar(64);index" json:"esim_tran_no"`
	Price          int64      `gorm:"not null;default:0" json:"price"`
	RetailPrice    int64      `gorm:"not null;default:0" json:"retail_price"`
	SmdpStatus     string     `gorm:"type:varchar(32)" json:"smdp_status"`
	EsimStatus     string     `gorm:"type:varchar(32)" json:"esim_status"`
	SupportTopUp   int        `gorm:"not null;default:0" json:"support_top_up"`
	TotalVolume    int64      `gorm:"not null;default:0" json:"total_volume"`
	OrderUsage     int64      `gorm:"not null;default:0" json:"order_usage"`
	TotalDuration  int        `gorm:"not null;default:0" json:"total_duration"`
	ExpiredTime    *time.Time `gorm:"type:timestamp;default:null" json:"expired_time,omitempty"`
	QRCodeURL      string     `gorm:"type:varchar(255)" json:"qr_code_url"`
	ActivationCode string     `gorm:"type:varchar(255)" json:"activation_code"`
	RawPayloadJSON string     `gorm:"type:longtext" json:"-"`
	LastSyncAt     *time.Time `gorm:"type:timestamp;default:null" json:"last_sync_at,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// SupportsTopUp reports whether the provider marked this profile's package
// as rechargeable.
func (p *EsimProfile) SupportsTopUp() bool {
	return p.SupportTopUp == SupportTopUpRecharge
}
