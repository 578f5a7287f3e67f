package esimapi

import "encoding/json"

// envelope is the provider's uniform response wrapper. A missing success
// flag or obj payload is treated as failure; the exact obj schema is
// provider-owned.
type envelope struct {
	Success   bool            `json:"success"`
	ErrorCode string          `json:"errorCode"`
	ErrorMsg  string          `json:"errorMsg"`
	Obj       json.RawMessage `json:"obj"`
}

// OrderPackage is one line item of an order submission. PeriodNum carries
// the day count for daily-billed packages and stays zero otherwise.
type OrderPackage struct {
	PackageCode string `json:"packageCode"`
	Count       int    `json:"count"`
	Price       int64  `json:"price"`
	PeriodNum   int    `json:"periodNum,omitempty"`
}

// OrderRequest submits a purchase. TransactionID is the locally minted
// idempotency token, Amount the total charge in provider units.
type OrderRequest struct {
	TransactionID string         `json:"transactionId"`
	Amount        int64          `json:"amount"`
	PackageInfo   []OrderPackage `json:"packageInfoList"`
}

// OrderResult is the accepted-order acknowledgement.
type OrderResult struct {
	OrderNo string `json:"orderNo"`
}

// PackageRef is the package summary the provider attaches to an allocated
// profile.
type PackageRef struct {
	PackageCode string `json:"packageCode"`
	PackageName string `json:"packageName"`
	CreateTime  string `json:"createTime"`
}

// ProfileInfo is one allocated profile as reported by the provider. Raw
// holds the untouched JSON for ledger archival.
type ProfileInfo struct {
	ICCID          string       `json:"iccid"`
	QRCodeURL      string       `json:"qrCodeUrl"`
	AC             string       `json:"ac"`
	SmdpStatus     string       `json:"smdpStatus"`
	EsimStatus     string       `json:"esimStatus"`
	EsimTranNo     string       `json:"esimTranNo"`
	SupportTopUp   int          `json:"supportTopUpType"`
	TotalVolume    int64        `json:"totalVolume"`
	OrderUsage     int64        `json:"orderUsage"`
	TotalDuration  int          `json:"totalDuration"`
	ExpiredTime    string       `json:"expiredTime"`
	LastUpdateTime string       `json:"lastUpdateTime"`
	PackageList    []PackageRef `json:"packageList"`

	Raw json.RawMessage `json:"-"`
}

// TopUpPackage is one entry of the rechargeable package menu for a profile.
type TopUpPackage struct {
	PackageCode  string `json:"packageCode"`
	Name         string `json:"name"`
	Price        int64  `json:"price"`
	RetailPrice  int64  `json:"retailPrice"`
	Volume       int64  `json:"volume"`
	Duration     int    `json:"duration"`
	SupportTopUp int    `json:"supportTopUpType"`
}

// TopUpRequest recharges an existing profile. TransactionID must be a fresh
// token, distinct from the original purchase token.
type TopUpRequest struct {
	EsimTranNo    string `json:"esimTranNo"`
	PackageCode   string `json:"packageCode"`
	Price         int64  `json:"price"`
	Amount        int64  `json:"amount"`
	TransactionID string `json:"transactionId"`
}

// TopUpResult reports the profile totals after a successful recharge.
type TopUpResult struct {
	TotalVolume   int64 `json:"totalVolume"`
	TotalDuration int   `json:"totalDuration"`
}

// UsageInfo is the lightweight usage snapshot fetched by transaction
// reference.
type UsageInfo struct {
	OrderUsage     int64  `json:"orderUsage"`
	TotalVolume    int64  `json:"totalVolume"`
	LastUpdateTime string `json:"lastUpdateTime"`
}
