package provision

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/BorisBinyaminov/eSIM/app/models"
	"github.com/BorisBinyaminov/eSIM/internal/pkg/env"
	"github.com/BorisBinyaminov/eSIM/internal/pkg/esimapi"
)

// ProviderAPI is the slice of the upstream client the engine needs. The
// esimapi.Client satisfies it; tests substitute fakes.
type ProviderAPI interface {
	Balance(ctx context.Context) (int64, error)
	Order(ctx context.Context, req esimapi.OrderRequest) (*esimapi.OrderResult, error)
	QueryByOrderNo(ctx context.Context, orderNo string) ([]esimapi.ProfileInfo, error)
	QueryByICCID(ctx context.Context, iccid string) (*esimapi.ProfileInfo, error)
	Cancel(ctx context.Context, esimTranNo string) error
	TopUpPackages(ctx context.Context, iccid string) ([]esimapi.TopUpPackage, error)
	TopUp(ctx context.Context, req esimapi.TopUpRequest) (*esimapi.TopUpResult, error)
	Usage(ctx context.Context, esimTranNo string) (*esimapi.UsageInfo, error)
}

// Repository is the ledger access the engine needs. Implemented by
// app/repository's GORM profile repository.
type Repository interface {
	GetByICCID(iccid string) (*models.EsimProfile, error)
	GetByEsimTranNo(esimTranNo string) (*models.EsimProfile, error)
	ListByUser(userID uint) ([]models.EsimProfile, error)
	CreateProfiles(profiles []*models.EsimProfile) error
	UpdateFields(iccid string, fields map[string]interface{}) error
}

// Config carries the engine's timing knobs so tests can shrink them to
// milliseconds.
type Config struct {
	// WarmUpDelay is waited once after order acceptance before the first
	// allocation poll.
	WarmUpDelay time.Duration
	// PollInterval is the fixed delay between allocation polls.
	PollInterval time.Duration
	// PollBudget is the wall-clock limit for the whole allocation wait.
	PollBudget time.Duration
	// LookupRetries and LookupDelay bound the post-purchase status lookup
	// while the provider propagates a fresh profile.
	LookupRetries int
	LookupDelay   time.Duration
}

// ConfigFromEnv reads the timing knobs with production defaults.
func ConfigFromEnv() Config {
	return Config{
		WarmUpDelay:   env.GetEnvDuration("PROVISION_WARMUP_DELAY", 15*time.Second),
		PollInterval:  env.GetEnvDuration("PROVISION_POLL_INTERVAL", 5*time.Second),
		PollBudget:    env.GetEnvDuration("PROVISION_POLL_BUDGET", 2*time.Minute),
		LookupRetries: env.GetEnvInt("PROVISION_LOOKUP_RETRIES", 3),
		LookupDelay:   env.GetEnvDuration("PROVISION_LOOKUP_DELAY", 2*time.Second),
	}
}

// Service is the order-fulfillment and state-reconciliation engine.
type Service struct {
	api      ProviderAPI
	repo     Repository
	cfg      Config
	locks    *keyedMutex
	validate *validator.Validate
}

// NewService creates the engine from an injected provider client and
// ledger repository.
func NewService(api ProviderAPI, repo Repository, cfg Config) *Service {
	return &Service{
		api:      api,
		repo:     repo,
		cfg:      cfg,
		locks:    newKeyedMutex(),
		validate: validator.New(),
	}
}

// PurchaseInput is a confirmed purchase intent. Quantity means requested
// day count for daily packages (Duration == 1) and profile count otherwise.
type PurchaseInput struct {
	UserID      uint   `validate:"required"`
	PackageCode string `validate:"required,max=64"`
	UnitPrice   int64  `validate:"required,gt=0"`
	RetailPrice int64  `validate:"gte=0"`
	Duration    int    `validate:"required,gt=0"`
	Quantity    int    `validate:"required,gt=0"`
}

// Daily reports whether the package bills per day.
func (in PurchaseInput) Daily() bool {
	return in.Duration == 1
}

// PurchaseResult reports a completed purchase. Allocated may be smaller
// than requested: profiles the provider returned without an ICCID or QR
// payload are dropped from persistence, which is a normal outcome.
type PurchaseResult struct {
	OrderNo       string               `json:"order_no"`
	TransactionID string               `json:"transaction_id"`
	Requested     int                  `json:"requested"`
	Allocated     int                  `json:"allocated"`
	QRCodes       []string             `json:"qr_codes"`
	Profiles      []models.EsimProfile `json:"profiles"`
}

// mintTransactionToken creates the idempotency token for one upstream
// submission. Pure, no side effects; payment capture is stubbed by design.
func mintTransactionToken() string {
	return uuid.NewString()
}

// Purchase runs the full fulfillment flow: balance guard, order placement,
// allocation wait and ledger persistence. The remote charge happens at
// order placement; everything after a successful placement reports errors
// without retrying the order.
func (s *Service) Purchase(ctx context.Context, in PurchaseInput) (*PurchaseResult, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}

	count := in.Quantity
	periodNum := 0
	if in.Daily() {
		// Daily packages order a single profile for N days.
		count = 1
		periodNum = in.Quantity
	}
	amount := in.UnitPrice * int64(in.Quantity)

	balance, err := s.api.Balance(ctx)
	if err != nil {
		return nil, upstream(err)
	}
	if balance < amount {
		return nil, &InsufficientBalanceError{Required: amount, Available: balance}
	}

	transactionID := mintTransactionToken()
	order, err := s.api.Order(ctx, esimapi.OrderRequest{
		TransactionID: transactionID,
		Amount:        amount,
		PackageInfo: []esimapi.OrderPackage{{
			PackageCode: in.PackageCode,
			Count:       count,
			Price:       in.UnitPrice,
			PeriodNum:   periodNum,
		}},
	})
	if err != nil {
		return nil, upstream(err)
	}
	if order.OrderNo == "" {
		return nil, ErrOrderAcceptedNoID
	}

	allocated, err := s.awaitAllocation(ctx, order.OrderNo)
	if err != nil {
		return nil, err
	}

	rows := make([]*models.EsimProfile, 0, len(allocated))
	qrCodes := make([]string, 0, len(allocated))
	for _, info := range allocated {
		// Profiles without an ICCID or QR payload cannot be delivered and
		// are dropped from persistence.
		if info.ICCID == "" || info.QRCodeURL == "" {
			continue
		}
		rows = append(rows, newLedgerRow(in, order.OrderNo, transactionID, info))
		qrCodes = append(qrCodes, info.QRCodeURL)
	}

	if len(rows) > 0 {
		if err := s.repo.CreateProfiles(rows); err != nil {
			return nil, &PersistenceError{OrderNo: order.OrderNo, Err: err}
		}
	}

	result := &PurchaseResult{
		OrderNo:       order.OrderNo,
		TransactionID: transactionID,
		Requested:     count,
		Allocated:     len(rows),
		QRCodes:       qrCodes,
	}
	for _, row := range rows {
		result.Profiles = append(result.Profiles, *row)
	}
	return result, nil
}

// newLedgerRow copies the shared purchase fields and the per-profile
// provider fields into one ledger row.
func newLedgerRow(in PurchaseInput, orderNo, transactionID string, info esimapi.ProfileInfo) *models.EsimProfile {
	row := &models.EsimProfile{
		UserID:         in.UserID,
		ICCID:          info.ICCID,
		PackageCode:    in.PackageCode,
		OrderNo:        orderNo,
		TransactionID:  transactionID,
		EsimTranNo:     info.EsimTranNo,
		Price:          in.UnitPrice,
		RetailPrice:    in.RetailPrice,
		SmdpStatus:     info.SmdpStatus,
		EsimStatus:     info.EsimStatus,
		SupportTopUp:   info.SupportTopUp,
		TotalVolume:    info.TotalVolume,
		OrderUsage:     info.OrderUsage,
		TotalDuration:  info.TotalDuration,
		QRCodeURL:      info.QRCodeURL,
		ActivationCode: info.AC,
		RawPayloadJSON: string(info.Raw),
	}
	if t := parseProviderTime(info.ExpiredTime); t != nil {
		row.ExpiredTime = t
	}
	if t := parseProviderTime(info.LastUpdateTime); t != nil {
		row.LastSyncAt = t
	}
	return row
}

// ProfileStatus is the per-profile view served to the UI layer: the ledger
// row, the latest reconciled coarse state and the legal actions.
type ProfileStatus struct {
	Profile *models.EsimProfile `json:"profile"`
	State   CoarseState         `json:"state"`
	Actions []string            `json:"actions"`
}

// Status returns the latest reconciled state of one profile and applies the
// lightweight usage refresh opportunistically. When the provider does not
// answer within the bounded lookup retries, the stored pair is classified
// instead and the state is reported from it; lookup exhaustion is never an
// error.
func (s *Service) Status(ctx context.Context, userID uint, iccid string) (*ProfileStatus, error) {
	row, err := s.ownedProfile(userID, iccid)
	if err != nil {
		return nil, err
	}

	info, err := s.lookupProfile(ctx, iccid)
	if err != nil {
		return nil, err
	}
	if info != nil {
		if err := s.ApplyUsage(iccid, &esimapi.UsageInfo{
			OrderUsage:     info.OrderUsage,
			TotalVolume:    info.TotalVolume,
			LastUpdateTime: info.LastUpdateTime,
		}); err != nil {
			return nil, err
		}
		row, err = s.repo.GetByICCID(iccid)
		if err != nil {
			return nil, ErrUnknownProfile
		}
		state := Classify(info.SmdpStatus, info.EsimStatus)
		return &ProfileStatus{Profile: row, State: state, Actions: AvailableActions(state, row.SupportsTopUp())}, nil
	}

	state := Classify(row.SmdpStatus, row.EsimStatus)
	return &ProfileStatus{Profile: row, State: state, Actions: AvailableActions(state, row.SupportsTopUp())}, nil
}

// ListProfiles returns all ledger rows of a user ordered by display
// priority (fresh and active first), with actions derived from the stored
// status pair.
func (s *Service) ListProfiles(userID uint) ([]ProfileStatus, error) {
	rows, err := s.repo.ListByUser(userID)
	if err != nil {
		return nil, err
	}

	statuses := make([]ProfileStatus, 0, len(rows))
	for i := range rows {
		row := rows[i]
		state := Classify(row.SmdpStatus, row.EsimStatus)
		statuses = append(statuses, ProfileStatus{
			Profile: &row,
			State:   state,
			Actions: AvailableActions(state, row.SupportsTopUp()),
		})
	}
	sort.SliceStable(statuses, func(i, j int) bool {
		return StatePriority(statuses[i].State) < StatePriority(statuses[j].State)
	})
	return statuses, nil
}

// ownedProfile loads a ledger row and enforces ownership. Foreign profiles
// are indistinguishable from missing ones.
func (s *Service) ownedProfile(userID uint, iccid string) (*models.EsimProfile, error) {
	row, err := s.repo.GetByICCID(iccid)
	if err != nil || row == nil {
		return nil, ErrUnknownProfile
	}
	if row.UserID != userID {
		return nil, ErrUnknownProfile
	}
	return row, nil
}

// parseProviderTime accepts the provider's timestamp formats and returns
// nil for anything unparsable.
func parseProviderTime(value string) *time.Time {
	if value == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	return nil
}

// rawEquals compares two raw provider payloads structurally so that key
// ordering differences do not defeat the unchanged-payload check.
func rawEquals(a, b string) bool {
	if a == b {
		return true
	}
	var objA, objB interface{}
	if err := json.Unmarshal([]byte(a), &objA); err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(b), &objB); err != nil {
		return false
	}
	normA, errA := json.Marshal(objA)
	normB, errB := json.Marshal(objB)
	return errA == nil && errB == nil && string(normA) == string(normB)
}
