package provision

import (
	"context"
	"sort"

	"github.com/BorisBinyaminov/eSIM/internal/pkg/esimapi"
)

// Cancel revokes an unused profile. Legal only from the New state as seen
// by the latest reconciliation; the upstream call uses the profile's
// transaction reference and its failure message is surfaced verbatim, never
// auto-retried. Success triggers a full reconciliation.
func (s *Service) Cancel(ctx context.Context, userID uint, iccid string) (*ProfileStatus, error) {
	s.locks.Lock(iccid)
	defer s.locks.Unlock(iccid)

	row, err := s.ownedProfile(userID, iccid)
	if err != nil {
		return nil, err
	}
	if row.EsimTranNo == "" {
		return nil, ErrMissingReference
	}

	info, err := s.lookupProfile(ctx, iccid)
	if err != nil {
		return nil, err
	}
	state := StateUnknown
	if info != nil {
		state = Classify(info.SmdpStatus, info.EsimStatus)
	}
	if state != StateNew {
		return nil, &NotEligibleError{Operation: ActionCancel, State: state}
	}

	if err := s.api.Cancel(ctx, row.EsimTranNo); err != nil {
		return nil, upstream(err)
	}

	if err := s.reconcileFull(ctx, iccid); err != nil {
		return nil, err
	}
	return s.storedStatus(userID, iccid)
}

// TopUpPackages returns the rechargeable package menu for a profile,
// sorted by retail price ascending. Legal only when the provider's top-up
// flag is set and the latest state allows recharging.
func (s *Service) TopUpPackages(ctx context.Context, userID uint, iccid string) ([]esimapi.TopUpPackage, error) {
	row, err := s.ownedProfile(userID, iccid)
	if err != nil {
		return nil, err
	}
	if err := s.checkTopUpEligibility(ctx, row.SupportsTopUp(), iccid); err != nil {
		return nil, err
	}

	packages, err := s.api.TopUpPackages(ctx, iccid)
	if err != nil {
		return nil, upstream(err)
	}
	sort.SliceStable(packages, func(i, j int) bool {
		return packages[i].RetailPrice < packages[j].RetailPrice
	})
	return packages, nil
}

// TopUpInput selects a package from the top-up menu.
type TopUpInput struct {
	ICCID       string `validate:"required,max=32"`
	PackageCode string `validate:"required,max=64"`
	Price       int64  `validate:"required,gt=0"`
}

// TopUpOutcome reports the profile totals after a successful recharge.
type TopUpOutcome struct {
	ICCID         string `json:"iccid"`
	TransactionID string `json:"transaction_id"`
	TotalVolume   int64  `json:"total_volume"`
	TotalDuration int    `json:"total_duration"`
}

// TopUp recharges a profile with a freshly minted transaction token,
// distinct from the purchase's own. On success the owning ICCID is resolved
// from the transaction reference through the ledger's indexed column and a
// full reconciliation runs against it.
func (s *Service) TopUp(ctx context.Context, userID uint, in TopUpInput) (*TopUpOutcome, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}

	s.locks.Lock(in.ICCID)
	defer s.locks.Unlock(in.ICCID)

	row, err := s.ownedProfile(userID, in.ICCID)
	if err != nil {
		return nil, err
	}
	if row.EsimTranNo == "" {
		return nil, ErrMissingReference
	}
	if err := s.checkTopUpEligibility(ctx, row.SupportsTopUp(), in.ICCID); err != nil {
		return nil, err
	}

	transactionID := mintTransactionToken()
	result, err := s.api.TopUp(ctx, esimapi.TopUpRequest{
		EsimTranNo:    row.EsimTranNo,
		PackageCode:   in.PackageCode,
		Price:         in.Price,
		Amount:        in.Price,
		TransactionID: transactionID,
	})
	if err != nil {
		return nil, upstream(err)
	}

	outcome := &TopUpOutcome{
		ICCID:         in.ICCID,
		TransactionID: transactionID,
		TotalVolume:   result.TotalVolume,
		TotalDuration: result.TotalDuration,
	}

	owner, err := s.repo.GetByEsimTranNo(row.EsimTranNo)
	if err == nil && owner != nil {
		if err := s.reconcileFull(ctx, owner.ICCID); err != nil {
			return nil, err
		}
	}
	return outcome, nil
}

// checkTopUpEligibility enforces the two-part top-up gate: the provider
// flag must be set, and the latest reconciled state must be New, Onboard or
// In Use. An unset flag refuses regardless of state, without an upstream
// call.
func (s *Service) checkTopUpEligibility(ctx context.Context, supportsTopUp bool, iccid string) error {
	if !supportsTopUp {
		return &NotEligibleError{Operation: ActionTopUp, State: StateUnknown}
	}

	info, err := s.lookupProfile(ctx, iccid)
	if err != nil {
		return err
	}
	state := StateUnknown
	if info != nil {
		state = Classify(info.SmdpStatus, info.EsimStatus)
	}
	switch state {
	case StateNew, StateOnboard, StateInUse:
		return nil
	}
	return &NotEligibleError{Operation: ActionTopUp, State: state}
}

// RefreshUsage fetches the usage snapshot for a profile and applies the
// lightweight reconciliation. Legal only while the profile is In Use;
// otherwise the provider is not called at all.
func (s *Service) RefreshUsage(ctx context.Context, userID uint, iccid string) (*ProfileStatus, error) {
	s.locks.Lock(iccid)
	defer s.locks.Unlock(iccid)

	row, err := s.ownedProfile(userID, iccid)
	if err != nil {
		return nil, err
	}
	if row.EsimTranNo == "" {
		return nil, ErrMissingReference
	}

	info, err := s.lookupProfile(ctx, iccid)
	if err != nil {
		return nil, err
	}
	state := StateUnknown
	if info != nil {
		state = Classify(info.SmdpStatus, info.EsimStatus)
	}
	if state != StateInUse {
		return nil, &NotEligibleError{Operation: ActionRefreshUsage, State: state}
	}

	usage, err := s.api.Usage(ctx, row.EsimTranNo)
	if err != nil {
		return nil, upstream(err)
	}
	if err := s.ApplyUsage(iccid, usage); err != nil {
		return nil, err
	}
	return s.storedStatus(userID, iccid)
}

// storedStatus rebuilds the profile view from the ledger after a
// reconciliation write.
func (s *Service) storedStatus(userID uint, iccid string) (*ProfileStatus, error) {
	row, err := s.ownedProfile(userID, iccid)
	if err != nil {
		return nil, err
	}
	state := Classify(row.SmdpStatus, row.EsimStatus)
	return &ProfileStatus{Profile: row, State: state, Actions: AvailableActions(state, row.SupportsTopUp())}, nil
}
