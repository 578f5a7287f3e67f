package provision

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BorisBinyaminov/eSIM/app/models"
	"github.com/BorisBinyaminov/eSIM/internal/pkg/esimapi"
)

func remoteProfile(iccid, tranNo, smdpStatus, esimStatus string) func(string) (*esimapi.ProfileInfo, error) {
	return func(string) (*esimapi.ProfileInfo, error) {
		info := allocatedProfile(iccid, tranNo)
		info.SmdpStatus = smdpStatus
		info.EsimStatus = esimStatus
		return &info, nil
	}
}

func TestCancelRevokesFreshProfile(t *testing.T) {
	iccid := "8943108888000000001"
	api := &fakeAPI{}
	api.queryICCIDFn = func(string) (*esimapi.ProfileInfo, error) {
		info := allocatedProfile(iccid, "T-001")
		if api.cancelCalls > 0 {
			info.SmdpStatus = models.SmdpStatusDeleted
		}
		return &info, nil
	}
	repo := newFakeRepo()
	repo.profiles[iccid] = storedProfile(1, iccid, "T-001")
	svc := newTestService(api, repo)

	status, err := svc.Cancel(context.Background(), 1, iccid)
	require.NoError(t, err)

	assert.Equal(t, 1, api.cancelCalls)
	assert.Equal(t, "T-001", api.lastCancel)
	assert.Equal(t, StateDeleted, status.State)
	assert.Empty(t, status.Actions)
	// The ledger row survives cancellation with the reconciled pair.
	assert.Equal(t, models.SmdpStatusDeleted, repo.profiles[iccid].SmdpStatus)
}

func TestCancelRefusedOutsideNewState(t *testing.T) {
	iccid := "8943108888000000001"
	api := &fakeAPI{queryICCIDFn: remoteProfile(iccid, "T-001", models.SmdpStatusEnabled, models.EsimStatusInUse)}
	repo := newFakeRepo()
	repo.profiles[iccid] = storedProfile(1, iccid, "T-001")
	svc := newTestService(api, repo)

	_, err := svc.Cancel(context.Background(), 1, iccid)

	var notEligible *NotEligibleError
	require.ErrorAs(t, err, &notEligible)
	assert.Equal(t, ActionCancel, notEligible.Operation)
	assert.Equal(t, StateInUse, notEligible.State)
	assert.Equal(t, 0, api.cancelCalls, "an active profile must never reach the revocation endpoint")
}

func TestCancelRefusedWhenStateUnknown(t *testing.T) {
	iccid := "8943108888000000001"
	api := &fakeAPI{} // lookup exhausts to unknown
	repo := newFakeRepo()
	repo.profiles[iccid] = storedProfile(1, iccid, "T-001")
	svc := newTestService(api, repo)

	_, err := svc.Cancel(context.Background(), 1, iccid)

	var notEligible *NotEligibleError
	require.ErrorAs(t, err, &notEligible)
	assert.Equal(t, StateUnknown, notEligible.State)
	assert.Equal(t, 0, api.cancelCalls)
}

func TestCancelUpstreamRefusalSurfacesVerbatim(t *testing.T) {
	iccid := "8943108888000000001"
	api := &fakeAPI{
		queryICCIDFn: remoteProfile(iccid, "T-001", models.SmdpStatusReleased, models.EsimStatusGotResource),
		cancelErr:    &esimapi.Error{Code: "200004", Message: "profile already installed"},
	}
	repo := newFakeRepo()
	repo.profiles[iccid] = storedProfile(1, iccid, "T-001")
	svc := newTestService(api, repo)

	_, err := svc.Cancel(context.Background(), 1, iccid)

	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, "200004", upErr.Code)
	assert.Equal(t, "profile already installed", upErr.Message)
	assert.Equal(t, 1, api.cancelCalls, "upstream refusals are never auto-retried")
}

func TestCancelUnknownProfile(t *testing.T) {
	svc := newTestService(&fakeAPI{}, newFakeRepo())

	_, err := svc.Cancel(context.Background(), 1, "8943108888000000099")
	require.ErrorIs(t, err, ErrUnknownProfile)
}

func TestCancelMissingReference(t *testing.T) {
	iccid := "8943108888000000001"
	repo := newFakeRepo()
	row := storedProfile(1, iccid, "")
	repo.profiles[iccid] = row
	api := &fakeAPI{}
	svc := newTestService(api, repo)

	_, err := svc.Cancel(context.Background(), 1, iccid)
	require.ErrorIs(t, err, ErrMissingReference)
	assert.Equal(t, 0, api.queryICCIDCalls)
}

func TestTopUpRefusedWhenFlagUnset(t *testing.T) {
	iccid := "8943108888000000001"
	api := &fakeAPI{queryICCIDFn: remoteProfile(iccid, "T-001", models.SmdpStatusEnabled, models.EsimStatusInUse)}
	repo := newFakeRepo()
	row := storedProfile(1, iccid, "T-001")
	row.SupportTopUp = 0
	repo.profiles[iccid] = row
	svc := newTestService(api, repo)

	_, err := svc.TopUp(context.Background(), 1, TopUpInput{ICCID: iccid, PackageCode: "PKG-TOPUP-1G", Price: 5000})

	var notEligible *NotEligibleError
	require.ErrorAs(t, err, &notEligible)
	assert.Equal(t, ActionTopUp, notEligible.Operation)
	assert.Equal(t, 0, api.queryICCIDCalls, "an unset flag refuses before any remote lookup")
	assert.Equal(t, 0, api.topUpCalls)
}

func TestTopUpRefusedOutsideRechargeableStates(t *testing.T) {
	iccid := "8943108888000000001"
	api := &fakeAPI{queryICCIDFn: remoteProfile(iccid, "T-001", models.SmdpStatusEnabled, models.EsimStatusUsedUp)}
	repo := newFakeRepo()
	repo.profiles[iccid] = storedProfile(1, iccid, "T-001")
	svc := newTestService(api, repo)

	_, err := svc.TopUp(context.Background(), 1, TopUpInput{ICCID: iccid, PackageCode: "PKG-TOPUP-1G", Price: 5000})

	var notEligible *NotEligibleError
	require.ErrorAs(t, err, &notEligible)
	assert.Equal(t, StateDepleted, notEligible.State)
	assert.Equal(t, 0, api.topUpCalls)
}

func TestTopUpMintsFreshTransactionToken(t *testing.T) {
	iccid := "8943108888000000001"
	api := &fakeAPI{queryICCIDFn: remoteProfile(iccid, "T-001", models.SmdpStatusEnabled, models.EsimStatusInUse)}
	repo := newFakeRepo()
	repo.profiles[iccid] = storedProfile(1, iccid, "T-001")
	svc := newTestService(api, repo)

	outcome, err := svc.TopUp(context.Background(), 1, TopUpInput{ICCID: iccid, PackageCode: "PKG-TOPUP-1G", Price: 5000})
	require.NoError(t, err)

	assert.Equal(t, 1, api.topUpCalls)
	assert.Equal(t, "T-001", api.lastTopUp.EsimTranNo)
	assert.Equal(t, "PKG-TOPUP-1G", api.lastTopUp.PackageCode)
	assert.Equal(t, int64(5000), api.lastTopUp.Price)
	assert.Equal(t, int64(5000), api.lastTopUp.Amount)
	assert.NotEmpty(t, outcome.TransactionID)
	assert.NotEqual(t, "purchase-token", outcome.TransactionID, "a recharge must not reuse the purchase token")
	assert.Equal(t, int64(2<<30), outcome.TotalVolume)
	assert.Equal(t, 14, outcome.TotalDuration)
}

func TestTopUpReconcilesOwnerAfterSuccess(t *testing.T) {
	iccid := "8943108888000000001"
	api := &fakeAPI{}
	api.queryICCIDFn = func(string) (*esimapi.ProfileInfo, error) {
		info := allocatedProfile(iccid, "T-001")
		info.SmdpStatus = models.SmdpStatusEnabled
		info.EsimStatus = models.EsimStatusInUse
		if api.topUpCalls > 0 {
			info.TotalVolume = 2 << 30
			info.TotalDuration = 14
		}
		return &info, nil
	}
	repo := newFakeRepo()
	repo.profiles[iccid] = storedProfile(1, iccid, "T-001")
	svc := newTestService(api, repo)

	_, err := svc.TopUp(context.Background(), 1, TopUpInput{ICCID: iccid, PackageCode: "PKG-TOPUP-1G", Price: 5000})
	require.NoError(t, err)

	row := repo.profiles[iccid]
	assert.Equal(t, int64(2<<30), row.TotalVolume)
	assert.Equal(t, 14, row.TotalDuration)
}

func TestTopUpPackagesSortedByRetailPrice(t *testing.T) {
	iccid := "8943108888000000001"
	api := &fakeAPI{
		queryICCIDFn: remoteProfile(iccid, "T-001", models.SmdpStatusEnabled, models.EsimStatusInUse),
		topUpPackages: []esimapi.TopUpPackage{
			{PackageCode: "PKG-TOPUP-5G", RetailPrice: 18000},
			{PackageCode: "PKG-TOPUP-1G", RetailPrice: 5000},
			{PackageCode: "PKG-TOPUP-3G", RetailPrice: 12000},
		},
	}
	repo := newFakeRepo()
	repo.profiles[iccid] = storedProfile(1, iccid, "T-001")
	svc := newTestService(api, repo)

	packages, err := svc.TopUpPackages(context.Background(), 1, iccid)
	require.NoError(t, err)
	require.Len(t, packages, 3)
	assert.Equal(t, "PKG-TOPUP-1G", packages[0].PackageCode)
	assert.Equal(t, "PKG-TOPUP-3G", packages[1].PackageCode)
	assert.Equal(t, "PKG-TOPUP-5G", packages[2].PackageCode)
}

func TestRefreshUsageOnlyWhileInUse(t *testing.T) {
	iccid := "8943108888000000001"
	api := &fakeAPI{queryICCIDFn: remoteProfile(iccid, "T-001", models.SmdpStatusEnabled, models.EsimStatusGotResource)}
	repo := newFakeRepo()
	repo.profiles[iccid] = storedProfile(1, iccid, "T-001")
	svc := newTestService(api, repo)

	_, err := svc.RefreshUsage(context.Background(), 1, iccid)

	var notEligible *NotEligibleError
	require.ErrorAs(t, err, &notEligible)
	assert.Equal(t, ActionRefreshUsage, notEligible.Operation)
	assert.Equal(t, StateOnboard, notEligible.State)
	assert.Equal(t, 0, api.usageCalls, "no usage call outside the In Use state")
}

func TestRefreshUsageStoresConsumptionVerbatim(t *testing.T) {
	iccid := "8943108888000000001"
	api := &fakeAPI{queryICCIDFn: remoteProfile(iccid, "T-001", models.SmdpStatusEnabled, models.EsimStatusInUse)}
	// Overrun beyond the allowance is reported as-is, never clamped.
	api.usageFn = func(string) (*esimapi.UsageInfo, error) {
		return &esimapi.UsageInfo{OrderUsage: (1 << 30) + 555, LastUpdateTime: "2026-08-20T10:00:00Z"}, nil
	}
	repo := newFakeRepo()
	row := storedProfile(1, iccid, "T-001")
	row.SmdpStatus = models.SmdpStatusEnabled
	row.EsimStatus = models.EsimStatusInUse
	repo.profiles[iccid] = row
	svc := newTestService(api, repo)

	status, err := svc.RefreshUsage(context.Background(), 1, iccid)
	require.NoError(t, err)

	assert.Equal(t, 1, api.usageCalls)
	assert.Equal(t, int64((1<<30)+555), repo.profiles[iccid].OrderUsage)
	require.NotNil(t, repo.profiles[iccid].LastSyncAt)
	assert.Equal(t, StateInUse, status.State)
}
