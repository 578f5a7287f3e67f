package provision

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/BorisBinyaminov/eSIM/app/models"
	"github.com/BorisBinyaminov/eSIM/internal/pkg/esimapi"
)

// fakeAPI implements ProviderAPI with programmable responses and call
// counters.
type fakeAPI struct {
	balance    int64
	balanceErr error

	orderFn    func(req esimapi.OrderRequest) (*esimapi.OrderResult, error)
	orderCalls int
	lastOrder  esimapi.OrderRequest

	queryOrderFn    func(call int) ([]esimapi.ProfileInfo, error)
	queryOrderCalls int

	queryICCIDFn    func(iccid string) (*esimapi.ProfileInfo, error)
	queryICCIDCalls int

	cancelErr   error
	cancelCalls int
	lastCancel  string

	topUpPackages []esimapi.TopUpPackage

	topUpFn    func(req esimapi.TopUpRequest) (*esimapi.TopUpResult, error)
	topUpCalls int
	lastTopUp  esimapi.TopUpRequest

	usageFn    func(esimTranNo string) (*esimapi.UsageInfo, error)
	usageCalls int
}

func (f *fakeAPI) Balance(ctx context.Context) (int64, error) {
	if f.balanceErr != nil {
		return 0, f.balanceErr
	}
	return f.balance, nil
}

func (f *fakeAPI) Order(ctx context.Context, req esimapi.OrderRequest) (*esimapi.OrderResult, error) {
	f.orderCalls++
	f.lastOrder = req
	if f.orderFn != nil {
		return f.orderFn(req)
	}
	return &esimapi.OrderResult{OrderNo: "B23072001"}, nil
}

func (f *fakeAPI) QueryByOrderNo(ctx context.Context, orderNo string) ([]esimapi.ProfileInfo, error) {
	f.queryOrderCalls++
	if f.queryOrderFn != nil {
		return f.queryOrderFn(f.queryOrderCalls)
	}
	return nil, nil
}

func (f *fakeAPI) QueryByICCID(ctx context.Context, iccid string) (*esimapi.ProfileInfo, error) {
	f.queryICCIDCalls++
	if f.queryICCIDFn != nil {
		return f.queryICCIDFn(iccid)
	}
	return nil, nil
}

func (f *fakeAPI) Cancel(ctx context.Context, esimTranNo string) error {
	f.cancelCalls++
	f.lastCancel = esimTranNo
	return f.cancelErr
}

func (f *fakeAPI) TopUpPackages(ctx context.Context, iccid string) ([]esimapi.TopUpPackage, error) {
	return f.topUpPackages, nil
}

func (f *fakeAPI) TopUp(ctx context.Context, req esimapi.TopUpRequest) (*esimapi.TopUpResult, error) {
	f.topUpCalls++
	f.lastTopUp = req
	if f.topUpFn != nil {
		return f.topUpFn(req)
	}
	return &esimapi.TopUpResult{TotalVolume: 2 << 30, TotalDuration: 14}, nil
}

func (f *fakeAPI) Usage(ctx context.Context, esimTranNo string) (*esimapi.UsageInfo, error) {
	f.usageCalls++
	if f.usageFn != nil {
		return f.usageFn(esimTranNo)
	}
	return &esimapi.UsageInfo{}, nil
}

// fakeRepo is an in-memory ledger keyed by ICCID.
type fakeRepo struct {
	profiles    map[string]*models.EsimProfile
	createErr   error
	updateCalls int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{profiles: make(map[string]*models.EsimProfile)}
}

func (r *fakeRepo) GetByICCID(iccid string) (*models.EsimProfile, error) {
	row, ok := r.profiles[iccid]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *row
	return &clone, nil
}

func (r *fakeRepo) GetByEsimTranNo(esimTranNo string) (*models.EsimProfile, error) {
	for _, row := range r.profiles {
		if row.EsimTranNo == esimTranNo {
			clone := *row
			return &clone, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) ListByUser(userID uint) ([]models.EsimProfile, error) {
	var rows []models.EsimProfile
	for _, row := range r.profiles {
		if row.UserID == userID {
			rows = append(rows, *row)
		}
	}
	return rows, nil
}

func (r *fakeRepo) CreateProfiles(profiles []*models.EsimProfile) error {
	if r.createErr != nil {
		return r.createErr
	}
	for _, p := range profiles {
		if _, exists := r.profiles[p.ICCID]; exists {
			return fmt.Errorf("duplicate iccid %s", p.ICCID)
		}
	}
	for _, p := range profiles {
		clone := *p
		r.profiles[p.ICCID] = &clone
	}
	return nil
}

func (r *fakeRepo) UpdateFields(iccid string, fields map[string]interface{}) error {
	row, ok := r.profiles[iccid]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	r.updateCalls++
	for column, value := range fields {
		switch column {
		case "smdp_status":
			row.SmdpStatus = value.(string)
		case "esim_status":
			row.EsimStatus = value.(string)
		case "support_top_up":
			row.SupportTopUp = value.(int)
		case "total_volume":
			row.TotalVolume = value.(int64)
		case "order_usage":
			row.OrderUsage = value.(int64)
		case "total_duration":
			row.TotalDuration = value.(int)
		case "esim_tran_no":
			row.EsimTranNo = value.(string)
		case "expired_time":
			row.ExpiredTime = value.(*time.Time)
		case "last_sync_at":
			row.LastSyncAt = value.(*time.Time)
		case "raw_payload_json":
			row.RawPayloadJSON = value.(string)
		default:
			return fmt.Errorf("unexpected column %s", column)
		}
	}
	return nil
}

func (r *fakeRepo) Count() (int64, error) {
	return int64(len(r.profiles)), nil
}

func testConfig() Config {
	return Config{
		WarmUpDelay:   0,
		PollInterval:  2 * time.Millisecond,
		PollBudget:    30 * time.Millisecond,
		LookupRetries: 3,
		LookupDelay:   time.Millisecond,
	}
}

func newTestService(api *fakeAPI, repo *fakeRepo) *Service {
	return NewService(api, repo, testConfig())
}

func allocatedProfile(iccid, tranNo string) esimapi.ProfileInfo {
	return esimapi.ProfileInfo{
		ICCID:         iccid,
		QRCodeURL:     "https://qr.example/" + iccid + ".png",
		AC:            "LPA:1$rsp.example$" + iccid,
		SmdpStatus:    models.SmdpStatusReleased,
		EsimStatus:    models.EsimStatusGotResource,
		EsimTranNo:    tranNo,
		SupportTopUp:  models.SupportTopUpRecharge,
		TotalVolume:   1 << 30,
		TotalDuration: 7,
		ExpiredTime:   "2026-12-31T23:59:59Z",
		Raw:           []byte(`{"iccid":"` + iccid + `"}`),
	}
}

func storedProfile(userID uint, iccid, tranNo string) *models.EsimProfile {
	return &models.EsimProfile{
		UserID:        userID,
		ICCID:         iccid,
		PackageCode:   "PKG-EU-7D",
		OrderNo:       "B23072001",
		TransactionID: "purchase-token",
		EsimTranNo:    tranNo,
		Price:         15000,
		RetailPrice:   20000,
		SmdpStatus:    models.SmdpStatusReleased,
		EsimStatus:    models.EsimStatusGotResource,
		SupportTopUp:  models.SupportTopUpRecharge,
		TotalVolume:   1 << 30,
		TotalDuration: 7,
	}
}
