package provision

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/BorisBinyaminov/eSIM/internal/pkg/esimapi"
)

// ApplyUsage is the lightweight reconciliation entry point: it merges a
// usage snapshot into the ledger row for iccid. Unknown ICCIDs are a no-op.
// Consumed data is stored verbatim, never clamped to the allowance, and an
// unchanged snapshot writes nothing so repeated reconciliation leaves the
// row byte-identical.
func (s *Service) ApplyUsage(iccid string, usage *esimapi.UsageInfo) error {
	row, err := s.repo.GetByICCID(iccid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	fields := map[string]interface{}{}
	if row.OrderUsage != usage.OrderUsage {
		fields["order_usage"] = usage.OrderUsage
	}
	if usage.TotalVolume > 0 && row.TotalVolume != usage.TotalVolume {
		fields["total_volume"] = usage.TotalVolume
	}
	if t := parseProviderTime(usage.LastUpdateTime); t != nil {
		if row.LastSyncAt == nil || !row.LastSyncAt.Equal(*t) {
			fields["last_sync_at"] = t
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return s.repo.UpdateFields(iccid, fields)
}

// ApplyFull is the full-field reconciliation entry point, used after any
// lifecycle operation: status pair, allowance, usage, duration, expiry,
// top-up flag, transaction reference and raw payload are merged from the
// provider's latest answer. Unknown ICCIDs are a no-op; an unchanged
// payload writes nothing.
func (s *Service) ApplyFull(iccid string, info *esimapi.ProfileInfo) error {
	row, err := s.repo.GetByICCID(iccid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	fields := map[string]interface{}{}
	if row.SmdpStatus != info.SmdpStatus {
		fields["smdp_status"] = info.SmdpStatus
	}
	if row.EsimStatus != info.EsimStatus {
		fields["esim_status"] = info.EsimStatus
	}
	if row.SupportTopUp != info.SupportTopUp {
		fields["support_top_up"] = info.SupportTopUp
	}
	if row.TotalVolume != info.TotalVolume {
		fields["total_volume"] = info.TotalVolume
	}
	if row.OrderUsage != info.OrderUsage {
		fields["order_usage"] = info.OrderUsage
	}
	if row.TotalDuration != info.TotalDuration {
		fields["total_duration"] = info.TotalDuration
	}
	if info.EsimTranNo != "" && row.EsimTranNo != info.EsimTranNo {
		fields["esim_tran_no"] = info.EsimTranNo
	}
	if t := parseProviderTime(info.ExpiredTime); t != nil {
		if row.ExpiredTime == nil || !row.ExpiredTime.Equal(*t) {
			fields["expired_time"] = t
		}
	}
	if t := parseProviderTime(info.LastUpdateTime); t != nil {
		if row.LastSyncAt == nil || !row.LastSyncAt.Equal(*t) {
			fields["last_sync_at"] = t
		}
	}
	if len(info.Raw) > 0 && !rawEquals(row.RawPayloadJSON, string(info.Raw)) {
		fields["raw_payload_json"] = string(info.Raw)
	}
	if len(fields) == 0 {
		return nil
	}
	return s.repo.UpdateFields(iccid, fields)
}

// lookupProfile queries the provider by ICCID, retrying a small fixed
// number of times for fresh profiles that have not propagated upstream
// yet. Exhausting the retries yields (nil, nil) — "unknown", never a
// failure. Only context cancellation aborts the lookup.
func (s *Service) lookupProfile(ctx context.Context, iccid string) (*esimapi.ProfileInfo, error) {
	attempts := s.cfg.LookupRetries
	if attempts < 1 {
		attempts = 1
	}

	for i := 0; i < attempts; i++ {
		info, err := s.api.QueryByICCID(ctx, iccid)
		if err == nil && info != nil {
			return info, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if i < attempts-1 {
			if err := sleepCtx(ctx, s.cfg.LookupDelay); err != nil {
				return nil, err
			}
		}
	}
	return nil, nil
}

// reconcileFull fetches the latest remote state of iccid and merges it.
// Used after lifecycle operations; a provider that does not know the ICCID
// yet leaves the ledger untouched.
func (s *Service) reconcileFull(ctx context.Context, iccid string) error {
	info, err := s.lookupProfile(ctx, iccid)
	if err != nil {
		return err
	}
	if info == nil {
		return nil
	}
	return s.ApplyFull(iccid, info)
}
