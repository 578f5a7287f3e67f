package esimapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/BorisBinyaminov/eSIM/internal/pkg/env"
)

const defaultBaseURL = "https://api.esimaccess.com"

const (
	pathBalanceQuery = "/api/v1/open/balance/query"
	pathOrder        = "/api/v1/open/esim/order"
	pathQuery        = "/api/v1/open/esim/query"
	pathCancel       = "/api/v1/open/esim/cancel"
	pathTopUp        = "/api/v1/open/esim/topup"
	pathPackageList  = "/api/v1/open/package/list"
	pathUsageQuery   = "/api/v1/open/esim/usage/query"
)

// CodeAllocating is the provider error code reported while an accepted
// order has no profiles ready yet.
const CodeAllocating = "200010"

// Error is any failed provider interaction: an explicit refusal (Code and
// Message from the envelope) or a transport/decoding fault (empty Code).
// Nothing else escapes the client.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("esim api: %s", e.Message)
	}
	return fmt.Sprintf("esim api: %s (code %s)", e.Message, e.Code)
}

// IsAllocating reports whether err is the provider's "profiles not ready
// yet" refusal.
func IsAllocating(err error) bool {
	apiErr, ok := err.(*Error)
	return ok && apiErr.Code == CodeAllocating
}

// Client talks to the upstream provisioning API. Credentials travel in two
// static headers on every request.
type Client struct {
	BaseURL    string
	AccessCode string
	SecretKey  string

	HTTPClient *http.Client
}

// NewClientFromEnv builds a client from ESIM_API_* settings.
func NewClientFromEnv() *Client {
	return &Client{
		BaseURL:    strings.TrimRight(env.GetEnv("ESIM_API_BASE_URL", defaultBaseURL), "/"),
		AccessCode: strings.TrimSpace(env.GetEnv("ESIM_API_ACCESS_CODE", "")),
		SecretKey:  strings.TrimSpace(env.GetEnv("ESIM_API_SECRET_KEY", "")),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// post submits a JSON body and decodes the envelope's obj into out (when
// out is non-nil). All failures come back as *Error.
func (c *Client) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &Error{Message: fmt.Sprintf("encode request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return &Error{Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("RT-AccessCode", c.AccessCode)
	req.Header.Set("RT-SecretKey", c.SecretKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return &Error{Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{Message: fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))}
	}

	var wrapper envelope
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return &Error{Message: fmt.Sprintf("decode response: %v", err)}
	}
	if !wrapper.Success {
		msg := strings.TrimSpace(wrapper.ErrorMsg)
		if msg == "" {
			msg = "request rejected"
		}
		return &Error{Code: wrapper.ErrorCode, Message: msg}
	}
	if out != nil {
		if len(wrapper.Obj) == 0 {
			return &Error{Message: "response missing payload"}
		}
		if err := json.Unmarshal(wrapper.Obj, out); err != nil {
			return &Error{Message: fmt.Sprintf("decode payload: %v", err)}
		}
	}
	return nil
}

// Balance returns the available prepaid balance in provider units.
func (c *Client) Balance(ctx context.Context) (int64, error) {
	var obj struct {
		Balance int64 `json:"balance"`
	}
	if err := c.post(ctx, pathBalanceQuery, map[string]interface{}{}, &obj); err != nil {
		return 0, err
	}
	return obj.Balance, nil
}

// Order submits a purchase and returns the provider order acknowledgement.
func (c *Client) Order(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	var obj OrderResult
	if err := c.post(ctx, pathOrder, req, &obj); err != nil {
		return nil, err
	}
	return &obj, nil
}

type queryRequest struct {
	OrderNo string `json:"orderNo,omitempty"`
	ICCID   string `json:"iccid,omitempty"`
	Pager   pager  `json:"pager"`
}

type pager struct {
	PageNum  int `json:"pageNum"`
	PageSize int `json:"pageSize"`
}

type queryObj struct {
	EsimList []json.RawMessage `json:"esimList"`
}

func (c *Client) query(ctx context.Context, req queryRequest) ([]ProfileInfo, error) {
	var obj queryObj
	if err := c.post(ctx, pathQuery, req, &obj); err != nil {
		return nil, err
	}

	profiles := make([]ProfileInfo, 0, len(obj.EsimList))
	for _, raw := range obj.EsimList {
		var p ProfileInfo
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, &Error{Message: fmt.Sprintf("decode profile: %v", err)}
		}
		p.Raw = raw
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// QueryByOrderNo lists the profiles allocated to an order so far. An empty
// list is a valid answer while allocation is in flight.
func (c *Client) QueryByOrderNo(ctx context.Context, orderNo string) ([]ProfileInfo, error) {
	return c.query(ctx, queryRequest{OrderNo: orderNo, Pager: pager{PageNum: 1, PageSize: 50}})
}

// QueryByICCID fetches the latest remote state of a single profile. A nil
// result means the provider does not know the ICCID (yet).
func (c *Client) QueryByICCID(ctx context.Context, iccid string) (*ProfileInfo, error) {
	profiles, err := c.query(ctx, queryRequest{ICCID: iccid, Pager: pager{PageNum: 1, PageSize: 1}})
	if err != nil {
		return nil, err
	}
	if len(profiles) == 0 {
		return nil, nil
	}
	return &profiles[0], nil
}

// Cancel revokes an unused profile by its transaction reference.
func (c *Client) Cancel(ctx context.Context, esimTranNo string) error {
	payload := map[string]string{"esimTranNo": esimTranNo}
	return c.post(ctx, pathCancel, payload, nil)
}

// TopUpPackages lists the rechargeable packages available to a profile.
func (c *Client) TopUpPackages(ctx context.Context, iccid string) ([]TopUpPackage, error) {
	payload := map[string]string{"type": "TOPUP", "iccid": iccid}
	var obj struct {
		PackageList []TopUpPackage `json:"packageList"`
	}
	if err := c.post(ctx, pathPackageList, payload, &obj); err != nil {
		return nil, err
	}
	return obj.PackageList, nil
}

// TopUp recharges a profile.
func (c *Client) TopUp(ctx context.Context, req TopUpRequest) (*TopUpResult, error) {
	var obj TopUpResult
	if err := c.post(ctx, pathTopUp, req, &obj); err != nil {
		return nil, err
	}
	return &obj, nil
}

// Usage fetches the usage snapshot for a profile by transaction reference.
func (c *Client) Usage(ctx context.Context, esimTranNo string) (*UsageInfo, error) {
	payload := map[string]string{"esimTranNo": esimTranNo}
	var obj UsageInfo
	if err := c.post(ctx, pathUsageQuery, payload, &obj); err != nil {
		return nil, err
	}
	return &obj, nil
}
