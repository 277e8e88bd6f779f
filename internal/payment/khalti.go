package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"alcyxob/gym-app/internal/domain"
)

// Khalti lookup statuses.
const (
	khaltiCompleted         = "Completed"
	khaltiPending           = "Pending"
	khaltiInitiated         = "Initiated"
	khaltiRefunded          = "Refunded"
	khaltiPartiallyRefunded = "Partially Refunded"
	khaltiExpired           = "Expired"
	khaltiCanceled          = "User canceled"
)

// KhaltiGateway calls the Khalti ePayment (KPG-2) API. Amounts are in paisa
// and only NPR is accepted.
type KhaltiGateway struct {
	secretKey  string
	baseURL    string
	websiteURL string
	client     *http.Client
}

var _ Gateway = (*KhaltiGateway)(nil)

func NewKhaltiGateway(secretKey, baseURL, websiteURL string) *KhaltiGateway {
	return &KhaltiGateway{
		secretKey:  secretKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		websiteURL: websiteURL,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

func (g *KhaltiGateway) Provider() domain.PaymentProvider { return domain.ProviderKhalti }

type khaltiCustomer struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

type khaltiInitiateRequest struct {
	ReturnURL         string          `json:"return_url"`
	WebsiteURL        string          `json:"website_url"`
	Amount            int64           `json:"amount"`
	PurchaseOrderID   string          `json:"purchase_order_id"`
	PurchaseOrderName string          `json:"purchase_order_name"`
	CustomerInfo      *khaltiCustomer `json:"customer_info,omitempty"`
}

type khaltiInitiateResponse struct {
	Pidx       string `json:"pidx"`
	PaymentURL string `json:"payment_url"`
	ExpiresAt  string `json:"expires_at"`
}

type khaltiLookupResponse struct {
	Pidx          string `json:"pidx"`
	TotalAmount   int64  `json:"total_amount"`
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id"`
	Refunded      bool   `json:"refunded"`
}

func (g *KhaltiGateway) Initiate(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	if !strings.EqualFold(req.Currency, "npr") {
		return nil, ErrUnsupportedCurrency
	}
	body := khaltiInitiateRequest{
		ReturnURL:         req.SuccessURL,
		WebsiteURL:        g.websiteURL,
		Amount:            req.Amount,
		PurchaseOrderID:   req.PaymentID,
		PurchaseOrderName: req.Description,
	}
	if req.CustomerName != "" || req.CustomerEmail != "" {
		body.CustomerInfo = &khaltiCustomer{Name: req.CustomerName, Email: req.CustomerEmail}
	}

	var out khaltiInitiateResponse
	if err := g.post(ctx, "/epayment/initiate/", body, &out); err != nil {
		return nil, fmt.Errorf("initiating khalti payment: %w", err)
	}
	if out.Pidx == "" || out.PaymentURL == "" {
		return nil, fmt.Errorf("initiating khalti payment: empty pidx or payment_url")
	}
	return &Checkout{Ref: out.Pidx, RedirectURL: out.PaymentURL}, nil
}

func (g *KhaltiGateway) Verify(ctx context.Context, pidx string) (*Verification, error) {
	var out khaltiLookupResponse
	if err := g.post(ctx, "/epayment/lookup/", map[string]string{"pidx": pidx}, &out); err != nil {
		return nil, fmt.Errorf("looking up khalti payment: %w", err)
	}

	v := &Verification{Amount: out.TotalAmount}
	switch out.Status {
	case khaltiCompleted:
		v.Status = domain.PaymentCompleted
	case khaltiPending, khaltiInitiated:
		v.Status = domain.PaymentPending
	case khaltiExpired, khaltiCanceled:
		v.Status = domain.PaymentCancelled
		v.Reason = out.Status
	case khaltiRefunded, khaltiPartiallyRefunded:
		v.Status = domain.PaymentFailed
		v.Reason = out.Status
	default:
		v.Status = domain.PaymentFailed
		v.Reason = "unknown khalti status " + out.Status
	}
	return v, nil
}

// khaltiError is the error body returned with 4xx responses.
type khaltiError struct {
	Detail   string `json:"detail"`
	ErrorKey string `json:"error_key"`
}

func (g *KhaltiGateway) post(ctx context.Context, path string, in, out any) error {
	if g.secretKey == "" {
		return ErrNotConfigured
	}
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Key "+g.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var ke khaltiError
		_ = json.Unmarshal(raw, &ke)
		return fmt.Errorf("khalti %s: status %d: %s", path, resp.StatusCode, firstNonEmpty(ke.Detail, string(raw)))
	}
	return json.Unmarshal(raw, out)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
