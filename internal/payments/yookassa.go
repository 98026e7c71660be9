package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/your-org/photomarket/internal/config"
)

const currency = "RUB"

// YooKassa is a minimal client for the YooKassa v3 REST API.
type YooKassa struct {
	client    *http.Client
	baseURL   string
	shopID    string
	secretKey string
	returnURL string
}

func NewYooKassa(cfg config.PaymentsConfig) *YooKassa {
	return &YooKassa{
		client:    &http.Client{Timeout: cfg.Timeout},
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		shopID:    cfg.ShopID,
		secretKey: cfg.SecretKey,
		returnURL: cfg.ReturnURL,
	}
}

type amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type confirmation struct {
	Type            string `json:"type"`
	ReturnURL       string `json:"return_url,omitempty"`
	ConfirmationURL string `json:"confirmation_url,omitempty"`
}

type createPaymentRequest struct {
	Amount       amount            `json:"amount"`
	Confirmation confirmation      `json:"confirmation"`
	Capture      bool              `json:"capture"`
	Description  string            `json:"description"`
	Metadata     map[string]string `json:"metadata"`
}

type paymentResponse struct {
	ID           string       `json:"id"`
	Status       string       `json:"status"`
	Confirmation confirmation `json:"confirmation"`
}

// CreatePayment registers a captured redirect payment. The purchase id is the
// idempotence key, so retrying the same purchase never charges twice.
func (y *YooKassa) CreatePayment(ctx context.Context, req CreateRequest) (*Payment, error) {
	body, err := json.Marshal(createPaymentRequest{
		Amount:       amount{Value: req.Amount.StringFixed(2), Currency: currency},
		Confirmation: confirmation{Type: "redirect", ReturnURL: y.returnURL},
		Capture:      true,
		Description:  req.Description,
		Metadata:     map[string]string{"purchase_id": req.PurchaseID.String()},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal payment request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, y.baseURL+"/payments", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotence-Key", req.PurchaseID.String())
	return y.do(httpReq)
}

// GetPayment fetches the current state of a payment.
func (y *YooKassa) GetPayment(ctx context.Context, id string) (*Payment, error) {
	if id == "" || strings.ContainsAny(id, "/?#") {
		return nil, fmt.Errorf("invalid payment id %q", id)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, y.baseURL+"/payments/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return y.do(httpReq)
}

func (y *YooKassa) do(httpReq *http.Request) (*Payment, error) {
	httpReq.SetBasicAuth(y.shopID, y.secretKey)

	resp, err := y.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send payment request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read payment response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("payment request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var out paymentResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unmarshal payment response: %w", err)
	}
	if out.ID == "" {
		return nil, fmt.Errorf("payment response without id")
	}
	return &Payment{
		ID:              out.ID,
		Status:          out.Status,
		ConfirmationURL: out.Confirmation.ConfirmationURL,
	}, nil
}
