package razorpay

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"busticket/internal/usecase"

	"github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"
)

// paymentFetcher is satisfied by the razorpay client's Payment resource.
type paymentFetcher interface {
	Fetch(paymentID string, queryParams map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

// Verifier confirms checkout results with Razorpay before a ticket is issued.
type Verifier struct {
	payments  paymentFetcher
	keySecret string
	currency  string
}

func NewVerifier(keyID, keySecret, currency string) (*Verifier, error) {
	if keyID == "" || keySecret == "" {
		return nil, fmt.Errorf("razorpay: key id and key secret are required")
	}
	client := razorpay.NewClient(keyID, keySecret)
	return &Verifier{payments: client.Payment, keySecret: keySecret, currency: currency}, nil
}

func (v *Verifier) Verify(ctx context.Context, c usecase.PaymentConfirmation) (*usecase.VerifiedPayment, error) {
	if strings.TrimSpace(c.PaymentID) == "" {
		return nil, fmt.Errorf("%w: missing payment id", usecase.ErrPaymentUnconfirmed)
	}

	if c.OrderID != "" {
		attrs := map[string]interface{}{
			"razorpay_order_id":   c.OrderID,
			"razorpay_payment_id": c.PaymentID,
		}
		if !utils.VerifyPaymentSignature(attrs, c.Signature, v.keySecret) {
			return nil, fmt.Errorf("%w: checkout signature mismatch", usecase.ErrPaymentUnconfirmed)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// A failed fetch is not a rejection of the payment.
	p, err := v.payments.Fetch(c.PaymentID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch payment %s: %w", c.PaymentID, err)
	}

	status, _ := p["status"].(string)
	if status != "captured" && status != "authorized" {
		return nil, fmt.Errorf("%w: payment status %q", usecase.ErrPaymentUnconfirmed, status)
	}

	amount, ok := paise(p["amount"])
	if !ok || amount != c.Amount*100 {
		return nil, fmt.Errorf("%w: paid amount %v does not match fare %d", usecase.ErrPaymentUnconfirmed, p["amount"], c.Amount)
	}

	if cur, _ := p["currency"].(string); v.currency != "" && cur != "" && !strings.EqualFold(cur, v.currency) {
		return nil, fmt.Errorf("%w: currency %s, want %s", usecase.ErrPaymentUnconfirmed, cur, v.currency)
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal gateway response: %w", err)
	}

	return &usecase.VerifiedPayment{PaymentID: c.PaymentID, Status: status, Raw: raw}, nil
}

// paise reads an amount the JSON decoder may have produced as any number type.
func paise(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), n == float64(int64(n))
	case int:
		return int64(n), true
	case int64:
		return n, true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}
