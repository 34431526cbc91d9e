package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-resty/resty/v2"
)

var (
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrServerKeyMissing   = errors.New("gateway server key is not configured")
)

// SnapTransactionRequest representa o pedido de criação de transação no gateway
type SnapTransactionRequest struct {
	OrderID         string
	GrossAmount     int64
	CustomerDetails map[string]any
	ItemDetails     []any
}

// SnapTransactionResponse representa o token de checkout emitido pelo gateway
type SnapTransactionResponse struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}

// SnapGateway abstrai a API de criação de transações do gateway de pagamento
type SnapGateway interface {
	CreateSnapTransaction(ctx context.Context, req SnapTransactionRequest) (*SnapTransactionResponse, error)
}

// MidtransGateway implementa SnapGateway usando a API Snap do Midtrans
type MidtransGateway struct {
	client    *resty.Client
	serverKey string
}

// NewMidtransGateway cria uma nova instância de MidtransGateway
func NewMidtransGateway(baseURL, serverKey string) *MidtransGateway {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(15 * time.Second).
		SetHeader("Accept", "application/json")

	return &MidtransGateway{
		client:    client,
		serverKey: serverKey,
	}
}

// CreateSnapTransaction cria a transação no Snap e devolve token + redirect_url.
// A autenticação é HTTP Basic com o server key como usuário e senha vazia.
func (g *MidtransGateway) CreateSnapTransaction(ctx context.Context, req SnapTransactionRequest) (*SnapTransactionResponse, error) {
	if g.serverKey == "" {
		return nil, ErrServerKeyMissing
	}

	payload := map[string]any{
		"transaction_details": map[string]any{
			"order_id":     req.OrderID,
			"gross_amount": req.GrossAmount,
		},
		"credit_card": map[string]any{
			"secure": true,
		},
	}
	if req.CustomerDetails != nil {
		payload["customer_details"] = req.CustomerDetails
	}
	if req.ItemDetails != nil {
		payload["item_details"] = req.ItemDetails
	}

	var snap SnapTransactionResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetBasicAuth(g.serverKey, "").
		SetBody(payload).
		SetResult(&snap).
		Post("/snap/v1/transactions")
	if err != nil {
		log.Printf("❌ [GATEWAY] Snap request failed for OrderID=%s: %v", req.OrderID, err)
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	if resp.IsError() {
		log.Printf("❌ [GATEWAY] Snap returned %d for OrderID=%s: %s", resp.StatusCode(), req.OrderID, resp.String())
		return nil, fmt.Errorf("%w: gateway returned status %d", ErrGatewayUnavailable, resp.StatusCode())
	}

	return &snap, nil
}
