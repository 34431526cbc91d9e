package main

// CheckoutRequest representa a requisição para iniciar um pagamento de top-up
type CheckoutRequest struct {
	OrderID         string         `json:"order_id"`
	UserID          string         `json:"user_id" binding:"required"`
	ServiceID       string         `json:"service_id" binding:"required"`
	ServiceName     string         `json:"service_name" binding:"required"`
	Amount          int64          `json:"amount" binding:"required,gt=0"`
	CustomerDetails map[string]any `json:"customer_details,omitempty"`
	ItemDetails     []any          `json:"item_details,omitempty"`
}

// CheckoutResponse representa o token de checkout devolvido pelo gateway
type CheckoutResponse struct {
	OrderID     string `json:"order_id"`
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}

// BalanceAdjustRequest representa o ajuste manual de saldo (painel administrativo)
type BalanceAdjustRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Amount int64  `json:"amount" binding:"required"`
	Action string `json:"action"`
	Reason string `json:"reason"`
}

// BalanceAdjustResponse representa o resultado de um ajuste de saldo
type BalanceAdjustResponse struct {
	Success         bool   `json:"success"`
	PreviousBalance int64  `json:"previous_balance"`
	NewBalance      int64  `json:"new_balance"`
	Message         string `json:"message"`
}

// ReconciliationResult representa o resultado do processamento de uma notificação
type ReconciliationResult struct {
	OrderID        string `json:"order_id"`
	Status         string `json:"status"`
	BalanceUpdated bool   `json:"-"`
}
