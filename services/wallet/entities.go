package main

import (
	"time"
)

// Transaction representa uma tentativa de pagamento de top-up
type Transaction struct {
	OrderID         string         `json:"order_id" db:"order_id"`
	UserID          string         `json:"user_id" db:"user_id"`
	ServiceID       string         `json:"service_id" db:"service_id"`
	ServiceName     string         `json:"service_name" db:"service_name"`
	Amount          int64          `json:"amount" db:"amount"`
	Status          string         `json:"status" db:"status"`
	GatewayResponse map[string]any `json:"gateway_response,omitempty" db:"gateway_response"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at" db:"updated_at"`
}

// NewTransaction cria uma nova instância de Transaction no estado pendente
func NewTransaction(orderID, userID, serviceID, serviceName string, amount int64) *Transaction {
	return &Transaction{
		OrderID:     orderID,
		UserID:      userID,
		ServiceID:   serviceID,
		ServiceName: serviceName,
		Amount:      amount,
		Status:      TransactionStatusPending,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
}

// TransactionStatus representa os possíveis status internos de uma transação
const (
	TransactionStatusPending   = "pending"
	TransactionStatusSuccess   = "success"
	TransactionStatusChallenge = "challenge"
	TransactionStatusFailed    = "failed"
)

// BalanceLog representa um evento imutável de mudança de saldo (trilha de auditoria)
type BalanceLog struct {
	ID              string    `json:"id" db:"id"`
	UserID          string    `json:"user_id" db:"user_id"`
	Amount          int64     `json:"amount" db:"amount"`
	Action          string    `json:"action" db:"action"`
	Reason          string    `json:"reason" db:"reason"`
	OrderID         string    `json:"order_id,omitempty" db:"order_id"`
	PreviousBalance int64     `json:"previous_balance" db:"previous_balance"`
	NewBalance      int64     `json:"new_balance" db:"new_balance"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// NewBalanceLog cria uma nova instância de BalanceLog
func NewBalanceLog(id, userID string, amount int64, action, reason, orderID string, previousBalance, newBalance int64) *BalanceLog {
	return &BalanceLog{
		ID:              id,
		UserID:          userID,
		Amount:          amount,
		Action:          action,
		Reason:          reason,
		OrderID:         orderID,
		PreviousBalance: previousBalance,
		NewBalance:      newBalance,
		CreatedAt:       time.Now(),
	}
}

// BalanceAction representa as ações possíveis sobre o saldo
const (
	BalanceActionAdd      = "add"
	BalanceActionSubtract = "subtract"
	BalanceActionSet      = "set"
)

// User representa um usuário dono de um saldo
type User struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	Balance   int64     `json:"balance" db:"balance"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// mapGatewayStatus mapeia o vocabulário de status do gateway para o status interno.
// Função total: qualquer status desconhecido cai em pending para não perder a transação.
func mapGatewayStatus(transactionStatus, fraudStatus string) string {
	switch transactionStatus {
	case "capture":
		if fraudStatus == "challenge" {
			return TransactionStatusChallenge
		}
		if fraudStatus == "accept" {
			return TransactionStatusSuccess
		}
		return TransactionStatusPending
	case "settlement":
		return TransactionStatusSuccess
	case "cancel", "deny", "expire":
		return TransactionStatusFailed
	case "pending":
		return TransactionStatusPending
	default:
		return TransactionStatusPending
	}
}

// applyBalanceAction calcula o novo saldo a partir da ação. O subtract tem piso
// em zero: o saldo nunca fica negativo.
func applyBalanceAction(action string, previousBalance, amount int64) (int64, error) {
	switch action {
	case BalanceActionAdd:
		if amount < 0 {
			return 0, ErrInvalidAmount
		}
		return previousBalance + amount, nil
	case BalanceActionSubtract:
		newBalance := previousBalance - amount
		if newBalance < 0 {
			newBalance = 0
		}
		return newBalance, nil
	case BalanceActionSet:
		if amount < 0 {
			return 0, ErrInvalidAmount
		}
		return amount, nil
	default:
		return 0, ErrInvalidAction
	}
}
