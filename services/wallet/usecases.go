package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrMalformedPayload    = errors.New("malformed payload")
	ErrMissingFields       = errors.New("missing required fields")
	ErrInvalidSignature    = errors.New("invalid signature")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrDuplicateOrderID    = errors.New("order id already exists")
	ErrUserNotFound        = errors.New("user not found")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidAction       = errors.New("invalid action")
)

// PaymentUseCase contém a lógica de negócio de checkout e reconciliação
type PaymentUseCase struct {
	repository       Repository
	gateway          SnapGateway
	creditsApplied   metric.Int64Counter
	duplicateCredits metric.Int64Counter
}

// NewPaymentUseCase cria uma nova instância de PaymentUseCase
func NewPaymentUseCase(repository Repository, gateway SnapGateway) *PaymentUseCase {
	meter := otel.Meter("wallet-service")
	creditsApplied, _ := meter.Int64Counter("wallet_credits_applied_total")
	duplicateCredits, _ := meter.Int64Counter("wallet_duplicate_notifications_total")

	return &PaymentUseCase{
		repository:       repository,
		gateway:          gateway,
		creditsApplied:   creditsApplied,
		duplicateCredits: duplicateCredits,
	}
}

// Checkout cria a transação pendente e obtém o token de pagamento no gateway.
// A transação é semeada ANTES da chamada ao gateway para que a notificação
// assíncrona sempre encontre o registro pelo order_id.
func (uc *PaymentUseCase) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResponse, error) {
	orderID := req.OrderID
	if orderID == "" {
		orderID = uuid.New().String()
	}

	log.Printf("➡️ [CHECKOUT] OrderID: %s | UserID: %s | Amount: %d", orderID, req.UserID, req.Amount)

	txn := NewTransaction(orderID, req.UserID, req.ServiceID, req.ServiceName, req.Amount)
	if err := uc.repository.CreateTransaction(ctx, txn); err != nil {
		log.Printf("❌ [CHECKOUT] Failed to create transaction: %v", err)
		return nil, err
	}

	snap, err := uc.gateway.CreateSnapTransaction(ctx, SnapTransactionRequest{
		OrderID:         orderID,
		GrossAmount:     req.Amount,
		CustomerDetails: req.CustomerDetails,
		ItemDetails:     req.ItemDetails,
	})
	if err != nil {
		log.Printf("❌ [CHECKOUT] Gateway call failed for OrderID=%s: %v", orderID, err)
		uc.failTransaction(ctx, orderID)
		return nil, err
	}

	log.Printf("✅ [CHECKOUT] Snap token issued: OrderID=%s", orderID)
	return &CheckoutResponse{
		OrderID:     orderID,
		Token:       snap.Token,
		RedirectURL: snap.RedirectURL,
	}, nil
}

// failTransaction marca a transação como failed quando o gateway nunca chegou a
// conhecer o pedido (nenhuma notificação virá para este order_id)
func (uc *PaymentUseCase) failTransaction(ctx context.Context, orderID string) {
	tx, err := uc.repository.BeginTx(ctx)
	if err != nil {
		log.Printf("ℹ️ [CHECKOUT] Could not mark transaction failed: %v", err)
		return
	}
	defer tx.Rollback()

	if err := uc.repository.UpdateTransactionStatus(ctx, tx, orderID, TransactionStatusFailed, nil); err != nil {
		log.Printf("ℹ️ [CHECKOUT] Could not mark transaction failed: %v", err)
		return
	}
	if err := tx.Commit(); err != nil {
		log.Printf("ℹ️ [CHECKOUT] Could not mark transaction failed: %v", err)
	}
}

// ProcessNotification reconcilia uma notificação do gateway com o estado interno.
// Reexecutável com segurança: o gateway reenvia notificações e entregas duplicadas
// nunca podem creditar o saldo duas vezes.
func (uc *PaymentUseCase) ProcessNotification(ctx context.Context, n *Notification) (*ReconciliationResult, error) {
	log.Printf("➡️ [NOTIFICATION] OrderID: %s | GatewayStatus: %s | FraudStatus: %s",
		n.OrderID, n.TransactionStatus, n.FraudStatus)

	// 1. Inicia a transação de banco
	tx, err := uc.repository.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin reconciliation tx: %w", err)
	}
	defer tx.Rollback()

	// 2. Busca a transação com LOCK PESSIMISTA (FOR UPDATE).
	// Notificações concorrentes para o mesmo order_id ficam serializadas aqui.
	// Order_id desconhecido é rejeitado: nunca criamos registros a partir do webhook.
	txn, err := uc.repository.GetTransactionForUpdate(ctx, tx, n.OrderID)
	if err != nil {
		log.Printf("❌ [NOTIFICATION] Transaction lookup failed | OrderID=%s | Error=%v", n.OrderID, err)
		return nil, err
	}

	// 3. Mapeia o vocabulário do gateway para o status interno
	status := mapGatewayStatus(n.TransactionStatus, n.FraudStatus)

	// 4. Atualiza status e payload de auditoria incondicionalmente (last-write-wins)
	if err := uc.repository.UpdateTransactionStatus(ctx, tx, n.OrderID, status, n.Raw); err != nil {
		return nil, err
	}

	result := &ReconciliationResult{OrderID: n.OrderID, Status: status}

	// 5. Credita o saldo somente na PRIMEIRA transição para success.
	// Reentrega de settlement/capture para uma transação já success atualiza o
	// payload de auditoria mas não mexe no saldo.
	if status == TransactionStatusSuccess {
		if txn.Status == TransactionStatusSuccess {
			log.Printf("ℹ️ [IDEMPOTENCY] Credit already applied for OrderID=%s", n.OrderID)
			uc.duplicateCredits.Add(ctx, 1)
		} else {
			applied, err := uc.creditUser(ctx, tx, txn)
			if err != nil {
				return nil, err
			}
			result.BalanceUpdated = applied
		}
	}

	// 6. Commit da transação
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit reconciliation: %w", err)
	}

	log.Printf("✅ [NOTIFICATION] OrderID=%s reconciled to status=%s (balance_updated=%v)",
		n.OrderID, status, result.BalanceUpdated)
	return result, nil
}

// creditUser aplica o crédito do pagamento e registra o evento de auditoria.
// Usuário inexistente não é fatal: a atualização de status ainda precisa persistir.
func (uc *PaymentUseCase) creditUser(ctx context.Context, tx Tx, txn *Transaction) (bool, error) {
	user, err := uc.repository.GetUserForUpdate(ctx, tx, txn.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			log.Printf("ℹ️ [NOTIFICATION] User %s not found, credit skipped for OrderID=%s", txn.UserID, txn.OrderID)
			return false, nil
		}
		return false, err
	}

	newBalance := user.Balance + txn.Amount
	if err := uc.repository.UpdateUserBalance(ctx, tx, user.ID, newBalance); err != nil {
		return false, err
	}

	entry := NewBalanceLog(uuid.New().String(), user.ID, txn.Amount, BalanceActionAdd,
		fmt.Sprintf("Payment success - %s", txn.ServiceName), txn.OrderID, user.Balance, newBalance)
	if err := uc.repository.InsertBalanceLog(ctx, tx, entry); err != nil {
		return false, err
	}

	uc.creditsApplied.Add(ctx, 1)
	log.Printf("✅ [CREDIT] User %s balance updated: %d -> %d (OrderID=%s)",
		user.ID, user.Balance, newBalance, txn.OrderID)
	return true, nil
}

// GetTransaction busca uma transação pelo order_id
func (uc *PaymentUseCase) GetTransaction(ctx context.Context, orderID string) (*Transaction, error) {
	return uc.repository.GetTransaction(ctx, orderID)
}

// BalanceUseCase contém a lógica de negócio do ledger de saldo
type BalanceUseCase struct {
	repository  Repository
	adjustments metric.Int64Counter
}

// NewBalanceUseCase cria uma nova instância de BalanceUseCase
func NewBalanceUseCase(repository Repository) *BalanceUseCase {
	meter := otel.Meter("wallet-service")
	adjustments, _ := meter.Int64Counter("wallet_balance_adjustments_total")

	return &BalanceUseCase{
		repository:  repository,
		adjustments: adjustments,
	}
}

// Apply executa uma mutação de saldo (add, subtract, set) como par atômico:
// atualização do saldo materializado + um evento imutável em balance_logs.
// O read-modify-write é serializado por usuário via lock pessimista.
func (uc *BalanceUseCase) Apply(ctx context.Context, userID string, amount int64, action, reason, orderID string) (int64, int64, error) {
	if action == "" {
		action = BalanceActionAdd
	}
	if reason == "" {
		reason = "Manual update"
	}

	log.Printf("➡️ [BALANCE] UserID: %s | Action: %s | Amount: %d", userID, action, amount)

	// 1. Inicia a transação
	tx, err := uc.repository.BeginTx(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin balance tx: %w", err)
	}
	defer tx.Rollback()

	// 2. Obtém o usuário com LOCK PESSIMISTA (FOR UPDATE)
	user, err := uc.repository.GetUserForUpdate(ctx, tx, userID)
	if err != nil {
		log.Printf("❌ [BALANCE] GetUserForUpdate failed | UserID=%s | Error=%v", userID, err)
		return 0, 0, err
	}

	// 3. Calcula o novo saldo (subtract tem piso em zero)
	newBalance, err := applyBalanceAction(action, user.Balance, amount)
	if err != nil {
		return 0, 0, err
	}

	// 4. Persiste saldo + evento de auditoria
	if err := uc.repository.UpdateUserBalance(ctx, tx, userID, newBalance); err != nil {
		return 0, 0, err
	}

	entry := NewBalanceLog(uuid.New().String(), userID, amount, action, reason, orderID, user.Balance, newBalance)
	if err := uc.repository.InsertBalanceLog(ctx, tx, entry); err != nil {
		return 0, 0, err
	}

	// 5. Commit da transação
	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit balance update: %w", err)
	}

	uc.adjustments.Add(ctx, 1)
	log.Printf("✅ [BALANCE] User %s balance updated: %d -> %d", userID, user.Balance, newBalance)
	return user.Balance, newBalance, nil
}

// GetBalance lê o saldo materializado do usuário (read-through)
func (uc *BalanceUseCase) GetBalance(ctx context.Context, userID string) (int64, error) {
	user, err := uc.repository.GetUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return user.Balance, nil
}

// GetBalanceLogs lista a trilha de auditoria de saldo do usuário
func (uc *BalanceUseCase) GetBalanceLogs(ctx context.Context, userID string) ([]*BalanceLog, error) {
	if _, err := uc.repository.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	return uc.repository.ListBalanceLogs(ctx, userID)
}
