package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// PaymentUseCaseInterface define a interface para o caso de uso de pagamentos
type PaymentUseCaseInterface interface {
	Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResponse, error)
	ProcessNotification(ctx context.Context, n *Notification) (*ReconciliationResult, error)
	GetTransaction(ctx context.Context, orderID string) (*Transaction, error)
}

// BalanceUseCaseInterface define a interface para o caso de uso de saldo
type BalanceUseCaseInterface interface {
	Apply(ctx context.Context, userID string, amount int64, action, reason, orderID string) (int64, int64, error)
	GetBalance(ctx context.Context, userID string) (int64, error)
	GetBalanceLogs(ctx context.Context, userID string) ([]*BalanceLog, error)
}

// WalletHandler contém os handlers HTTP do serviço de carteira
type WalletHandler struct {
	payments  PaymentUseCaseInterface
	balances  BalanceUseCaseInterface
	tracer    trace.Tracer
	serverKey string
}

// NewWalletHandler cria uma nova instância de WalletHandler
func NewWalletHandler(payments PaymentUseCaseInterface, balances BalanceUseCaseInterface, tracer trace.Tracer, serverKey string) *WalletHandler {
	return &WalletHandler{
		payments:  payments,
		balances:  balances,
		tracer:    tracer,
		serverKey: serverKey,
	}
}

// HandleNotification recebe a notificação assíncrona de status do gateway.
// Respostas não-2xx fazem o gateway reenviar; o reprocessamento é idempotente.
func (h *WalletHandler) HandleNotification(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "process_notification")
	defer span.End()

	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unable to read request body"})
		return
	}

	notification, err := ParseNotification(c.ContentType(), body)
	if err != nil {
		span.RecordError(err)
		log.Printf("ℹ️ [NOTIFICATION] Rejected payload: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	span.SetAttributes(
		attribute.String("order_id", notification.OrderID),
		attribute.String("gateway.transaction_status", notification.TransactionStatus),
		attribute.String("gateway.fraud_status", notification.FraudStatus),
	)

	if err := notification.VerifySignature(h.serverKey); err != nil {
		span.RecordError(err)
		log.Printf("❌ [NOTIFICATION] Invalid signature for OrderID=%s", notification.OrderID)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	result, err := h.payments.ProcessNotification(ctx, notification)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, ErrTransactionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "transaction not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
		return
	}

	span.SetAttributes(
		attribute.String("status", result.Status),
		attribute.Bool("balance_updated", result.BalanceUpdated),
	)

	c.JSON(http.StatusOK, gin.H{
		"message":  "Webhook processed successfully",
		"order_id": result.OrderID,
		"status":   result.Status,
	})
}

// NotificationHealth responde GET no endpoint do webhook (liveness, sem lógica de negócio)
func (h *WalletHandler) NotificationHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":   "Payment webhook endpoint is working",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Checkout inicia um pagamento: semeia a transação pendente e obtém o token Snap
func (h *WalletHandler) Checkout(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "checkout")
	defer span.End()

	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	span.SetAttributes(
		attribute.String("user_id", req.UserID),
		attribute.String("service_id", req.ServiceID),
		attribute.Int64("amount", req.Amount),
	)

	resp, err := h.payments.Checkout(ctx, req)
	if err != nil {
		span.RecordError(err)
		switch {
		case errors.Is(err, ErrDuplicateOrderID):
			c.JSON(http.StatusConflict, gin.H{"error": "order id already exists"})
		case errors.Is(err, ErrServerKeyMissing):
			c.JSON(http.StatusInternalServerError, gin.H{"error": "payment gateway is not configured"})
		case errors.Is(err, ErrGatewayUnavailable):
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to create transaction"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
		}
		return
	}

	span.SetAttributes(attribute.String("order_id", resp.OrderID))
	c.JSON(http.StatusOK, resp)
}

// GetTransaction busca uma transação pelo order_id
func (h *WalletHandler) GetTransaction(c *gin.Context) {
	txn, err := h.payments.GetTransaction(c.Request.Context(), c.Param("order_id"))
	if err != nil {
		if errors.Is(err, ErrTransactionNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "transaction not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
		return
	}
	c.JSON(http.StatusOK, txn)
}

// AdjustBalance aplica um ajuste manual de saldo (painel administrativo)
func (h *WalletHandler) AdjustBalance(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "adjust_balance")
	defer span.End()

	var req BalanceAdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	span.SetAttributes(
		attribute.String("user_id", req.UserID),
		attribute.String("action", req.Action),
		attribute.Int64("amount", req.Amount),
	)

	previous, current, err := h.balances.Apply(ctx, req.UserID, req.Amount, req.Action, req.Reason, "")
	if err != nil {
		span.RecordError(err)
		switch {
		case errors.Is(err, ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidAction):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
		}
		return
	}

	c.JSON(http.StatusOK, BalanceAdjustResponse{
		Success:         true,
		PreviousBalance: previous,
		NewBalance:      current,
		Message:         "Balance updated successfully",
	})
}

// GetBalance lê o saldo materializado do usuário
func (h *WalletHandler) GetBalance(c *gin.Context) {
	userID := c.Param("id")

	balance, err := h.balances.GetBalance(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user_id": userID, "balance": balance})
}

// GetBalanceLogs lista a trilha de auditoria de saldo do usuário
func (h *WalletHandler) GetBalanceLogs(c *gin.Context) {
	userID := c.Param("id")

	logs, err := h.balances.GetBalanceLogs(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user_id": userID, "logs": logs})
}

// HealthCheck verifica a saúde do serviço
func (h *WalletHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "wallet-service",
	})
}
