package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository define a interface para operações de banco de dados da carteira
type Repository interface {
	// BeginTx inicia uma transação de banco
	BeginTx(ctx context.Context) (Tx, error)

	// CreateTransaction registra uma nova tentativa de pagamento (estado pendente)
	CreateTransaction(ctx context.Context, txn *Transaction) error

	// GetTransaction busca uma transação pelo order_id
	GetTransaction(ctx context.Context, orderID string) (*Transaction, error)

	// GetTransactionForUpdate busca a transação com lock pessimista (FOR UPDATE)
	GetTransactionForUpdate(ctx context.Context, tx Tx, orderID string) (*Transaction, error)

	// UpdateTransactionStatus atualiza status e payload de auditoria (last-write-wins)
	UpdateTransactionStatus(ctx context.Context, tx Tx, orderID string, status string, payload map[string]any) error

	// GetUserForUpdate busca o usuário com lock pessimista (FOR UPDATE)
	GetUserForUpdate(ctx context.Context, tx Tx, userID string) (*User, error)

	// UpdateUserBalance persiste o saldo materializado do usuário
	UpdateUserBalance(ctx context.Context, tx Tx, userID string, newBalance int64) error

	// InsertBalanceLog insere um evento imutável na trilha de auditoria
	InsertBalanceLog(ctx context.Context, tx Tx, entry *BalanceLog) error

	// GetUser busca um usuário pelo ID (leitura sem lock)
	GetUser(ctx context.Context, userID string) (*User, error)

	// ListBalanceLogs lista a trilha de auditoria de um usuário, mais recente primeiro
	ListBalanceLogs(ctx context.Context, userID string) ([]*BalanceLog, error)
}

// Tx interface para transações
type Tx interface {
	Commit() error
	Rollback() error
}

// PostgresRepository implementa Repository usando PostgreSQL
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewRepository cria uma nova instância de PostgresRepository
func NewRepository(db *pgxpool.Pool) Repository {
	return &PostgresRepository{
		db: db,
	}
}

// PostgresTx implementa a interface Tx
type PostgresTx struct {
	tx pgx.Tx
}

func (t *PostgresTx) Commit() error {
	return t.tx.Commit(context.Background())
}

func (t *PostgresTx) Rollback() error {
	return t.tx.Rollback(context.Background())
}

// BeginTx inicia uma nova transação
func (r *PostgresRepository) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin tx: %w", err)
	}
	return &PostgresTx{tx: tx}, nil
}

// CreateTransaction registra uma nova tentativa de pagamento
func (r *PostgresRepository) CreateTransaction(ctx context.Context, txn *Transaction) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO transactions (order_id, user_id, service_id, service_name, amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, txn.OrderID, txn.UserID, txn.ServiceID, txn.ServiceName, txn.Amount, txn.Status, txn.CreatedAt, txn.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateOrderID
		}
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// GetTransaction busca uma transação pelo order_id
func (r *PostgresRepository) GetTransaction(ctx context.Context, orderID string) (*Transaction, error) {
	return scanTransaction(r.db.QueryRow(ctx, `
		SELECT order_id, user_id, service_id, service_name, amount, status, gateway_response, created_at, updated_at
		FROM transactions WHERE order_id = $1
	`, orderID))
}

// GetTransactionForUpdate busca a transação com lock pessimista. O lock na linha
// serializa notificações concorrentes para o mesmo order_id.
func (r *PostgresRepository) GetTransactionForUpdate(ctx context.Context, tx Tx, orderID string) (*Transaction, error) {
	pgTx := tx.(*PostgresTx).tx

	return scanTransaction(pgTx.QueryRow(ctx, `
		SELECT order_id, user_id, service_id, service_name, amount, status, gateway_response, created_at, updated_at
		FROM transactions
		WHERE order_id = $1
		FOR UPDATE
	`, orderID))
}

// UpdateTransactionStatus atualiza status, updated_at e o payload bruto do gateway
func (r *PostgresRepository) UpdateTransactionStatus(ctx context.Context, tx Tx, orderID string, status string, payload map[string]any) error {
	pgTx := tx.(*PostgresTx).tx

	var rawPayload []byte
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode gateway payload: %w", err)
		}
		rawPayload = encoded
	}

	_, err := pgTx.Exec(ctx, `
		UPDATE transactions
		SET status = $1,
		    gateway_response = COALESCE($2, gateway_response),
		    updated_at = NOW()
		WHERE order_id = $3
	`, status, rawPayload, orderID)
	if err != nil {
		return fmt.Errorf("failed to update transaction status: %w", err)
	}
	return nil
}

// GetUserForUpdate busca o usuário com lock pessimista. O lock na linha serializa
// créditos concorrentes para o mesmo usuário (webhook duplicado x ajuste manual).
func (r *PostgresRepository) GetUserForUpdate(ctx context.Context, tx Tx, userID string) (*User, error) {
	pgTx := tx.(*PostgresTx).tx

	var user User
	err := pgTx.QueryRow(ctx, `
		SELECT id, name, email, balance, created_at, updated_at
		FROM users
		WHERE id = $1
		FOR UPDATE
	`, userID).Scan(&user.ID, &user.Name, &user.Email, &user.Balance, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user with lock: %w", err)
	}
	return &user, nil
}

// UpdateUserBalance persiste o saldo materializado do usuário
func (r *PostgresRepository) UpdateUserBalance(ctx context.Context, tx Tx, userID string, newBalance int64) error {
	pgTx := tx.(*PostgresTx).tx

	_, err := pgTx.Exec(ctx, `
		UPDATE users
		SET balance = $1,
		    updated_at = NOW()
		WHERE id = $2
	`, newBalance, userID)
	if err != nil {
		return fmt.Errorf("failed to update user balance: %w", err)
	}
	return nil
}

// InsertBalanceLog insere um evento na trilha de auditoria (append-only)
func (r *PostgresRepository) InsertBalanceLog(ctx context.Context, tx Tx, entry *BalanceLog) error {
	pgTx := tx.(*PostgresTx).tx

	_, err := pgTx.Exec(ctx, `
		INSERT INTO balance_logs (id, user_id, amount, action, reason, order_id, previous_balance, new_balance, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, entry.ID, entry.UserID, entry.Amount, entry.Action, entry.Reason, entry.OrderID,
		entry.PreviousBalance, entry.NewBalance, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert balance log: %w", err)
	}
	return nil
}

// GetUser busca um usuário pelo ID
func (r *PostgresRepository) GetUser(ctx context.Context, userID string) (*User, error) {
	var user User
	err := r.db.QueryRow(ctx, `
		SELECT id, name, email, balance, created_at, updated_at
		FROM users WHERE id = $1
	`, userID).Scan(&user.ID, &user.Name, &user.Email, &user.Balance, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// ListBalanceLogs lista a trilha de auditoria de um usuário
func (r *PostgresRepository) ListBalanceLogs(ctx context.Context, userID string) ([]*BalanceLog, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, user_id, amount, action, reason, order_id, previous_balance, new_balance, created_at
		FROM balance_logs
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list balance logs: %w", err)
	}
	defer rows.Close()

	var entries []*BalanceLog
	for rows.Next() {
		var entry BalanceLog
		var orderID *string
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.Amount, &entry.Action, &entry.Reason,
			&orderID, &entry.PreviousBalance, &entry.NewBalance, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan balance log: %w", err)
		}
		if orderID != nil {
			entry.OrderID = *orderID
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

// scanTransaction materializa uma linha de transactions, decodificando o payload JSONB
func scanTransaction(row pgx.Row) (*Transaction, error) {
	var txn Transaction
	var rawPayload []byte
	err := row.Scan(&txn.OrderID, &txn.UserID, &txn.ServiceID, &txn.ServiceName,
		&txn.Amount, &txn.Status, &rawPayload, &txn.CreatedAt, &txn.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	if len(rawPayload) > 0 {
		if err := json.Unmarshal(rawPayload, &txn.GatewayResponse); err != nil {
			return nil, fmt.Errorf("failed to decode gateway payload: %w", err)
		}
	}
	return &txn, nil
}
