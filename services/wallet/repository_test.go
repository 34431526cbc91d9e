package main

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
)

func TestNewRepository(t *testing.T) {
	// Arrange
	var db *pgxpool.Pool // Mock pool

	// Act
	repo := NewRepository(db)

	// Assert
	assert.NotNil(t, repo)
	assert.IsType(t, &PostgresRepository{}, repo)
}

func TestMockRepository_GetTransactionForUpdate(t *testing.T) {
	// Arrange
	mockRepo := new(MockRepository)
	mockTx := new(MockTx)
	ctx := context.Background()
	expected := pendingTransaction()

	mockRepo.On("GetTransactionForUpdate", ctx, mockTx, "topup-1").Return(expected, nil)

	// Act
	txn, err := mockRepo.GetTransactionForUpdate(ctx, mockTx, "topup-1")

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, expected, txn)
	mockRepo.AssertExpectations(t)
}

func TestMockRepository_CreateTransaction(t *testing.T) {
	// Arrange
	mockRepo := new(MockRepository)
	ctx := context.Background()
	txn := NewTransaction("topup-1", "u1", "svc-1", "Top Up 50k", 50000)

	mockRepo.On("CreateTransaction", ctx, txn).Return(nil)

	// Act
	err := mockRepo.CreateTransaction(ctx, txn)

	// Assert
	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
}

func TestMockRepository_DuplicateOrderID(t *testing.T) {
	// Arrange
	mockRepo := new(MockRepository)
	ctx := context.Background()
	txn := NewTransaction("topup-1", "u1", "svc-1", "Top Up 50k", 50000)

	mockRepo.On("CreateTransaction", ctx, txn).Return(ErrDuplicateOrderID)

	// Act
	err := mockRepo.CreateTransaction(ctx, txn)

	// Assert
	assert.ErrorIs(t, err, ErrDuplicateOrderID)
	mockRepo.AssertExpectations(t)
}
