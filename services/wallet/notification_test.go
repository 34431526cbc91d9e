package main

import (
	"crypto/sha512"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseNotification_JSON(t *testing.T) {
	// Arrange
	body := []byte(`{
		"order_id": "topup-1",
		"transaction_status": "settlement",
		"fraud_status": "accept",
		"status_code": "200",
		"gross_amount": "50000.00",
		"signature_key": "abc"
	}`)

	// Act
	n, err := ParseNotification("application/json", body)

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, "topup-1", n.OrderID)
	assert.Equal(t, "settlement", n.TransactionStatus)
	assert.Equal(t, "accept", n.FraudStatus)
	assert.Equal(t, "200", n.StatusCode)
	assert.Equal(t, "50000.00", n.GrossAmount)
	assert.Equal(t, "abc", n.SignatureKey)
	assert.Equal(t, "settlement", n.Raw["transaction_status"])
}

func TestParseNotification_NumericFields(t *testing.T) {
	// O gateway às vezes envia status_code/gross_amount como número JSON
	body := []byte(`{"order_id": "topup-2", "transaction_status": "pending", "status_code": 201, "gross_amount": 50000}`)

	n, err := ParseNotification("application/json", body)

	assert.NoError(t, err)
	assert.Equal(t, "201", n.StatusCode)
	assert.Equal(t, "50000", n.GrossAmount)
}

func TestParseNotification_FormEncoded(t *testing.T) {
	body := []byte("order_id=topup-3&transaction_status=capture&fraud_status=challenge")

	n, err := ParseNotification("application/x-www-form-urlencoded", body)

	assert.NoError(t, err)
	assert.Equal(t, "topup-3", n.OrderID)
	assert.Equal(t, "capture", n.TransactionStatus)
	assert.Equal(t, "challenge", n.FraudStatus)
}

func TestParseNotification_UnknownContentTypeFallsBackToJSON(t *testing.T) {
	body := []byte(`{"order_id": "topup-4", "transaction_status": "deny"}`)

	n, err := ParseNotification("text/plain", body)

	assert.NoError(t, err)
	assert.Equal(t, "topup-4", n.OrderID)
}

func TestParseNotification_EmptyBody(t *testing.T) {
	_, err := ParseNotification("application/json", []byte("   "))

	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestParseNotification_InvalidJSON(t *testing.T) {
	_, err := ParseNotification("application/json", []byte("{not json"))

	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestParseNotification_UnparsableBody(t *testing.T) {
	_, err := ParseNotification("application/octet-stream", []byte("\x00\x01binary"))

	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestParseNotification_MissingOrderID(t *testing.T) {
	_, err := ParseNotification("application/json", []byte(`{"transaction_status": "settlement"}`))

	assert.ErrorIs(t, err, ErrMissingFields)
}

func TestParseNotification_MissingTransactionStatus(t *testing.T) {
	_, err := ParseNotification("application/json", []byte(`{"order_id": "topup-5"}`))

	assert.ErrorIs(t, err, ErrMissingFields)
}

func signatureFor(orderID, statusCode, grossAmount, serverKey string) string {
	hash := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(hash[:])
}

func TestVerifySignature_Valid(t *testing.T) {
	serverKey := "server-key-test"
	n := &Notification{
		OrderID:     "topup-1",
		StatusCode:  "200",
		GrossAmount: "50000.00",
	}
	n.SignatureKey = signatureFor(n.OrderID, n.StatusCode, n.GrossAmount, serverKey)

	assert.NoError(t, n.VerifySignature(serverKey))
}

func TestVerifySignature_Tampered(t *testing.T) {
	serverKey := "server-key-test"
	n := &Notification{
		OrderID:     "topup-1",
		StatusCode:  "200",
		GrossAmount: "50000.00",
	}
	// Assinatura calculada sobre outro gross_amount
	n.SignatureKey = signatureFor(n.OrderID, n.StatusCode, "99999.00", serverKey)

	assert.ErrorIs(t, n.VerifySignature(serverKey), ErrInvalidSignature)
}

func TestVerifySignature_SkippedWithoutServerKey(t *testing.T) {
	n := &Notification{OrderID: "topup-1", SignatureKey: "whatever"}

	assert.NoError(t, n.VerifySignature(""))
}

func TestVerifySignature_SkippedWithoutSignature(t *testing.T) {
	n := &Notification{OrderID: "topup-1"}

	assert.NoError(t, n.VerifySignature("server-key-test"))
}
