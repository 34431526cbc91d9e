package main

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Notification representa uma notificação de status de pagamento enviada pelo gateway.
// O payload bruto é preservado em Raw para auditoria (o formato do gateway não é
// contratualmente fixo).
type Notification struct {
	OrderID           string
	TransactionStatus string
	FraudStatus       string
	StatusCode        string
	GrossAmount       string
	SignatureKey      string
	Raw               map[string]any
}

// ParseNotification valida estruturalmente uma notificação recebida. Aceita corpo
// JSON, form-urlencoded ou texto bruto contendo JSON; qualquer outra coisa falha
// com ErrMalformedPayload. Não toca em storage.
func ParseNotification(contentType string, body []byte) (*Notification, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, fmt.Errorf("%w: empty request body", ErrMalformedPayload)
	}

	var raw map[string]any

	switch {
	case strings.Contains(contentType, "application/json"):
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, fmt.Errorf("%w: invalid json: %v", ErrMalformedPayload, err)
		}
	case strings.Contains(contentType, "application/x-www-form-urlencoded"):
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, fmt.Errorf("%w: invalid form body: %v", ErrMalformedPayload, err)
		}
		raw = make(map[string]any, len(values))
		for key := range values {
			raw[key] = values.Get(key)
		}
	default:
		// Content-type desconhecido: tenta interpretar o corpo como JSON mesmo assim
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, fmt.Errorf("%w: unable to parse request body", ErrMalformedPayload)
		}
	}

	n := &Notification{
		OrderID:           stringField(raw, "order_id"),
		TransactionStatus: stringField(raw, "transaction_status"),
		FraudStatus:       stringField(raw, "fraud_status"),
		StatusCode:        stringField(raw, "status_code"),
		GrossAmount:       stringField(raw, "gross_amount"),
		SignatureKey:      stringField(raw, "signature_key"),
		Raw:               raw,
	}

	if n.OrderID == "" || n.TransactionStatus == "" {
		return nil, fmt.Errorf("%w: order_id and transaction_status are required", ErrMissingFields)
	}

	return n, nil
}

// VerifySignature recomputa SHA-512(order_id + status_code + gross_amount + serverKey)
// e exige igualdade exata com a assinatura recebida. Se a chave do servidor ou a
// assinatura estiverem ausentes a verificação é pulada (best-effort, comportamento
// do gateway em modo sandbox).
func (n *Notification) VerifySignature(serverKey string) error {
	if serverKey == "" || n.SignatureKey == "" {
		return nil
	}

	hash := sha512.Sum512([]byte(n.OrderID + n.StatusCode + n.GrossAmount + serverKey))
	expected := hex.EncodeToString(hash[:])

	if subtle.ConstantTimeCompare([]byte(expected), []byte(n.SignatureKey)) != 1 {
		return ErrInvalidSignature
	}
	return nil
}

// stringField normaliza um campo do payload para string. O gateway ora envia
// gross_amount/status_code como string, ora como número JSON.
func stringField(raw map[string]any, key string) string {
	value, ok := raw[key]
	if !ok || value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
