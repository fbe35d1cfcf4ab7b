package smartsheet

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// SignatureHeader cabecera con la firma HMAC que Smartsheet adjunta a cada
// callback de webhook.
const SignatureHeader = "Smartsheet-Hmac-SHA256"

// VerifySignature valida la firma HMAC-SHA256 (codificada en base64) del
// cuerpo crudo del callback contra el secreto compartido del webhook. La
// comparación es en tiempo constante.
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// CallbackEvent evento individual dentro de un callback de webhook.
type CallbackEvent struct {
	ObjectType string `json:"objectType"`
	EventType  string `json:"eventType"` // created | updated | deleted
	ID         int64  `json:"id"`
	RowID      int64  `json:"rowId"`
	ColumnID   int64  `json:"columnId"`
}

// Callback cuerpo del POST que envía Smartsheet. Challenge viene únicamente
// en el handshake de verificación y debe responderse como
// smartsheetHookResponse con el mismo valor.
type Callback struct {
	Nonce     string          `json:"nonce"`
	Challenge string          `json:"challenge"`
	Timestamp string          `json:"timestamp"`
	WebhookID int64           `json:"webhookId"`
	Scope     string          `json:"scope"`
	ScopeID   int64           `json:"scopeObjectId"`
	Events    []CallbackEvent `json:"events"`
}

// RowEvents devuelve los IDs de fila afectados por eventos de creación o
// actualización, sin duplicados y en el orden del callback.
func (c Callback) RowEvents() []int64 {
	seen := make(map[int64]struct{}, len(c.Events))
	var rows []int64
	for _, ev := range c.Events {
		if ev.ObjectType != "row" && ev.RowID == 0 {
			continue
		}
		if ev.EventType != "created" && ev.EventType != "updated" {
			continue
		}
		rowID := ev.RowID
		if rowID == 0 {
			rowID = ev.ID
		}
		if _, dup := seen[rowID]; dup {
			continue
		}
		seen[rowID] = struct{}{}
		rows = append(rows, rowID)
	}
	return rows
}
