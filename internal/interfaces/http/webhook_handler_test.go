package http

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EntersysMX/smartsheet-bind-awalab/internal/domain/entity"
	"github.com/EntersysMX/smartsheet-bind-awalab/internal/infrastructure/smartsheet"
)

type fakeProcessor struct {
	rows []int64
}

func (p *fakeProcessor) ProcessRowEvent(_ context.Context, rowID int64) (*entity.InvoiceResult, error) {
	p.rows = append(p.rows, rowID)
	return &entity.InvoiceResult{RowID: rowID, Success: true}, nil
}

func webhookApp(processor *fakeProcessor, secret string) *fiber.App {
	app := fiber.New()
	handler := NewWebhookHandler(processor, secret)
	app.Post("/webhooks/smartsheet", handler.Receive)
	return app
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func postWebhook(t *testing.T, app *fiber.App, body []byte, signature string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/smartsheet", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(smartsheet.SignatureHeader, signature)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestWebhookRespondeElChallenge(t *testing.T) {
	app := webhookApp(&fakeProcessor{}, "secreto")
	body := []byte(`{"challenge":"abc-123"}`)

	resp := postWebhook(t, app, body, signBody("secreto", body))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "abc-123", out["smartsheetHookResponse"])
}

func TestWebhookRechazaFirmaInvalida(t *testing.T) {
	processor := &fakeProcessor{}
	app := webhookApp(processor, "secreto")
	body := []byte(`{"events":[{"objectType":"row","eventType":"updated","id":42}]}`)

	resp := postWebhook(t, app, body, "firma-falsa")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Empty(t, processor.rows)
}

func TestWebhookDespachaEventosDeFila(t *testing.T) {
	processor := &fakeProcessor{}
	app := webhookApp(processor, "secreto")
	body := []byte(`{"events":[
		{"objectType":"row","eventType":"created","id":10},
		{"objectType":"row","eventType":"updated","id":11},
		{"objectType":"row","eventType":"deleted","id":12}
	]}`)

	resp := postWebhook(t, app, body, signBody("secreto", body))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []int64{10, 11}, processor.rows)
}

func TestWebhookSinSecretoNoVerificaFirma(t *testing.T) {
	processor := &fakeProcessor{}
	app := webhookApp(processor, "")
	body := []byte(`{"events":[{"objectType":"row","eventType":"updated","id":42}]}`)

	resp := postWebhook(t, app, body, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []int64{42}, processor.rows)
}

func TestWebhookCuerpoInvalido(t *testing.T) {
	app := webhookApp(&fakeProcessor{}, "")
	resp := postWebhook(t, app, []byte(`{no es json`), "")

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	raw, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(raw), "INVALID_BODY")
}
