package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nightlab/exchange/internal/catalog"
	"github.com/nightlab/exchange/internal/clock"
	"github.com/nightlab/exchange/internal/config"
	"github.com/nightlab/exchange/internal/initdata"
	"github.com/nightlab/exchange/internal/logging"
)

const (
	testBotToken    = "7000:e2e-token"
	testMerchantKey = "operator-key"
)

var (
	e2eNow      = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	codePattern = regexp.MustCompile(`^[A-Z0-9]{6}$`)
)

type testEnv struct {
	app   *fiber.App
	clock *clock.Manual
	svc   *Services
}

func newTestEnv(t *testing.T, cache *redis.Client) *testEnv {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testMerchantKey), bcrypt.MinCost)
	require.NoError(t, err)

	banks := catalog.NewMemoryRepository()
	banks.PutCountry(catalog.Country{ID: 10, Name: "Украина", IsActive: true})
	banks.PutBank(catalog.Bank{ID: 1, CountryID: 10, DisplayName: "Monobank", RequisitesText: "4441 1111 2222 3333 Иван И.", IsActive: true})
	banks.PutBank(catalog.Bank{ID: 2, CountryID: 10, DisplayName: "PrivatBank", RequisitesText: "Реквизиты не заданы", IsActive: true})

	clk := clock.NewManual(e2eNow)
	logger := logging.Discard()
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(logger)})
	svc, err := Setup(app, Deps{
		Cfg: config.Config{
			AppEnv:                "test",
			BotToken:              testBotToken,
			AuthMaxAge:            24 * time.Hour,
			RequisitesTTL:         20 * time.Minute,
			CatalogCacheTTL:       time.Minute,
			IdempotencyTTL:        time.Hour,
			MerchantKeyHash:       string(hash),
			AuthFailuresPerMinute: 20,
		},
		Cache:   cache,
		Logger:  logger,
		Clock:   clk,
		Catalog: banks,
	})
	require.NoError(t, err)
	return &testEnv{app: app, clock: clk, svc: svc}
}

func initData(userJSON string, authDate time.Time) string {
	return initdata.Sign(map[string]string{
		"auth_date": strconv.FormatInt(authDate.Unix(), 10),
		"query_id":  "AAE2E",
		"user":      userJSON,
	}, testBotToken)
}

func (e *testEnv) call(t *testing.T, method, target string, body any, header map[string]string) (int, map[string]any, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(raw))
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var obj map[string]any
	_ = json.Unmarshal(raw, &obj)
	return resp.StatusCode, obj, raw
}

func userHeader(payload string) map[string]string {
	return map[string]string{"X-Telegram-Init-Data": payload}
}

func TestCreateWithAutoRequisitesAndExpire(t *testing.T) {
	env := newTestEnv(t, nil)
	ann := initData(`{"id":42,"username":"ann"}`, e2eNow)

	status, created, _ := env.call(t, fiber.MethodPost, "/api/applications/create", map[string]any{
		"init_data":  ann,
		"country_id": 10,
		"bank_id":    1,
		"amount_uah": 500,
	}, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, created["success"])
	assert.Equal(t, "4441 1111 2222 3333 Иван И.", created["requisites"])
	assert.Equal(t, "Monobank", created["bank_name"])
	assert.Equal(t, "Украина", created["country_name"])
	assert.Equal(t, 500.0, created["amount"])
	assert.Equal(t, e2eNow.Add(20*time.Minute).Format(time.RFC3339), created["expires_at"])
	appID := int64(created["app_id"].(float64))

	status, profile, _ := env.call(t, fiber.MethodGet, "/api/user/profile", nil, userHeader(ann))
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ann", profile["username"])
	assert.Equal(t, "REF42", profile["referral_code"])

	detailPath := "/api/application/" + strconv.FormatInt(appID, 10)
	status, detail, _ := env.call(t, fiber.MethodGet, detailPath, nil, userHeader(ann))
	require.Equal(t, fiber.StatusOK, status)
	assert.Regexp(t, codePattern, detail["payment_code"])
	assert.Equal(t, "WAITING_MERCHANT", detail["status"])
	assert.Equal(t, "Ожидает мерчанта", detail["status_label"])
	assert.Equal(t, e2eNow.Format(time.RFC3339), detail["requisites_sent_at"])

	bob := initData(`{"id":7,"username":"bob"}`, e2eNow)
	status, _, _ = env.call(t, fiber.MethodGet, detailPath, nil, userHeader(bob))
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _, _ = env.call(t, fiber.MethodGet, "/api/application/999", nil, userHeader(ann))
	assert.Equal(t, fiber.StatusNotFound, status)

	env.clock.Advance(21 * time.Minute)
	status, detail, _ = env.call(t, fiber.MethodGet, detailPath, nil, userHeader(ann))
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "EXPIRED", detail["status"])
	assert.Equal(t, "Истекло время", detail["status_label"])

	status, count, _ := env.call(t, fiber.MethodGet, "/api/notifications/unread-count", nil, userHeader(ann))
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, 1.0, count["count"])

	_, _, raw := env.call(t, fiber.MethodGet, "/api/notifications", nil, userHeader(ann))
	var inbox []map[string]any
	require.NoError(t, json.Unmarshal(raw, &inbox))
	require.Len(t, inbox, 1)
	assert.Equal(t, "application_expired", inbox[0]["type"])

	markPath := "/api/notifications/" + strconv.FormatInt(int64(inbox[0]["id"].(float64)), 10) + "/read"
	status, marked, _ := env.call(t, fiber.MethodPost, markPath, nil, userHeader(bob))
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, false, marked["success"])
	_, marked, _ = env.call(t, fiber.MethodPost, markPath, nil, userHeader(ann))
	assert.Equal(t, true, marked["success"])
}

func TestCreateFailures(t *testing.T) {
	env := newTestEnv(t, nil)
	ann := initData(`{"id":42,"username":"ann"}`, e2eNow)

	status, body, _ := env.call(t, fiber.MethodPost, "/api/applications/create",
		map[string]any{"init_data": ann, "country_id": 10, "bank_id": 1, "amount_uah": 0}, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Сумма должна быть больше 0", body["message"])

	status, body, _ = env.call(t, fiber.MethodPost, "/api/applications/create",
		map[string]any{"init_data": ann, "country_id": 10, "bank_id": 404, "amount_uah": 10}, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "Банк не найден", body["message"])

	_, _, raw := env.call(t, fiber.MethodGet, "/api/applications", nil, userHeader(ann))
	assert.JSONEq(t, "[]", string(raw))
}

func TestAuthFailuresNeverCreate(t *testing.T) {
	env := newTestEnv(t, nil)
	stale := initData(`{"id":42,"username":"ann"}`, e2eNow.Add(-25*time.Hour))
	forged := strings.Replace(initData(`{"id":42,"username":"ann"}`, e2eNow), "hash=", "hash=00", 1)

	for name, payload := range map[string]string{"missing": "", "stale": stale, "forged": forged, "bypass": "test_mode"} {
		t.Run(name, func(t *testing.T) {
			status, _, _ := env.call(t, fiber.MethodPost, "/api/applications/create",
				map[string]any{"init_data": payload, "country_id": 10, "bank_id": 1, "amount_uah": 10}, nil)
			assert.Equal(t, fiber.StatusUnauthorized, status)
		})
	}

	ann := initData(`{"id":42,"username":"ann"}`, e2eNow)
	_, _, raw := env.call(t, fiber.MethodGet, "/api/applications", nil, userHeader(ann))
	assert.JSONEq(t, "[]", string(raw))
}

func TestMerchantFlow(t *testing.T) {
	env := newTestEnv(t, nil)
	ann := initData(`{"id":42,"username":"ann"}`, e2eNow)
	operator := map[string]string{"X-Merchant-Key": testMerchantKey}

	status, created, _ := env.call(t, fiber.MethodPost, "/api/applications/create",
		map[string]any{"init_data": ann, "country_id": 10, "bank_id": 2, "amount_uah": 120.5}, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Nil(t, created["requisites"])
	assert.Nil(t, created["expires_at"])
	id := strconv.FormatInt(int64(created["app_id"].(float64)), 10)

	status, _, _ = env.call(t, fiber.MethodGet, "/api/merchant/queue", nil, nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)

	status, _, raw := env.call(t, fiber.MethodGet, "/api/merchant/queue?status=waiting_merchant", nil, operator)
	require.Equal(t, fiber.StatusOK, status)
	var queue []map[string]any
	require.NoError(t, json.Unmarshal(raw, &queue))
	require.Len(t, queue, 1)
	assert.Equal(t, 42.0, queue[0]["owner_id"])
	assert.Equal(t, 120.5, queue[0]["amount_uah"])

	status, _, _ = env.call(t, fiber.MethodPost, "/api/merchant/applications/"+id+"/status",
		map[string]any{"status": "CONFIRMED"}, operator)
	assert.Equal(t, fiber.StatusConflict, status)

	status, assigned, _ := env.call(t, fiber.MethodPost, "/api/merchant/applications/"+id+"/requisites",
		map[string]any{"requisites": "5168 0000 1111 2222"}, operator)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "WAITING_PAYMENT", assigned["status"])
	assert.Equal(t, e2eNow.Add(20*time.Minute).Format(time.RFC3339), assigned["expires_at"])

	status, moved, _ := env.call(t, fiber.MethodPost, "/api/merchant/applications/"+id+"/status",
		map[string]any{"status": "WAITING_RECEIPT"}, operator)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "Ожидает чек", moved["status_label"])

	status, _, _ = env.call(t, fiber.MethodPost, "/api/merchant/applications/"+id+"/status",
		map[string]any{"status": "bogus"}, operator)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, count, _ := env.call(t, fiber.MethodGet, "/api/notifications/unread-count", nil, userHeader(ann))
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, 2.0, count["count"])
}

func TestSweepExpiresWithoutReads(t *testing.T) {
	env := newTestEnv(t, nil)
	ann := initData(`{"id":42,"username":"ann"}`, e2eNow)
	env.call(t, fiber.MethodPost, "/api/applications/create",
		map[string]any{"init_data": ann, "country_id": 10, "bank_id": 1, "amount_uah": 50}, nil)

	env.clock.Advance(20 * time.Minute)
	n, err := env.svc.Applications.ExpireDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n, "deadline itself is still valid")

	env.clock.Advance(time.Second)
	n, err = env.svc.Applications.ExpireDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPublicRoutesAndIdempotency(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()
	env := newTestEnv(t, cache)

	status, _, raw := env.call(t, fiber.MethodGet, "/api/banks?country_id=10", nil, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `[{"id":1,"name":"Monobank","is_active":true},{"id":2,"name":"PrivatBank","is_active":true}]`, string(raw))

	status, _, raw = env.call(t, fiber.MethodGet, "/api/countries", nil, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `[{"id":10,"name":"Украина","is_active":true}]`, string(raw))

	status, health, _ := env.call(t, fiber.MethodGet, "/healthz", nil, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, map[string]any{"postgres": "memory", "redis": "ok"}, health["status"])

	ann := initData(`{"id":42,"username":"ann"}`, e2eNow)
	header := map[string]string{"Idempotency-Key": "create-1"}
	body := map[string]any{"init_data": ann, "country_id": 10, "bank_id": 1, "amount_uah": 75}
	_, first, _ := env.call(t, fiber.MethodPost, "/api/applications/create", body, header)
	_, second, _ := env.call(t, fiber.MethodPost, "/api/applications/create", body, header)
	assert.Equal(t, first["app_id"], second["app_id"])

	_, _, raw = env.call(t, fiber.MethodGet, "/api/applications", nil, userHeader(ann))
	var apps []map[string]any
	require.NoError(t, json.Unmarshal(raw, &apps))
	assert.Len(t, apps, 1)

	status, _, raw = env.call(t, fiber.MethodGet, "/metrics", nil, nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(raw), `nightlab_applications_created_total{outcome="requisites_issued"} 1`)
}
