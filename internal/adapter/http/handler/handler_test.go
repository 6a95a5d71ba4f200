package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"creator-ledger/config"
	"creator-ledger/internal/adapter/http/middleware"
	redisStore "creator-ledger/internal/adapter/storage/redis"
	"creator-ledger/internal/core/domain"
	"creator-ledger/internal/core/ports"
	"creator-ledger/internal/core/ports/mocks"
	"creator-ledger/internal/service"
	"creator-ledger/pkg/apperror"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, ok := resp["data"].(map[string]interface{})
	require.True(t, ok, "body: %s", w.Body.String())
	return data
}

func decodeErrorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	code, _ := resp["error_code"].(string)
	return code
}

func newContext(method, target string, body []byte, params gin.Params) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, target, bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = params
	return c, w
}

// --- Budget handler ---

func TestGetBudget_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	querySvc := mocks.NewMockBudgetQueryService(ctrl)
	h := NewBudgetHandler(querySvc)

	campaignID := uuid.New()
	querySvc.EXPECT().GetCampaignBudget(gomock.Any(), campaignID).Return(&domain.BudgetSummary{
		CampaignID:       campaignID,
		TotalBudgetCents: 100_000,
		LockedCents:      80_000,
		SpentCents:       30_000,
		RemainingCents:   50_000,
	}, nil)

	c, w := newContext(http.MethodGet, "/", nil, gin.Params{{Key: "id", Value: campaignID.String()}})
	h.GetBudget(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, campaignID.String(), data["campaign_id"])
	assert.Equal(t, float64(50_000), data["remaining_cents"])
}

func TestGetBudget_InvalidID(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewBudgetHandler(mocks.NewMockBudgetQueryService(ctrl))

	c, w := newContext(http.MethodGet, "/", nil, gin.Params{{Key: "id", Value: "not-a-uuid"}})
	h.GetBudget(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeErrorCode(t, w))
}

func TestGetBudget_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	querySvc := mocks.NewMockBudgetQueryService(ctrl)
	h := NewBudgetHandler(querySvc)

	campaignID := uuid.New()
	querySvc.EXPECT().GetCampaignBudget(gomock.Any(), campaignID).Return(nil, apperror.ErrCampaignNotFound())

	c, w := newContext(http.MethodGet, "/", nil, gin.Params{{Key: "id", Value: campaignID.String()}})
	h.GetBudget(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "CAMPAIGN_NOT_FOUND", decodeErrorCode(t, w))
}

func TestListLedger_LimitHandling(t *testing.T) {
	ctrl := gomock.NewController(t)
	querySvc := mocks.NewMockBudgetQueryService(ctrl)
	h := NewBudgetHandler(querySvc)
	campaignID := uuid.New()
	params := gin.Params{{Key: "id", Value: campaignID.String()}}

	entry := domain.LedgerEntry{
		ID:          uuid.New(),
		CampaignID:  campaignID,
		CreatorID:   uuid.New(),
		Type:        domain.LedgerViewPayout,
		AmountCents: 90,
		RefEventID:  uuid.New(),
		CreatedAt:   time.Now(),
	}

	querySvc.EXPECT().ListCampaignLedger(gomock.Any(), campaignID, defaultListLimit).Return([]domain.LedgerEntry{entry}, nil)
	c, w := newContext(http.MethodGet, "/", nil, params)
	h.ListLedger(c)
	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeData(t, w)
	assert.Equal(t, float64(1), data["count"])

	querySvc.EXPECT().ListCampaignLedger(gomock.Any(), campaignID, maxListLimit).Return(nil, nil)
	c, w = newContext(http.MethodGet, "/?limit=100000", nil, params)
	h.ListLedger(c)
	assert.Equal(t, http.StatusOK, w.Code)

	c, w = newContext(http.MethodGet, "/?limit=-3", nil, params)
	h.ListLedger(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Withdrawal handler ---

func sampleWithdrawal(status domain.WithdrawalStatus) *domain.WithdrawalRequest {
	return &domain.WithdrawalRequest{
		ID:               uuid.New(),
		CreatorID:        uuid.New(),
		AmountCents:      9_000,
		PlatformFeeCents: 1_000,
		Status:           status,
		CreatedAt:        time.Now(),
	}
}

func TestApprove_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockWithdrawalService(ctrl)
	h := NewWithdrawalHandler(svc, zerolog.Nop())

	w := sampleWithdrawal(domain.WithdrawalProcessing)
	svc.EXPECT().ApproveWithdrawal(gomock.Any(), w.ID).Return(w, nil)

	c, rec := newContext(http.MethodPost, "/", nil, gin.Params{{Key: "id", Value: w.ID.String()}})
	h.Approve(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PROCESSING", decodeData(t, rec)["status"])
}

func TestApprove_WrongState(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockWithdrawalService(ctrl)
	h := NewWithdrawalHandler(svc, zerolog.Nop())

	id := uuid.New()
	svc.EXPECT().ApproveWithdrawal(gomock.Any(), id).Return(nil, apperror.ErrInvalidWithdrawalStatus())

	c, rec := newContext(http.MethodPost, "/", nil, gin.Params{{Key: "id", Value: id.String()}})
	h.Approve(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "INVALID_WITHDRAWAL_STATUS", decodeErrorCode(t, rec))
}

func TestFail_RequiresReason(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewWithdrawalHandler(mocks.NewMockWithdrawalService(ctrl), zerolog.Nop())

	c, rec := newContext(http.MethodPost, "/", []byte(`{}`), gin.Params{{Key: "id", Value: uuid.NewString()}})
	h.Fail(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFail_SanitizesReason(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockWithdrawalService(ctrl)
	h := NewWithdrawalHandler(svc, zerolog.Nop())

	w := sampleWithdrawal(domain.WithdrawalFailed)
	svc.EXPECT().FailWithdrawal(gomock.Any(), w.ID, "iban &lt;invalid&gt;").Return(w, nil)

	c, rec := newContext(http.MethodPost, "/", []byte(`{"reason":"  iban <invalid>  "}`), gin.Params{{Key: "id", Value: w.ID.String()}})
	h.Fail(c)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListByCreator(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockWithdrawalService(ctrl)
	h := NewWithdrawalHandler(svc, zerolog.Nop())

	creatorID := uuid.New()
	items := []domain.WithdrawalRequest{*sampleWithdrawal(domain.WithdrawalPending), *sampleWithdrawal(domain.WithdrawalPaid)}
	svc.EXPECT().ListWithdrawals(gomock.Any(), creatorID, 10).Return(items, nil)

	c, rec := newContext(http.MethodGet, "/?limit=10", nil, gin.Params{{Key: "id", Value: creatorID.String()}})
	h.ListByCreator(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.Equal(t, float64(2), data["count"])
	list := data["items"].([]interface{})
	assert.Equal(t, items[0].ID.String(), list[0].(map[string]interface{})["id"])
}

func TestProcessorCallback_Routing(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockWithdrawalService(ctrl)
	h := NewWithdrawalHandler(svc, zerolog.Nop())

	paid := sampleWithdrawal(domain.WithdrawalPaid)
	svc.EXPECT().CompleteWithdrawal(gomock.Any(), paid.ID, "ps_123").Return(paid, nil)
	c, rec := newContext(http.MethodPost, "/", []byte(`{"status":"PAID","reference":"ps_123"}`), gin.Params{{Key: "id", Value: paid.ID.String()}})
	h.ProcessorCallback(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PAID", decodeData(t, rec)["status"])

	failed := sampleWithdrawal(domain.WithdrawalFailed)
	svc.EXPECT().FailWithdrawal(gomock.Any(), failed.ID, "account closed").Return(failed, nil)
	c, rec = newContext(http.MethodPost, "/", []byte(`{"status":"FAILED","reason":"account closed"}`), gin.Params{{Key: "id", Value: failed.ID.String()}})
	h.ProcessorCallback(c)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProcessorCallback_RejectsUnknownStatus(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewWithdrawalHandler(mocks.NewMockWithdrawalService(ctrl), zerolog.Nop())

	c, rec := newContext(http.MethodPost, "/", []byte(`{"status":"REVERSED","reference":"ps_1"}`), gin.Params{{Key: "id", Value: uuid.NewString()}})
	h.ProcessorCallback(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProcessorCallback_ServiceError(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockWithdrawalService(ctrl)
	h := NewWithdrawalHandler(svc, zerolog.Nop())

	id := uuid.New()
	svc.EXPECT().CompleteWithdrawal(gomock.Any(), id, "ps_1").Return(nil, apperror.ErrWithdrawalNotFound())

	c, rec := newContext(http.MethodPost, "/", []byte(`{"status":"PAID","reference":"ps_1"}`), gin.Params{{Key: "id", Value: id.String()}})
	h.ProcessorCallback(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// --- Health ---

type fakeChecker struct {
	name string
	err  error
}

func (f fakeChecker) Ping(context.Context) error { return f.err }
func (f fakeChecker) Name() string               { return f.name }

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name     string
		checkers []ports.HealthChecker
		code     int
		status   string
	}{
		{"all healthy", []ports.HealthChecker{fakeChecker{name: "postgresql"}, fakeChecker{name: "redis"}}, http.StatusOK, "healthy"},
		{"redis down", []ports.HealthChecker{fakeChecker{name: "postgresql"}, fakeChecker{name: "redis", err: errors.New("dial tcp: refused")}}, http.StatusServiceUnavailable, "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/health", HealthCheck(tt.checkers...))

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.code, w.Code)
			var resp map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.status, resp["status"])
		})
	}
}

// --- Router wiring ---

type routerFixture struct {
	router        *gin.Engine
	withdrawalSvc *mocks.MockWithdrawalService
	auditSvc      *mocks.MockAuditService
	sigSvc        *service.HMACSignatureService
	tokenSvc      *service.JWTTokenService
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := &routerFixture{
		withdrawalSvc: mocks.NewMockWithdrawalService(ctrl),
		auditSvc:      mocks.NewMockAuditService(ctrl),
		sigSvc:        service.NewHMACSignatureService("processor-secret"),
		tokenSvc:      service.NewJWTTokenService("jwt-secret", time.Hour, "creator-ledger"),
	}
	f.router = SetupRouter(RouterDeps{
		WithdrawalSvc:  f.withdrawalSvc,
		BudgetQuerySvc: mocks.NewMockBudgetQueryService(ctrl),
		SigSvc:         f.sigSvc,
		NonceStore:     redisStore.NewNonceStore(client),
		TokenSvc:       f.tokenSvc,
		RateLimiter:    redisStore.NewRateLimitStore(client),
		HealthCheckers: []ports.HealthChecker{redisStore.NewHealthCheck(client)},
		AuditSvc:       f.auditSvc,
		Processor: config.ProcessorConfig{
			MaxClockSkew: time.Minute,
			NonceTTL:     2 * time.Minute,
		},
		Logger: zerolog.Nop(),
	})
	return f
}

func (f *routerFixture) signedCallback(id uuid.UUID, body, nonce string) *http.Request {
	path := "/api/v1/processor/withdrawals/" + id.String()
	ts := time.Now().Unix()
	sig := f.sigSvc.Sign(f.sigSvc.CanonicalString(http.MethodPost, path, ts, nonce, []byte(body)))

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderSignature, sig)
	req.Header.Set(middleware.HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(middleware.HeaderNonce, nonce)
	return req
}

func TestRouter_ProcessorCallback_SignedOnceOnly(t *testing.T) {
	f := newRouterFixture(t)

	paid := sampleWithdrawal(domain.WithdrawalPaid)
	body := `{"status":"PAID","reference":"ps_77"}`
	f.withdrawalSvc.EXPECT().CompleteWithdrawal(gomock.Any(), paid.ID, "ps_77").Return(paid, nil)
	f.auditSvc.EXPECT().Log(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, entry *domain.AuditLog) {
		assert.Equal(t, domain.AuditActionProcessorCallback, entry.Action)
		require.NotNil(t, entry.ActorID)
		assert.Equal(t, middleware.ProcessorActor, *entry.ActorID)
	})

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, f.signedCallback(paid.ID, body, "nonce-1"))
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, f.signedCallback(paid.ID, body, "nonce-1"))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "NONCE_USED", decodeErrorCode(t, w))
}

func TestRouter_ProcessorCallback_TamperedBody(t *testing.T) {
	f := newRouterFixture(t)

	id := uuid.New()
	req := f.signedCallback(id, `{"status":"FAILED","reason":"x"}`, "nonce-2")
	req.Body = io.NopCloser(strings.NewReader(`{"status":"PAID","reference":"ps_evil"}`))
	req.ContentLength = -1

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_AdminRequiresAdminToken(t *testing.T) {
	f := newRouterFixture(t)
	id := uuid.New()
	path := "/api/v1/admin/withdrawals/" + id.String() + "/approve"

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	viewer, _, err := f.tokenSvc.Generate("ops-1", "viewer")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, nil)
	req.Header.Set("Authorization", "Bearer "+viewer)
	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	admin, _, err := f.tokenSvc.Generate("ops-1", AdminRole)
	require.NoError(t, err)
	approved := sampleWithdrawal(domain.WithdrawalProcessing)
	approved.ID = id
	f.withdrawalSvc.EXPECT().ApproveWithdrawal(gomock.Any(), id).Return(approved, nil)
	f.auditSvc.EXPECT().Log(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, entry *domain.AuditLog) {
		assert.Equal(t, domain.AuditActionApproveWithdrawal, entry.Action)
		assert.Equal(t, id.String(), entry.ResourceID)
	})

	req = httptest.NewRequest(http.MethodPost, path, nil)
	req.Header.Set("Authorization", "Bearer "+admin)
	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "30", w.Header().Get("X-RateLimit-Limit"))
}

func TestRouter_Health(t *testing.T) {
	f := newRouterFixture(t)

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderRequestID))
}
