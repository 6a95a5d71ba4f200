package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"creator-ledger/config"
	"creator-ledger/internal/adapter/events"
	httpHandler "creator-ledger/internal/adapter/http/handler"
	"creator-ledger/internal/adapter/http/middleware"
	"creator-ledger/internal/adapter/metrics"
	"creator-ledger/internal/adapter/storage/memory"
	redisStorage "creator-ledger/internal/adapter/storage/redis"
	"creator-ledger/internal/core/domain"
	"creator-ledger/internal/core/ports"
	"creator-ledger/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Ledger: config.LedgerConfig{
			Currency:               "USD",
			DefaultFeeBps:          1000,
			MinWithdrawalCents:     1000,
			DefaultPayoutDelayDays: 7,
			MaxAmountCents:         1_000_000_000_000,
		},
		Events: config.EventsConfig{
			Driver:       "log",
			TopicPrefix:  "ledger.",
			BufferSize:   64,
			MaxAttempts:  1,
			RetryBackoff: time.Millisecond,
		},
		Processor: config.ProcessorConfig{
			WebhookSecret: "processor-secret",
			MaxClockSkew:  time.Minute,
			NonceTTL:      2 * time.Minute,
		},
	}
}

func TestCheckStorageDriver(t *testing.T) {
	assert.NoError(t, checkStorageDriver("postgres"))
	assert.NoError(t, checkStorageDriver("memory"))
	assert.Error(t, checkStorageDriver("sqlite"))
}

// TestLedgerFlow drives a campaign from deposit to a settled withdrawal over the
// memory store, then settles it through the HTTP surface.
func TestLedgerFlow_MemoryStore(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	cfg := testConfig()
	log := zerolog.Nop()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	repos := memoryRepositories(memory.NewStore(), cfg)
	dispatcher := events.NewDispatcher(events.NewLogSink(log), cfg.Events, metrics.Nop{}, log)
	go dispatcher.Run(ctx)
	t.Cleanup(func() { _ = dispatcher.Close(context.Background()) })

	core := newLedgerCore(repos, redisStorage.NewBudgetCache(rdb, time.Minute), dispatcher, metrics.Nop{}, cfg.Ledger, log)

	ownerID, creatorID := uuid.New(), uuid.New()
	campaign := &domain.Campaign{
		ID:               uuid.New(),
		OwnerID:          ownerID,
		Name:             "launch",
		CPMCents:         1_000_000,
		TotalBudgetCents: 50_000,
		Status:           domain.CampaignStatusActive,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
	require.NoError(t, repos.campaigns.Create(ctx, campaign))

	_, err := core.Wallets.Deposit(ctx, ports.DepositRequest{OwnerID: ownerID, AmountCents: 100_000, Reference: "topup-1"})
	require.NoError(t, err)
	lock, err := core.Budgets.LockBudget(ctx, ports.LockBudgetRequest{CampaignID: campaign.ID, OwnerID: ownerID, AmountCents: 50_000})
	require.NoError(t, err)
	assert.Equal(t, int64(50_000), lock.AvailableCents)

	event := &domain.BillableEvent{
		ID:          uuid.New(),
		CampaignID:  campaign.ID,
		CreatorID:   creatorID,
		Kind:        domain.BillableView,
		IsValidated: true,
		OccurredAt:  time.Now(),
	}
	require.NoError(t, repos.events.Create(ctx, event))

	payout, err := core.Payouts.RecordValidViewPayout(ctx, campaign.ID, creatorID, event.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), payout.PayoutCents)
	assert.Equal(t, int64(100), payout.FeeCents)
	assert.Equal(t, int64(49_000), payout.RemainingBudgetCents)

	wd, err := core.Withdrawals.RequestWithdrawal(ctx, creatorID, 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(900), wd.NetAmountCents)
	assert.Equal(t, int64(0), wd.AvailableCents)

	sigSvc := service.NewHMACSignatureService(cfg.Processor.WebhookSecret)
	tokenSvc := service.NewJWTTokenService("jwt-secret", time.Hour, "creator-ledger")
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		WithdrawalSvc:  core.Withdrawals,
		BudgetQuerySvc: core.BudgetQuery,
		SigSvc:         sigSvc,
		NonceStore:     redisStorage.NewNonceStore(rdb),
		TokenSvc:       tokenSvc,
		RateLimiter:    redisStorage.NewRateLimitStore(rdb),
		HealthCheckers: []ports.HealthChecker{repos.health, redisStorage.NewHealthCheck(rdb)},
		AuditSvc:       core.Audit,
		Processor:      cfg.Processor,
		Logger:         log,
	})

	token, _, err := tokenSvc.Generate("ops-1", httpHandler.AdminRole)
	require.NoError(t, err)
	admin := func(method, path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	w := admin(http.MethodGet, "/api/v1/admin/campaigns/"+campaign.ID.String()+"/budget")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	budget := dataOf(t, w)
	assert.Equal(t, float64(50_000), budget["locked_cents"])
	assert.Equal(t, float64(1000), budget["spent_cents"])
	assert.Equal(t, float64(49_000), budget["remaining_cents"])

	w = admin(http.MethodPost, "/api/v1/admin/withdrawals/"+wd.WithdrawalID.String()+"/approve")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "PROCESSING", dataOf(t, w)["status"])

	path := "/api/v1/processor/withdrawals/" + wd.WithdrawalID.String()
	body := []byte(`{"status":"PAID","reference":"ps_123"}`)
	ts := time.Now().Unix()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderSignature, sigSvc.Sign(sigSvc.CanonicalString(http.MethodPost, path, ts, "n-1", body)))
	req.Header.Set(middleware.HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(middleware.HeaderNonce, "n-1")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "PAID", dataOf(t, w)["status"])

	invoice, err := repos.invoices.GetByWithdrawal(ctx, wd.WithdrawalID)
	require.NoError(t, err)
	require.NotNil(t, invoice)

	w = admin(http.MethodGet, "/api/v1/admin/creators/"+creatorID.String()+"/withdrawals")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), dataOf(t, w)["count"])
}

func dataOf(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp struct {
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Data
}
