package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"creator-ledger/config"
	"creator-ledger/internal/core/ports"
	"creator-ledger/internal/core/ports/mocks"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testProcessorCfg = config.ProcessorConfig{
	WebhookSecret: "whsec",
	MaxClockSkew:  60 * time.Second,
	NonceTTL:      120 * time.Second,
}

func processorRouter(sigSvc ports.SignatureService, nonceStore ports.NonceStore) *gin.Engine {
	router := gin.New()
	router.POST("/cb/:id", HMACAuth(sigSvc, nonceStore, testProcessorCfg, zerolog.Nop()), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"actor": c.GetString(CtxActorID)})
	})
	return router
}

func signedRequest(body string, ts int64, nonce, sig string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/cb/w-1", bytes.NewBufferString(body))
	req.Header.Set(HeaderSignature, sig)
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(HeaderNonce, nonce)
	return req
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp["error_code"]
}

func TestHMACAuth_MissingHeaders(t *testing.T) {
	ctrl := gomock.NewController(t)
	router := processorRouter(mocks.NewMockSignatureService(ctrl), mocks.NewMockNonceStore(ctrl))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/cb/w-1", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_SIGNATURE", errorCode(t, w))
}

func TestHMACAuth_TimestampOutsideWindow(t *testing.T) {
	ctrl := gomock.NewController(t)
	router := processorRouter(mocks.NewMockSignatureService(ctrl), mocks.NewMockNonceStore(ctrl))

	for _, ts := range []int64{
		time.Now().Add(-2 * time.Minute).Unix(),
		time.Now().Add(2 * time.Minute).Unix(),
	} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, signedRequest(`{}`, ts, "n-1", "sig"))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}
}

func TestHMACAuth_BadSignatureDoesNotBurnNonce(t *testing.T) {
	ctrl := gomock.NewController(t)
	sigSvc := mocks.NewMockSignatureService(ctrl)
	nonceStore := mocks.NewMockNonceStore(ctrl)

	ts := time.Now().Unix()
	sigSvc.EXPECT().CanonicalString("POST", "/cb/w-1", ts, "n-1", []byte(`{}`)).Return("canonical")
	sigSvc.EXPECT().Verify("canonical", "forged").Return(false)

	w := httptest.NewRecorder()
	processorRouter(sigSvc, nonceStore).ServeHTTP(w, signedRequest(`{}`, ts, "n-1", "forged"))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_SIGNATURE", errorCode(t, w))
}

func TestHMACAuth_ReplayedNonce(t *testing.T) {
	ctrl := gomock.NewController(t)
	sigSvc := mocks.NewMockSignatureService(ctrl)
	nonceStore := mocks.NewMockNonceStore(ctrl)

	ts := time.Now().Unix()
	sigSvc.EXPECT().CanonicalString(gomock.Any(), gomock.Any(), ts, "n-1", gomock.Any()).Return("canonical")
	sigSvc.EXPECT().Verify("canonical", "good").Return(true)
	nonceStore.EXPECT().CheckAndSet(gomock.Any(), ProcessorActor, "n-1", testProcessorCfg.NonceTTL).Return(false, nil)

	w := httptest.NewRecorder()
	processorRouter(sigSvc, nonceStore).ServeHTTP(w, signedRequest(`{}`, ts, "n-1", "good"))

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "NONCE_USED", errorCode(t, w))
}

func TestHMACAuth_Success_BodyStillReadable(t *testing.T) {
	ctrl := gomock.NewController(t)
	sigSvc := mocks.NewMockSignatureService(ctrl)
	nonceStore := mocks.NewMockNonceStore(ctrl)

	ts := time.Now().Unix()
	body := `{"status":"PAID","reference":"ps_1"}`
	sigSvc.EXPECT().CanonicalString("POST", "/cb/w-1", ts, "n-2", []byte(body)).Return("canonical")
	sigSvc.EXPECT().Verify("canonical", "good").Return(true)
	nonceStore.EXPECT().CheckAndSet(gomock.Any(), ProcessorActor, "n-2", testProcessorCfg.NonceTTL).Return(true, nil)

	var seenBody string
	router := gin.New()
	router.POST("/cb/:id", HMACAuth(sigSvc, nonceStore, testProcessorCfg, zerolog.Nop()), func(c *gin.Context) {
		b, _ := c.GetRawData()
		seenBody = string(b)
		c.JSON(http.StatusOK, gin.H{"actor": c.GetString(CtxActorID)})
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, signedRequest(body, ts, "n-2", "good"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, body, seenBody)
	assert.Contains(t, w.Body.String(), ProcessorActor)
}

func TestHMACAuth_NonceStoreDownAllows(t *testing.T) {
	ctrl := gomock.NewController(t)
	sigSvc := mocks.NewMockSignatureService(ctrl)
	nonceStore := mocks.NewMockNonceStore(ctrl)

	ts := time.Now().Unix()
	sigSvc.EXPECT().CanonicalString(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return("canonical")
	sigSvc.EXPECT().Verify("canonical", "good").Return(true)
	nonceStore.EXPECT().CheckAndSet(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(false, errors.New("redis down"))

	w := httptest.NewRecorder()
	processorRouter(sigSvc, nonceStore).ServeHTTP(w, signedRequest(`{}`, ts, "n-3", "good"))

	assert.Equal(t, http.StatusOK, w.Code)
}

func adminRouter(tokenSvc ports.TokenService) *gin.Engine {
	router := gin.New()
	router.GET("/test", JWTAuth(tokenSvc, "admin", zerolog.Nop()), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"actor": c.GetString(CtxActorID)})
	})
	return router
}

func TestJWTAuth_MissingHeader(t *testing.T) {
	ctrl := gomock.NewController(t)
	router := adminRouter(mocks.NewMockTokenService(ctrl))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTAuth_InvalidToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	tokenSvc := mocks.NewMockTokenService(ctrl)
	tokenSvc.EXPECT().Validate("bad_token").Return(nil, assert.AnError)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer bad_token")
	w := httptest.NewRecorder()
	adminRouter(tokenSvc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTAuth_WrongRole(t *testing.T) {
	ctrl := gomock.NewController(t)
	tokenSvc := mocks.NewMockTokenService(ctrl)
	tokenSvc.EXPECT().Validate("viewer_token").Return(&ports.TokenClaims{Subject: "ops-7", Role: "viewer"}, nil)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer viewer_token")
	w := httptest.NewRecorder()
	adminRouter(tokenSvc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestJWTAuth_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	tokenSvc := mocks.NewMockTokenService(ctrl)
	tokenSvc.EXPECT().Validate("good_token").Return(&ports.TokenClaims{Subject: "ops-7", Role: "admin"}, nil)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Authorization", "Bearer good_token")
	w := httptest.NewRecorder()
	adminRouter(tokenSvc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ops-7")
}

func TestRequestID_PropagatesOrGenerates(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(CtxRequestID))
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set(HeaderRequestID, "req-abc")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "req-abc", w.Body.String())
	assert.Equal(t, "req-abc", w.Header().Get(HeaderRequestID))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Len(t, w.Body.String(), 36)
}

func TestRecovery_PanicRecovered(t *testing.T) {
	router := gin.New()
	router.Use(Recovery(zerolog.Nop()))
	router.GET("/panic", func(c *gin.Context) {
		panic("something went wrong")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "DATABASE_ERROR", errorCode(t, w))
}
