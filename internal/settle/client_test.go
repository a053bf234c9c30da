package settle

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradegate/server/internal/world"
	"go.uber.org/zap"
)

func newTestKey(t *testing.T) (*rsa.PrivateKey, []byte) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	keyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	return key, keyPEM
}

func testPair() *world.TradePair {
	return &world.TradePair{
		ID: uuid.New(),
		Users: [2]*world.UserTradeInfo{
			{UserID: "alice", Inventory: []string{"A", "B"}, LockedIn: true, Accepted: true},
			{UserID: "bob", Inventory: []string{"X"}, LockedIn: true, Accepted: true},
		},
	}
}

func TestPerformTrade(t *testing.T) {
	key, keyPEM := newTestKey(t)

	var gotBody []byte
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotBody, _ = io.ReadAll(r.Body)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, keyPEM, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, c.PerformTrade(context.Background(), testPair()))

	// The body carries both sides of the trade.
	var req struct {
		TradeInfo []world.UserTradeInfo `json:"tradeInfo"`
	}
	require.NoError(t, json.Unmarshal(gotBody, &req))
	require.Len(t, req.TradeInfo, 2)
	assert.Equal(t, "alice", req.TradeInfo[0].UserID)
	assert.Equal(t, []string{"A", "B"}, req.TradeInfo[0].Inventory)
	assert.Equal(t, "bob", req.TradeInfo[1].UserID)

	// The bearer token verifies against our key and names both users.
	raw, ok := strings.CutPrefix(gotAuth, "Bearer ")
	require.True(t, ok, "expected Bearer authorization, got %q", gotAuth)
	parsed, err := jwt.Parse(raw,
		func(*jwt.Token) (any, error) { return &key.PublicKey, nil },
		jwt.WithValidMethods([]string{"RS256"}),
	)
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, []any{"alice", "bob"}, claims["userIds"])
	assert.NotZero(t, claims["exp"])
}

func TestPerformTrade_EndpointError(t *testing.T) {
	_, keyPEM := newTestKey(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, keyPEM, zap.NewNop())
	require.NoError(t, err)

	err = c.PerformTrade(context.Background(), testPair())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestPerformTrade_Unreachable(t *testing.T) {
	_, keyPEM := newTestKey(t)
	c, err := NewClient("http://127.0.0.1:1", keyPEM, zap.NewNop())
	require.NoError(t, err)

	assert.Error(t, c.PerformTrade(context.Background(), testPair()))
}

func TestNewClient_BadKey(t *testing.T) {
	_, err := NewClient("http://example.invalid", []byte("garbage"), zap.NewNop())
	assert.Error(t, err)
}
