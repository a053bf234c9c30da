package settle

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/tradegate/server/internal/world"
	"go.uber.org/zap"
)

const tokenTTL = time.Hour

// Client dispatches completed trades to the external settlement endpoint.
// Fire-and-report: by the time a trade reaches this client the pair is
// already removed, so failures are logged but never undo anything.
type Client struct {
	endpoint string
	key      *rsa.PrivateKey
	httpc    *http.Client
	log      *zap.Logger
}

// NewClient builds a settlement client from the endpoint URL and the
// PEM-encoded RS256 signing key.
func NewClient(endpoint string, privateKeyPEM []byte, log *zap.Logger) (*Client, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse settlement private key: %w", err)
	}
	return &Client{
		endpoint: endpoint,
		key:      key,
		httpc:    &http.Client{Timeout: 15 * time.Second},
		log:      log,
	}, nil
}

// performRequest is the settlement request body.
type performRequest struct {
	TradeInfo [2]*world.UserTradeInfo `json:"tradeInfo"`
}

// PerformTrade POSTs the completed pair to the settlement endpoint with a
// signed bearer token naming both participants.
func (c *Client) PerformTrade(ctx context.Context, pair *world.TradePair) error {
	u1 := pair.Users[0].UserID
	u2 := pair.Users[1].UserID

	token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"userIds": []string{u1, u2},
		"exp":     time.Now().Add(tokenTTL).Unix(),
	}).SignedString(c.key)
	if err != nil {
		return fmt.Errorf("sign settlement token: %w", err)
	}

	body, err := json.Marshal(performRequest{TradeInfo: pair.Users})
	if err != nil {
		return fmt.Errorf("encode settlement body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build settlement request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("settlement request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("settlement endpoint returned %s", resp.Status)
	}

	c.log.Info(fmt.Sprintf("交易結算完成  trade=%s  玩家1=%s  玩家2=%s", pair.ID, u1, u2))
	return nil
}
