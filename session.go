package modexia

import (
	"context"
	"net/http"
)

const identityPath = "/api/v1/user/me"

// ValidateSession checks the API key against the service and caches the
// returned identity. It always performs a live round trip and overwrites any
// previously cached identity.
func (c *Client) ValidateSession(ctx context.Context) (*Identity, error) {
	res, err := c.request(ctx, http.MethodGet, identityPath, nil)
	if err != nil {
		return nil, err
	}

	payload := res
	if data, ok := res["data"].(map[string]any); ok {
		payload = data
	}

	identity := &Identity{
		Username:      stringField(payload, "username"),
		Balance:       stringField(payload, "balance"),
		WalletAddress: stringField(payload, "walletAddress"),
		Email:         stringField(payload, "email"),
	}

	c.mu.Lock()
	c.identity = identity
	c.mu.Unlock()

	c.log.Info("session validated", map[string]any{"username": identity.Username})
	return identity, nil
}

// CachedIdentity returns the identity snapshot from the last successful
// validation, or nil when the session has not been validated yet.
func (c *Client) CachedIdentity() *Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity
}

// RetrieveBalance returns the agent's wallet balance, validating the session
// exactly once when the cache is empty. The cache is never refreshed
// automatically afterwards; call ValidateSession for a fresh read.
func (c *Client) RetrieveBalance(ctx context.Context) (string, error) {
	c.mu.RLock()
	cached := c.identity
	c.mu.RUnlock()

	if cached == nil {
		id, err := c.ValidateSession(ctx)
		if err != nil {
			return "", err
		}
		cached = id
	}

	if cached.Balance == "" {
		return "0", nil
	}
	return cached.Balance, nil
}
