package modexia

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient returns a client pointed at baseURL with suspension points
// stubbed out so retry and poll tests run without sleeping.
func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := New("mx_test_dummy_key", WithBaseURL(baseURL))
	require.NoError(t, err)
	c.sleep = func(context.Context, time.Duration) error { return nil }
	return c
}

func TestBaseURLResolutionByKeyPrefix(t *testing.T) {
	t.Setenv(baseURLEnv, "")

	tests := []struct {
		name   string
		apiKey string
		want   string
	}{
		{"live key", "mx_live_abc123", ProductionURL},
		{"test key", "mx_test_abc123", SandboxURL},
		{"unprefixed key", "some_other_key", LocalURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.apiKey)
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.BaseURL())
		})
	}
}

func TestBaseURLEnvironmentOverride(t *testing.T) {
	t.Setenv(baseURLEnv, "https://staging.modexia.software")

	c, err := New("mx_live_abc123")
	require.NoError(t, err)
	assert.Equal(t, "https://staging.modexia.software", c.BaseURL())
}

func TestBaseURLExplicitOverrideWinsOverEnvironment(t *testing.T) {
	t.Setenv(baseURLEnv, "https://staging.modexia.software")

	c, err := New("mx_live_abc123", WithBaseURL("https://override.modexia.software"))
	require.NoError(t, err)
	assert.Equal(t, "https://override.modexia.software", c.BaseURL())
}

func TestNewRejectsEmptyAPIKey(t *testing.T) {
	_, err := New("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid client configuration")
}

func TestNewRejectsMalformedBaseURL(t *testing.T) {
	_, err := New("mx_test_key", WithBaseURL("not a url"))
	require.Error(t, err)
}

func TestSleepContextHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sleepContext(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}
