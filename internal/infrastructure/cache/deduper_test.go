package cache

import (
	"context"
	"github.com/mufasadev/coin-settlement/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"strings"
	"testing"
	"time"
)

func TestKey(t *testing.T) {
	a := Key("stripe", []byte(`{"id":"evt_1"}`))
	b := Key("stripe", []byte(`{"id":"evt_1"}`))
	c := Key("paygate", []byte(`{"id":"evt_1"}`))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.True(t, strings.HasPrefix(a, "idem:v1:stripe:"))
}

func TestNopDeduper(t *testing.T) {
	var d Deduper = NopDeduper{}
	require.NoError(t, d.Remember(context.Background(), "stripe", []byte("x")))

	seen, err := d.Seen(context.Background(), "stripe", []byte("x"))
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestWebhookDeduper(t *testing.T) {
	if os.Getenv("REDIS_ADDR") == "" {
		t.Skip("REDIS_ADDR is not set")
	}
	ctx := context.Background()
	client, err := NewClient(ctx, config.Load().Redis)
	require.NoError(t, err)
	defer client.Close()

	d := NewWebhookDeduper(client, time.Minute)
	payload := []byte(time.Now().String())
	defer client.Del(ctx, Key("cashbox", payload))

	seen, err := d.Seen(ctx, "cashbox", payload)
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, d.Remember(ctx, "cashbox", payload))
	seen, err = d.Seen(ctx, "cashbox", payload)
	require.NoError(t, err)
	assert.True(t, seen)
}
