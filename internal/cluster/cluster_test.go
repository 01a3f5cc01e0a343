package cluster

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientConnects(t *testing.T) {
	srv := miniredis.RunT(t)

	client, err := NewClient(context.Background(), []string{srv.Addr()})
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, client.Ping(context.Background()).Err())
}

func TestNewClientUnreachable(t *testing.T) {
	_, err := NewClient(context.Background(), []string{"localhost:1"})
	assert.Error(t, err)
}

func TestChannelName(t *testing.T) {
	assert.Equal(t, "0", Channel(0))
	assert.Equal(t, "42", Channel(42))
	assert.Equal(t, "-7", Channel(-7))
	assert.Equal(t, "2147483647", Channel(1<<31-1))
}
