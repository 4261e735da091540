package main

import (
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/cloudsec/internal/config"
)

func TestRun_ReturnsListenErrorAfterClosingApp(t *testing.T) {
	l, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	cfg := config.Default()
	cfg.Server.Port = l.Addr().(*net.TCPAddr).Port

	done := make(chan error, 1)
	go func() { done <- run(cfg, zerolog.Nop()) }()

	select {
	case err := <-done:
		assert.ErrorContains(t, err, "address already in use")
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after the listener failed")
	}
}
