package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/internal/attendance"
	"rollcall/internal/platform/config"
	id "rollcall/pkg/domain"
)

const (
	ownerHex   = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	studentHex = "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"
)

func runRoot(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	deployOwner = ""
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func TestDeployCommand(t *testing.T) {
	t.Run("prints the deployed address", func(t *testing.T) {
		out, _, err := runRoot(t, "deploy", "--owner", ownerHex)
		require.NoError(t, err)

		lines := strings.Split(strings.TrimSpace(out), "\n")
		require.Len(t, lines, 2)
		assert.Equal(t, "Deploying registry with the account: "+ownerHex, lines[0])
		require.True(t, strings.HasPrefix(lines[1], "Registry deployed to: "))
		_, err = id.ParseAddress(strings.TrimPrefix(lines[1], "Registry deployed to: "))
		assert.NoError(t, err)
	})

	t.Run("owner falls back to config", func(t *testing.T) {
		t.Setenv("ROLLCALL_LEDGER_OWNER", ownerHex)
		out, _, err := runRoot(t, "deploy")
		require.NoError(t, err)
		assert.Contains(t, out, "Registry deployed to: ")
	})

	t.Run("invalid owner fails", func(t *testing.T) {
		out, errOut, err := runRoot(t, "deploy", "--owner", "0xnope")
		require.Error(t, err)
		assert.Empty(t, out)
		assert.Contains(t, errOut, "deploy failed")
	})

	t.Run("missing owner fails", func(t *testing.T) {
		_, errOut, err := runRoot(t, "deploy")
		require.Error(t, err)
		assert.Contains(t, errOut, "--owner")
	})
}

func TestBuild_MemoryBackend(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.Defaults()
	cfg.Ledger.Owner = ownerHex
	cfg.Identity.Initial = ownerHex
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	a, err := build(ctx, cfg, logger)
	require.NoError(t, err)
	defer a.shutdown(context.Background(), logger)

	srv := httptest.NewServer(a.handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := `{"address":"` + studentHex + `","name":"Alice"}`
	resp, err = http.Post(srv.URL+"/students", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/students")
	require.NoError(t, err)
	defer resp.Body.Close()
	var roster attendance.RosterView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&roster))
	assert.Equal(t, uint64(1), roster.Count)
	require.Len(t, roster.Students, 1)
	assert.Equal(t, "Alice", roster.Students[0].Name)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	metricsBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(metricsBody), "rollcall_http_requests_total")
}

func TestBuild_MemoryBackendNeedsOwner(t *testing.T) {
	cfg := config.Defaults()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := build(context.Background(), cfg, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ledger.owner")
}
