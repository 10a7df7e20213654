package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"workledger/crypto"
)

func testAdminAddress(t *testing.T) string {
	t.Helper()
	b := make([]byte, crypto.AddressLength)
	b[0] = 0x0A
	return crypto.NewAddress(crypto.WRKPrefix, b).String()
}

func TestLoadCreatesDefaultWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workledger.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.FileExists(t, path)
	require.Equal(t, uint32(250), cfg.FeeBps)
	require.NotEmpty(t, cfg.RPCAddress)
	require.NotEmpty(t, cfg.DataDir)
	// The operator still has to fill in the admin address.
	require.Error(t, cfg.Validate())
}

func TestLoadParsesAndValidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workledger.toml")
	body := `
RPCAddress = "127.0.0.1:9999"
AdminAddress = "` + testAdminAddress(t) + `"
FeeBps = 500
AutoReleaseSeconds = 86400
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:9999", cfg.RPCAddress)
	require.Equal(t, uint32(500), cfg.FeeBps)
	require.Equal(t, int64(86400), cfg.AutoReleaseSeconds)
	admin, err := cfg.Admin()
	require.NoError(t, err)
	require.False(t, admin.IsZero())
	// Unset fields pick up defaults.
	require.NotEmpty(t, cfg.MetricsAddress)
	require.NotEmpty(t, cfg.DataDir)
}

func TestValidateRejectsBadValues(t *testing.T) {
	admin := testAdminAddress(t)
	cases := []Config{
		{AdminAddress: admin, FeeBps: 10_001},
		{AdminAddress: admin, AutoReleaseSeconds: -1},
		{AdminAddress: ""},
		{AdminAddress: "not-bech32"},
	}
	for i, cfg := range cases {
		if err := cfg.Validate(); err == nil {
			t.Fatalf("case %d: invalid config accepted", i)
		}
	}
}
