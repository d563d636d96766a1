package cli

import (
	"bytes"
	"context"
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	cdx "github.com/CycloneDX/cyclonedx-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nmapcluster/scanner"
	"nmapcluster/store"
	"nmapcluster/task"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LOG_LEVEL", "error")
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestExport(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "inventory.db")
	db, err := store.Open(context.Background(), dbPath)
	require.NoError(t, err)
	require.NoError(t, db.Store(context.Background(), store.Record{
		Host: scanner.Host{
			Addr:  netip.MustParseAddr("10.0.0.1"),
			Up:    true,
			Ports: []scanner.Port{{Number: 53, Protocol: "udp", Service: "domain"}},
		},
		TaskID:    "t-1",
		Kind:      task.KindUDP,
		ScannedAt: time.Unix(1700000000, 0),
	}))
	require.NoError(t, db.Close())

	out := filepath.Join(t.TempDir(), "bom.json")
	_, err = run(t, "export", "--db", dbPath, "--output", out)
	require.NoError(t, err)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	var decoded cdx.BOM
	require.NoError(t, cdx.NewBOMDecoder(f, cdx.BOMFileFormatJSON).Decode(&decoded))
	require.Len(t, *decoded.Components, 2)
}

func TestCoordinatorRejectsBadTargets(t *testing.T) {
	_, err := run(t, "coordinator", "10.0.0.0/8", "not-a-target")
	assert.ErrorContains(t, err, "not-a-target")

	_, err = run(t, "coordinator")
	assert.Error(t, err)
}

func TestWorkerRejectsArguments(t *testing.T) {
	_, err := run(t, "worker", "10.0.0.1")
	assert.Error(t, err)
}

func TestInvalidConfiguration(t *testing.T) {
	t.Setenv("QUEUE_BACKEND", "kafka")
	_, err := run(t, "worker")
	assert.ErrorContains(t, err, "QUEUE_BACKEND")
}

func TestMissingEnvFile(t *testing.T) {
	_, err := run(t, "--env-file", filepath.Join(t.TempDir(), "missing.env"), "version")
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "nmapcluster")
}

func TestWorkerAddress(t *testing.T) {
	assert.Equal(t, "10.1.2.3", workerAddress(context.Background(), "10.1.2.3"))
	assert.NotEmpty(t, workerAddress(context.Background(), ""))
}
