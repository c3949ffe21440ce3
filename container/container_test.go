package container

import (
	"archive/tar"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedCommitProducesValidTarArchive(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "report.cubex")

	layout, err := NewEmbedded(archivePath)
	require.NoError(t, err)

	anchor, err := layout.AnchorWriter()
	require.NoError(t, err)
	anchor.Write([]byte("<cube/>"))
	anchor.Close()

	data, err := layout.MetricData("time", false)
	require.NoError(t, err)
	data.Write([]byte("CUBEX.DA"))
	data.Close()

	idx, err := layout.MetricIndex("time", false)
	require.NoError(t, err)
	idx.Write([]byte("CUBEX.IX"))
	idx.Close()

	require.NoError(t, layout.Commit())

	f, err := os.Open(archivePath)
	require.NoError(t, err)
	defer f.Close()

	tr := tar.NewReader(f)
	seen := map[string]bool{}
	for {
		hdr, err := tr.Next()
		if err != nil {
			break
		}
		seen[filepath.Base(hdr.Name)] = true
	}
	for _, want := range []string{"anchor.xml", "time.data", "time.index"} {
		assert.True(t, seen[want], "archive missing member %q, saw %v", want, seen)
	}
}

func TestEmbeddedGhostMetricPrefixed(t *testing.T) {
	dir := t.TempDir()
	layout, err := NewEmbedded(filepath.Join(dir, "r.cubex"))
	require.NoError(t, err)

	w, err := layout.MetricData("hidden", true)
	require.NoError(t, err)
	w.Close()

	require.Len(t, layout.members, 1)
	assert.Equal(t, "ghost_hidden.data", filepath.Base(layout.members[0]))
}

func TestVirtualTracksBytesWithoutDisk(t *testing.T) {
	v := NewVirtual()
	w, err := v.MetricData("time", false)
	require.NoError(t, err)

	w.Write([]byte("12345678"))
	assert.EqualValues(t, 8, v.BytesWritten("time.data"))
	assert.NoError(t, v.Commit())
}
