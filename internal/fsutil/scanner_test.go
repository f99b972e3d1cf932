package fsutil

import (
	"testing"

	"github.com/mandelsoft/vfs/pkg/memoryfs"
	"github.com/mandelsoft/vfs/pkg/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		file   string
		ts     string
		name   string
		wantOK bool
	}{
		{"20230101000000_Initial.cs", "20230101000000", "Initial", true},
		{"20230101000000_Add_Users.cs", "20230101000000", "Add_Users", true},
		{"20230101000000_Initial.Designer.cs", "", "", false},
		{"AppDbContextModelSnapshot.cs", "", "", false},
		{"2023010100000_Short.cs", "", "", false},
		{"20231301000000_BadMonth.cs", "", "", false},
		{"20230101000000_Initial.sql", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			ts, name, ok := Parse(tt.file)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.ts, ts)
			assert.Equal(t, tt.name, name)
		})
	}
}

func TestScanDirAndUpTo(t *testing.T) {
	fs := memoryfs.New()
	require.NoError(t, fs.MkdirAll("/mig", 0o755))
	for _, f := range []string{
		"20230201000000_Later.cs",
		"20221201000000_A.cs",
		"20221201000000_A.Designer.cs",
		"20230101000000_Initial.cs",
		"20230101000000_Initial.Designer.cs",
		"AppDbContextModelSnapshot.cs",
		"notes.txt",
	} {
		require.NoError(t, vfs.WriteFile(fs, "/mig/"+f, []byte("x"), 0o644))
	}
	require.NoError(t, fs.MkdirAll("/mig/20220101000000_Dir.cs", 0o755))

	ms, err := ScanDir(fs, "/mig")
	require.NoError(t, err)
	require.Len(t, ms, 3)
	assert.Equal(t, "20221201000000_A", ms[0].ID())
	assert.Equal(t, "20230101000000_Initial", ms[1].ID())
	assert.Equal(t, "20230201000000_Later", ms[2].ID())
	assert.Equal(t, "/mig/20221201000000_A.Designer.cs", ms[0].SnapshotPath)

	sel := UpTo(ms, "20230101000000_Initial.cs")
	require.Len(t, sel, 2)
	assert.Equal(t, "20221201000000_A.cs", sel[0].FileName())
	assert.Equal(t, "20230101000000_Initial.cs", sel[1].FileName())
}

func TestScanDirMissing(t *testing.T) {
	_, err := ScanDir(memoryfs.New(), "/nope")
	require.Error(t, err)
}
