package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yoremi/nwscript-go/internal/nwscripttest"
)

func writeScript(t *testing.T) string {
	t.Helper()
	a := nwscripttest.New()
	a.JSR("main").RETN()
	a.Label("main").ConstI(42).MOVSP(-4).RETN()
	name := filepath.Join(t.TempDir(), "test.ncs")
	require.NoError(t, os.WriteFile(name, a.Bytes(), 0o644))
	return name
}

func TestInfo(t *testing.T) {
	t.Setenv("NWSCRIPT_TABLES", t.TempDir())
	GameName, TableFile = "nwn", ""
	l, err := load(writeScript(t))
	require.NoError(t, err)
	require.NoError(t, l.analyze(true, false))

	var buf bytes.Buffer
	writeInfo(&buf, l)
	out := buf.String()
	assert.Contains(t, out, "Blocks:       3\n")
	assert.Contains(t, out, "SubRoutines:  2\n")
	assert.Contains(t, out, "Variables:    1\n")
	assert.Regexp(t, `MD5: +[0-9a-f]{32}\n`, out)
	assert.Regexp(t, `0000000D  _start +start *\n`, out)
	assert.Regexp(t, `00000015  main +main +\(\) -> \(\)\n`, out)
}

func TestLoadErrors(t *testing.T) {
	t.Setenv("NWSCRIPT_TABLES", t.TempDir())
	TableFile = ""

	GameName = "pong"
	_, err := load(writeScript(t))
	assert.Error(t, err)

	GameName = "nwn"
	_, err = load(filepath.Join(t.TempDir(), "missing.ncs"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.ncs")
	require.NoError(t, os.WriteFile(bad, []byte("NCS V2.0"), 0o644))
	_, err = load(bad)
	assert.Error(t, err)
}
