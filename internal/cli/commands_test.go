package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitCommand_Idempotent(t *testing.T) {
	dsn := tempDSN(t)

	out, err := runCLI(t, "init", "--dsn", dsn)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ catalog ready")

	out, err = runCLI(t, "init", "--dsn", dsn, "--format", "json")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "sqlite3", data["driver"])
	assert.Equal(t, "sqlite", data["dialect"])
}

func TestInitCommand_MissingDSN(t *testing.T) {
	_, err := runCLI(t, "init")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "--dsn is required")
}

func TestInitCommand_UnknownDriver(t *testing.T) {
	_, err := runCLI(t, "init", "--dsn", tempDSN(t), "--driver", "oracle")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "unknown driver")
}

func TestInitCommand_ModerncDriver(t *testing.T) {
	out, err := runCLI(t, "init", "--dsn", tempDSN(t), "--driver", "sqlite")
	require.NoError(t, err)
	assert.Contains(t, out, "sqlite dialect")
}

func TestExecAndQuery(t *testing.T) {
	dsn := tempDSN(t)

	out, err := runCLI(t, "exec", "--dsn", dsn,
		"CREATE TABLE emp (name VARCHAR(10)) AS VALID STATE; "+
			"INSERT INTO emp VALUES ('ann') VALID PERIOD [2000-01-01 - FOREVER]")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "OK DDL"), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "OK DML"), lines[1])

	out, err = runCLI(t, "query", "--dsn", dsn, "SELECT name FROM emp")
	require.NoError(t, err)
	assert.Equal(t, "name | VALID\nann | 2000-01-01 00:00:00 - NOW\n(1 rows)\n", out)
}

func TestQueryCommand_JSONAndDebug(t *testing.T) {
	dsn := tempDSN(t)
	_, err := runCLI(t, "exec", "--dsn", dsn,
		"CREATE TABLE emp (name VARCHAR(10)) AS VALID STATE; "+
			"INSERT INTO emp VALUES ('ann') VALID PERIOD [2000-01-01 - 2001-01-01]")
	require.NoError(t, err)

	out, err := runCLI(t, "query", "--dsn", dsn, "--format", "json", "SELECT name FROM emp")
	require.NoError(t, err)
	var resp struct {
		Status string      `json:"status"`
		Data   QueryResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, []string{"name", "VALID"}, resp.Data.Columns)
	assert.Equal(t, [][]string{{"ann", "2000-01-01 00:00:00 - 2001-01-01 00:00:00"}}, resp.Data.Rows)

	out, err = runCLI(t, "query", "--dsn", dsn, "--debug", "SELECT name FROM emp")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "name | VALID | _VTS__1 | _VTE__1\n"), out)
}

func TestQueryCommand_Errors(t *testing.T) {
	dsn := tempDSN(t)

	_, err := runCLI(t, "query", "--dsn", dsn, "SELECT a FROM missing")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	out, err := runCLI(t, "query", "--dsn", dsn, "--format", "json", "SELECT a FROM missing")
	require.Error(t, err)
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "unknown_table", resp.Error.Code)
}

func TestExecCommand_StopsAtFirstFailure(t *testing.T) {
	dsn := tempDSN(t)

	out, err := runCLI(t, "exec", "--dsn", dsn,
		"CREATE TABLE t (a INT); INSERT INTO missing VALUES (1); CREATE TABLE u (a INT)")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "statement 2 failed")
	assert.Equal(t, 1, strings.Count(out, "OK "))

	// The first statement stayed committed, the third never ran.
	_, err = runCLI(t, "query", "--dsn", dsn, "SELECT a FROM t")
	assert.NoError(t, err)
	_, err = runCLI(t, "query", "--dsn", dsn, "SELECT a FROM u")
	assert.Error(t, err)
}

func TestExecCommand_JSONError(t *testing.T) {
	out, err := runCLI(t, "exec", "--dsn", tempDSN(t), "--format", "json",
		"CREATE TABLE t (a INT); INSERT INTO missing VALUES (1)")
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "unknown_table", resp.Error.Code)
	assert.Len(t, resp.Error.Details, 1)
}

func TestExecCommand_FileAndShowSQL(t *testing.T) {
	dsn := tempDSN(t)
	path := filepath.Join(t.TempDir(), "schema.tsql2")
	require.NoError(t, os.WriteFile(path, []byte(`
CREATE TABLE t (id INT, name VARCHAR(10)) AS VALID STATE;
INSERT INTO t VALUES (1, 'a') VALID PERIOD [2000-01-01 - 2005-01-01];
`), 0644))

	out, err := runCLI(t, "exec", "--dsn", dsn, "--file", path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, "OK "))

	out, err = runCLI(t, "exec", "--dsn", dsn, "--show-sql", "DELETE FROM t VALID PERIOD [2002-01-01 - 2003-01-01]")
	require.NoError(t, err)
	assert.Contains(t, out, "OK DML (4 statements)")
	assert.Contains(t, out, "  DELETE FROM t WHERE _VTS >= 1009843200 AND _VTE <= 1041379200;")
}

func TestExecCommand_Stdin(t *testing.T) {
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader("CREATE TABLE t (a INT)"))
	cmd.SetArgs([]string{"exec", "--dsn", tempDSN(t), "--file", "-"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "OK DDL")
}

func TestExecCommand_InputErrors(t *testing.T) {
	_, err := runCLI(t, "exec", "--dsn", tempDSN(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no statements given")

	_, err = runCLI(t, "exec", "--dsn", tempDSN(t), "--file", "x.tsql2", "CREATE TABLE t (a INT)")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = runCLI(t, "exec", "--dsn", tempDSN(t), "--file", filepath.Join(t.TempDir(), "missing.tsql2"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read script")
}

func TestTranslateCommand_DryRun(t *testing.T) {
	dsn := tempDSN(t)
	_, err := runCLI(t, "exec", "--dsn", dsn,
		"CREATE TABLE t (id INT, name VARCHAR(10)) AS VALID STATE; "+
			"INSERT INTO t VALUES (1, 'a') VALID PERIOD [2000-01-01 - 2005-01-01]")
	require.NoError(t, err)

	out, err := runCLI(t, "translate", "--dsn", dsn, "DELETE FROM t VALID PERIOD [2002-01-01 - 2003-01-01]")
	require.NoError(t, err)
	assert.Equal(t, `-- DML
INSERT INTO t (id, name, _VTS, _VTE) SELECT id, name, 1041379200, _VTE FROM t WHERE _VTS < 1009843200 AND _VTE > 1041379200;
UPDATE t SET _VTE = 1009843200 WHERE _VTS < 1009843200 AND _VTE > 1009843200;
UPDATE t SET _VTS = 1041379200 WHERE _VTS < 1041379200 AND _VTE > 1041379200;
DELETE FROM t WHERE _VTS >= 1009843200 AND _VTE <= 1041379200;
`, out)

	out, err = runCLI(t, "query", "--dsn", dsn, "SELECT id FROM t")
	require.NoError(t, err)
	assert.Contains(t, out, "1 | 2000-01-01 00:00:00 - 2005-01-01 00:00:00")
	assert.Contains(t, out, "(1 rows)")
}

func TestTranslateCommand_JSON(t *testing.T) {
	out, err := runCLI(t, "translate", "--dsn", tempDSN(t), "--format", "json", "CREATE TABLE t (a INT) AS VALID EVENT")
	require.NoError(t, err)

	var resp struct {
		Status string          `json:"status"`
		Data   StatementResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "DDL", resp.Data.Kind)
	assert.NotEmpty(t, resp.Data.Statements)

	_, err = runCLI(t, "translate", "--dsn", tempDSN(t), "DELETE FROM missing")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}
