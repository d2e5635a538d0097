package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cliEnv struct {
	t      *testing.T
	config string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	return newCLIEnvWith(t, "")
}

// newCLIEnvWith appends extra YAML to the base sqlite + fs configuration.
func newCLIEnvWith(t *testing.T, extra string) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "stockcore.yaml")
	doc := fmt.Sprintf(`
storage:
  driver: sqlite
  sqlite_path: %s
archive:
  driver: fs
  fs_root: %s
log:
  level: error
`, filepath.Join(dir, "stock.db"), filepath.Join(dir, "archive")) + extra
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	return &cliEnv{t: t, config: path}
}

// exec runs one command against the shared config and returns stdout.
func (e *cliEnv) exec(args ...string) (string, error) {
	e.t.Helper()
	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", e.config, "--tenant", "acme"}, args...))
	err := cmd.Execute()
	return stdout.String(), err
}

// json runs a command with JSON output and decodes the envelope.
func (e *cliEnv) json(args ...string) (Response, error) {
	e.t.Helper()
	out, err := e.exec(append([]string{"--format", "json"}, args...)...)
	var resp Response
	require.NoError(e.t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	return resp, err
}

func (e *cliEnv) mustJSON(args ...string) map[string]any {
	e.t.Helper()
	resp, err := e.json(args...)
	require.NoError(e.t, err)
	require.Equal(e.t, "ok", resp.Status)
	data, ok := resp.Data.(map[string]any)
	require.True(e.t, ok, "data is %T", resp.Data)
	return data
}

func decimalField(t *testing.T, m map[string]any, key string) decimal.Decimal {
	t.Helper()
	raw, ok := m[key].(string)
	require.True(t, ok, "%s is %T", key, m[key])
	d, err := decimal.NewFromString(raw)
	require.NoError(t, err)
	return d
}

func TestCLIRecipeFlowPersistsAcrossInvocations(t *testing.T) {
	env := newCLIEnv(t)

	flour := env.mustJSON("items", "add", "--name", "Flour", "--unit", "kg", "--cost", "1.50", "--stock", "30")
	flourID := flour["id"].(string)
	dough := env.mustJSON("items", "add", "--name", "Dough", "--unit", "kg", "--yield-qty", "5", "--yield-unit", "kg")
	doughID := dough["id"].(string)

	recipe := env.mustJSON("recipe", "set", "item", doughID, flourID+"=3")
	cost := recipe["cost"].(map[string]any)
	assert.True(t, decimalField(t, cost, "total").Equal(decimal.RequireFromString("4.5")))

	out, err := env.exec("explain", "item", doughID)
	require.NoError(t, err)
	assert.Contains(t, out, "Flour")
	assert.Contains(t, out, "TOTAL")

	purchase := env.mustJSON("purchase", flourID, "10", "3.50")
	propagation := purchase["propagation"].(map[string]any)
	assert.EqualValues(t, 1, propagation["visited"])

	// (30*1.5 + 10*3.5) / 40 = 2, so dough costs 3*2 per batch.
	breakdown := env.mustJSON("explain", "item", doughID)
	assert.True(t, decimalField(t, breakdown, "total").Equal(decimal.NewFromInt(6)))

	_, err = env.exec("health")
	require.NoError(t, err)
}

func TestCLISalesImportDeductsRecipe(t *testing.T) {
	env := newCLIEnv(t)
	meat := env.mustJSON("items", "add", "--name", "Meat", "--unit", "kg", "--cost", "10", "--stock", "20")
	meatID := meat["id"].(string)
	burger := env.mustJSON("products", "add", "--sku", "B-1", "--name", "Burger", "--price", "9")
	burgerID := burger["id"].(string)
	env.mustJSON("recipe", "set", "product", burgerID, meatID+"=0.2")

	csvPath := filepath.Join(t.TempDir(), "pos.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("sku,product_name,quantity,price\nb-1,,3,9\n,Pizza,1,12\n"), 0o600))

	report := env.mustJSON("sales", "import", csvPath)
	assert.EqualValues(t, 2, report["processed_events"])
	assert.EqualValues(t, 1, report["deducted_item_count"])
	assert.Equal(t, []any{"Pizza"}, report["unmatched_products"])

	valuation := env.mustJSON("items")
	rows := valuation["rows"].([]any)
	require.Len(t, rows, 1)
	assert.True(t, decimalField(t, rows[0].(map[string]any), "stock").Equal(decimal.RequireFromString("19.4")))
}

func TestCLIRegisterSession(t *testing.T) {
	env := newCLIEnv(t)
	session := env.mustJSON("register", "open", "emp-1", "50")
	id := session["id"].(string)

	env.mustJSON("register", "post", "--description", "walk-in", id, "sale", "30.50")
	expense := env.mustJSON("register", "post", id, "EXPENSE", "-10")
	tx := expense["transaction"].(map[string]any)
	assert.True(t, decimalField(t, tx, "amount").Equal(decimal.NewFromInt(-10)))
	env.mustJSON("register", "post", "--description", "change run", id, "WITHDRAWAL", "-2.25")
	env.mustJSON("register", "post", id, "DEPOSIT", "2.25")

	closed := env.mustJSON("register", "close", id, "70.50", "--notes", "even")
	assert.Equal(t, "closed", closed["status"])
	assert.True(t, decimalField(t, closed, "difference").IsZero())

	audit := env.mustJSON("register", "audit", id)
	assert.True(t, decimalField(t, audit, "expected_cash").Equal(decimal.RequireFromString("70.5")))
	assert.EqualValues(t, 4, audit["transaction_count"])
}

func TestCLIExportLedgerWritesArchive(t *testing.T) {
	env := newCLIEnv(t)
	salt := env.mustJSON("items", "add", "--name", "Salt", "--unit", "kg", "--cost", "1", "--stock", "5")
	env.mustJSON("count", salt["id"].(string), "4", "--counter", "emp-2")

	info := env.mustJSON("export-ledger")
	key := info["key"].(string)
	assert.True(t, strings.HasPrefix(key, "ledger/acme/"), key)
	assert.Equal(t, "2", info["metadata"].(map[string]any)["entries"])

	// The archive lives under the fs root next to the database.
	_, err := os.Stat(filepath.Join(filepath.Dir(env.config), "archive", filepath.FromSlash(key)))
	require.NoError(t, err)
}

func TestCLIErrorsMapToExitCodes(t *testing.T) {
	env := newCLIEnv(t)

	resp, err := env.json("purchase", "some-item", "abc", "1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "validation", resp.Error.Code)

	resp, err = env.json("explain", "item", "missing")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, "not_found", resp.Error.Code)

	resp, err = env.json("explain", "recipe", "x")
	require.Error(t, err)
	assert.Equal(t, "validation", resp.Error.Code)

	session := env.mustJSON("register", "open", "emp-1", "10")
	resp, err = env.json("register", "post", session["id"].(string), "SALE", "-5")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "invariant", resp.Error.Code)
}

func TestCLITextWarnings(t *testing.T) {
	env := newCLIEnv(t)
	salt := env.mustJSON("items", "add", "--name", "Salt", "--unit", "kg", "--cost", "1", "--stock", "1")
	out, err := env.exec("waste", salt["id"].(string), "3", "--type", "spill")
	require.NoError(t, err)
	assert.Contains(t, out, "waste_spill")
	assert.True(t, strings.Contains(out, "warning [negative_stock]"), out)
}

func TestCLIWritesMetricsTextfile(t *testing.T) {
	prom := filepath.Join(t.TempDir(), "stockcore.prom")
	env := newCLIEnvWith(t, fmt.Sprintf("metrics:\n  textfile_path: %s\n", prom))

	env.mustJSON("items", "add", "--name", "Salt", "--unit", "kg", "--cost", "1", "--stock", "5")
	raw, err := os.ReadFile(prom)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `stockcore_operations_total{operation="create_item",status="success"} 1`)
	assert.Contains(t, string(raw), "stockcore_operation_duration_seconds_count")
}

func TestCLITraceWritesSpansToStderr(t *testing.T) {
	env := newCLIEnvWith(t, "metrics:\n  trace: true\n")
	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"--config", env.config, "--tenant", "acme", "items", "add", "--name", "Salt", "--unit", "kg"})
	require.NoError(t, cmd.Execute())

	var span map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(stderr.String())), &span), stderr.String())
	assert.Equal(t, "create_item", span["operation"])
	assert.Equal(t, "success", span["status"])
}

func TestCLIPurchasePlanAndWasteReport(t *testing.T) {
	env := newCLIEnv(t)
	basil := env.mustJSON("items", "add", "--name", "Basil", "--unit", "kg", "--cost", "8", "--stock", "2")
	basilID := basil["id"].(string)
	env.mustJSON("purchase", basilID, "1", "6.50")

	plan := env.mustJSON("purchase-plan", basilID, "nope")
	assert.Equal(t, []any{"nope"}, plan["unknown"])
	groups := plan["suppliers"].([]any)
	require.Len(t, groups, 1)
	items := groups[0].(map[string]any)["items"].([]any)
	require.Len(t, items, 1)
	assert.True(t, decimalField(t, items[0].(map[string]any), "unit_cost").Equal(decimal.RequireFromString("6.5")))

	env.mustJSON("waste", basilID, "0.5", "--type", "expired")
	report := env.mustJSON("waste-report")
	assert.EqualValues(t, 1, report["events"])
	byType := report["by_type"].([]any)
	require.Len(t, byType, 1)
	assert.Equal(t, "expired", byType[0].(map[string]any)["type"])

	out, err := env.exec("waste-report", "--from", "2024-01-01", "--to", "2024-01-31")
	require.NoError(t, err)
	assert.Contains(t, out, "previous period")

	resp, err := env.json("waste-report", "--from", "January")
	require.Error(t, err)
	assert.Equal(t, "validation", resp.Error.Code)
}
