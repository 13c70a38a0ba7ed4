package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func run(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	t.Setenv("COSMOSMCP_CONFIG", "")
	var stdout, stderr bytes.Buffer
	code := runApp(args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestVersion(t *testing.T) {
	code, out, _ := run(t, "", "version")
	if code != 0 {
		t.Fatalf("exit code %d", code)
	}
	if !strings.HasPrefix(out, "cosmosmcp ") {
		t.Errorf("unexpected version output %q", out)
	}
}

func TestToolsList(t *testing.T) {
	code, out, errOut := run(t, "", "tools", "list", "--backend", "memory")
	if code != 0 {
		t.Fatalf("exit code %d: %s", code, errOut)
	}
	for _, name := range []string{
		"list_databases", "list_containers", "read_container_metadata",
		"create_container", "add_item_to_container", "read_item", "execute_query",
	} {
		if !strings.Contains(out, name) {
			t.Errorf("tools list missing %s:\n%s", name, out)
		}
	}
}

func TestToolsDescribe(t *testing.T) {
	code, out, errOut := run(t, "", "tools", "describe", "execute_query", "--backend", "memory", "--level", "schema")
	if code != 0 {
		t.Fatalf("exit code %d: %s", code, errOut)
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("describe output is not JSON: %v\n%s", err, out)
	}

	code, _, errOut = run(t, "", "tools", "describe", "drop_database", "--backend", "memory")
	if code == 0 {
		t.Error("describing an unknown tool should fail")
	}
	if !strings.Contains(errOut, "drop_database") {
		t.Errorf("expected tool name in error, got %q", errOut)
	}
}

func TestToolsSearch(t *testing.T) {
	code, out, errOut := run(t, "", "tools", "search", "sql", "query", "--backend", "memory", "--limit", "1")
	if code != 0 {
		t.Fatalf("exit code %d: %s", code, errOut)
	}
	if !strings.HasPrefix(out, "execute_query") {
		t.Errorf("expected execute_query first, got %q", out)
	}
}

func TestCall_Local(t *testing.T) {
	code, out, errOut := run(t, "", "call", "list_databases", `{"account":"acct"}`, "--backend", "memory")
	if code != 0 {
		t.Fatalf("exit code %d: %s", code, errOut)
	}
	if strings.TrimSpace(out) != `{"databases":[]}` {
		t.Errorf("unexpected output %q", out)
	}
}

func TestCall_MissingParameter(t *testing.T) {
	code, _, errOut := run(t, "", "call", "list_containers", `{"account":"acct"}`, "--backend", "memory")
	if code != 1 {
		t.Fatalf("exit code %d, want 1", code)
	}
	if !strings.Contains(errOut, `missing required parameter "database"`) {
		t.Errorf("unexpected error %q", errOut)
	}
}

func TestCall_BadArguments(t *testing.T) {
	code, _, errOut := run(t, "", "call", "list_databases", `not json`, "--backend", "memory")
	if code != 1 {
		t.Fatalf("exit code %d, want 1", code)
	}
	if !strings.Contains(errOut, "JSON object") {
		t.Errorf("unexpected error %q", errOut)
	}
}

func TestServe_JSONL(t *testing.T) {
	in := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"create_container","arguments":{"account":"acct","database":"db","container":"c1","partitionKeyPath":"/id"}}}`,
		`{"jsonrpc":"2.0","id":2,"method":"ping"}`,
	}, "\n") + "\n"

	code, out, errOut := run(t, in, "serve", "--backend", "memory", "--transport", "jsonl")
	if code != 0 {
		t.Fatalf("exit code %d: %s", code, errOut)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 responses, got %d:\n%s", len(lines), out)
	}
	for _, line := range lines {
		var resp map[string]any
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			t.Fatalf("bad response %q: %v", line, err)
		}
		if resp["id"] == float64(1) {
			// The memory backend has no "db" database yet.
			errObj, _ := resp["error"].(map[string]any)
			if errObj == nil {
				t.Errorf("expected an error for the missing database, got %s", line)
			}
		}
	}
	if !strings.Contains(errOut, "serving") {
		t.Errorf("expected startup log on stderr, got %q", errOut)
	}
}

func TestServe_InvalidTransport(t *testing.T) {
	code, _, errOut := run(t, "", "serve", "--backend", "memory", "--transport", "carrier-pigeon")
	if code != 1 {
		t.Fatalf("exit code %d, want 1", code)
	}
	if !strings.Contains(errOut, "server.transport") {
		t.Errorf("unexpected error %q", errOut)
	}
}
