package configfile_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/pandeptwidyaop/instance-remote/internal/configfile"
)

func TestDetectFormat(t *testing.T) {
	cases := map[string]configfile.Format{
		"/a/config.json":      configfile.FormatJSON,
		"/a/config.yaml":      configfile.FormatYAML,
		"/a/config.yml":       configfile.FormatYAML,
		"/a/bot_config.toml":  configfile.FormatTOML,
		"/a/settings.CFG":     configfile.FormatTOML,
		"/a/CONFIG.JSON":      configfile.FormatJSON,
		"/a/no-extension-cfg": configfile.FormatTOML,
	}
	for path, want := range cases {
		if got := configfile.DetectFormat(path); got != want {
			t.Errorf("DetectFormat(%s) = %s, want %s", path, got, want)
		}
	}
}

func TestSetPortFields_JSONNested(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	writeFile(t, path, `{
  "name": "bot",
  "server": {
    "inner": {
      "port": 8000
    },
    "ws_port": 8001
  },
  "label": "port"
}`)

	if err := configfile.SetPortFields(path, configfile.FormatJSON, 8555); err != nil {
		t.Fatalf("SetPortFields: %v", err)
	}

	data, _ := os.ReadFile(path)
	var tree map[string]interface{}
	if err := json.Unmarshal(data, &tree); err != nil {
		t.Fatalf("result not valid JSON: %v", err)
	}

	server := tree["server"].(map[string]interface{})
	inner := server["inner"].(map[string]interface{})
	if got := inner["port"].(float64); got != 8555 {
		t.Errorf("nested port = %v, want 8555", got)
	}
	if got := server["ws_port"].(float64); got != 8555 {
		t.Errorf("ws_port = %v, want 8555", got)
	}
	// A string value under a non-port key stays a string.
	if got := tree["label"].(string); got != "port" {
		t.Errorf("unrelated field mutated: %v", got)
	}
}

func TestSetPortFields_YAMLNested(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "name: bot\nserver:\n  nested:\n    listen_port: 8000\nmode: fast\n")

	if err := configfile.SetPortFields(path, configfile.FormatYAML, 8600); err != nil {
		t.Fatalf("SetPortFields: %v", err)
	}

	data, _ := os.ReadFile(path)
	var tree map[string]interface{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		t.Fatalf("result not valid YAML: %v", err)
	}
	server := tree["server"].(map[string]interface{})
	nested := server["nested"].(map[string]interface{})
	if got := nested["listen_port"]; got != 8600 {
		t.Errorf("listen_port = %v, want 8600", got)
	}
	if tree["mode"] != "fast" {
		t.Errorf("unrelated field mutated: %v", tree["mode"])
	}
}

func TestSetPortFields_TOMLKeepsCommentsAndLayout(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bot_config.toml")
	content := strings.Join([]string{
		"# main section",
		"[server]",
		"port = 8000",
		"listen_port=1234  # comment",
		"name = \"bot\"  # port is not a number here",
		"",
		"  api_port  =  9001",
		"timeout = 30",
	}, "\n")
	writeFile(t, path, content)

	if err := configfile.SetPortFields(path, configfile.FormatTOML, 8777); err != nil {
		t.Fatalf("SetPortFields: %v", err)
	}

	data, _ := os.ReadFile(path)
	lines := strings.Split(string(data), "\n")

	checks := map[int]string{
		0: "# main section",
		1: "[server]",
		2: "port = 8777",
		3: "listen_port=8777  # comment",
		4: "name = \"bot\"  # port is not a number here",
		5: "",
		6: "  api_port  =  8777",
		7: "timeout = 30",
	}
	for i, want := range checks {
		if lines[i] != want {
			t.Errorf("line %d = %q, want %q", i, lines[i], want)
		}
	}
}

func TestSetFields_CustomFieldList(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "adapter.toml")
	writeFile(t, path, "ws_port = 8001\nhttp_port = 8002\n")

	err := configfile.SetFields(path, configfile.FormatTOML, []string{"ws_port"}, 8900)
	if err != nil {
		t.Fatalf("SetFields: %v", err)
	}

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "ws_port = 8900") {
		t.Errorf("ws_port not updated: %q", data)
	}
	if !strings.Contains(string(data), "http_port = 8002") {
		t.Errorf("http_port should be untouched: %q", data)
	}
}

func TestSetPortFields_ParseErrorLeavesFileUntouched(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.json")
	broken := `{"port": 8000`
	writeFile(t, path, broken)

	err := configfile.SetPortFields(path, configfile.FormatJSON, 9000)
	if !errors.Is(err, configfile.ErrConfigParse) {
		t.Fatalf("expected ErrConfigParse, got %v", err)
	}

	data, _ := os.ReadFile(path)
	if string(data) != broken {
		t.Errorf("failed mutation modified the file: %q", data)
	}
}

func TestSetPortFields_MissingFile(t *testing.T) {
	err := configfile.SetPortFields(filepath.Join(t.TempDir(), "gone.toml"), configfile.FormatTOML, 9000)
	if !errors.Is(err, configfile.ErrConfigNotFound) {
		t.Fatalf("expected ErrConfigNotFound, got %v", err)
	}
}

func TestSetPortFields_UnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.ini")
	writeFile(t, path, "port = 1\n")

	if err := configfile.SetPortFields(path, configfile.Format("ini"), 9000); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}
