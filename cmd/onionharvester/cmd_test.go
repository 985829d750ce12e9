package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"OnionHarvester/internal/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestRootCmdSubcommands(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()
	for _, name := range []string{"run", "harvest", "stats", "init", "version"} {
		if found, _, err := cmd.Find([]string{name}); err != nil || found.Name() != name {
			t.Errorf("missing subcommand %q", name)
		}
	}
	if cmd.PersistentFlags().Lookup("config") == nil || cmd.PersistentFlags().Lookup("verbose") == nil {
		t.Errorf("expected persistent config and verbose flags")
	}
}

func TestVersionCmd(t *testing.T) {
	t.Parallel()

	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version returned error: %v", err)
	}
	if !strings.HasPrefix(out, "onionharvester version ") || !strings.Contains(out, "commit:") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestInitCmd(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if _, err := execute(t, "init", "-o", path); err != nil {
		t.Fatalf("init returned error: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("expected 0600, got %v", info.Mode().Perm())
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("template does not load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("template does not validate: %v", err)
	}
	if cfg.Harvest.Delay != 2*time.Second || cfg.Sources[0].Strategy != config.StrategyArchive {
		t.Fatalf("unexpected template values %+v", cfg.Harvest)
	}

	if _, err := execute(t, "init", "-o", path); err == nil {
		t.Fatalf("expected error when the file exists")
	}
	if _, err := execute(t, "init", "-o", path, "-f"); err != nil {
		t.Fatalf("force overwrite failed: %v", err)
	}
}

func TestApplyRunFlags(t *testing.T) {
	t.Parallel()

	cmd := NewRunCmd()
	if err := cmd.ParseFlags([]string{
		"--interval", "10m",
		"--delay", "0s",
		"--no-llm",
		"--proxy", "1.2.3.4:8080",
		"--proxy", "socks5://5.6.7.8:1080",
		"--listen", "127.0.0.1:9999",
	}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg := config.Default()
	cfg.Tor.SocksAddr = "10.0.0.1:9050"
	if err := applyRunFlags(cmd, &cfg); err != nil {
		t.Fatalf("applyRunFlags returned error: %v", err)
	}
	if cfg.Harvest.Interval != 10*time.Minute || cfg.Harvest.Delay != 0 || !cfg.LLM.Disabled {
		t.Fatalf("harvest flags not applied: %+v", cfg.Harvest)
	}
	if !cfg.Proxy.Enabled || len(cfg.Proxy.Proxies) != 2 || cfg.API.Listen != "127.0.0.1:9999" {
		t.Fatalf("proxy or listen flags not applied: %+v %+v", cfg.Proxy, cfg.API)
	}
	if cfg.Tor.SocksAddr != "10.0.0.1:9050" {
		t.Fatalf("unset flag overrode config: %s", cfg.Tor.SocksAddr)
	}
}

func TestTorEmbeddedImpliesTor(t *testing.T) {
	t.Parallel()

	cmd := NewRunCmd()
	if err := cmd.ParseFlags([]string{"--tor-embedded"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	cfg := config.Default()
	if err := applyRunFlags(cmd, &cfg); err != nil {
		t.Fatalf("applyRunFlags returned error: %v", err)
	}
	if !cfg.Tor.Enabled || !cfg.Tor.Embedded {
		t.Fatalf("expected embedded tor enabled: %+v", cfg.Tor)
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "harvest:\n  delay: -1s\n")
	_, err := execute(t, "--config", path, "run", "--once")
	if err == nil || !strings.Contains(err.Error(), "invalid configuration") {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRunOnceAndStats(t *testing.T) {
	t.Parallel()

	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/archive":
			fmt.Fprint(w, `<table class="archive-table"><tr><td><a href="/Key00001">x</a></td></tr></table>`)
		case "/raw/Key00001":
			fmt.Fprint(w, "see 3g2upl4pq6kufc4m.onion")
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(site.Close)

	dataPath := filepath.Join(t.TempDir(), "links.json")
	path := writeConfig(t, fmt.Sprintf(`
logging:
  level: error
storage:
  driver: file
  path: %s
harvest:
  baseUrl: %s
  delay: 0s
llm:
  disabled: true
`, dataPath, site.URL))

	out, err := execute(t, "--config", path, "run", "--once")
	if err != nil {
		t.Fatalf("run --once returned error: %v", err)
	}
	if !strings.Contains(out, "1 new addresses in 1 new records") {
		t.Fatalf("unexpected run output %q", out)
	}

	out, err = execute(t, "--config", path, "stats")
	if err != nil {
		t.Fatalf("stats returned error: %v", err)
	}
	if !strings.Contains(out, "# Onion Harvest Statistics") || !strings.Contains(out, "v2 (deprecated)") {
		t.Fatalf("unexpected stats output:\n%s", out)
	}

	out, err = execute(t, "--config", path, "stats", "--json")
	if err != nil || !strings.Contains(out, `"totalPastes": 1`) || !strings.Contains(out, `"v2": 1`) {
		t.Fatalf("unexpected json stats %q (%v)", out, err)
	}
}

func TestHarvestCmdReportsFailures(t *testing.T) {
	t.Parallel()

	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/raw/Good0001" {
			fmt.Fprint(w, "abcdefghijklmnop.onion")
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(site.Close)

	path := writeConfig(t, fmt.Sprintf(`
logging:
  level: error
storage:
  path: %s
harvest:
  baseUrl: %s
  delay: 0s
llm:
  disabled: true
`, filepath.Join(t.TempDir(), "links.json"), site.URL))

	out, err := execute(t, "--config", path, "harvest", "Good0001", "Gone0001")
	if err == nil || !strings.Contains(err.Error(), "1 of 2 pastes failed") {
		t.Fatalf("expected partial failure, got %v", err)
	}
	if !strings.Contains(out, "Good0001: 1 new address(es)") {
		t.Fatalf("unexpected output %q", out)
	}
}
