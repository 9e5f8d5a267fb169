package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := fmt.Sprintf(`[paths]
work_root = %q

[tools]
ffmpeg = "sh"
ffprobe = "sh"
upscaler = "sh"
`, filepath.Join(dir, "work"))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	if configPath != "" {
		args = append([]string{"--config", configPath}, args...)
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected output to contain %q, got:\n%s", substr, output)
	}
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}
}

func TestConfigInitRefusesExistingWithoutOverwrite(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(target, []byte("# existing"), 0o644); err != nil {
		t.Fatalf("seed config: %v", err)
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected refusal without --overwrite")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigShowPrintsResolvedConfig(t *testing.T) {
	configPath := writeTestConfig(t)
	out, _, err := runCLI(t, []string{"config", "show"}, configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, configPath)
	requireContains(t, out, "work_root")
}

func TestStatusBeforeAnyRun(t *testing.T) {
	configPath := writeTestConfig(t)
	out, _, err := runCLI(t, []string{"status", "/videos/tape.mkv"}, configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "No prior run found")
}

func TestDepsReportsConfiguredTools(t *testing.T) {
	configPath := writeTestConfig(t)
	out, _, err := runCLI(t, []string{"deps"}, configPath)
	if err != nil {
		t.Fatalf("deps: %v", err)
	}
	requireContains(t, out, "ffmpeg")
	requireContains(t, out, "upscaler")
}

func TestHistoryWithEmptyLedger(t *testing.T) {
	configPath := writeTestConfig(t)
	out, _, err := runCLI(t, []string{"history"}, configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "No runs recorded")
}

func TestRunRejectsIndivisibleScales(t *testing.T) {
	configPath := writeTestConfig(t)
	source := filepath.Join(t.TempDir(), "tape.mkv")
	if err := os.WriteFile(source, []byte("video"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	_, _, err := runCLI(t, []string{"run", source, "--internal-scale", "4", "--final-scale", "3"}, configPath)
	if err == nil {
		t.Fatal("expected validation error for indivisible scales")
	}
	requireContains(t, err.Error(), "divisible")
}

func TestRunRejectsMissingSource(t *testing.T) {
	configPath := writeTestConfig(t)
	_, _, err := runCLI(t, []string{"run", "/nowhere/missing.mkv"}, configPath)
	if err == nil {
		t.Fatal("expected error for missing source")
	}
}
