package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"github.com/mainbong/path_lister/internal/config"
	"github.com/mainbong/path_lister/internal/lister"
	"github.com/mainbong/path_lister/internal/logger"
)

// testEnv is a temp workspace with an svgs tree and a YAML config pointing at it
type testEnv struct {
	dir    string
	root   string
	output string
	config string
}

func newTestEnv(t *testing.T, extraConfig string) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{
		dir:    dir,
		root:   filepath.Join(dir, "svgs"),
		output: filepath.Join(dir, "out", "nama_file.txt"),
		config: filepath.Join(dir, "path-lister.yaml"),
	}

	for _, name := range []string{"icon.svg", "nested/other.svg"} {
		path := filepath.Join(env.root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("MkdirAll() failed: %v", err)
		}
		if err := os.WriteFile(path, []byte("<svg/>"), 0644); err != nil {
			t.Fatalf("WriteFile() failed: %v", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(env.output), 0755); err != nil {
		t.Fatalf("MkdirAll() failed: %v", err)
	}

	content := "root: " + env.root + "\n" +
		"output: " + env.output + "\n" +
		"log_dir: " + filepath.Join(dir, "logs") + "\n" +
		extraConfig
	if err := os.WriteFile(env.config, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	t.Cleanup(func() { logger.Close() })
	return env
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() failed: %v", err)
	}
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func TestRootCommand_WritesConfiguredList(t *testing.T) {
	env := newTestEnv(t, "")

	stdout, _, err := execute(t, "--config", env.config, "--no-color")
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	want := []string{
		`"` + env.root + `icon.svg",`,
		`"` + env.root + `nested/other.svg",`,
	}
	if diff := cmp.Diff(want, readLines(t, env.output)); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
	if strings.Count(stdout, "\n") != 1 || !strings.Contains(stdout, env.output) {
		t.Errorf("Expected one confirmation line naming the output, got %q", stdout)
	}
}

func TestRootCommand_ArgsAndFlagsOverrideConfig(t *testing.T) {
	env := newTestEnv(t, "")
	other := filepath.Join(env.dir, "other.txt")

	_, _, err := execute(t, "--config", env.config, "--no-color", "--join", "relative", env.root, other)
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	want := []string{`"icon.svg",`, `"nested/other.svg",`}
	if diff := cmp.Diff(want, readLines(t, other)); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
	if _, err := os.Stat(env.output); !os.IsNotExist(err) {
		t.Errorf("Expected configured output to be untouched, stat returned %v", err)
	}
}

func TestRootCommand_Stdout(t *testing.T) {
	env := newTestEnv(t, "join: separator\n")

	stdout, _, err := execute(t, "--config", env.config, "--no-color", "--stdout")
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	want := `"` + env.root + `/icon.svg",` + "\n" + `"` + env.root + `/nested/other.svg",` + "\n"
	if diff := cmp.Diff(want, stdout); diff != "" {
		t.Errorf("stdout mismatch (-want +got):\n%s", diff)
	}
	if _, err := os.Stat(env.output); !os.IsNotExist(err) {
		t.Errorf("Expected no output file with --stdout, stat returned %v", err)
	}
}

func TestRootCommand_MissingRoot(t *testing.T) {
	env := newTestEnv(t, "")

	stdout, _, err := execute(t, "--config", env.config, "--no-color", "--root", filepath.Join(env.dir, "missing"))
	if !errors.Is(err, lister.ErrRootNotFound) {
		t.Fatalf("Expected ErrRootNotFound, got %v", err)
	}
	if stdout != "" {
		t.Errorf("Expected no confirmation on failure, got %q", stdout)
	}
}

func TestRootCommand_InvalidJoinFlag(t *testing.T) {
	env := newTestEnv(t, "")

	_, _, err := execute(t, "--config", env.config, "--join", "slash")
	if !errors.Is(err, lister.ErrInvalidJoinMode) {
		t.Fatalf("Expected ErrInvalidJoinMode, got %v", err)
	}
}

func TestRootCommand_BadConfig(t *testing.T) {
	_, _, err := execute(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "failed to load config") {
		t.Fatalf("Expected config load error, got %v", err)
	}
}

func TestConfigSetAndShow(t *testing.T) {
	env := newTestEnv(t, "")

	stdout, _, err := execute(t, "--config", env.config, "config", "set", "join", "separator")
	if err != nil {
		t.Fatalf("config set failed: %v", err)
	}
	if stdout != "join = separator\n" {
		t.Errorf("Unexpected config set output %q", stdout)
	}

	stdout, _, err = execute(t, "--config", env.config, "config", "show")
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}

	var shown config.Config
	if err := yaml.Unmarshal([]byte(stdout), &shown); err != nil {
		t.Fatalf("config show did not print YAML: %v\n%s", err, stdout)
	}
	if shown.Join != "separator" || shown.Root != env.root {
		t.Errorf("Unexpected config after set: %+v", shown)
	}
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if stdout != "path-lister "+version+"\n" {
		t.Errorf("Unexpected version output %q", stdout)
	}
}

func TestWatchCommand_RegeneratesOnChange(t *testing.T) {
	env := newTestEnv(t, "join: relative\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"--config", env.config, "--no-color", "watch"})

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	added := false
	for time.Now().Before(deadline) {
		if data, err := os.ReadFile(env.output); err == nil && strings.Contains(string(data), `"added.svg",`) {
			added = true
			break
		}
		// Rewrite until picked up; the watch may not be registered yet
		if err := os.WriteFile(filepath.Join(env.root, "added.svg"), []byte("<svg/>"), 0644); err != nil {
			t.Fatalf("WriteFile() failed: %v", err)
		}
		time.Sleep(100 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("watch returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}

	if !added {
		t.Fatalf("Expected output to be regenerated with added.svg, got:\n%v", readLines(t, env.output))
	}
}

func TestRootCommand_UnusableLogDirStillLists(t *testing.T) {
	env := newTestEnv(t, "")

	// a regular file where the log dir's parent should be
	blocker := filepath.Join(env.dir, "not-a-dir")
	if err := os.WriteFile(blocker, nil, 0644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}
	content := "root: " + env.root + "\n" +
		"output: " + env.output + "\n" +
		"log_dir: " + filepath.Join(blocker, "logs") + "\n"
	if err := os.WriteFile(env.config, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() failed: %v", err)
	}

	stdout, stderr, err := execute(t, "--config", env.config, "--no-color")
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	want := []string{
		`"` + env.root + `icon.svg",`,
		`"` + env.root + `nested/other.svg",`,
	}
	if diff := cmp.Diff(want, readLines(t, env.output)); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(stdout, env.output) {
		t.Errorf("Expected confirmation naming the output, got %q", stdout)
	}
	if strings.Count(stderr, "\n") != 1 || !strings.Contains(stderr, "logging disabled") {
		t.Errorf("Expected a single logging warning, got %q", stderr)
	}
}

func TestWatchCommand_BackupDirUnderRootSettles(t *testing.T) {
	env := newTestEnv(t, "join: relative\n")
	backups := filepath.Join(env.root, "backups")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"--config", env.config, "--no-color", "watch", "--backup-dir", backups})

	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	added := false
	for time.Now().Before(deadline) {
		if data, err := os.ReadFile(env.output); err == nil && strings.Contains(string(data), `"added.svg",`) {
			added = true
			break
		}
		if err := os.WriteFile(filepath.Join(env.root, "added.svg"), []byte("<svg/>"), 0644); err != nil {
			t.Fatalf("WriteFile() failed: %v", err)
		}
		time.Sleep(100 * time.Millisecond)
	}
	if !added {
		cancel()
		<-done
		t.Fatal("Expected output to be regenerated with added.svg")
	}

	countBackups := func() int {
		entries, err := os.ReadDir(backups)
		if err != nil {
			t.Fatalf("ReadDir() failed: %v", err)
		}
		return len(entries)
	}

	// let any pending regeneration finish, then nothing else may happen
	time.Sleep(500 * time.Millisecond)
	settled := countBackups()
	time.Sleep(800 * time.Millisecond)
	if got := countBackups(); got != settled {
		t.Errorf("Expected regeneration to stop, backups grew from %d to %d", settled, got)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("watch returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}
