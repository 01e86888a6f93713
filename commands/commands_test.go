package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zeu5/driving-rl/config"
)

func TestConfigCommandAppliesFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(file, []byte("batch_size: 4\nexperiment_name: unit\n"), 0644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := filepath.Join(t.TempDir(), "effective.yaml")

	root := GetRootCommand()
	root.SetArgs([]string{"config", "--config", file, "--out", out})
	root.SetOut(&bytes.Buffer{})
	if err := root.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c, err := config.Load(out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.BatchSize != 4 || c.ExperimentName != "unit" || c.ReplayMemorySize != 50 {
		t.Errorf("unexpected effective config %+v", c)
	}
}

func TestConfigCommandRejectsInvalid(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(file, []byte("sampling: greedy\n"), 0644)

	root := GetRootCommand()
	root.SetArgs([]string{"config", "--config", file})
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	if err := root.Execute(); err == nil || !strings.Contains(err.Error(), "sampling") {
		t.Errorf("expected a sampling error, got %v", err)
	}
}
