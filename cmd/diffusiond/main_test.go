package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"diffusiond/internal/config"
	"diffusiond/pkg/types"
)

func TestLoadConfig_Layering(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(cfgPath, []byte("addr: \":9000\"\nmodels_dir: /from/file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	env := map[string]string{"DIFFUSIOND_MODELS_DIR": "/from/env"}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg, err := loadConfig(cfgPath, filepath.Join(dir, "missing.env"), false, lookup)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != ":9000" || cfg.ModelsDir != "/from/env" {
		t.Fatalf("unexpected layering: %+v", cfg)
	}
	if _, err := loadConfig("", filepath.Join(dir, "missing.env"), true, lookup); err == nil {
		t.Fatalf("explicit missing env file must fail")
	}
}

func TestRootCmd_FlagsOverrideConfig(t *testing.T) {
	dir := t.TempDir()
	models := filepath.Join(dir, "models")
	if err := os.MkdirAll(models, 0o755); err != nil {
		t.Fatal(err)
	}
	cfgPath := filepath.Join(dir, "cfg.toml")
	if err := os.WriteFile(cfgPath, []byte("models_dir = \"/nowhere\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"models", "--config", cfgPath, "--env-file", "", "--models-dir", models, "--json", "--log-level", "error"})
	err := root.Execute()
	// An empty models dir is a scan error; it proves the flag won over the file.
	if err == nil || !strings.Contains(err.Error(), "no models") {
		t.Fatalf("expected no models error for %s, got %v", models, err)
	}
}

func TestApplyFlags_OnlyChanged(t *testing.T) {
	cmd := newServeCmd(&app{})
	cmd.Flags().String("log-level", "", "")
	if err := cmd.ParseFlags([]string{"--addr", ":1234", "--cors-origins", "a, b", "--max-wait-sec", "5", "--no-gallery"}); err != nil {
		t.Fatal(err)
	}
	cfg := config.Config{LogLevel: "debug", UpscaleFactor: 3}
	if err := applyFlags(cmd.Flags(), &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != ":1234" || len(cfg.CORSOrigins) != 2 || cfg.MaxWaitSec != 5 || !cfg.NoGallery {
		t.Fatalf("flags not applied: %+v", cfg)
	}
	if cfg.LogLevel != "debug" || cfg.UpscaleFactor != 3 {
		t.Fatalf("unset flags must not override: %+v", cfg)
	}
}

func TestPrintModels(t *testing.T) {
	var buf bytes.Buffer
	printModels(&buf, []types.Model{{
		Name: "sd21", Path: "/m/sd21", Backend: "standard", Attention: "split-einsum",
		Resolution: &types.Size{Width: 512, Height: 512}, Schedulers: []string{"pndm"},
		ControlNets: []types.ConditioningModule{{Name: "canny"}},
	}})
	out := buf.String()
	for _, want := range []string{"sd21", "standard, split-einsum", "512x512", "/m/sd21", "schedulers: pndm", "conditioning: canny"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}
