package intake

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sesampe/preaplus/extract"
)

func TestDefaultRegistryCoversAllModules(t *testing.T) {
	reg := DefaultRegistry()
	if reg.Len() != extract.ModuleCount {
		t.Fatalf("registry has %d modules, want %d", reg.Len(), extract.ModuleCount)
	}
	for i := 0; i < reg.Len(); i++ {
		m, ok := reg.Module(i)
		if !ok {
			t.Fatalf("module %d missing", i)
		}
		if m.Index != i {
			t.Errorf("module %d has index %d", i, m.Index)
		}
		if m.Prompt == "" {
			t.Errorf("module %d has no prompt", i)
		}
	}
	if _, ok := reg.Module(reg.Len()); ok {
		t.Error("index past the end must not resolve")
	}
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "modules.yaml")
	content := `retry_limit: 5
modules:
  1:
    prompt: "¿Cuál es tu cobertura?"
  3:
    name: "Historia clínica"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	reg := DefaultRegistry()
	if err := reg.LoadOverrides(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if reg.RetryLimit() != 5 {
		t.Errorf("retry limit = %d", reg.RetryLimit())
	}
	m, _ := reg.Module(1)
	if m.Prompt != "¿Cuál es tu cobertura?" {
		t.Errorf("prompt = %q", m.Prompt)
	}
	m3, _ := reg.Module(3)
	if m3.Name != "Historia clínica" {
		t.Errorf("name = %q", m3.Name)
	}
	// Required paths never change through overrides.
	if len(m.Required) != 2 {
		t.Errorf("required = %v", m.Required)
	}
}

func TestLoadOverridesRejectsUnknownModule(t *testing.T) {
	path := filepath.Join(t.TempDir(), "modules.yaml")
	if err := os.WriteFile(path, []byte("modules:\n  9:\n    prompt: x\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := DefaultRegistry().LoadOverrides(path); err == nil {
		t.Fatal("expected error for out-of-range module index")
	}
}
