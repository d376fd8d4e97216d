package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// writeDescriptor writes a metadata.json with the given histogram and input names.
func writeDescriptor(t *testing.T, dir string, hist map[string]int, inputs []inputSpec) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	obj := map[string]any{"inputSchema": inputs}
	if hist != nil {
		obj["mlProgramOperationTypeHistogram"] = hist
	}
	b, err := json.Marshal([]any{obj})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "metadata.json"), b, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// makePackage creates a model package with a plain U-Net descriptor.
func makePackage(t *testing.T, root, name string, hist map[string]int, inputs ...string) string {
	t.Helper()
	pkg := filepath.Join(root, name)
	specs := make([]inputSpec, 0, len(inputs))
	for _, in := range inputs {
		specs = append(specs, inputSpec{Name: in, Shape: "[2, 4, 64, 64]"})
	}
	writeDescriptor(t, filepath.Join(pkg, "Unet.mlmodelc"), hist, specs)
	return pkg
}

func addEncoder(t *testing.T, pkg, shape string) {
	t.Helper()
	writeDescriptor(t, filepath.Join(pkg, "VAEEncoder.mlmodelc"), map[string]int{}, []inputSpec{{Name: "z", Shape: shape}})
}
