package descriptor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/lumenhq/lumen/internal/domain"
	"github.com/lumenhq/lumen/internal/gguf"
)

func intp(v int) *int         { return &v }
func f64p(v float64) *float64 { return &v }

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tinyllama.yaml")

	d := &domain.ModelDescriptor{
		ID:      "tinyllama",
		Name:    "tinyllama",
		Model:   "tinyllama",
		Created: 1700000000,
		Engine:  "llamacpp",
		CtxLen:  intp(4096),
		TopK:    intp(40),
		MinP:    f64p(0.05),
		Files:   []string{"tinyllama.gguf"},
	}

	if err := Write(path, d); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.ID != d.ID || got.Engine != d.Engine {
		t.Errorf("identity mismatch: %+v", got)
	}
	if got.CtxLen == nil || *got.CtxLen != 4096 {
		t.Errorf("CtxLen = %v, want 4096", got.CtxLen)
	}
	if got.TopK == nil || *got.TopK != 40 {
		t.Errorf("TopK = %v, want 40", got.TopK)
	}
}

func TestReadPreservesUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "m.yaml")

	raw := "id: m\nname: m\nmodel: m\ncreated: 1\nengine: llamacpp\ncustom_field: surprise\n"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	d, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if v, ok := d.Extra["custom_field"]; !ok || v != "surprise" {
		t.Errorf("Extra[custom_field] = %v, ok=%v", v, ok)
	}
}

func TestToWireOmitsTrtllmFieldsForNonTrtEngine(t *testing.T) {
	d := &domain.ModelDescriptor{ID: "m", Name: "m", Model: "m", Engine: "llamacpp", Tp: intp(4), TrtllmVersion: "0.7.0"}
	b, err := ToWire(d)
	if err != nil {
		t.Fatalf("ToWire: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatal(err)
	}
	if _, ok := m["tp"]; ok {
		t.Error("tp should be omitted for non-trtllm engine")
	}
	if _, ok := m["trtllm_version"]; ok {
		t.Error("trtllm_version should be omitted for non-trtllm engine")
	}
}

func TestToWireEmitsTrtllmFieldsForTrtEngine(t *testing.T) {
	d := &domain.ModelDescriptor{ID: "m", Name: "m", Model: "m", Engine: "cortex.tensorrt-llm", Tp: intp(4), TrtllmVersion: "0.7.0"}
	b, err := ToWire(d)
	if err != nil {
		t.Fatalf("ToWire: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatal(err)
	}
	if m["tp"] == nil {
		t.Error("tp should be present for trtllm engine")
	}
	if m["trtllm_version"] != "0.7.0" {
		t.Errorf("trtllm_version = %v, want 0.7.0", m["trtllm_version"])
	}
}

func TestUpdateFromDoesNotClobberExplicitFields(t *testing.T) {
	d := &domain.ModelDescriptor{ID: "m", Name: "m", Engine: "llamacpp", CtxLen: intp(8192)}
	UpdateFrom(d, &gguf.Result{ContextLength: 2048, Architecture: "llama"})

	if *d.CtxLen != 8192 {
		t.Errorf("CtxLen = %d, want 8192 (user-set value preserved)", *d.CtxLen)
	}
	if d.Model != "llama" {
		t.Errorf("Model = %q, want llama (derived value applied since unset)", d.Model)
	}
}
