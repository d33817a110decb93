package gguf

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// buildFile assembles a minimal synthetic GGUF byte stream with the given
// kv pairs, for testing the header walk without a real model file.
func buildFile(t *testing.T, kv map[string]interface{}) []byte {
	t.Helper()
	var buf bytes.Buffer

	writeU32 := func(v uint32) { binary.Write(&buf, binary.LittleEndian, v) }
	writeI64 := func(v int64) { binary.Write(&buf, binary.LittleEndian, v) }
	writeU64 := func(v uint64) { binary.Write(&buf, binary.LittleEndian, v) }
	writeString := func(s string) {
		writeU64(uint64(len(s)))
		buf.WriteString(s)
	}

	writeU32(magic)
	writeU32(3) // version
	writeI64(0) // tensor count
	writeI64(int64(len(kv)))

	for k, v := range kv {
		writeString(k)
		switch x := v.(type) {
		case string:
			writeU32(uint32(typeString))
			writeString(x)
		case int32:
			writeU32(uint32(typeInt32))
			binary.Write(&buf, binary.LittleEndian, x)
		case uint32:
			writeU32(uint32(typeUint32))
			binary.Write(&buf, binary.LittleEndian, x)
		default:
			t.Fatalf("unsupported test kv type %T", v)
		}
	}

	return buf.Bytes()
}

func TestParseReadsArchitectureAndContextLength(t *testing.T) {
	data := buildFile(t, map[string]interface{}{
		"general.architecture": "llama",
		"llama.context_length": uint32(4096),
		"general.file_type":    uint32(15), // Q4_K_M
	})

	res, err := Parse(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if res.Architecture != "llama" {
		t.Errorf("Architecture = %q, want llama", res.Architecture)
	}
	if res.ContextLength != 4096 {
		t.Errorf("ContextLength = %d, want 4096", res.ContextLength)
	}
	if res.QuantizationMethod != "Q4_K_M" {
		t.Errorf("QuantizationMethod = %q, want Q4_K_M", res.QuantizationMethod)
	}
}

func TestParseBadMagicFails(t *testing.T) {
	data := []byte{0x00, 0x00, 0x00, 0x00}
	_, err := Parse(bytes.NewReader(data))
	if err == nil {
		t.Fatal("expected error for bad magic")
	}
}

func TestParseTruncatedFileFails(t *testing.T) {
	data := buildFile(t, map[string]interface{}{"general.architecture": "llama"})
	_, err := Parse(bytes.NewReader(data[:len(data)-2]))
	if err == nil {
		t.Fatal("expected error for truncated file")
	}
}

func TestToDescriptorSynthesizesLoadParameters(t *testing.T) {
	res := &Result{
		Architecture:       "llama",
		ContextLength:      2048,
		QuantizationMethod: "Q4_K_M",
	}
	d := res.ToDescriptor("tinyllama", "/root/.lumen/models/tinyllama/tinyllama.gguf")

	if d.ID != "tinyllama" || d.Engine != "llamacpp" {
		t.Errorf("descriptor identity wrong: %+v", d)
	}
	if d.CtxLen == nil || *d.CtxLen != 2048 {
		t.Errorf("CtxLen = %v, want 2048", d.CtxLen)
	}
	if len(d.Files) != 1 || d.Files[0] == "" {
		t.Errorf("Files = %v", d.Files)
	}
}
