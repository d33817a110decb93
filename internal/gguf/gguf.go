// Package gguf parses the metadata header of a GGUF-format model file and
// synthesizes a model descriptor from it. No GGUF parser is shipped
// anywhere in the retrieved example corpus, so this reads the binary
// layout directly against the documented GGUF container format: a magic
// number, a version, counts, then a sequence of typed key/value records.
package gguf

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/lumenhq/lumen/internal/domain"
)

const magic = 0x46554747 // "GGUF" little-endian

// valueType tags a kv-record's payload shape.
type valueType uint32

const (
	typeUint8 valueType = iota
	typeInt8
	typeUint16
	typeInt16
	typeUint32
	typeInt32
	typeFloat32
	typeBool
	typeString
	typeArray
	typeUint64
	typeInt64
	typeFloat64
)

// Result is the raw metadata extracted from the header, prior to being
// folded into a domain.ModelDescriptor via UpdateFrom.
type Result struct {
	Architecture       string
	ContextLength      int
	EmbeddingLength    int
	BlockCount         int
	ChatTemplate       string
	BOSTokenID         int
	EOSTokenID         int
	QuantizationMethod string
	TensorCount        int64
	KV                 map[string]interface{}
}

// ParseFile opens path and parses its GGUF header.
func ParseFile(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIO, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a GGUF header from r. The parser never writes to disk and
// never reads tensor data, only the metadata header.
func Parse(r io.Reader) (*Result, error) {
	var hdr struct {
		Magic     uint32
		Version   uint32
		TensorCnt int64
		KVCount   int64
	}
	if err := binary.Read(r, binary.LittleEndian, &hdr.Magic); err != nil {
		return nil, fmt.Errorf("%w: truncated header: %v", domain.ErrParse, err)
	}
	if hdr.Magic != magic {
		return nil, fmt.Errorf("%w: bad magic %#x", domain.ErrParse, hdr.Magic)
	}
	if err := binary.Read(r, binary.LittleEndian, &hdr.Version); err != nil {
		return nil, fmt.Errorf("%w: truncated version: %v", domain.ErrParse, err)
	}
	if err := binary.Read(r, binary.LittleEndian, &hdr.TensorCnt); err != nil {
		return nil, fmt.Errorf("%w: truncated tensor count: %v", domain.ErrParse, err)
	}
	if err := binary.Read(r, binary.LittleEndian, &hdr.KVCount); err != nil {
		return nil, fmt.Errorf("%w: truncated kv count: %v", domain.ErrParse, err)
	}

	res := &Result{TensorCount: hdr.TensorCnt, KV: make(map[string]interface{}, hdr.KVCount)}

	for i := int64(0); i < hdr.KVCount; i++ {
		key, err := readString(r)
		if err != nil {
			return nil, fmt.Errorf("%w: kv %d key: %v", domain.ErrParse, i, err)
		}
		val, err := readValue(r)
		if err != nil {
			return nil, fmt.Errorf("%w: kv %d (%s): %v", domain.ErrParse, i, key, err)
		}
		res.KV[key] = val
	}

	res.Architecture, _ = res.KV["general.architecture"].(string)
	if res.Architecture == "" {
		res.Architecture = "unknown"
	}
	if v, ok := res.KV[res.Architecture+".context_length"]; ok {
		res.ContextLength = toInt(v)
	}
	if v, ok := res.KV[res.Architecture+".embedding_length"]; ok {
		res.EmbeddingLength = toInt(v)
	}
	if v, ok := res.KV[res.Architecture+".block_count"]; ok {
		res.BlockCount = toInt(v)
	}
	if v, ok := res.KV["tokenizer.chat_template"].(string); ok {
		res.ChatTemplate = v
	}
	if v, ok := res.KV["tokenizer.ggml.bos_token_id"]; ok {
		res.BOSTokenID = toInt(v)
	}
	if v, ok := res.KV["tokenizer.ggml.eos_token_id"]; ok {
		res.EOSTokenID = toInt(v)
	}
	if v, ok := res.KV["general.file_type"]; ok {
		res.QuantizationMethod = fileTypeName(toInt(v))
	}

	return res, nil
}

func toInt(v interface{}) int {
	switch x := v.(type) {
	case uint8:
		return int(x)
	case int8:
		return int(x)
	case uint16:
		return int(x)
	case int16:
		return int(x)
	case uint32:
		return int(x)
	case int32:
		return int(x)
	case uint64:
		return int(x)
	case int64:
		return int(x)
	case float32:
		return int(x)
	case float64:
		return int(x)
	default:
		return 0
	}
}

// fileTypeName maps the well-known GGUF general.file_type enum to the
// quantization method names the rest of the stack uses (e.g. Q4_K_M).
func fileTypeName(ft int) string {
	names := map[int]string{
		0: "F32", 1: "F16",
		2: "Q4_0", 3: "Q4_1",
		7: "Q8_0", 8: "Q5_0", 9: "Q5_1",
		10: "Q2_K", 11: "Q3_K_S", 12: "Q3_K_M", 13: "Q3_K_L",
		14: "Q4_K_S", 15: "Q4_K_M", 16: "Q5_K_S", 17: "Q5_K_M",
		18: "Q6_K",
	}
	if name, ok := names[ft]; ok {
		return name
	}
	return "unknown"
}

func readString(r io.Reader) (string, error) {
	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func readValue(r io.Reader) (interface{}, error) {
	var t uint32
	if err := binary.Read(r, binary.LittleEndian, &t); err != nil {
		return nil, err
	}
	return readTyped(r, valueType(t))
}

func readTyped(r io.Reader, t valueType) (interface{}, error) {
	switch t {
	case typeUint8:
		var v uint8
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	case typeInt8:
		var v int8
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	case typeUint16:
		var v uint16
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	case typeInt16:
		var v int16
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	case typeUint32:
		var v uint32
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	case typeInt32:
		var v int32
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	case typeFloat32:
		var v float32
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	case typeUint64:
		var v uint64
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	case typeInt64:
		var v int64
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	case typeFloat64:
		var v float64
		err := binary.Read(r, binary.LittleEndian, &v)
		return v, err
	case typeBool:
		var v uint8
		err := binary.Read(r, binary.LittleEndian, &v)
		return v != 0, err
	case typeString:
		return readString(r)
	case typeArray:
		var elemType uint32
		if err := binary.Read(r, binary.LittleEndian, &elemType); err != nil {
			return nil, err
		}
		var n uint64
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return nil, err
		}
		out := make([]interface{}, n)
		for i := range out {
			v, err := readTyped(r, valueType(elemType))
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown kv type %d", t)
	}
}

// ToDescriptor synthesizes identity and load-parameter fields for a newly
// imported model from the parse result.
func (res *Result) ToDescriptor(id, modelPath string) *domain.ModelDescriptor {
	d := &domain.ModelDescriptor{
		ID:     id,
		Name:   id,
		Model:  id,
		Files:  []string{modelPath},
		Object: "model",
		Engine: "llamacpp",
	}
	if res.ContextLength > 0 {
		ctx := res.ContextLength
		d.CtxLen = &ctx
	}
	if res.ChatTemplate != "" {
		d.PromptTemplate = res.ChatTemplate
	}
	if res.QuantizationMethod != "" && res.QuantizationMethod != "unknown" {
		d.QuantizationMethod = res.QuantizationMethod
	}
	if strings.TrimSpace(res.Architecture) != "" && res.Architecture != "unknown" {
		d.Model = res.Architecture
	}
	return d
}
