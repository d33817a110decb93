// Package descriptor implements read/write of the per-model configuration
// record: a YAML text form for humans, a JSON wire form for the HTTP
// façade, and a merge operation that folds GGUF-derived metadata into an
// existing descriptor without clobbering user-set fields.
package descriptor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/lumenhq/lumen/internal/domain"
	"github.com/lumenhq/lumen/internal/gguf"
	yaml "go.yaml.in/yaml/v2"
)

// knownYAMLKeys lists every yaml tag on domain.ModelDescriptor, computed
// once via reflection so Read can separate known fields from the unknown
// ones it must preserve verbatim.
var knownYAMLKeys = computeKnownKeys()

func computeKnownKeys() map[string]bool {
	keys := make(map[string]bool)
	t := reflect.TypeOf(domain.ModelDescriptor{})
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("yaml")
		if tag == "" || tag == "-" {
			continue
		}
		name := strings.SplitN(tag, ",", 2)[0]
		keys[name] = true
	}
	return keys
}

// Store implements domain.DescriptorStore over the Read/Write functions in
// this package, giving the orchestrator and façades a value to depend on
// instead of the package-level functions directly.
type Store struct{}

func (Store) Read(path string) (*domain.ModelDescriptor, error)  { return Read(path) }
func (Store) Write(path string, d *domain.ModelDescriptor) error { return Write(path, d) }

// Read parses a descriptor file. Unknown keys are preserved in
// ModelDescriptor.Extra so a Write/Read round trip is lossless.
func Read(path string) (*domain.ModelDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIO, err)
	}

	var d domain.ModelDescriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrParse, err)
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrParse, err)
	}
	extra := make(map[string]interface{})
	for k, v := range raw {
		if !knownYAMLKeys[k] {
			extra[k] = v
		}
	}
	if len(extra) > 0 {
		d.Extra = extra
	}
	return &d, nil
}

// Write emits a canonical, sectioned, comment-annotated descriptor file:
// identity, sampling, load, and host-compatibility groups, each with a
// BEGIN/END comment header, followed by any preserved unknown keys.
func Write(path string, d *domain.ModelDescriptor) error {
	var buf bytes.Buffer

	section := func(title string, body interface{}) error {
		fmt.Fprintf(&buf, "# ───── BEGIN %s ─────\n", title)
		b, err := yaml.Marshal(body)
		if err != nil {
			return err
		}
		// A group with every field omitted marshals as a flow-style "{}",
		// which would break the single block mapping the file forms, so
		// only its banners are written.
		if string(b) != "{}\n" {
			buf.Write(b)
		}
		fmt.Fprintf(&buf, "# ───── END %s ─────\n", title)
		return nil
	}

	type identity struct {
		ID      string   `yaml:"id"`
		Name    string   `yaml:"name"`
		Model   string   `yaml:"model"`
		Version string   `yaml:"version,omitempty"`
		Files   []string `yaml:"files,omitempty"`
		Created int64    `yaml:"created"`
		Object  string   `yaml:"object,omitempty"`
		OwnedBy string   `yaml:"owned_by,omitempty"`
	}
	if err := section("GENERAL GGUF METADATA", identity{
		d.ID, d.Name, d.Model, d.Version, d.Files, d.Created, d.Object, d.OwnedBy,
	}); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIO, err)
	}

	type sampling struct {
		Stop             []string `yaml:"stop,omitempty"`
		Stream           *bool    `yaml:"stream,omitempty"`
		TopP             *float64 `yaml:"top_p,omitempty"`
		Temperature      *float64 `yaml:"temperature,omitempty"`
		FrequencyPenalty *float64 `yaml:"frequency_penalty,omitempty"`
		PresencePenalty  *float64 `yaml:"presence_penalty,omitempty"`
		MaxTokens        *int     `yaml:"max_tokens,omitempty"`
		Seed             *int     `yaml:"seed,omitempty"`
		DynatempRange    *float64 `yaml:"dynatemp_range,omitempty"`
		DynatempExponent *float64 `yaml:"dynatemp_exponent,omitempty"`
		TopK             *int     `yaml:"top_k,omitempty"`
		MinP             *float64 `yaml:"min_p,omitempty"`
		TfsZ             *float64 `yaml:"tfs_z,omitempty"`
		TypP             *float64 `yaml:"typ_p,omitempty"`
		RepeatLastN      *int     `yaml:"repeat_last_n,omitempty"`
		RepeatPenalty    *float64 `yaml:"repeat_penalty,omitempty"`
		Mirostat         *int     `yaml:"mirostat,omitempty"`
		MirostatTau      *float64 `yaml:"mirostat_tau,omitempty"`
		MirostatEta      *float64 `yaml:"mirostat_eta,omitempty"`
		PenalizeNl       *bool    `yaml:"penalize_nl,omitempty"`
		IgnoreEos        *bool    `yaml:"ignore_eos,omitempty"`
		NProbs           *int     `yaml:"n_probs,omitempty"`
		MinKeep          *int     `yaml:"min_keep,omitempty"`
		Grammar          string   `yaml:"grammar,omitempty"`
	}
	if err := section("INFERENCE PARAMETERS", sampling{
		d.Stop, d.Stream, d.TopP, d.Temperature, d.FrequencyPenalty, d.PresencePenalty,
		d.MaxTokens, d.Seed, d.DynatempRange, d.DynatempExponent, d.TopK, d.MinP,
		d.TfsZ, d.TypP, d.RepeatLastN, d.RepeatPenalty, d.Mirostat, d.MirostatTau,
		d.MirostatEta, d.PenalizeNl, d.IgnoreEos, d.NProbs, d.MinKeep, d.Grammar,
	}); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIO, err)
	}

	type loadParams struct {
		Engine             string `yaml:"engine"`
		PromptTemplate     string `yaml:"prompt_template,omitempty"`
		SystemTemplate     string `yaml:"system_template,omitempty"`
		UserTemplate       string `yaml:"user_template,omitempty"`
		AiTemplate         string `yaml:"ai_template,omitempty"`
		CtxLen             *int   `yaml:"ctx_len,omitempty"`
		Ngl                *int   `yaml:"ngl,omitempty"`
		Tp                 *int   `yaml:"tp,omitempty"`
		Precision          string `yaml:"precision,omitempty"`
		QuantizationMethod string `yaml:"quantization_method,omitempty"`
		TrtllmVersion      string `yaml:"trtllm_version,omitempty"`
	}
	lp := loadParams{
		d.Engine, d.PromptTemplate, d.SystemTemplate, d.UserTemplate, d.AiTemplate,
		d.CtxLen, d.Ngl, nil, d.Precision, d.QuantizationMethod, "",
	}
	if d.IsTensorRT() {
		lp.Tp = d.Tp
		lp.TrtllmVersion = d.TrtllmVersion
	}
	if err := section("MODEL LOAD PARAMETERS", lp); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIO, err)
	}

	type hostCompat struct {
		OS        string `yaml:"os,omitempty"`
		GpuArch   string `yaml:"gpu_arch,omitempty"`
		TextModel *bool  `yaml:"text_model,omitempty"`
	}
	if err := section("HOST COMPATIBILITY", hostCompat{d.OS, d.GpuArch, d.TextModel}); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIO, err)
	}

	if len(d.Extra) > 0 {
		fmt.Fprintf(&buf, "# ───── BEGIN PRESERVED UNKNOWN KEYS ─────\n")
		b, err := yaml.Marshal(d.Extra)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrIO, err)
		}
		buf.Write(b)
		fmt.Fprintf(&buf, "# ───── END PRESERVED UNKNOWN KEYS ─────\n")
	}

	if err := os.MkdirAll(parentOf(path), 0o755); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIO, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIO, err)
	}
	return nil
}

func parentOf(path string) string {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return "."
	}
	return path[:i]
}

// ToWire serializes d to its JSON wire form. trtllm_version/tp are only
// emitted for the TRT-LLM engine; every other unset optional is omitted
// rather than carrying a sentinel.
func ToWire(d *domain.ModelDescriptor) ([]byte, error) {
	type wire domain.ModelDescriptor // alias to reuse the json tags without recursing
	w := wire(*d)
	if !d.IsTensorRT() {
		w.Tp = nil
		w.TrtllmVersion = ""
	}
	return json.Marshal(w)
}

// UpdateFrom merges a GGUF parse result into d, preferring explicit
// (already-set) fields over derived ones so re-parsing a model never
// clobbers a value the user edited by hand.
func UpdateFrom(d *domain.ModelDescriptor, res *gguf.Result) {
	if res == nil {
		return
	}
	if d.CtxLen == nil && res.ContextLength > 0 {
		ctx := res.ContextLength
		d.CtxLen = &ctx
	}
	if d.PromptTemplate == "" && res.ChatTemplate != "" {
		d.PromptTemplate = res.ChatTemplate
	}
	if d.QuantizationMethod == "" && res.QuantizationMethod != "" && res.QuantizationMethod != "unknown" {
		d.QuantizationMethod = res.QuantizationMethod
	}
	if d.Model == "" && res.Architecture != "" && res.Architecture != "unknown" {
		d.Model = res.Architecture
	}
}
