package domain

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

type FieldKey string

// Field vocabulary, in declaration order. The serialized config always
// enumerates every key in exactly this order so the backend receives a
// complete, order-stable shape.
const (
	FieldName       FieldKey = "name"
	FieldAddress    FieldKey = "address"
	FieldCompany    FieldKey = "company"
	FieldEmail      FieldKey = "email"
	FieldSensNumber FieldKey = "sens_number"
)

var fieldOrder = []FieldKey{FieldName, FieldAddress, FieldCompany, FieldEmail, FieldSensNumber}

// FieldKeys returns the declared field vocabulary in declaration order.
func FieldKeys() []FieldKey {
	keys := make([]FieldKey, len(fieldOrder))
	copy(keys, fieldOrder)
	return keys
}

// KnownFieldKey reports whether key belongs to the declared vocabulary.
func KnownFieldKey(key FieldKey) bool {
	for _, known := range fieldOrder {
		if known == key {
			return true
		}
	}
	return false
}

type Method string

const (
	// MethodEmpty marks a field as explicitly not redacted, distinct from
	// omission.
	MethodEmpty  Method = "empty"
	MethodBlack  Method = "black"
	MethodMosaic Method = "mosaic"
	MethodBlur   Method = "blur"
)

type ComputeMode string

const (
	ComputeModeCPU ComputeMode = "cpu"
	ComputeModeGPU ComputeMode = "gpu"
)

type ModelType string

const (
	ModelTypeNER ModelType = "ner"
	ModelTypeLLM ModelType = "llm"
)

// FieldRule is the per-field redaction setting. Parameter pointers are nil
// when they do not apply to the method; on the wire they are serialized as
// explicit nulls, never omitted.
type FieldRule struct {
	Method     Method
	Color      *string
	MosaicSize *int
	BlurKernel *int
}

func (r FieldRule) clone() FieldRule {
	clone := FieldRule{Method: r.Method}
	if r.Color != nil {
		v := *r.Color
		clone.Color = &v
	}
	if r.MosaicSize != nil {
		v := *r.MosaicSize
		clone.MosaicSize = &v
	}
	if r.BlurKernel != nil {
		v := *r.BlurKernel
		clone.BlurKernel = &v
	}
	return clone
}

// RedactionConfig is the canonical, complete configuration sent to the
// backend. Fields always holds an entry for every declared field key.
type RedactionConfig struct {
	Fields      map[FieldKey]FieldRule
	ComputeMode ComputeMode
	ModelType   ModelType
}

// Clone returns a deep copy of the config.
func (c RedactionConfig) Clone() RedactionConfig {
	clone := RedactionConfig{
		Fields:      make(map[FieldKey]FieldRule, len(c.Fields)),
		ComputeMode: c.ComputeMode,
		ModelType:   c.ModelType,
	}
	for key, rule := range c.Fields {
		clone.Fields[key] = rule.clone()
	}
	return clone
}

// ActiveFieldCount returns the number of fields resolving to a non-empty
// method.
func (c RedactionConfig) ActiveFieldCount() int {
	count := 0
	for _, rule := range c.Fields {
		if rule.Method != MethodEmpty && rule.Method != "" {
			count++
		}
	}
	return count
}

type fieldRuleWire struct {
	Method     Method  `json:"method"`
	Color      *string `json:"color"`
	MosaicSize *int    `json:"mosaic_size"`
	BlurKernel *int    `json:"blur_kernel"`
}

// MarshalJSON serializes the config with every declared field key present,
// in declaration order. encoding/json sorts map keys alphabetically, so the
// object is assembled by hand.
func (c RedactionConfig) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"fields":{`)
	for i, key := range fieldOrder {
		rule, ok := c.Fields[key]
		if !ok {
			rule = FieldRule{Method: MethodEmpty}
		}
		if rule.Method == "" {
			rule.Method = MethodEmpty
		}
		encoded, err := json.Marshal(fieldRuleWire{
			Method:     rule.Method,
			Color:      rule.Color,
			MosaicSize: rule.MosaicSize,
			BlurKernel: rule.BlurKernel,
		})
		if err != nil {
			return nil, fmt.Errorf("encode field %s: %w", key, err)
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		fmt.Fprintf(&buf, "%q:", string(key))
		buf.Write(encoded)
	}
	buf.WriteString(`},"compute_mode":`)
	fmt.Fprintf(&buf, "%q", string(c.ComputeMode))
	buf.WriteString(`,"model_type":`)
	fmt.Fprintf(&buf, "%q", string(c.ModelType))
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON restores a config and rejects unknown field keys at the
// boundary.
func (c *RedactionConfig) UnmarshalJSON(data []byte) error {
	var wire struct {
		Fields      map[FieldKey]fieldRuleWire `json:"fields"`
		ComputeMode ComputeMode                `json:"compute_mode"`
		ModelType   ModelType                  `json:"model_type"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	fields := make(map[FieldKey]FieldRule, len(wire.Fields))
	for key, rule := range wire.Fields {
		if !KnownFieldKey(key) {
			return fmt.Errorf("unknown config field key: %s", key)
		}
		fields[key] = FieldRule{
			Method:     rule.Method,
			Color:      rule.Color,
			MosaicSize: rule.MosaicSize,
			BlurKernel: rule.BlurKernel,
		}
	}
	c.Fields = fields
	c.ComputeMode = wire.ComputeMode
	c.ModelType = wire.ModelType
	return nil
}

// Hash returns a stable digest of the canonical wire form, used to tell
// config snapshots apart in the audit history.
func (c RedactionConfig) Hash() string {
	encoded, err := c.MarshalJSON()
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])
}
