package redaction

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/fadehq/redact-client/internal/domain"
)

func TestBuildEnumeratesAllFieldsInDeclarationOrder(t *testing.T) {
	// Selection deliberately mentions keys out of order and leaves some out.
	selection := Selection{
		domain.FieldEmail: {Checked: true, Method: domain.MethodMosaic, MosaicSize: 20},
		domain.FieldName:  {Checked: true, Method: domain.MethodBlack},
	}

	config, err := Build(selection, GlobalOptions{})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	encoded, err := json.Marshal(config)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	raw := string(encoded)
	previous := -1
	for _, key := range domain.FieldKeys() {
		index := strings.Index(raw, `"`+string(key)+`"`)
		if index < 0 {
			t.Fatalf("serialized config missing field %s: %s", key, raw)
		}
		if index < previous {
			t.Fatalf("field %s out of declaration order: %s", key, raw)
		}
		previous = index
	}
}

func TestBuildUncheckedFieldsAreExplicitNulls(t *testing.T) {
	selection := Selection{
		domain.FieldName: {Checked: true, Method: domain.MethodBlack},
	}
	config, err := Build(selection, GlobalOptions{})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}

	encoded, err := json.Marshal(config)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	raw := string(encoded)

	if !strings.Contains(raw, `"address":{"method":"empty","color":null,"mosaic_size":null,"blur_kernel":null}`) {
		t.Fatalf("unchecked field not serialized fixed-width: %s", raw)
	}
}

func TestBuildWithNoCheckedFieldsIsRejected(t *testing.T) {
	selection := Selection{
		domain.FieldName: {Checked: false, Method: domain.MethodBlack},
	}
	if _, err := Build(selection, GlobalOptions{}); !errors.Is(err, ErrNoFieldsSelected) {
		t.Fatalf("expected ErrNoFieldsSelected, got %v", err)
	}

	if _, err := Build(Selection{}, GlobalOptions{}); !errors.Is(err, ErrNoFieldsSelected) {
		t.Fatalf("expected ErrNoFieldsSelected for empty selection, got %v", err)
	}
}

func TestBuildRejectsUnknownFieldKey(t *testing.T) {
	selection := Selection{
		domain.FieldKey("passport"): {Checked: true, Method: domain.MethodBlack},
	}
	if _, err := Build(selection, GlobalOptions{}); err == nil {
		t.Fatalf("expected unknown field key to be rejected")
	}
}

func TestBuildValidatesMethodParameters(t *testing.T) {
	even := Selection{
		domain.FieldEmail: {Checked: true, Method: domain.MethodBlur, BlurKernel: 50},
	}
	if _, err := Build(even, GlobalOptions{}); err == nil {
		t.Fatalf("expected even blur kernel to be rejected")
	}

	oversized := Selection{
		domain.FieldEmail: {Checked: true, Method: domain.MethodMosaic, MosaicSize: 250},
	}
	if _, err := Build(oversized, GlobalOptions{}); err == nil {
		t.Fatalf("expected out-of-range mosaic size to be rejected")
	}

	badColor := Selection{
		domain.FieldName: {Checked: true, Method: domain.MethodBlack, Color: "black"},
	}
	if _, err := Build(badColor, GlobalOptions{}); err == nil {
		t.Fatalf("expected invalid color to be rejected")
	}
}

func TestSelectAllOverridesPartialSelection(t *testing.T) {
	config, err := Build(SelectAll(), GlobalOptions{})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if config.ActiveFieldCount() != len(domain.FieldKeys()) {
		t.Fatalf("expected every field active, got %d", config.ActiveFieldCount())
	}

	// Manually checking every field with the default method must be
	// equivalent.
	manual := Selection{}
	for _, key := range domain.FieldKeys() {
		manual[key] = FieldChoice{Checked: true, Method: domain.MethodBlack, Color: DefaultCoverColor}
	}
	manualConfig, err := Build(manual, GlobalOptions{})
	if err != nil {
		t.Fatalf("manual build failed: %v", err)
	}
	if config.Hash() != manualConfig.Hash() {
		t.Fatalf("select-all config differs from manual all-checked config")
	}
}

func TestBuildDefaultsGlobalOptions(t *testing.T) {
	config, err := Build(SelectAll(), GlobalOptions{})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if config.ComputeMode != domain.ComputeModeCPU {
		t.Fatalf("expected cpu default, got %s", config.ComputeMode)
	}
	if config.ModelType != domain.ModelTypeNER {
		t.Fatalf("expected ner default, got %s", config.ModelType)
	}
}

func TestConfigRoundTripRejectsUnknownKeys(t *testing.T) {
	var config domain.RedactionConfig
	raw := `{"fields":{"ssn":{"method":"black","color":null,"mosaic_size":null,"blur_kernel":null}},"compute_mode":"cpu","model_type":"ner"}`
	if err := json.Unmarshal([]byte(raw), &config); err == nil {
		t.Fatalf("expected unknown wire key to be rejected")
	}
}
