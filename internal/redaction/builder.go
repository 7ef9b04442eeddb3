// Package redaction turns user field selections into the canonical
// configuration object sent to the backend.
package redaction

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/fadehq/redact-client/internal/domain"
)

// ErrNoFieldsSelected rejects a build whose config would redact nothing.
// Surfaced before any network call.
var ErrNoFieldsSelected = errors.New("no fields selected for redaction")

const (
	// DefaultCoverColor is the black-cover fill used when a color is not
	// given.
	DefaultCoverColor = "#000000"

	DefaultMosaicSize = 10
	DefaultBlurKernel = 51
)

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// FieldChoice is one field's raw user selection.
type FieldChoice struct {
	Checked    bool
	Method     domain.Method
	Color      string
	MosaicSize int
	BlurKernel int
}

// Selection maps field keys to their raw choices. Keys outside the declared
// vocabulary are rejected at build time.
type Selection map[domain.FieldKey]FieldChoice

// GlobalOptions travel alongside the per-field settings.
type GlobalOptions struct {
	ComputeMode domain.ComputeMode
	ModelType   domain.ModelType
}

// Build produces a complete config: every declared field key is present in
// declaration order, unchecked fields resolve to the empty sentinel with all
// parameter slots explicitly null.
func Build(selection Selection, options GlobalOptions) (domain.RedactionConfig, error) {
	for key := range selection {
		if !domain.KnownFieldKey(key) {
			return domain.RedactionConfig{}, fmt.Errorf("unknown field key: %s", key)
		}
	}

	config := domain.RedactionConfig{
		Fields:      make(map[domain.FieldKey]domain.FieldRule, len(domain.FieldKeys())),
		ComputeMode: options.ComputeMode,
		ModelType:   options.ModelType,
	}
	if config.ComputeMode == "" {
		config.ComputeMode = domain.ComputeModeCPU
	}
	if config.ModelType == "" {
		config.ModelType = domain.ModelTypeNER
	}

	for _, key := range domain.FieldKeys() {
		choice, ok := selection[key]
		if !ok || !choice.Checked {
			config.Fields[key] = domain.FieldRule{Method: domain.MethodEmpty}
			continue
		}
		rule, err := resolveRule(key, choice)
		if err != nil {
			return domain.RedactionConfig{}, err
		}
		config.Fields[key] = rule
	}

	if config.ActiveFieldCount() == 0 {
		return domain.RedactionConfig{}, ErrNoFieldsSelected
	}
	return config, nil
}

// SelectAll returns a selection equivalent to checking every declared field
// with the default black-cover method, deterministically overriding any
// partial prior selection.
func SelectAll() Selection {
	selection := make(Selection, len(domain.FieldKeys()))
	for _, key := range domain.FieldKeys() {
		selection[key] = FieldChoice{
			Checked: true,
			Method:  domain.MethodBlack,
			Color:   DefaultCoverColor,
		}
	}
	return selection
}

func resolveRule(key domain.FieldKey, choice FieldChoice) (domain.FieldRule, error) {
	switch choice.Method {
	case domain.MethodBlack:
		color := choice.Color
		if color == "" {
			color = DefaultCoverColor
		}
		if !colorPattern.MatchString(color) {
			return domain.FieldRule{}, fmt.Errorf("field %s: invalid cover color %q", key, color)
		}
		return domain.FieldRule{Method: domain.MethodBlack, Color: &color}, nil

	case domain.MethodMosaic:
		size := choice.MosaicSize
		if size == 0 {
			size = DefaultMosaicSize
		}
		if size < 1 || size > 100 {
			return domain.FieldRule{}, fmt.Errorf("field %s: mosaic size %d out of range 1-100", key, size)
		}
		return domain.FieldRule{Method: domain.MethodMosaic, MosaicSize: &size}, nil

	case domain.MethodBlur:
		kernel := choice.BlurKernel
		if kernel == 0 {
			kernel = DefaultBlurKernel
		}
		if kernel < 1 || kernel > 99 {
			return domain.FieldRule{}, fmt.Errorf("field %s: blur kernel %d out of range 1-99", key, kernel)
		}
		if kernel%2 == 0 {
			return domain.FieldRule{}, fmt.Errorf("field %s: blur kernel %d must be odd", key, kernel)
		}
		return domain.FieldRule{Method: domain.MethodBlur, BlurKernel: &kernel}, nil

	case domain.MethodEmpty, "":
		// Checked but no method picked resolves to the sentinel.
		return domain.FieldRule{Method: domain.MethodEmpty}, nil

	default:
		return domain.FieldRule{}, fmt.Errorf("field %s: unsupported method %q", key, choice.Method)
	}
}
