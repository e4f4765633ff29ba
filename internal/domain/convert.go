package domain

import (
	"fmt"
	"math"
	"strings"
)

const (
	ConvertHSVAdjust = "hsv_adjust"
	ConvertEnhance   = "enhance"
)

// ConvertRequest is the body of POST /convert.
type ConvertRequest struct {
	Filename string             `json:"filename"`
	Type     string             `json:"type"`
	Params   map[string]float64 `json:"params,omitempty"`
}

func (r ConvertRequest) Validate() error {
	if strings.TrimSpace(r.Filename) == "" || strings.TrimSpace(r.Type) == "" {
		return fmt.Errorf("%w: missing parameters", ErrValidation)
	}
	if err := ValidateArtifactName(r.Filename); err != nil {
		return err
	}
	switch r.Type {
	case ConvertHSVAdjust, ConvertEnhance:
	default:
		return fmt.Errorf("%w: invalid conversion type", ErrValidation)
	}
	for key, value := range r.Params {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return fmt.Errorf("%w: params.%s must be a finite number", ErrValidation, key)
		}
	}
	return nil
}

// Factor returns params[key], defaulting to 1.0 when absent.
func (r ConvertRequest) Factor(key string) float64 {
	if value, ok := r.Params[key]; ok {
		return value
	}
	return 1.0
}

// ConvertResponse is the body returned by POST /convert.
type ConvertResponse struct {
	Converted string `json:"converted"`
}
