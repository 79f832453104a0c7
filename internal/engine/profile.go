package engine

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidDisplacement is returned for a non-positive or non-finite displacement.
var ErrInvalidDisplacement = errors.New("engine displacement must be a positive number of liters")

// EngineProfile is the vehicle configuration the engine computes against.
type EngineProfile struct {
	DisplacementLiters float64
}

// NewEngineProfile validates and returns a profile.
func NewEngineProfile(displacementLiters float64) (EngineProfile, error) {
	if math.IsNaN(displacementLiters) || math.IsInf(displacementLiters, 0) || displacementLiters <= 0 {
		return EngineProfile{}, fmt.Errorf("%w (got %v)", ErrInvalidDisplacement, displacementLiters)
	}
	return EngineProfile{DisplacementLiters: displacementLiters}, nil
}

// DefaultProfile is a 2.0 L engine.
func DefaultProfile() EngineProfile {
	return EngineProfile{DisplacementLiters: 2.0}
}
