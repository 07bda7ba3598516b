package engine

import (
	"github.com/ironsheep/screenwatch/internal/classify"
	"github.com/ironsheep/screenwatch/internal/format"
	"github.com/ironsheep/screenwatch/internal/prefilter"
	"github.com/ironsheep/screenwatch/internal/throttle"
)

// Config gathers the parameters of every pipeline stage.
type Config struct {
	Prefilter prefilter.Filter
	Classify  classify.Config
	Throttle  throttle.Config
	Format    format.Formatter
}

// DefaultConfig returns the standard stage parameters.
func DefaultConfig() Config {
	return Config{
		Prefilter: prefilter.Filter{Threshold: prefilter.DefaultThreshold},
		Classify:  classify.DefaultConfig(),
		Throttle:  throttle.DefaultConfig(),
		Format:    format.Formatter{MinLineChars: format.DefaultMinLineChars},
	}
}
