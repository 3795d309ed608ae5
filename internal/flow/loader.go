package flow

import (
	"fmt"

	"github.com/flowforge/txsaga/internal/interpolation"
	"github.com/pelletier/go-toml/v2"
)

// LoadTOML parses a TOML flow definition, expands environment variable
// references in its interpolated fields, and compiles it into a DAG.
func LoadTOML(source []byte) (*DAG, error) {
	if len(source) == 0 {
		return nil, invalidFlow("no source data provided to loader")
	}

	var def Definition
	if err := toml.Unmarshal(source, &def); err != nil {
		return nil, fmt.Errorf("failed to parse TOML flow definition: %w", err)
	}

	if err := interpolation.InterpolateStruct(&def); err != nil {
		return nil, fmt.Errorf("failed to interpolate flow definition: %w", err)
	}

	return Compile(&def)
}
