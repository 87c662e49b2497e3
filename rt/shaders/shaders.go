package shaders

import (
	_ "embed"
)

//go:embed fractal.wgsl
var FractalWGSL string
