//go:build tools

package main

// Build-time tooling kept on the module graph. swag fmt keeps the API
// annotations on the HTTP handlers formatted.
import (
	_ "github.com/swaggo/swag"
)
