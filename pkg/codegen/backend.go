package codegen

import (
	"bytes"

	"github.com/xplshn/mcc/pkg/config"
	"github.com/xplshn/mcc/pkg/ir"
)

// Backend is the interface that all code generation backends must implement.
type Backend interface {
	// GenerateIR renders the program in the backend's textual IL.
	GenerateIR(prog *ir.Program, cfg *config.Config) (string, error)
	// Generate produces target assembly for the program.
	Generate(prog *ir.Program, cfg *config.Config) (*bytes.Buffer, error)
}
