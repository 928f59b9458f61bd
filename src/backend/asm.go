// Package backend dispatches assembly generation to the target backend. The
// only built-in target is ARM32; the LLVM path is selected in the driver
// before the backend is reached.
package backend

import (
	"minicc/src/backend/arm"
	"minicc/src/ir/lir"
	"minicc/src/util"
)

// GenerateAssembler generates output assembler from the IR module m into wr.
func GenerateAssembler(opt util.Options, m *lir.Module, wr *util.Writer) error {
	return arm.GenArm32(opt, m, wr)
}
