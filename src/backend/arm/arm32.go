// Package arm generates ARM32 (GAS syntax) assembly from the linear IR. The
// procedure call convention is the AAPCS subset with the first four integer
// arguments in r0-r3, the remainder on the stack, and r11 as frame pointer.
package arm

import (
	"fmt"
	"path/filepath"

	"minicc/src/ir/lir"
	"minicc/src/ir/lir/types"
	"minicc/src/util"
)

// ---------------------
// ----- Functions -----
// ---------------------

// GenArm32 generates the assembly listing of Module m into wr: the .text
// section with every defined function, then the .bss records of the
// zero-initialised globals.
func GenArm32(opt util.Options, m *lir.Module, wr *util.Writer) error {
	wr.Directive(".arch", "armv7-a")
	wr.Directive(".arch_extension", "idiv")
	wr.Directive(".syntax", "unified")
	wr.Directive(".arm")
	if len(opt.Src) > 0 {
		wr.Write("\t.file\t%q\n", filepath.Base(opt.Src))
	}
	wr.Directive(".text")

	for _, e1 := range m.Functions() {
		if !e1.Defined() {
			// Prototypes resolve at link time.
			continue
		}
		if err := genFunction(e1, wr); err != nil {
			return fmt.Errorf("function %s: %w", e1.Name(), err)
		}
	}

	if len(m.Globals()) > 0 {
		wr.WriteString("\n")
		wr.Directive(".bss")
		wr.Directive(".align", "2")
		for _, e1 := range m.Globals() {
			size := e1.Type().Size()
			if e1.Type().Kind() != types.Array {
				size = 4
			}
			wr.Write("\t.global\t%s\n", e1.RawName())
			wr.Label(e1.RawName())
			wr.Write("\t.space\t%d\n", size)
		}
	}
	return nil
}
