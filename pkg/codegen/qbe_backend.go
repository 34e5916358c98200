package codegen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xplshn/mcc/pkg/config"
	"github.com/xplshn/mcc/pkg/ir"
)

type qbeBackend struct {
	out  *strings.Builder
	prog *ir.Program
}

func NewQBEBackend() Backend { return &qbeBackend{} }

// GenerateIR renders prog as QBE IL.
func (b *qbeBackend) GenerateIR(prog *ir.Program, cfg *config.Config) (string, error) {
	var qbeIRBuilder strings.Builder
	b.out = &qbeIRBuilder
	b.prog = prog

	for _, fn := range prog.Funcs {
		if err := b.genFunc(fn); err != nil {
			return "", err
		}
	}
	return qbeIRBuilder.String(), nil
}

func (b *qbeBackend) genFunc(fn *ir.Func) error {
	retTypeStr := b.formatType(fn.ReturnType)
	if retTypeStr != "" {
		retTypeStr = " " + retTypeStr
	}
	fmt.Fprintf(b.out, "\nexport function%s $%s() {\n", retTypeStr, fn.Name)
	for _, block := range fn.Blocks {
		if err := b.genBlock(block); err != nil {
			return fmt.Errorf("function %s: %w", fn.Name, err)
		}
	}
	b.out.WriteString("}\n")
	return nil
}

func (b *qbeBackend) genBlock(block *ir.BasicBlock) error {
	fmt.Fprintf(b.out, "@%s\n", block.Label.Name)
	for _, instr := range block.Instructions {
		if err := b.genInstr(instr); err != nil {
			return fmt.Errorf("block @%s: %w", block.Label.Name, err)
		}
	}
	return nil
}

func (b *qbeBackend) genInstr(instr *ir.Instruction) error {
	opStr, err := b.formatOp(instr)
	if err != nil {
		return err
	}

	b.out.WriteString("\t")
	if instr.Result != nil {
		resultType := instr.Typ
		if instr.Op >= ir.OpCEq && instr.Op <= ir.OpCGe {
			resultType = ir.TypeW
		}
		if instr.Op == ir.OpAlloc {
			resultType = ir.TypeL
		}
		fmt.Fprintf(b.out, "%s =%s ", b.formatValue(instr.Result), b.formatType(resultType))
	}
	b.out.WriteString(opStr)

	if instr.Op == ir.OpPhi {
		for i := 0; i+1 < len(instr.Args); i += 2 {
			fmt.Fprintf(b.out, " @%s %s", instr.Args[i].String(), b.formatValue(instr.Args[i+1]))
			if i+2 < len(instr.Args) {
				b.out.WriteString(",")
			}
		}
	} else {
		for i, arg := range instr.Args {
			if arg == nil {
				continue
			}
			b.out.WriteString(" ")
			b.out.WriteString(b.formatValue(arg))
			if i < len(instr.Args)-1 {
				b.out.WriteString(",")
			}
		}
	}
	b.out.WriteString("\n")
	return nil
}

func (b *qbeBackend) formatValue(v ir.Value) string {
	if v == nil {
		return ""
	}
	switch val := v.(type) {
	case *ir.Const:
		return strconv.FormatInt(val.Value, 10)
	case *ir.FloatConst:
		return fmt.Sprintf("%s_%s", b.formatType(val.Typ), strconv.FormatFloat(val.Value, 'f', -1, 64))
	case *ir.Temporary:
		safeName := strings.NewReplacer(".", "_", "[", "_", "]", "_").Replace(val.Name)
		if safeName != "" {
			return fmt.Sprintf("%%.%s_%d", safeName, val.ID)
		}
		return fmt.Sprintf("%%t%d", val.ID)
	case *ir.Label:
		return "@" + val.Name
	default:
		return ""
	}
}

func (b *qbeBackend) formatType(t ir.Type) string {
	switch t {
	case ir.TypeW:
		return "w"
	case ir.TypeL:
		return "l"
	case ir.TypeS:
		return "s"
	case ir.TypeD:
		return "d"
	default:
		return ""
	}
}

// formatCmp spells a comparison. Ordered integer comparisons are signed
// (csltw); floating ones have no sign prefix (clts).
func (b *qbeBackend) formatCmp(name string, argType ir.Type, signed bool) string {
	if signed && !ir.IsFloat(argType) {
		return "cs" + name + b.formatType(argType)
	}
	return "c" + name + b.formatType(argType)
}

func (b *qbeBackend) formatOp(instr *ir.Instruction) (string, error) {
	typ := instr.Typ
	argType := instr.OperandType
	if argType == ir.TypeNone {
		argType = instr.Typ
	}

	switch instr.Op {
	case ir.OpAlloc:
		if instr.Align <= 4 {
			return "alloc4", nil
		}
		if instr.Align <= 8 {
			return "alloc8", nil
		}
		return "alloc16", nil
	case ir.OpLoad:
		return "load" + b.formatType(typ), nil
	case ir.OpStore:
		return "store" + b.formatType(typ), nil
	case ir.OpAdd:
		return "add", nil
	case ir.OpSub:
		return "sub", nil
	case ir.OpMul:
		return "mul", nil
	case ir.OpDiv:
		return "div", nil
	case ir.OpRem:
		return "rem", nil
	case ir.OpNeg:
		return "neg", nil
	case ir.OpCEq:
		return b.formatCmp("eq", argType, false), nil
	case ir.OpCNeq:
		return b.formatCmp("ne", argType, false), nil
	case ir.OpCLt:
		return b.formatCmp("lt", argType, true), nil
	case ir.OpCGt:
		return b.formatCmp("gt", argType, true), nil
	case ir.OpCLe:
		return b.formatCmp("le", argType, true), nil
	case ir.OpCGe:
		return b.formatCmp("ge", argType, true), nil
	case ir.OpExtSW:
		return "extsw", nil
	case ir.OpSWToF:
		return "swtof", nil
	case ir.OpSLToF:
		return "sltof", nil
	case ir.OpFToF:
		if typ == ir.TypeD {
			return "exts", nil
		}
		return "truncd", nil
	case ir.OpFToSI:
		if argType == ir.TypeD {
			return "dtosi", nil
		}
		return "stosi", nil
	case ir.OpCopy:
		return "copy", nil
	case ir.OpJmp:
		return "jmp", nil
	case ir.OpJnz:
		return "jnz", nil
	case ir.OpRet:
		return "ret", nil
	case ir.OpPhi:
		return "phi", nil
	}
	return "", fmt.Errorf("unknown IR operation %d", instr.Op)
}
