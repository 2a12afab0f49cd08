package kernel

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type moduleDoc struct {
	Kernels []kernelDoc `yaml:"kernels"`
}

type kernelDoc struct {
	Name   string        `yaml:"name"`
	Args   []argumentDoc `yaml:"args"`
	Blocks []blockDoc    `yaml:"blocks"`
}

type argumentDoc struct {
	Name  string `yaml:"name"`
	Type  string `yaml:"type"`
	Space string `yaml:"space"`
}

type blockDoc struct {
	Name         string           `yaml:"name"`
	Instructions []instructionDoc `yaml:"instructions"`
}

type instructionDoc struct {
	Name     string   `yaml:"name"`
	Op       string   `yaml:"op"`
	Type     string   `yaml:"type"`
	Operands []string `yaml:"operands"`
	Callee   string   `yaml:"callee"`
	Pred     string   `yaml:"pred"`
	Incoming []string `yaml:"incoming"`
	Elem     int64    `yaml:"elem"`
	Space    string   `yaml:"space"`
	Targets  []string `yaml:"targets"`
}

// LoadFile reads a kernel module from a YAML file.
func LoadFile(path string) (*Module, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return m, nil
}

// Load reads a kernel module in YAML form. A module lists kernels; each
// kernel lists its arguments and its blocks, the first block being the
// entry. Operands name an argument or an instruction result, or are integer
// literals. Names may be used before they are defined.
func Load(r io.Reader) (*Module, error) {
	var doc moduleDoc

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformed, err)
	}

	m := &Module{}

	for _, kd := range doc.Kernels {
		fn, err := kd.build()
		if err != nil {
			return nil, err
		}

		if m.Lookup(fn.name) != nil {
			return nil, fmt.Errorf("%w: kernel %s defined twice",
				ErrMalformed, fn.name)
		}

		m.Kernels = append(m.Kernels, fn)
	}

	return m, nil
}

type kernelLoader struct {
	doc    *kernelDoc
	fn     *Function
	values map[string]Value
	blocks map[string]*Block
}

func (kd *kernelDoc) build() (*Function, error) {
	if kd.Name == "" {
		return nil, fmt.Errorf("%w: kernel without a name", ErrMalformed)
	}

	l := &kernelLoader{
		doc:    kd,
		fn:     &Function{name: kd.Name},
		values: make(map[string]Value),
		blocks: make(map[string]*Block),
	}

	if err := l.declareArguments(); err != nil {
		return nil, err
	}

	if err := l.declareBlocks(); err != nil {
		return nil, err
	}

	if err := l.declareInstructions(); err != nil {
		return nil, err
	}

	if err := l.resolveInstructions(); err != nil {
		return nil, err
	}

	if err := l.fn.verify(); err != nil {
		return nil, err
	}

	return l.fn, nil
}

func (l *kernelLoader) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: kernel %s: %s",
		ErrMalformed, l.fn.name, fmt.Sprintf(format, args...))
}

func (l *kernelLoader) define(name string, v Value) error {
	if name == "" {
		return nil
	}

	if _, dup := l.values[name]; dup {
		return l.errorf("value %s defined twice", name)
	}

	l.values[name] = v

	return nil
}

func (l *kernelLoader) declareArguments() error {
	for i, ad := range l.doc.Args {
		typ, ok := ParseType(ad.Type)
		if !ok || typ == TypeVoid {
			return l.errorf("argument %s has invalid type %q", ad.Name, ad.Type)
		}

		a := &Argument{name: ad.Name, typ: typ, index: i}

		if typ == TypePointer {
			space, err := l.parseSpace(ad.Space, AddressSpaceGlobal)
			if err != nil {
				return err
			}
			a.space = space
		}

		if err := l.define(ad.Name, a); err != nil {
			return err
		}

		l.fn.args = append(l.fn.args, a)
	}

	return nil
}

func (l *kernelLoader) parseSpace(s string, def AddressSpace) (AddressSpace, error) {
	if s == "" {
		return def, nil
	}

	space, ok := ParseAddressSpace(s)
	if !ok {
		return def, l.errorf("unknown address space %q", s)
	}

	return space, nil
}

func (l *kernelLoader) declareBlocks() error {
	for i, bd := range l.doc.Blocks {
		if _, dup := l.blocks[bd.Name]; dup || bd.Name == "" {
			return l.errorf("invalid or duplicated block name %q", bd.Name)
		}

		b := &Block{id: BlockID(i), name: bd.Name, fn: l.fn}
		l.blocks[bd.Name] = b
		l.fn.blocks = append(l.fn.blocks, b)
	}

	return nil
}

func (l *kernelLoader) declareInstructions() error {
	for i, bd := range l.doc.Blocks {
		b := l.fn.blocks[i]

		for _, id := range bd.Instructions {
			op, ok := ParseOpcode(id.Op)
			if !ok {
				return l.errorf("unknown opcode %q in block %s", id.Op, bd.Name)
			}

			inst := &Instruction{
				op:     op,
				name:   id.Name,
				typ:    resultType(op),
				block:  b,
				callee: id.Callee,
			}

			if id.Type != "" {
				typ, ok := ParseType(id.Type)
				if !ok {
					return l.errorf("instruction %s has invalid type %q",
						id.Name, id.Type)
				}
				inst.typ = typ
			}

			if err := l.define(id.Name, inst); err != nil {
				return err
			}

			b.instrs = append(b.instrs, inst)
		}
	}

	return nil
}

func resultType(op Opcode) Type {
	switch {
	case op == OpICmp:
		return TypeBool
	case op == OpGEP:
		return TypePointer
	case op == OpStore, op.IsTerminator():
		return TypeVoid
	default:
		return TypeInt
	}
}

func (l *kernelLoader) resolveInstructions() error {
	for i, bd := range l.doc.Blocks {
		b := l.fn.blocks[i]

		for n, id := range bd.Instructions {
			if err := l.resolve(b.instrs[n], &id); err != nil {
				return err
			}
		}
	}

	return nil
}

func (l *kernelLoader) resolve(inst *Instruction, id *instructionDoc) error {
	for _, s := range id.Operands {
		v, err := l.operand(s)
		if err != nil {
			return err
		}

		inst.operands = append(inst.operands, v)
	}

	for _, s := range id.Targets {
		t, ok := l.blocks[s]
		if !ok {
			return l.errorf("unknown branch target %q", s)
		}

		inst.targets = append(inst.targets, t)
	}

	switch inst.op {
	case OpICmp:
		pred, ok := ParsePredicate(id.Pred)
		if !ok {
			return l.errorf("icmp %s has unknown predicate %q", id.Name, id.Pred)
		}
		inst.predicate = pred

	case OpPhi:
		for _, s := range id.Incoming {
			from, ok := l.blocks[s]
			if !ok {
				return l.errorf("phi %s has unknown incoming block %q",
					id.Name, s)
			}
			inst.incoming = append(inst.incoming, from)
		}

	case OpGEP:
		if len(inst.operands) == 0 {
			return l.errorf("gep %s has no base pointer", id.Name)
		}

		inst.elemSize = id.Elem
		if inst.elemSize == 0 {
			inst.elemSize = 1
		}

		space, err := l.parseSpace(id.Space, addressSpaceOf(inst.operands[0]))
		if err != nil {
			return err
		}
		inst.space = space

	case OpCall:
		if id.Callee == "" {
			return l.errorf("call %s has no callee", id.Name)
		}
	}

	return nil
}

func (l *kernelLoader) operand(s string) (Value, error) {
	if v, ok := l.values[s]; ok {
		return v, nil
	}

	switch s {
	case "true":
		return Bool(true), nil
	case "false":
		return Bool(false), nil
	}

	n, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return nil, l.errorf("unknown operand %q", s)
	}

	return Const(n), nil
}
