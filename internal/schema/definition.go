package schema

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidDefinition  = errors.New("invalid schema definition")
	ErrUnknownInstruction = errors.New("unknown instruction")
	ErrMissingArgument    = errors.New("missing instruction argument")
)

// ArgType names the Borsh encoding of one instruction argument.
type ArgType string

const (
	ArgU8              ArgType = "u8"
	ArgU32             ArgType = "u32"
	ArgU64             ArgType = "u64"
	ArgI64             ArgType = "i64"
	ArgBool            ArgType = "bool"
	ArgString          ArgType = "string"
	ArgPublicKey       ArgType = "publicKey"
	ArgOptionU64       ArgType = "option<u64>"
	ArgOptionPublicKey ArgType = "option<publicKey>"
)

const (
	discriminatorLength    = 8
	globalSighashNamespace = "global"
)

func (t ArgType) valid() bool {
	switch t {
	case ArgU8, ArgU32, ArgU64, ArgI64, ArgBool, ArgString, ArgPublicKey, ArgOptionU64, ArgOptionPublicKey:
		return true
	}
	return false
}

type Arg struct {
	Name string  `yaml:"name"`
	Type ArgType `yaml:"type"`
}

// Layout describes one instruction: its ordered arguments and the names of
// its ordered accounts. A positive AccountCount pins the exact number of
// accounts a transaction must pass.
type Layout struct {
	Name         string   `yaml:"name"`
	Accounts     []string `yaml:"accounts"`
	AccountCount int      `yaml:"accountCount"`
	Args         []Arg    `yaml:"args"`

	Discriminator [discriminatorLength]byte `yaml:"-"`
}

// Definition is one schema version: its instruction layouts keyed by
// discriminator and the operations that count as stream or treasury
// activity. It is immutable once parsed.
type Definition struct {
	Version      Version  `yaml:"version"`
	Tagged       bool     `yaml:"tagged"`
	Instructions []Layout `yaml:"instructions"`
	Activity     struct {
		Stream   []string `yaml:"stream"`
		Treasury []string `yaml:"treasury"`
	} `yaml:"activity"`

	byDiscriminator map[[discriminatorLength]byte]*Layout
	byName          map[string]*Layout
	recognized      map[Purpose]map[string]struct{}
}

// ParseDefinition reads a YAML schema document and checks that it describes
// the expected version.
func ParseDefinition(data []byte, expected Version) (*Definition, error) {
	var def Definition
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDefinition, expected, err)
	}
	if def.Version != expected {
		return nil, fmt.Errorf("%w: document is %s, want %s", ErrInvalidDefinition, def.Version, expected)
	}
	if err := def.index(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDefinition, expected, err)
	}
	return &def, nil
}

func (d *Definition) index() error {
	d.byDiscriminator = make(map[[discriminatorLength]byte]*Layout, len(d.Instructions))
	d.byName = make(map[string]*Layout, len(d.Instructions))

	for i := range d.Instructions {
		layout := &d.Instructions[i]
		if layout.Name == "" {
			return fmt.Errorf("instruction %d has no name", i)
		}
		if _, dup := d.byName[layout.Name]; dup {
			return fmt.Errorf("instruction %q defined twice", layout.Name)
		}
		for _, arg := range layout.Args {
			if !arg.Type.valid() {
				return fmt.Errorf("instruction %q: argument %q has unknown type %q", layout.Name, arg.Name, arg.Type)
			}
		}
		if layout.AccountCount > 0 && layout.AccountCount != len(layout.Accounts) {
			return fmt.Errorf("instruction %q names %d accounts but pins %d", layout.Name, len(layout.Accounts), layout.AccountCount)
		}
		layout.Discriminator = InstructionDiscriminator(layout.Name)
		d.byName[layout.Name] = layout
		d.byDiscriminator[layout.Discriminator] = layout
	}

	d.recognized = map[Purpose]map[string]struct{}{
		PurposeStream:   {},
		PurposeTreasury: {},
	}
	for purpose, names := range map[Purpose][]string{
		PurposeStream:   d.Activity.Stream,
		PurposeTreasury: d.Activity.Treasury,
	} {
		for _, name := range names {
			if _, ok := d.byName[name]; !ok {
				return fmt.Errorf("%s activity lists undefined instruction %q", purpose, name)
			}
			d.recognized[purpose][name] = struct{}{}
		}
	}
	return nil
}

// Layout returns the instruction layout with the given name.
func (d *Definition) Layout(name string) (*Layout, bool) {
	layout, ok := d.byName[name]
	return layout, ok
}

func (d *Definition) lookup(discriminator []byte) (*Layout, bool) {
	var key [discriminatorLength]byte
	copy(key[:], discriminator)
	layout, ok := d.byDiscriminator[key]
	return layout, ok
}

// Recognizes reports whether the named operation counts as activity for the
// given purpose under this schema.
func (d *Definition) Recognizes(purpose Purpose, name string) bool {
	_, ok := d.recognized[purpose][name]
	return ok
}

// InstructionDiscriminator is the 8-byte prefix the program uses to select
// an instruction: the first bytes of sha256("global:<snake_case_name>").
func InstructionDiscriminator(name string) [discriminatorLength]byte {
	sum := sha256.Sum256([]byte(globalSighashNamespace + ":" + snakeCase(name)))
	var out [discriminatorLength]byte
	copy(out[:], sum[:discriminatorLength])
	return out
}

func snakeCase(name string) string {
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
