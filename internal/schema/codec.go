package schema

import (
	"bytes"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"

	"github.com/estensen/streamflow-pipeline/internal/units"
)

var (
	ErrInstructionTooShort = errors.New("instruction data shorter than discriminator")
	ErrInvalidArgument     = errors.New("invalid instruction argument")
)

// Instruction is one program instruction as it appears in a transaction.
type Instruction struct {
	ProgramID solana.PublicKey
	Accounts  []solana.PublicKey
	Data      []byte
}

// InstructionFromBase58 builds an Instruction from the base58 data string
// ledger RPCs return for partially decoded instructions.
func InstructionFromBase58(programID solana.PublicKey, accounts []solana.PublicKey, data string) (Instruction, error) {
	raw, err := base58.Decode(data)
	if err != nil {
		return Instruction{}, fmt.Errorf("decoding instruction data: %w", err)
	}
	return Instruction{ProgramID: programID, Accounts: accounts, Data: raw}, nil
}

type Value struct {
	Name  string
	Type  ArgType
	Value any
}

type NamedAccount struct {
	Name      string
	PublicKey solana.PublicKey
}

// DecodedInstruction is an instruction resolved against a schema: its
// operation name, its typed arguments and its accounts by role.
type DecodedInstruction struct {
	Name     string
	Version  Version
	Args     []Value
	Accounts []NamedAccount
}

// Account returns the first account with the given role.
func (d DecodedInstruction) Account(name string) (solana.PublicKey, bool) {
	for _, acc := range d.Accounts {
		if acc.Name == name {
			return acc.PublicKey, true
		}
	}
	return solana.PublicKey{}, false
}

// AccountPtr is Account for optional event fields.
func (d DecodedInstruction) AccountPtr(name string) *solana.PublicKey {
	key, ok := d.Account(name)
	if !ok {
		return nil
	}
	return &key
}

func (d DecodedInstruction) Arg(name string) (any, bool) {
	for _, arg := range d.Args {
		if arg.Name == name {
			return arg.Value, arg.Value != nil
		}
	}
	return nil, false
}

// Amount returns an unsigned integer argument as an Amount.
func (d DecodedInstruction) Amount(name string) (units.Amount, bool) {
	v, ok := d.Arg(name)
	if !ok {
		return units.Amount{}, false
	}
	switch n := v.(type) {
	case uint64:
		return units.FromUint64(n), true
	case uint32:
		return units.FromUint64(uint64(n)), true
	case uint8:
		return units.FromUint64(uint64(n)), true
	}
	return units.Amount{}, false
}

func (d DecodedInstruction) Uint8(name string) (uint8, bool) {
	v, ok := d.Arg(name)
	if !ok {
		return 0, false
	}
	n, ok := v.(uint8)
	return n, ok
}

// decodeArgs reads the Borsh-encoded arguments that follow the
// discriminator and, for tagged schemas, the version byte. Trailing bytes
// are ignored.
func (d *Definition) decodeArgs(layout *Layout, data []byte) ([]Value, error) {
	dec := bin.NewBorshDecoder(data[discriminatorLength:])
	if d.Tagged {
		if _, err := dec.ReadUint8(); err != nil {
			return nil, fmt.Errorf("reading version tag: %w", err)
		}
	}

	values := make([]Value, 0, len(layout.Args))
	for _, arg := range layout.Args {
		v, err := readArg(dec, arg.Type)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", layout.Name, arg.Name, err)
		}
		values = append(values, Value{Name: arg.Name, Type: arg.Type, Value: v})
	}
	return values, nil
}

func readArg(dec *bin.Decoder, t ArgType) (any, error) {
	switch t {
	case ArgU8:
		return dec.ReadUint8()
	case ArgU32:
		return dec.ReadUint32(bin.LE)
	case ArgU64:
		return dec.ReadUint64(bin.LE)
	case ArgI64:
		return dec.ReadInt64(bin.LE)
	case ArgBool:
		return dec.ReadBool()
	case ArgString:
		return dec.ReadRustString()
	case ArgPublicKey:
		return readPublicKey(dec)
	case ArgOptionU64, ArgOptionPublicKey:
		present, err := dec.ReadUint8()
		if err != nil {
			return nil, err
		}
		if present == 0 {
			return nil, nil
		}
		if t == ArgOptionU64 {
			return dec.ReadUint64(bin.LE)
		}
		return readPublicKey(dec)
	}
	return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidArgument, t)
}

func readPublicKey(dec *bin.Decoder) (solana.PublicKey, error) {
	b, err := dec.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return solana.PublicKeyFromBytes(b), nil
}

// Encode builds an instruction for the named operation. Args are keyed by
// argument name; option arguments may be omitted. Accounts are keyed by role,
// and roles left out are filled with the zero key.
func (d *Definition) Encode(programID solana.PublicKey, name string, args map[string]any, accounts map[string]solana.PublicKey) (Instruction, error) {
	layout, ok := d.byName[name]
	if !ok {
		return Instruction{}, fmt.Errorf("%w: %s in %s", ErrUnknownInstruction, name, d.Version)
	}

	buf := new(bytes.Buffer)
	buf.Write(layout.Discriminator[:])
	enc := bin.NewBorshEncoder(buf)
	if d.Tagged {
		if err := enc.WriteUint8(uint8(d.Version)); err != nil {
			return Instruction{}, err
		}
	}
	for _, arg := range layout.Args {
		v, present := args[arg.Name]
		if !present && arg.Type != ArgOptionU64 && arg.Type != ArgOptionPublicKey {
			return Instruction{}, fmt.Errorf("%w: %s.%s", ErrMissingArgument, name, arg.Name)
		}
		if err := writeArg(enc, arg.Type, v); err != nil {
			return Instruction{}, fmt.Errorf("%s.%s: %w", name, arg.Name, err)
		}
	}

	keys := make([]solana.PublicKey, len(layout.Accounts))
	for i, role := range layout.Accounts {
		keys[i] = accounts[role]
	}
	return Instruction{ProgramID: programID, Accounts: keys, Data: buf.Bytes()}, nil
}

func writeArg(enc *bin.Encoder, t ArgType, v any) error {
	switch t {
	case ArgU8:
		n, err := toUint64(v)
		if err != nil {
			return err
		}
		return enc.WriteUint8(uint8(n))
	case ArgU32:
		n, err := toUint64(v)
		if err != nil {
			return err
		}
		return enc.WriteUint32(uint32(n), bin.LE)
	case ArgU64:
		n, err := toUint64(v)
		if err != nil {
			return err
		}
		return enc.WriteUint64(n, bin.LE)
	case ArgI64:
		n, ok := v.(int64)
		if !ok {
			return fmt.Errorf("%w: want int64, got %T", ErrInvalidArgument, v)
		}
		return enc.WriteInt64(n, bin.LE)
	case ArgBool:
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("%w: want bool, got %T", ErrInvalidArgument, v)
		}
		return enc.WriteBool(b)
	case ArgString:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("%w: want string, got %T", ErrInvalidArgument, v)
		}
		return enc.WriteRustString(s)
	case ArgPublicKey:
		key, ok := v.(solana.PublicKey)
		if !ok {
			return fmt.Errorf("%w: want public key, got %T", ErrInvalidArgument, v)
		}
		return enc.WriteBytes(key[:], false)
	case ArgOptionU64, ArgOptionPublicKey:
		if v == nil {
			return enc.WriteUint8(0)
		}
		if err := enc.WriteUint8(1); err != nil {
			return err
		}
		if t == ArgOptionU64 {
			return writeArg(enc, ArgU64, v)
		}
		return writeArg(enc, ArgPublicKey, v)
	}
	return fmt.Errorf("%w: unknown type %q", ErrInvalidArgument, t)
}

func toUint64(v any) (uint64, error) {
	switch n := v.(type) {
	case uint64:
		return n, nil
	case uint32:
		return uint64(n), nil
	case uint8:
		return uint64(n), nil
	case int:
		if n >= 0 {
			return uint64(n), nil
		}
	case units.Amount:
		if u, ok := n.Uint64(); ok {
			return u, nil
		}
	}
	return 0, fmt.Errorf("%w: %v (%T) is not a u64", ErrInvalidArgument, v, v)
}
