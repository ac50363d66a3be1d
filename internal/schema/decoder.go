package schema

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
)

// Purpose selects which recognized-operation set applies and which account
// must match the queried address.
type Purpose int

const (
	PurposeStream Purpose = iota
	PurposeTreasury
)

func (p Purpose) String() string {
	if p == PurposeTreasury {
		return "treasury"
	}
	return "stream"
}

// keyAccount is the account role that must equal the queried address.
func (p Purpose) keyAccount() string {
	if p == PurposeTreasury {
		return "Treasury"
	}
	return "Stream"
}

// Outcome classifies what happened to one instruction.
type Outcome string

const (
	OutcomeDecoded       Outcome = "decoded"
	OutcomeNotApplicable Outcome = "not_applicable"
	OutcomeUnsupported   Outcome = "unsupported"
	OutcomeFailed        Outcome = "failed"
)

// Recorder receives one outcome per Decode call.
type Recorder interface {
	ObserveDecode(v Version, outcome Outcome)
}

var (
	errNotApplicable = errors.New("instruction does not apply")
	errUnsupported   = errors.New("instruction not supported")
)

// Decoder resolves program instructions against the registry. It is safe for
// concurrent use.
type Decoder struct {
	programID solana.PublicKey
	registry  *Registry
	logger    *zap.Logger
	recorder  Recorder
}

type Option func(*Decoder)

func WithLogger(logger *zap.Logger) Option {
	return func(d *Decoder) { d.logger = logger }
}

func WithRecorder(r Recorder) Option {
	return func(d *Decoder) { d.recorder = r }
}

func NewDecoder(programID solana.PublicKey, registry *Registry, opts ...Option) *Decoder {
	d := &Decoder{
		programID: programID,
		registry:  registry,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Decoder) ProgramID() solana.PublicKey {
	return d.programID
}

// With returns a decoder that adds fields to every log entry, typically the
// transaction signature.
func (d *Decoder) With(fields ...zap.Field) *Decoder {
	clone := *d
	clone.logger = d.logger.With(fields...)
	return &clone
}

// Decode resolves ix under schema v for the given purpose. It reports false
// when the instruction belongs to another program, is not a recognized
// operation, does not reference target in its key account, uses an
// unsupported layout, or fails to parse. Parse failures are logged; none of
// these cases is an error for the caller.
func (d *Decoder) Decode(ix Instruction, v Version, purpose Purpose, target solana.PublicKey) (DecodedInstruction, bool) {
	decoded, err := d.decode(ix, v, purpose, target)

	outcome := OutcomeDecoded
	switch {
	case err == nil:
	case errors.Is(err, errNotApplicable):
		outcome = OutcomeNotApplicable
	case errors.Is(err, errUnsupported), errors.Is(err, ErrUnsupportedVersion):
		outcome = OutcomeUnsupported
		d.logger.Debug("skipping unsupported instruction", zap.Stringer("version", v), zap.Error(err))
	default:
		outcome = OutcomeFailed
		d.logger.Warn("failed to decode instruction",
			zap.Stringer("version", v),
			zap.Stringer("purpose", purpose),
			zap.Error(err),
		)
	}
	if d.recorder != nil {
		d.recorder.ObserveDecode(v, outcome)
	}
	return decoded, err == nil
}

func (d *Decoder) decode(ix Instruction, v Version, purpose Purpose, target solana.PublicKey) (DecodedInstruction, error) {
	if !ix.ProgramID.Equals(d.programID) {
		return DecodedInstruction{}, errNotApplicable
	}

	def, err := d.registry.GetOrLoad(v)
	if err != nil {
		return DecodedInstruction{}, err
	}

	if len(ix.Data) < discriminatorLength {
		return DecodedInstruction{}, ErrInstructionTooShort
	}
	layout, ok := def.lookup(ix.Data[:discriminatorLength])
	if !ok {
		return DecodedInstruction{}, fmt.Errorf("%w: unknown discriminator %x", errUnsupported, ix.Data[:discriminatorLength])
	}
	if !def.Recognizes(purpose, layout.Name) {
		return DecodedInstruction{}, errNotApplicable
	}
	if layout.AccountCount > 0 && len(ix.Accounts) != layout.AccountCount {
		return DecodedInstruction{}, fmt.Errorf("%w: %s expects %d accounts, got %d",
			errUnsupported, layout.Name, layout.AccountCount, len(ix.Accounts))
	}

	args, err := def.decodeArgs(layout, ix.Data)
	if err != nil {
		return DecodedInstruction{}, err
	}

	decoded := DecodedInstruction{
		Name:     layout.Name,
		Version:  v,
		Args:     args,
		Accounts: make([]NamedAccount, 0, len(layout.Accounts)),
	}
	for i, role := range layout.Accounts {
		if i >= len(ix.Accounts) {
			break
		}
		decoded.Accounts = append(decoded.Accounts, NamedAccount{Name: role, PublicKey: ix.Accounts[i]})
	}

	key, ok := decoded.Account(purpose.keyAccount())
	if !ok || !key.Equals(target) {
		return DecodedInstruction{}, errNotApplicable
	}
	return decoded, nil
}
