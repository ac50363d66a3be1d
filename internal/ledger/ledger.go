// Package ledger reads a JSON export of program accounts and transactions
// and serves it as an in-memory ledger.
package ledger

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/estensen/streamflow-pipeline/internal/activity"
	"github.com/estensen/streamflow-pipeline/internal/api"
	"github.com/estensen/streamflow-pipeline/internal/models"
	"github.com/estensen/streamflow-pipeline/internal/parser"
	"github.com/estensen/streamflow-pipeline/internal/schema"
)

// Account is a program account with base64 data, as getProgramAccounts
// returns it.
type Account struct {
	Address string `json:"address"`
	Data    string `json:"data"`
}

// Instruction carries base58 data, as partially decoded RPC responses do.
type Instruction struct {
	ProgramID string   `json:"programId"`
	Accounts  []string `json:"accounts"`
	Data      string   `json:"data"`
}

type Transaction struct {
	Signature    string        `json:"signature"`
	BlockTime    int64         `json:"blockTime"`
	Instructions []Instruction `json:"instructions"`
}

// Export is the file format. BlockTime is the ledger time the accounts were
// read at.
type Export struct {
	BlockTime    int64         `json:"blockTime"`
	Streams      []Account     `json:"streams"`
	Treasuries   []Account     `json:"treasuries"`
	Templates    []Account     `json:"templates"`
	Transactions []Transaction `json:"transactions"`
}

func Load(path string) (*Export, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening ledger export: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

func Decode(r io.Reader) (*Export, error) {
	var export Export
	if err := json.NewDecoder(r).Decode(&export); err != nil {
		return nil, fmt.Errorf("decoding ledger export: %w", err)
	}
	return &export, nil
}

type rawAccount struct {
	address solana.PublicKey
	data    []byte
}

// Ledger is a decoded export. It serves the API's stream and activity
// sources.
type Ledger struct {
	BlockTime    int64
	Transactions []activity.Transaction

	streams    []rawAccount
	treasuries []rawAccount
	templates  []rawAccount

	parser        *parser.Parser
	reconstructor *activity.Reconstructor
	logger        *zap.Logger
}

// New validates the export's encodings. Account contents are decoded on
// use, so one corrupt account does not hide the rest.
func New(export *Export, p *parser.Parser, reconstructor *activity.Reconstructor, logger *zap.Logger) (*Ledger, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Ledger{
		BlockTime:     export.BlockTime,
		parser:        p,
		reconstructor: reconstructor,
		logger:        logger,
	}

	var err error
	if l.streams, err = decodeAccounts(export.Streams); err != nil {
		return nil, fmt.Errorf("streams: %w", err)
	}
	if l.treasuries, err = decodeAccounts(export.Treasuries); err != nil {
		return nil, fmt.Errorf("treasuries: %w", err)
	}
	if l.templates, err = decodeAccounts(export.Templates); err != nil {
		return nil, fmt.Errorf("templates: %w", err)
	}

	for _, tx := range export.Transactions {
		converted := activity.Transaction{Signature: tx.Signature, BlockTime: tx.BlockTime}
		for i, ix := range tx.Instructions {
			decoded, err := convertInstruction(ix)
			if err != nil {
				return nil, fmt.Errorf("transaction %s instruction %d: %w", tx.Signature, i, err)
			}
			converted.Instructions = append(converted.Instructions, decoded)
		}
		l.Transactions = append(l.Transactions, converted)
	}
	return l, nil
}

func decodeAccounts(accounts []Account) ([]rawAccount, error) {
	out := make([]rawAccount, 0, len(accounts))
	for _, acc := range accounts {
		address, err := solana.PublicKeyFromBase58(acc.Address)
		if err != nil {
			return nil, fmt.Errorf("account address %q: %w", acc.Address, err)
		}
		data, err := base64.StdEncoding.DecodeString(acc.Data)
		if err != nil {
			return nil, fmt.Errorf("account %s data: %w", acc.Address, err)
		}
		out = append(out, rawAccount{address: address, data: data})
	}
	return out, nil
}

func convertInstruction(ix Instruction) (schema.Instruction, error) {
	programID, err := solana.PublicKeyFromBase58(ix.ProgramID)
	if err != nil {
		return schema.Instruction{}, fmt.Errorf("program id: %w", err)
	}
	accounts := make([]solana.PublicKey, 0, len(ix.Accounts))
	for _, a := range ix.Accounts {
		key, err := solana.PublicKeyFromBase58(a)
		if err != nil {
			return schema.Instruction{}, fmt.Errorf("account %q: %w", a, err)
		}
		accounts = append(accounts, key)
	}
	return schema.InstructionFromBase58(programID, accounts, ix.Data)
}

// Streams derives every stream account matching filter at the export's
// block time, newest first. Accounts that fail to decode are logged and
// skipped.
func (l *Ledger) Streams(filter parser.StreamFilter) []models.Stream {
	var accounts []parser.StreamAccount
	for _, acc := range l.streams {
		if !filter.Matches(acc.data) {
			continue
		}
		raw, err := parser.DecodeStreamAccount(acc.data)
		if err != nil {
			l.logger.Warn("skipping stream account", zap.Stringer("address", acc.address), zap.Error(err))
			continue
		}
		accounts = append(accounts, parser.StreamAccount{Address: acc.address, Raw: raw})
	}
	return l.parser.ParseStreams(accounts, l.BlockTime)
}

func (l *Ledger) Treasuries(filter parser.TreasuryFilter) []models.Treasury {
	var accounts []parser.TreasuryAccount
	for _, acc := range l.treasuries {
		if !filter.Matches(acc.data) {
			continue
		}
		raw, err := parser.DecodeTreasuryAccount(acc.data)
		if err != nil {
			l.logger.Warn("skipping treasury account", zap.Stringer("address", acc.address), zap.Error(err))
			continue
		}
		accounts = append(accounts, parser.TreasuryAccount{Address: acc.address, Raw: raw})
	}
	return l.parser.ParseTreasuries(accounts)
}

// Template returns the template owned by a vesting treasury.
func (l *Ledger) Template(treasury solana.PublicKey) (models.StreamTemplate, error) {
	address, _, err := parser.FindStreamTemplateAddress(treasury, l.reconstructor.ProgramID())
	if err != nil {
		return models.StreamTemplate{}, err
	}
	for _, acc := range l.templates {
		if acc.address.Equals(address) {
			return l.parser.DecodeTemplate(acc.data, address)
		}
	}
	return models.StreamTemplate{}, fmt.Errorf("template for treasury %s: %w", treasury, api.ErrNotFound)
}

// Stream implements api.StreamSource.
func (l *Ledger) Stream(_ context.Context, address solana.PublicKey) (models.Stream, error) {
	for _, acc := range l.streams {
		if acc.address.Equals(address) {
			return l.parser.DecodeStream(acc.data, address, l.BlockTime)
		}
	}
	return models.Stream{}, fmt.Errorf("stream %s: %w", address, api.ErrNotFound)
}

func (l *Ledger) StreamActivity(ctx context.Context, stream solana.PublicKey) ([]models.StreamActivity, error) {
	return l.reconstructor.StreamActivity(ctx, stream, l.Transactions)
}

func (l *Ledger) TreasuryActivity(ctx context.Context, treasury solana.PublicKey) ([]models.TreasuryActivity, error) {
	return l.reconstructor.TreasuryActivity(ctx, treasury, l.Transactions)
}
