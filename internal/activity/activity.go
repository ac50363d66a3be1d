package activity

import (
	"context"
	"sort"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/estensen/streamflow-pipeline/internal/models"
	"github.com/estensen/streamflow-pipeline/internal/schema"
	"github.com/estensen/streamflow-pipeline/internal/units"
)

// Transaction is a confirmed ledger transaction. BlockTime is in unix
// seconds; zero means the ledger did not report one.
type Transaction struct {
	Signature    string
	BlockTime    int64
	Instructions []schema.Instruction
}

// Recorder is told about every event the reconstructor emits.
type Recorder interface {
	ObserveEvent(purpose schema.Purpose, action string)
}

type Reconstructor struct {
	decoder  *schema.Decoder
	logger   *zap.Logger
	recorder Recorder
	workers  int
}

type Option func(*Reconstructor)

func WithLogger(logger *zap.Logger) Option {
	return func(r *Reconstructor) { r.logger = logger }
}

func WithRecorder(rec Recorder) Option {
	return func(r *Reconstructor) { r.recorder = rec }
}

// WithWorkers decodes up to n transactions at once. Output does not depend on n.
func WithWorkers(n int) Option {
	return func(r *Reconstructor) { r.workers = n }
}

func NewReconstructor(decoder *schema.Decoder, opts ...Option) *Reconstructor {
	r := &Reconstructor{
		decoder: decoder,
		logger:  zap.NewNop(),
		workers: 1,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Reconstructor) ProgramID() solana.PublicKey {
	return r.decoder.ProgramID()
}

// StreamActivity returns the deposits into and withdrawals from the stream
// at target, newest first. Instructions that do not decode are skipped; only
// cancellation of ctx is reported as an error.
func (r *Reconstructor) StreamActivity(ctx context.Context, target solana.PublicKey, txs []Transaction) ([]models.StreamActivity, error) {
	events, err := collect(ctx, r.workers, txs, func(tx Transaction) []models.StreamActivity {
		return r.streamEvents(target, tx)
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].BlockTime > events[j].BlockTime
	})
	r.logger.Debug("reconstructed stream activity",
		zap.Stringer("stream", target),
		zap.Int("transactions", len(txs)),
		zap.Int("events", len(events)),
	)
	return events, nil
}

// TreasuryActivity returns every operation on the vesting treasury at target,
// newest first, with the treasury's creation moved last.
func (r *Reconstructor) TreasuryActivity(ctx context.Context, target solana.PublicKey, txs []Transaction) ([]models.TreasuryActivity, error) {
	events, err := collect(ctx, r.workers, txs, func(tx Transaction) []models.TreasuryActivity {
		return r.treasuryEvents(target, tx)
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].BlockTime > events[j].BlockTime
	})
	events = hoistCreate(events)
	r.logger.Debug("reconstructed treasury activity",
		zap.Stringer("treasury", target),
		zap.Int("transactions", len(txs)),
		zap.Int("events", len(events)),
	)
	return events, nil
}

// collect runs fn over every transaction and concatenates the results in
// input order.
func collect[T any](ctx context.Context, workers int, txs []Transaction, fn func(Transaction) []T) ([]T, error) {
	perTx := make([][]T, len(txs))

	if workers <= 1 {
		for i, tx := range txs {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			perTx[i] = fn(tx)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for i, tx := range txs {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				perTx[i] = fn(tx)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	var out []T
	for _, events := range perTx {
		out = append(out, events...)
	}
	return out, nil
}

func (r *Reconstructor) streamEvents(target solana.PublicKey, tx Transaction) []models.StreamActivity {
	decoder := r.decoder.With(zap.String("signature", tx.Signature))

	var events []models.StreamActivity
	for _, ix := range tx.Instructions {
		v := schema.SelectVersion(ix.Data, tx.BlockTime)
		decoded, ok := decoder.Decode(ix, v, schema.PurposeStream, target)
		if !ok {
			continue
		}
		event, ok := streamEvent(tx, decoded)
		if !ok {
			continue
		}
		events = append(events, event)
		r.observe(schema.PurposeStream, string(event.Action))
	}
	return events
}

func streamEvent(tx Transaction, d schema.DecodedInstruction) (models.StreamActivity, bool) {
	event := models.StreamActivity{
		Signature: tx.Signature,
		Mint:      d.AccountPtr("Associated Token"),
		BlockTime: tx.BlockTime * 1000,
		UtcDate:   utcDate(tx.BlockTime),
	}

	switch d.Name {
	case "createStream", "createStreamWithTemplate":
		event.Action = models.ActionDeposited
		event.Initializer = d.AccountPtr("Treasurer")
		event.Amount = amountPtr(d, "allocationAssignedUnits")
	case "allocate":
		event.Action = models.ActionDeposited
		event.Initializer = d.AccountPtr("Treasurer")
		event.Amount = amountPtr(d, "amount")
	case "addFunds":
		// Only allocations into a stream count; plain treasury top-ups do not.
		if t, ok := d.Uint8("allocationType"); !ok || t != 1 {
			return models.StreamActivity{}, false
		}
		event.Action = models.ActionDeposited
		event.Initializer = d.AccountPtr("Treasurer")
		event.Amount = amountPtr(d, "amount")
	case "withdraw":
		event.Action = models.ActionWithdrew
		event.Initializer = d.AccountPtr("Beneficiary")
		event.Amount = amountPtr(d, "amount")
	default:
		return models.StreamActivity{}, false
	}
	return event, true
}

func (r *Reconstructor) treasuryEvents(target solana.PublicKey, tx Transaction) []models.TreasuryActivity {
	decoder := r.decoder.With(zap.String("signature", tx.Signature))

	var events []models.TreasuryActivity
	for _, ix := range tx.Instructions {
		v := schema.SelectVersion(ix.Data, tx.BlockTime)
		if !v.Numbered() {
			continue
		}
		decoded, ok := decoder.Decode(ix, v, schema.PurposeTreasury, target)
		if !ok {
			continue
		}
		event, ok := treasuryEvent(tx, decoded)
		if !ok {
			continue
		}
		events = append(events, event)
		r.observe(schema.PurposeTreasury, event.Action.String())
	}
	return events
}

func treasuryEvent(tx Transaction, d schema.DecodedInstruction) (models.TreasuryActivity, bool) {
	event := models.TreasuryActivity{
		Signature: tx.Signature,
		BlockTime: tx.BlockTime * 1000,
		UtcDate:   utcDate(tx.BlockTime),
	}

	switch d.Name {
	case "createTreasuryAndTemplate":
		event.Action = models.TreasuryCreate
		event.Initializer = d.AccountPtr("Treasurer")
		event.Mint = d.AccountPtr("Associated Token")
		event.Template = d.AccountPtr("Template")
	case "modifyStreamTemplate":
		event.Action = models.TreasuryModify
		event.Initializer = d.AccountPtr("Treasurer")
		event.Template = d.AccountPtr("Template")
	case "createStreamWithTemplate":
		event.Action = models.StreamCreate
		event.Initializer = d.AccountPtr("Treasurer")
		event.Stream = d.AccountPtr("Stream")
		event.Template = d.AccountPtr("Template")
		event.Mint = d.AccountPtr("Associated Token")
		event.Beneficiary = d.AccountPtr("Beneficiary")
		event.Amount = amountPtr(d, "allocationAssignedUnits")
	case "addFunds":
		event.Action = models.TreasuryAddFunds
		event.Initializer = d.AccountPtr("Treasurer")
		event.Mint = d.AccountPtr("Associated Token")
		event.Amount = amountPtr(d, "amount")
	case "treasuryWithdraw":
		event.Action = models.TreasuryWithdraw
		event.Initializer = d.AccountPtr("Treasurer")
		event.Mint = d.AccountPtr("Associated Token")
		event.Destination = d.AccountPtr("Destination Authority")
		event.DestinationTokenAccount = d.AccountPtr("Destination Token Account")
		event.Amount = amountPtr(d, "amount")
	case "withdraw":
		event.Action = models.StreamWithdraw
		event.Initializer = d.AccountPtr("Beneficiary")
		event.Stream = d.AccountPtr("Stream")
		event.Beneficiary = d.AccountPtr("Beneficiary")
		event.Mint = d.AccountPtr("Associated Token")
		event.Amount = amountPtr(d, "amount")
	case "allocate":
		event.Action = models.StreamAllocateFunds
		event.Initializer = d.AccountPtr("Treasurer")
		event.Stream = d.AccountPtr("Stream")
		event.Mint = d.AccountPtr("Associated Token")
		event.Amount = amountPtr(d, "amount")
	case "closeStream":
		event.Action = models.StreamClose
		event.Initializer = d.AccountPtr("Treasurer")
		event.Stream = d.AccountPtr("Stream")
		event.Beneficiary = d.AccountPtr("Beneficiary")
		event.Mint = d.AccountPtr("Associated Token")
	case "pauseStream":
		event.Action = models.StreamPause
		event.Initializer = d.AccountPtr("Initializer")
		event.Stream = d.AccountPtr("Stream")
	case "resumeStream":
		event.Action = models.StreamResume
		event.Initializer = d.AccountPtr("Initializer")
		event.Stream = d.AccountPtr("Stream")
	case "refreshTreasuryData":
		event.Action = models.TreasuryRefresh
		event.Initializer = d.AccountPtr("Treasurer")
		event.Mint = d.AccountPtr("Associated Token")
	default:
		return models.TreasuryActivity{}, false
	}
	return event, true
}

// hoistCreate removes every TreasuryCreate and appends the first one found,
// so the creation always closes the feed.
func hoistCreate(events []models.TreasuryActivity) []models.TreasuryActivity {
	var (
		create *models.TreasuryActivity
		out    = make([]models.TreasuryActivity, 0, len(events))
	)
	for i := range events {
		if events[i].Action == models.TreasuryCreate {
			if create == nil {
				create = &events[i]
			}
			continue
		}
		out = append(out, events[i])
	}
	if create != nil {
		out = append(out, *create)
	}
	return out
}

func (r *Reconstructor) observe(purpose schema.Purpose, action string) {
	if r.recorder != nil {
		r.recorder.ObserveEvent(purpose, action)
	}
}

func amountPtr(d schema.DecodedInstruction, name string) *units.Amount {
	a, ok := d.Amount(name)
	if !ok {
		return nil
	}
	return &a
}

func utcDate(blockTime int64) string {
	return time.Unix(blockTime, 0).UTC().Format(models.DateLayout)
}
