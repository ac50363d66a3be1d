package utils

import (
	"fmt"
	"io"
	"sort"

	"github.com/gagliardetto/solana-go"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/estensen/streamflow-pipeline/internal/models"
	"github.com/estensen/streamflow-pipeline/internal/token"
	"github.com/estensen/streamflow-pipeline/internal/units"
)

// ExtractUniqueMints returns the distinct mints the streams pay out in,
// ordered by address.
func ExtractUniqueMints(streams []models.Stream) []solana.PublicKey {
	set := make(map[solana.PublicKey]struct{})
	for _, s := range streams {
		set[s.AssociatedToken] = struct{}{}
	}
	mints := make([]solana.PublicKey, 0, len(set))
	for mint := range set {
		mints = append(mints, mint)
	}
	sort.Slice(mints, func(i, j int) bool {
		return mints[i].String() < mints[j].String()
	})
	return mints
}

func newTable(w io.Writer, title string, header table.Row) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(title)
	t.AppendHeader(header)
	return t
}

// DisplayStreams prints derived streams, amounts in token units.
func DisplayStreams(w io.Writer, streams []models.Stream) {
	if len(streams) == 0 {
		fmt.Fprintln(w, "No streams to display.")
		return
	}

	t := newTable(w, "Streams", table.Row{"Address", "Name", "Status", "Token", "Allocation", "Withdrawable", "Funds Left", "Depletes"})
	for _, s := range streams {
		t.AppendRow(table.Row{
			s.ID.String(),
			s.Name,
			s.Status.String(),
			token.Symbol(s.AssociatedToken),
			token.FormatUnits(s.AllocationAssigned, s.AssociatedToken),
			token.FormatUnits(s.WithdrawableAmount, s.AssociatedToken),
			token.FormatUnits(s.FundsLeftInStream, s.AssociatedToken),
			s.EstimatedDepletionDate.Format(models.DateLayout),
		})
	}
	t.Render()
}

// DisplayMintTotals sums the streams per payout mint.
func DisplayMintTotals(w io.Writer, streams []models.Stream) {
	if len(streams) == 0 {
		return
	}

	type totals struct {
		streams      int
		allocated    units.Amount
		withdrawable units.Amount
		leftover     units.Amount
	}
	byMint := make(map[solana.PublicKey]*totals)
	for _, s := range streams {
		tot, ok := byMint[s.AssociatedToken]
		if !ok {
			tot = &totals{allocated: units.Zero(), withdrawable: units.Zero(), leftover: units.Zero()}
			byMint[s.AssociatedToken] = tot
		}
		tot.streams++
		tot.allocated = tot.allocated.Add(s.AllocationAssigned)
		tot.withdrawable = tot.withdrawable.Add(s.WithdrawableAmount)
		tot.leftover = tot.leftover.Add(s.FundsLeftInStream)
	}

	t := newTable(w, "Totals by Token", table.Row{"Token", "Mint", "Streams", "Allocation", "Withdrawable", "Funds Left"})
	for _, mint := range ExtractUniqueMints(streams) {
		tot := byMint[mint]
		t.AppendRow(table.Row{
			token.Symbol(mint),
			mint.String(),
			tot.streams,
			token.FormatUnits(tot.allocated, mint),
			token.FormatUnits(tot.withdrawable, mint),
			token.FormatUnits(tot.leftover, mint),
		})
	}
	t.Render()
}

func DisplayTreasuries(w io.Writer, treasuries []models.Treasury) {
	if len(treasuries) == 0 {
		fmt.Fprintln(w, "No treasuries to display.")
		return
	}

	t := newTable(w, "Treasuries", table.Row{"Address", "Name", "Type", "Category", "Token", "Balance", "Streams"})
	for _, tr := range treasuries {
		t.AppendRow(table.Row{
			tr.ID.String(),
			tr.Name,
			tr.TreasuryType.String(),
			tr.Category.String() + "/" + tr.SubCategory.String(),
			token.Symbol(tr.Mint),
			token.FormatUnits(tr.Balance, tr.Mint),
			tr.TotalStreams,
		})
	}
	t.Render()
}

// DisplayTemplate prints the stream template of a vesting treasury.
func DisplayTemplate(w io.Writer, treasury solana.PublicKey, tmpl models.StreamTemplate) {
	view := tmpl.View()
	t := newTable(w, "Template for "+treasury.String(), table.Row{"Address", "Start", "Cliff", "Interval (s)", "Duration", "Fee Payer"})
	feePayer := "beneficiary"
	if view.FeePayedByTreasurer {
		feePayer = "treasurer"
	}
	t.AppendRow(table.Row{view.ID, view.StartUtc, view.CliffVestPercent, view.RateIntervalInSeconds, view.DurationNumberOfUnits, feePayer})
	t.Render()
}

func DisplayStreamActivity(w io.Writer, stream solana.PublicKey, events []models.StreamActivity) {
	if len(events) == 0 {
		fmt.Fprintf(w, "No activity for stream %s.\n", stream)
		return
	}

	t := newTable(w, "Activity for "+stream.String(), table.Row{"Date", "Action", "Amount", "Initializer", "Signature"})
	for _, e := range events {
		view := e.View()
		amount := view.Amount
		if e.Amount != nil && e.Mint != nil {
			amount = token.FormatUnits(*e.Amount, *e.Mint) + " " + token.Symbol(*e.Mint)
		}
		t.AppendRow(table.Row{view.UtcDate, view.Action, amount, view.Initializer, view.Signature})
	}
	t.Render()
}

func DisplayTreasuryActivity(w io.Writer, treasury solana.PublicKey, events []models.TreasuryActivity) {
	if len(events) == 0 {
		fmt.Fprintf(w, "No activity for treasury %s.\n", treasury)
		return
	}

	t := newTable(w, "Activity for "+treasury.String(), table.Row{"Date", "Action", "Amount", "Stream", "Signature"})
	for _, e := range events {
		view := e.View()
		t.AppendRow(table.Row{view.UtcDate, view.Action, view.Amount, view.Stream, view.Signature})
	}
	t.Render()
}
