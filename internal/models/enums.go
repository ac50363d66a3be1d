package models

import "fmt"

// DateLayout is how every calendar string leaves the pipeline.
const DateLayout = "Mon, 02 Jan 2006 15:04:05 GMT"

// Presentation selects between typed values and display strings. It never
// changes a computed number, only how it is rendered.
type Presentation int

const (
	Raw Presentation = iota
	Friendly
)

type StreamStatus int

const (
	StatusUnknown StreamStatus = iota
	StatusScheduled
	StatusRunning
	StatusPaused
)

func (s StreamStatus) String() string {
	switch s {
	case StatusScheduled:
		return "Scheduled"
	case StatusRunning:
		return "Running"
	case StatusPaused:
		return "Paused"
	default:
		return "Unknown"
	}
}

type TreasuryType uint8

const (
	TreasuryTypeOpen TreasuryType = iota
	TreasuryTypeLocked
)

func (t TreasuryType) String() string {
	if t == TreasuryTypeOpen {
		return "Open"
	}
	return "Locked"
}

type Category uint8

const (
	CategoryDefault Category = iota
	CategoryVesting
)

func (c Category) String() string {
	switch c {
	case CategoryDefault:
		return "default"
	case CategoryVesting:
		return "vesting"
	default:
		return fmt.Sprintf("category(%d)", uint8(c))
	}
}

type SubCategory uint8

const (
	SubCategoryDefault SubCategory = iota
	SubCategoryAdvisor
	SubCategoryDevelopment
	SubCategoryFoundation
	SubCategoryInvestor
	SubCategoryMarketing
	SubCategoryPartnership
	SubCategorySeed
	SubCategoryTeam
	SubCategoryCommunity
)

var subCategoryNames = [...]string{
	"default", "advisor", "development", "foundation", "investor",
	"marketing", "partnership", "seed", "team", "community",
}

func (s SubCategory) String() string {
	if int(s) < len(subCategoryNames) {
		return subCategoryNames[s]
	}
	return fmt.Sprintf("subcategory(%d)", uint8(s))
}

// StreamAction is the coarse action shown in a stream's activity feed.
type StreamAction string

const (
	ActionDeposited StreamAction = "deposited"
	ActionWithdrew  StreamAction = "withdrew"
)

// TreasuryAction classifies an instruction that touched a vesting treasury.
type TreasuryAction int

const (
	TreasuryCreate TreasuryAction = iota
	TreasuryModify
	TreasuryAddFunds
	TreasuryWithdraw
	StreamCreate
	StreamAllocateFunds
	StreamWithdraw
	StreamClose
	StreamPause
	StreamResume
	TreasuryRefresh
)

var treasuryActionNames = [...]string{
	"createTreasury", "modifyTreasury", "addFunds", "withdrawFromTreasury",
	"createStream", "allocateFunds", "withdrawFromStream", "closeStream",
	"pauseStream", "resumeStream", "refreshTreasury",
}

func (a TreasuryAction) String() string {
	if a >= 0 && int(a) < len(treasuryActionNames) {
		return treasuryActionNames[a]
	}
	return fmt.Sprintf("action(%d)", int(a))
}

func (a TreasuryAction) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *TreasuryAction) UnmarshalText(text []byte) error {
	parsed, err := ParseTreasuryAction(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseTreasuryAction is the inverse of TreasuryAction.String.
func ParseTreasuryAction(s string) (TreasuryAction, error) {
	for i, name := range treasuryActionNames {
		if name == s {
			return TreasuryAction(i), nil
		}
	}
	return 0, fmt.Errorf("unknown treasury action %q", s)
}
