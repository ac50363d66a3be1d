package parser

import (
	"bytes"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"

	"github.com/estensen/streamflow-pipeline/internal/models"
)

// Byte offsets of filterable fields, discriminator included.
const (
	StreamTreasurerOffset   = 42
	StreamBeneficiaryOffset = 114
	StreamTreasuryOffset    = 178
	StreamCategoryOffset    = 339
	StreamSubCategoryOffset = 340

	TreasuryTreasurerOffset   = 51
	TreasuryAutoCloseOffset   = 216
	TreasuryCategoryOffset    = 218
	TreasurySubCategoryOffset = 219
)

// MemcmpFilter is an RPC account filter: the account matches when its bytes
// at Offset equal the base58-decoded Bytes.
type MemcmpFilter struct {
	Offset uint64 `json:"offset"`
	Bytes  string `json:"bytes"`
}

func memcmp(offset uint64, b []byte) MemcmpFilter {
	return MemcmpFilter{Offset: offset, Bytes: base58.Encode(b)}
}

func (f MemcmpFilter) Matches(data []byte) bool {
	want, err := base58.Decode(f.Bytes)
	if err != nil {
		return false
	}
	end := f.Offset + uint64(len(want))
	if end > uint64(len(data)) {
		return false
	}
	return bytes.Equal(data[f.Offset:end], want)
}

func matchAll(filters []MemcmpFilter, data []byte) bool {
	for _, f := range filters {
		if !f.Matches(data) {
			return false
		}
	}
	return true
}

// StreamFilter selects stream accounts. A treasury narrows to that
// treasury's streams; otherwise treasurer and beneficiary each select
// streams and the results are merged.
type StreamFilter struct {
	Treasurer   *solana.PublicKey
	Treasury    *solana.PublicKey
	Beneficiary *solana.PublicKey
	Category    *models.Category
	SubCategory *models.SubCategory
}

// Queries returns one filter set per RPC query to issue. An empty result
// means every stream account.
func (f StreamFilter) Queries() [][]MemcmpFilter {
	var category []MemcmpFilter
	if f.Category != nil {
		category = append(category, memcmp(StreamCategoryOffset, []byte{byte(*f.Category)}))
	}
	if f.SubCategory != nil {
		category = append(category, memcmp(StreamSubCategoryOffset, []byte{byte(*f.SubCategory)}))
	}

	with := func(offset uint64, key solana.PublicKey) []MemcmpFilter {
		return append([]MemcmpFilter{memcmp(offset, key[:])}, category...)
	}

	if f.Treasury != nil {
		return [][]MemcmpFilter{with(StreamTreasuryOffset, *f.Treasury)}
	}

	var queries [][]MemcmpFilter
	if f.Treasurer != nil {
		queries = append(queries, with(StreamTreasurerOffset, *f.Treasurer))
	}
	if f.Beneficiary != nil {
		queries = append(queries, with(StreamBeneficiaryOffset, *f.Beneficiary))
	}
	if len(queries) == 0 && len(category) > 0 {
		queries = append(queries, category)
	}
	return queries
}

// Matches applies the filter to raw account bytes locally.
func (f StreamFilter) Matches(data []byte) bool {
	queries := f.Queries()
	if len(queries) == 0 {
		return true
	}
	for _, q := range queries {
		if matchAll(q, data) {
			return true
		}
	}
	return false
}

type TreasuryFilter struct {
	Treasurer        *solana.PublicKey
	ExcludeAutoClose bool
	Category         *models.Category
	SubCategory      *models.SubCategory
}

func (f TreasuryFilter) Memcmp() []MemcmpFilter {
	var filters []MemcmpFilter
	if f.Treasurer != nil {
		filters = append(filters, memcmp(TreasuryTreasurerOffset, f.Treasurer[:]))
	}
	if f.ExcludeAutoClose {
		filters = append(filters, memcmp(TreasuryAutoCloseOffset, []byte{0}))
	}
	if f.Category != nil {
		filters = append(filters, memcmp(TreasuryCategoryOffset, []byte{byte(*f.Category)}))
	}
	if f.SubCategory != nil {
		filters = append(filters, memcmp(TreasurySubCategoryOffset, []byte{byte(*f.SubCategory)}))
	}
	return filters
}

func (f TreasuryFilter) Matches(data []byte) bool {
	return matchAll(f.Memcmp(), data)
}
