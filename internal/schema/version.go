package schema

import "fmt"

// Version identifies one instruction schema generation of the program.
type Version int

const (
	// LegacyAfterCutover is the untagged schema used from Cutover until
	// version tags were introduced.
	LegacyAfterCutover Version = -1
	// LegacyBeforeCutover is the oldest untagged schema.
	LegacyBeforeCutover Version = 0

	V1 Version = 1
	V2 Version = 2
	V3 Version = 3
	V4 Version = 4

	LatestVersion = V4
)

// Cutover is the unix second at which the program switched from the oldest
// untagged layout to the later one.
const Cutover int64 = 1645224519

// tagOffset is where numbered schemas store their version tag, right after
// the 8-byte discriminator.
const tagOffset = 8

func (v Version) String() string {
	switch v {
	case LegacyBeforeCutover:
		return fmt.Sprintf("legacy-before-%d", Cutover)
	case LegacyAfterCutover:
		return fmt.Sprintf("legacy-after-%d", Cutover)
	default:
		return fmt.Sprintf("v%d", int(v))
	}
}

// Numbered reports whether v is one of the explicitly tagged schemas.
func (v Version) Numbered() bool {
	return v >= V1 && v <= LatestVersion
}

// Tag returns the version byte embedded in instruction data, or 0 when the
// data is too short to carry one.
func Tag(data []byte) uint8 {
	if len(data) <= tagOffset {
		return 0
	}
	return data[tagOffset]
}

// SelectVersion routes instruction data to a schema. A tag in the numbered
// range wins regardless of time; otherwise the transaction time picks one of
// the legacy schemas. A zero block time means the time is unknown and is
// treated as recent.
func SelectVersion(data []byte, blockTime int64) Version {
	if v := Version(Tag(data)); v.Numbered() {
		return v
	}
	if blockTime == 0 || blockTime >= Cutover {
		return LegacyAfterCutover
	}
	return LegacyBeforeCutover
}
