package model

import "time"

// Label is a pair-wise labeling decision.
type Label string

const (
	LabelMatch   Label = "match"
	LabelNoMatch Label = "no_match"
	LabelUnsure  Label = "unsure"
)

// ValidLabel reports whether l is in the allowed pair-wise label set.
func ValidLabel(l Label) bool {
	return l == LabelMatch || l == LabelNoMatch || l == LabelUnsure
}

// ItemKind distinguishes pair-wise items from neighborhood items.
type ItemKind string

const (
	KindPair         ItemKind = "pair"
	KindNeighborhood ItemKind = "neighborhood"
)

// Mode is the labeling mode an annotator session runs in.
type Mode string

const (
	// ModeAll visits every item in deterministic order, allowing re-labeling.
	ModeAll Mode = "all"
	// ModeUnlabeled serves only items below the redundancy threshold that
	// this annotator has not yet labeled. Default.
	ModeUnlabeled Mode = "unlabeled"
	// ModeCrossValidate serves items already labeled by a different
	// annotator but not by this one, to measure agreement.
	ModeCrossValidate Mode = "cross-validate"
)

// ValidMode reports whether m is a supported labeling mode.
func ValidMode(m Mode) bool {
	return m == ModeAll || m == ModeUnlabeled || m == ModeCrossValidate
}

// Annotation is one recorded judgment. Append-only: a re-label by the same
// annotator adds a new record; "latest per annotator per item" wins for
// assignment and consensus, earlier records are kept for audit.
//
// For KindPair, Edge and Label are set. For KindNeighborhood, Neighborhood,
// Added and Removed are set. Implied pair labels flattened out of a
// neighborhood diff are KindPair records that also carry the Neighborhood id.
type Annotation struct {
	UUID         string    `json:"uuid"`
	Kind         ItemKind  `json:"kind"`
	Edge         EdgeKey   `json:"edge,omitempty"`
	Neighborhood string    `json:"neighborhood,omitempty"`
	Annotator    string    `json:"annotator"`
	Label        Label     `json:"label,omitempty"`
	Added        []EdgeKey `json:"added,omitempty"`
	Removed      []EdgeKey `json:"removed,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// ConsensusStatus transitions monotonically pending -> resolved.
type ConsensusStatus string

const (
	StatusPending  ConsensusStatus = "pending"
	StatusResolved ConsensusStatus = "resolved"
)

// ConsensusRecord is the derived resolution state of one item.
type ConsensusRecord struct {
	Status     ConsensusStatus `json:"status"`
	Label      Label           `json:"label,omitempty"`
	Annotators int             `json:"annotators"`
	// Edges is the resolved current-edge set for neighborhood items.
	Edges []EdgeKey `json:"edges,omitempty"`
}

// KappaBucket is the presentation bucket for an aggregated kappa score.
type KappaBucket string

const (
	BucketExcellent KappaBucket = "excellent" // >= 0.8
	BucketHigh      KappaBucket = "high"      // >= 0.6
	BucketMedium    KappaBucket = "medium"    // >= 0.4
	BucketLow       KappaBucket = "low"       // < 0.4
	BucketUndefined KappaBucket = "undefined" // no overlapping items
)

// BucketFor maps an aggregated kappa to its presentation bucket. A nil
// kappa means no overlap with any other annotator existed.
func BucketFor(kappa *float64) KappaBucket {
	switch {
	case kappa == nil:
		return BucketUndefined
	case *kappa >= 0.8:
		return BucketExcellent
	case *kappa >= 0.6:
		return BucketHigh
	case *kappa >= 0.4:
		return BucketMedium
	default:
		return BucketLow
	}
}

// AnnotatorStats is one scoreboard row.
type AnnotatorStats struct {
	Annotator    string      `json:"annotator"`
	LabeledCount int         `json:"labeled_count"`
	Kappa        *float64    `json:"kappa"` // nil rendered as a dash
	Bucket       KappaBucket `json:"kappa_bucket"`
}
