package query

import (
	"fmt"
	"slices"
	"time"

	"github.com/poiesic/hybridrank/core"
)

// TimeRange bounds LastUpdated inclusively. A nil bound is open.
type TimeRange struct {
	Start *time.Time
	End   *time.Time
}

// Contains reports whether t falls inside the range. An absent timestamp
// never falls inside a range.
func (r *TimeRange) Contains(t *time.Time) bool {
	if t == nil {
		return false
	}
	if r.Start != nil && t.Before(*r.Start) {
		return false
	}
	if r.End != nil && t.After(*r.End) {
		return false
	}
	return true
}

// FilterSet restricts which documents may be scored. Every populated
// clause must hold for a document to match.
type FilterSet struct {
	// IncludeHidden disables the default hidden == false clause.
	IncludeHidden bool

	// TimeRange restricts LastUpdated. Documents without a date are excluded
	// whenever a range is set.
	TimeRange *TimeRange

	// DocumentSets matches documents in at least one of the listed sets.
	DocumentSets []string

	// SourceTypes matches documents whose SourceType is one of the listed values.
	SourceTypes []string

	// Metadata pairs are independent requirements; all must be present.
	Metadata []core.MetadataPair
}

// Validate rejects inverted time ranges and empty metadata keys.
func (f *FilterSet) Validate() error {
	if f.TimeRange != nil && f.TimeRange.Start != nil && f.TimeRange.End != nil &&
		f.TimeRange.Start.After(*f.TimeRange.End) {
		return fmt.Errorf("%w: time range start %s is after end %s",
			ErrInvalidFilters, f.TimeRange.Start.Format(time.RFC3339), f.TimeRange.End.Format(time.RFC3339))
	}
	for _, p := range f.Metadata {
		if p.Key == "" {
			return fmt.Errorf("%w: %w", ErrInvalidFilters, core.ErrEmptyMetadataKey)
		}
	}
	return nil
}

// Matches reports whether doc satisfies every clause of the filter set.
func (f *FilterSet) Matches(doc *core.Document) bool {
	if doc == nil {
		return false
	}
	if !f.IncludeHidden && doc.Hidden {
		return false
	}
	if f.TimeRange != nil && !f.TimeRange.Contains(doc.LastUpdated) {
		return false
	}
	if len(f.DocumentSets) > 0 && !slices.ContainsFunc(f.DocumentSets, doc.InDocumentSet) {
		return false
	}
	if len(f.SourceTypes) > 0 && !slices.Contains(f.SourceTypes, doc.SourceType) {
		return false
	}
	for _, p := range f.Metadata {
		if !doc.Metadata.Has(p.Key, p.Value) {
			return false
		}
	}
	return true
}

// IsEmpty reports whether the filter set only carries the default hidden clause.
func (f *FilterSet) IsEmpty() bool {
	return f.TimeRange == nil && len(f.DocumentSets) == 0 &&
		len(f.SourceTypes) == 0 && len(f.Metadata) == 0
}
