package model

import (
	"time"

	"github.com/secmon-lab/casesync/pkg/domain/types"
)

// NewCaseFromRecord creates the stored form of a case seen for the first time.
func NewCaseFromRecord(rec *CaseRecord, now time.Time) *Case {
	c := rec.Values.Copy()
	c.Status = c.Status.Normalize()
	c.LastSyncedAt = now
	c.UpdatedAt = now
	return c
}

// MergeCase merges an incoming record into an existing case without mutating
// either. Supplied fields overwrite. Defaulted fields only fill values the
// existing case lacks. changed reports whether any content field differs from
// existing; sync timestamps are refreshed either way.
func MergeCase(existing *Case, incoming *CaseRecord, now time.Time) (merged *Case, changed bool) {
	merged = existing.Copy()
	for _, f := range types.AllCaseFields() {
		if f == types.CaseFieldBusinessKey {
			continue
		}
		if incoming.Supplied.Has(f) || (isZeroField(merged, f) && !isZeroField(&incoming.Values, f)) {
			copyField(merged, &incoming.Values, f)
		}
	}

	changed = !SameContent(existing, merged)
	if incoming.Values.Source != "" {
		merged.Source = incoming.Values.Source
	}
	merged.LastSyncedAt = now
	if changed {
		merged.UpdatedAt = now
	}
	return merged, changed
}

// SameContent compares the canonical attributes of two cases, ignoring
// bookkeeping timestamps and the source marker.
func SameContent(a, b *Case) bool {
	for _, f := range types.AllCaseFields() {
		if !fieldEqual(a, b, f) {
			return false
		}
	}
	return true
}

func copyField(dst, src *Case, f types.CaseField) {
	switch f {
	case types.CaseFieldBusinessKey:
		dst.BusinessKey = src.BusinessKey
	case types.CaseFieldCategory:
		dst.Category = src.Category
	case types.CaseFieldRefinedCategory:
		dst.RefinedCategory = src.RefinedCategory
	case types.CaseFieldLocation:
		dst.Location = src.Location
	case types.CaseFieldSubLocation:
		dst.SubLocation = src.SubLocation
	case types.CaseFieldDescription:
		dst.Description = src.Description
	case types.CaseFieldCreatedAt:
		dst.CreatedAt = src.CreatedAt
	case types.CaseFieldStatus:
		dst.Status = src.Status
	case types.CaseFieldAssignedCluster:
		dst.AssignedCluster = src.AssignedCluster
	case types.CaseFieldAssignedOffice:
		dst.AssignedOffice = src.AssignedOffice
	case types.CaseFieldExternalStatusLabel:
		dst.ExternalStatusLabel = src.ExternalStatusLabel
	case types.CaseFieldResponseMessage:
		if src.ResponseMessage == nil {
			dst.ResponseMessage = nil
		} else {
			dst.ResponseMessage = StringPtr(*src.ResponseMessage)
		}
	case types.CaseFieldReporterName:
		dst.ReporterName = src.ReporterName
	case types.CaseFieldReporterContact:
		dst.ReporterContact = src.ReporterContact
	case types.CaseFieldMediaURLs:
		dst.MediaURLs = src.MediaURLs
	case types.CaseFieldExternalLink:
		dst.ExternalLink = src.ExternalLink
	}
}

func isZeroField(c *Case, f types.CaseField) bool {
	switch f {
	case types.CaseFieldBusinessKey:
		return c.BusinessKey == ""
	case types.CaseFieldCategory:
		return c.Category == ""
	case types.CaseFieldRefinedCategory:
		return c.RefinedCategory == ""
	case types.CaseFieldLocation:
		return c.Location == ""
	case types.CaseFieldSubLocation:
		return c.SubLocation == ""
	case types.CaseFieldDescription:
		return c.Description == ""
	case types.CaseFieldCreatedAt:
		return c.CreatedAt.IsZero()
	case types.CaseFieldStatus:
		return c.Status == ""
	case types.CaseFieldAssignedCluster:
		return c.AssignedCluster == ""
	case types.CaseFieldAssignedOffice:
		return c.AssignedOffice == ""
	case types.CaseFieldExternalStatusLabel:
		return c.ExternalStatusLabel == ""
	case types.CaseFieldResponseMessage:
		return c.ResponseMessage == nil
	case types.CaseFieldReporterName:
		return c.ReporterName == ""
	case types.CaseFieldReporterContact:
		return c.ReporterContact == ""
	case types.CaseFieldMediaURLs:
		return c.MediaURLs == ""
	case types.CaseFieldExternalLink:
		return c.ExternalLink == ""
	}
	return true
}

func fieldEqual(a, b *Case, f types.CaseField) bool {
	switch f {
	case types.CaseFieldBusinessKey:
		return a.BusinessKey == b.BusinessKey
	case types.CaseFieldCategory:
		return a.Category == b.Category
	case types.CaseFieldRefinedCategory:
		return a.RefinedCategory == b.RefinedCategory
	case types.CaseFieldLocation:
		return a.Location == b.Location
	case types.CaseFieldSubLocation:
		return a.SubLocation == b.SubLocation
	case types.CaseFieldDescription:
		return a.Description == b.Description
	case types.CaseFieldCreatedAt:
		return a.CreatedAt.Equal(b.CreatedAt)
	case types.CaseFieldStatus:
		return a.Status == b.Status
	case types.CaseFieldAssignedCluster:
		return a.AssignedCluster == b.AssignedCluster
	case types.CaseFieldAssignedOffice:
		return a.AssignedOffice == b.AssignedOffice
	case types.CaseFieldExternalStatusLabel:
		return a.ExternalStatusLabel == b.ExternalStatusLabel
	case types.CaseFieldResponseMessage:
		if a.ResponseMessage == nil || b.ResponseMessage == nil {
			return a.ResponseMessage == nil && b.ResponseMessage == nil
		}
		return *a.ResponseMessage == *b.ResponseMessage
	case types.CaseFieldReporterName:
		return a.ReporterName == b.ReporterName
	case types.CaseFieldReporterContact:
		return a.ReporterContact == b.ReporterContact
	case types.CaseFieldMediaURLs:
		return a.MediaURLs == b.MediaURLs
	case types.CaseFieldExternalLink:
		return a.ExternalLink == b.ExternalLink
	}
	return true
}
