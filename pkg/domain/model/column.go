package model

import "github.com/secmon-lab/casesync/pkg/domain/types"

// ColumnAlias lists, in priority order, the headers that may carry one canonical field
type ColumnAlias struct {
	Field   types.CaseField
	Headers []string
}

// ColumnAliases is an ordered alias table for one family of sources
type ColumnAliases []ColumnAlias

// SheetColumnAliases covers the spreadsheet and workbook headers seen in the field.
var SheetColumnAliases = ColumnAliases{
	{Field: types.CaseFieldBusinessKey, Headers: []string{"Control No.", "Control No", "ID", "Case ID", "Control Number"}},
	{Field: types.CaseFieldCategory, Headers: []string{"Category", "Type", "Issue Type"}},
	{Field: types.CaseFieldRefinedCategory, Headers: []string{"Refined Category", "Sub Category", "Subcategory"}},
	{Field: types.CaseFieldLocation, Headers: []string{"Sender's Location", "Location", "Address"}},
	{Field: types.CaseFieldSubLocation, Headers: []string{"Barangay", "Brgy"}},
	{Field: types.CaseFieldDescription, Headers: []string{"Description", "Details"}},
	{Field: types.CaseFieldCreatedAt, Headers: []string{"Date Created", "Date", "Created At"}},
	{Field: types.CaseFieldStatus, Headers: []string{"OPEN/RESOLVED/FOR REROUTING", "Status", "Case Status"}},
	{Field: types.CaseFieldAssignedCluster, Headers: []string{"Cluster", "Cluster Group", "Group"}},
	{Field: types.CaseFieldAssignedOffice, Headers: []string{"Office", "Office Code", "Assigned Office"}},
	{Field: types.CaseFieldExternalStatusLabel, Headers: []string{"MyNaga App Status", "App Status", "MyNaga Status"}},
	{Field: types.CaseFieldResponseMessage, Headers: []string{"Updates Sent to User", "Auto Response", "Message"}},
	{Field: types.CaseFieldReporterName, Headers: []string{"Reported by", "Reporter", "Name"}},
	{Field: types.CaseFieldReporterContact, Headers: []string{"Contact Number", "Contact", "Phone"}},
	{Field: types.CaseFieldMediaURLs, Headers: []string{"Attached Media", "Media", "Attachments", "Image/Video"}},
	{Field: types.CaseFieldExternalLink, Headers: []string{"Link to Report", "Link", "URL"}},
}

// Flattened keys produced by the report API adapter
const (
	ReportKeyControlNumber   = "control_number"
	ReportKeyReportType      = "report_type.name"
	ReportKeyRefinedCategory = "refinedCategory"
	ReportKeyLocation        = "location"
	ReportKeyBarangay        = "barangay.name"
	ReportKeyDescription     = "description"
	ReportKeyDateCreated     = "date_created"
	ReportKeyClusterStatus   = "report_cluster.status"
	ReportKeyOffices         = "offices.name"
	ReportKeyUserName        = "user.name"
	ReportKeyUserMobile      = "user.mobile"
	ReportKeyImages          = "images.url"
	ReportKeyLink            = "link"
)

// ReportColumnAliases maps flattened report API keys to canonical fields. The
// cluster status feeds both the canonical status and the verbatim label.
var ReportColumnAliases = ColumnAliases{
	{Field: types.CaseFieldBusinessKey, Headers: []string{ReportKeyControlNumber}},
	{Field: types.CaseFieldCategory, Headers: []string{ReportKeyReportType}},
	{Field: types.CaseFieldRefinedCategory, Headers: []string{ReportKeyRefinedCategory}},
	{Field: types.CaseFieldLocation, Headers: []string{ReportKeyLocation}},
	{Field: types.CaseFieldSubLocation, Headers: []string{ReportKeyBarangay}},
	{Field: types.CaseFieldDescription, Headers: []string{ReportKeyDescription}},
	{Field: types.CaseFieldCreatedAt, Headers: []string{ReportKeyDateCreated}},
	{Field: types.CaseFieldStatus, Headers: []string{ReportKeyClusterStatus}},
	{Field: types.CaseFieldAssignedOffice, Headers: []string{ReportKeyOffices}},
	{Field: types.CaseFieldExternalStatusLabel, Headers: []string{ReportKeyClusterStatus}},
	{Field: types.CaseFieldReporterName, Headers: []string{ReportKeyUserName}},
	{Field: types.CaseFieldReporterContact, Headers: []string{ReportKeyUserMobile}},
	{Field: types.CaseFieldMediaURLs, Headers: []string{ReportKeyImages}},
	{Field: types.CaseFieldExternalLink, Headers: []string{ReportKeyLink}},
}

// ColumnMap is the per-batch resolution of canonical fields to source headers
type ColumnMap map[types.CaseField]string

// Header returns the header resolved for f.
func (m ColumnMap) Header(f types.CaseField) (string, bool) {
	h, ok := m[f]
	return h, ok
}

// ResolveColumn returns the first alias of field present in headers.
// Matching is exact and case-sensitive.
func ResolveColumn(aliases ColumnAliases, headers []string, field types.CaseField) (string, bool) {
	present := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		present[h] = struct{}{}
	}
	return resolveColumn(aliases, present, field)
}

func resolveColumn(aliases ColumnAliases, present map[string]struct{}, field types.CaseField) (string, bool) {
	for _, alias := range aliases {
		if alias.Field != field {
			continue
		}
		for _, h := range alias.Headers {
			if _, ok := present[h]; ok {
				return h, true
			}
		}
	}
	return "", false
}

// ResolveColumns resolves every canonical field once for a batch. Fields with
// no present alias are left out of the map.
func ResolveColumns(aliases ColumnAliases, headers []string) ColumnMap {
	present := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		present[h] = struct{}{}
	}

	m := make(ColumnMap)
	for _, f := range types.AllCaseFields() {
		if h, ok := resolveColumn(aliases, present, f); ok {
			m[f] = h
		}
	}
	return m
}
