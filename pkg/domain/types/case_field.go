package types

// CaseField names one canonical attribute of a case record
type CaseField string

const (
	CaseFieldBusinessKey         CaseField = "business_key"
	CaseFieldCategory            CaseField = "category"
	CaseFieldRefinedCategory     CaseField = "refined_category"
	CaseFieldLocation            CaseField = "location"
	CaseFieldSubLocation         CaseField = "sub_location"
	CaseFieldDescription         CaseField = "description"
	CaseFieldCreatedAt           CaseField = "created_at"
	CaseFieldStatus              CaseField = "status"
	CaseFieldAssignedCluster     CaseField = "assigned_cluster"
	CaseFieldAssignedOffice      CaseField = "assigned_office"
	CaseFieldExternalStatusLabel CaseField = "external_status_label"
	CaseFieldResponseMessage     CaseField = "response_message"
	CaseFieldReporterName        CaseField = "reporter_name"
	CaseFieldReporterContact     CaseField = "reporter_contact"
	CaseFieldMediaURLs           CaseField = "media_urls"
	CaseFieldExternalLink        CaseField = "external_link"
)

// AllCaseFields returns every canonical field in a stable order
func AllCaseFields() []CaseField {
	return []CaseField{
		CaseFieldBusinessKey,
		CaseFieldCategory,
		CaseFieldRefinedCategory,
		CaseFieldLocation,
		CaseFieldSubLocation,
		CaseFieldDescription,
		CaseFieldCreatedAt,
		CaseFieldStatus,
		CaseFieldAssignedCluster,
		CaseFieldAssignedOffice,
		CaseFieldExternalStatusLabel,
		CaseFieldResponseMessage,
		CaseFieldReporterName,
		CaseFieldReporterContact,
		CaseFieldMediaURLs,
		CaseFieldExternalLink,
	}
}

func (f CaseField) String() string {
	return string(f)
}

// CaseFieldSet is a set of canonical fields
type CaseFieldSet map[CaseField]struct{}

// NewCaseFieldSet builds a set holding fields
func NewCaseFieldSet(fields ...CaseField) CaseFieldSet {
	s := make(CaseFieldSet, len(fields))
	for _, f := range fields {
		s[f] = struct{}{}
	}
	return s
}

func (s CaseFieldSet) Add(f CaseField) {
	s[f] = struct{}{}
}

func (s CaseFieldSet) Has(f CaseField) bool {
	_, ok := s[f]
	return ok
}
