package domain

// DocumentType is the closed set of certificates the barangay issues.
type DocumentType string

const (
	DocClearance      DocumentType = "clearance"
	DocResidency      DocumentType = "residency"
	DocIndigency      DocumentType = "indigency"
	DocBusinessPermit DocumentType = "business-permit"
)

// requiredFields lists the template fields each document type must carry at
// submission. Extra fields are allowed and passed through to the renderer
// uninterpreted.
var requiredFields = map[DocumentType][]string{
	DocClearance:      {"purpose"},
	DocResidency:      {"purpose", "years_of_residency"},
	DocIndigency:      {"purpose"},
	DocBusinessPermit: {"business_name", "business_address"},
}

func (d DocumentType) Valid() bool {
	_, ok := requiredFields[d]
	return ok
}

func (d DocumentType) RequiredFields() []string {
	return requiredFields[d]
}

// MissingFields returns the required fields absent or blank in the given
// field map, in declaration order.
func (d DocumentType) MissingFields(fields map[string]string) []string {
	var missing []string
	for _, name := range requiredFields[d] {
		if fields[name] == "" {
			missing = append(missing, name)
		}
	}
	return missing
}
