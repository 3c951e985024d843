package models

// Establishment kinds reported on the registry certificate.
const (
	KindMatrix = "MATRIX"
	KindBranch = "BRANCH"
)

// RegistryRecord is the structured form of one registry certificate page.
// Every section is always present; a field the page did not carry (or
// withheld behind a masking sentinel) is an empty string, never a missing
// key. Records are built field-by-field by the extractor in a single pass
// and are not mutated afterwards.
type RegistryRecord struct {
	Identification Identification `json:"identification"`
	Organization   Organization   `json:"organization"`
	Activities     Activities     `json:"activities"`
	Address        Address        `json:"address"`
	Contact        Contact        `json:"contact"`
	Status         Status         `json:"status"`
	Certificate    Certificate    `json:"certificate"`
	Metadata       Metadata       `json:"metadata"`

	// Error carries the failure message on a terminal failure record
	// (retries exhausted). Empty on any successful consultation.
	Error string `json:"error,omitempty"`
}

// Identification holds the registry number block.
type Identification struct {
	// Number is the formatted registry number as printed on the page.
	Number string `json:"number"`

	// Kind is "MATRIX", "BRANCH", or empty when not present on the page.
	Kind string `json:"kind"`

	// OpenedOn is the opening date (dd/mm/yyyy as printed).
	OpenedOn string `json:"opened_on"`
}

// Organization holds company-level fields.
type Organization struct {
	LegalName   string          `json:"legal_name"`
	TradeName   string          `json:"trade_name"`
	Size        string          `json:"size"`
	LegalNature CodeDescription `json:"legal_nature"`
}

// Activities holds the primary economic activity and the ordered list of
// secondary activities exactly as they appear on the page.
type Activities struct {
	Primary   CodeDescription   `json:"primary"`
	Secondary []CodeDescription `json:"secondary"`
}

// CodeDescription is a "<code> - <description>" pair split on the first
// separator only.
type CodeDescription struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Address holds the establishment address block.
type Address struct {
	Street     string `json:"street"`
	Number     string `json:"number"`
	Complement string `json:"complement"`
	PostalCode string `json:"postal_code"`
	District   string `json:"district"`
	City       string `json:"city"`
	State      string `json:"state"`
}

// Contact holds contact fields. Masked values (asterisk runs) are left empty.
type Contact struct {
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Status holds the registration status block.
type Status struct {
	Current           string `json:"current"`
	StatusDate        string `json:"status_date"`
	Reason            string `json:"reason"`
	SpecialStatus     string `json:"special_status"`
	SpecialStatusDate string `json:"special_status_date"`
}

// Certificate holds the emission timestamp printed at the bottom of the page.
type Certificate struct {
	IssuedOnDate string `json:"issued_on_date"`
	IssuedOnTime string `json:"issued_on_time"`
}

// Metadata describes the consultation that produced the record. It is filled
// by the coordinator, never by the extractor, so extraction stays
// deterministic.
type Metadata struct {
	// Timestamp is the consultation time in RFC 3339.
	Timestamp string `json:"timestamp"`

	// Success is true only when the full pipeline completed and the result
	// page carried no error banner.
	Success bool `json:"success"`

	// SourceURL is the result page URL, when the record came from a live
	// consultation.
	SourceURL string `json:"source_url,omitempty"`

	// Source records where the record came from: "online" or "cache".
	Source string `json:"source,omitempty"`
}
