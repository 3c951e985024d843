package extractor

import "github.com/openregistry/consulta/models"

// matchPolicy controls how a label line is recognised.
type matchPolicy int

const (
	// matchContains matches when the label appears anywhere in the line.
	matchContains matchPolicy = iota

	// matchExact matches only when the trimmed line equals the label.
	// Used for short labels that are substrings of longer ones
	// ("NÚMERO" vs "NÚMERO DE INSCRIÇÃO").
	matchExact

	// matchShort matches when the label appears in the line AND the line is
	// shorter than maxLen. Guards generic tokens like "UF" against matching
	// inside unrelated long lines. The thresholds are tuned against the
	// observed page layout; do not change them without a corpus of real
	// captured pages.
	matchShort
)

// labelRule binds one page label to one record field. The scanner applies
// rules in order and writes first-match, first-write-wins: a field already
// populated earlier in the scan is never overwritten.
type labelRule struct {
	label  string
	policy matchPolicy
	maxLen int // only for matchShort

	// field returns the destination for the value line.
	field func(*models.RegistryRecord) *string
}

// Composite headers and boundary markers handled outside the rule table.
const (
	labelLegalNature         = "CÓDIGO E DESCRIÇÃO DA NATUREZA JURÍDICA"
	labelPrimaryActivity     = "CÓDIGO E DESCRIÇÃO DA ATIVIDADE ECONÔMICA PRINCIPAL"
	labelSecondaryActivities = "CÓDIGO E DESCRIÇÃO DAS ATIVIDADES ECONÔMICAS SECUNDÁRIAS"
	emissionPrefix           = "Emitido no dia"

	tokenMatrix = "MATRIZ"
	tokenBranch = "FILIAL"
)

// secondaryBoundaries stops the secondary-activities sub-list at the next
// section header.
var secondaryBoundaries = []string{
	"CÓDIGO E DESCRIÇÃO",
	"NATUREZA JURÍDICA",
	"LOGRADOURO",
}

// labelRules maps every simple label on the certificate page to its record
// field. Order matters for contains-matches; exact rules never collide.
var labelRules = []labelRule{
	{"NÚMERO DE INSCRIÇÃO", matchContains, 0,
		func(r *models.RegistryRecord) *string { return &r.Identification.Number }},
	{"DATA DE ABERTURA", matchContains, 0,
		func(r *models.RegistryRecord) *string { return &r.Identification.OpenedOn }},
	{"NOME EMPRESARIAL", matchContains, 0,
		func(r *models.RegistryRecord) *string { return &r.Organization.LegalName }},
	{"TÍTULO DO ESTABELECIMENTO (NOME DE FANTASIA)", matchContains, 0,
		func(r *models.RegistryRecord) *string { return &r.Organization.TradeName }},
	{"PORTE", matchShort, 20,
		func(r *models.RegistryRecord) *string { return &r.Organization.Size }},
	{"LOGRADOURO", matchContains, 0,
		func(r *models.RegistryRecord) *string { return &r.Address.Street }},
	{"NÚMERO", matchExact, 0,
		func(r *models.RegistryRecord) *string { return &r.Address.Number }},
	{"COMPLEMENTO", matchContains, 0,
		func(r *models.RegistryRecord) *string { return &r.Address.Complement }},
	{"CEP", matchExact, 0,
		func(r *models.RegistryRecord) *string { return &r.Address.PostalCode }},
	{"BAIRRO/DISTRITO", matchContains, 0,
		func(r *models.RegistryRecord) *string { return &r.Address.District }},
	{"MUNICÍPIO", matchContains, 0,
		func(r *models.RegistryRecord) *string { return &r.Address.City }},
	{"UF", matchShort, 10,
		func(r *models.RegistryRecord) *string { return &r.Address.State }},
	{"ENDEREÇO ELETRÔNICO", matchContains, 0,
		func(r *models.RegistryRecord) *string { return &r.Contact.Email }},
	{"TELEFONE", matchContains, 0,
		func(r *models.RegistryRecord) *string { return &r.Contact.Phone }},
	{"SITUAÇÃO CADASTRAL", matchExact, 0,
		func(r *models.RegistryRecord) *string { return &r.Status.Current }},
	{"DATA DA SITUAÇÃO CADASTRAL", matchContains, 0,
		func(r *models.RegistryRecord) *string { return &r.Status.StatusDate }},
	{"MOTIVO DE SITUAÇÃO CADASTRAL", matchContains, 0,
		func(r *models.RegistryRecord) *string { return &r.Status.Reason }},
	{"SITUAÇÃO ESPECIAL", matchExact, 0,
		func(r *models.RegistryRecord) *string { return &r.Status.SpecialStatus }},
	{"DATA DA SITUAÇÃO ESPECIAL", matchContains, 0,
		func(r *models.RegistryRecord) *string { return &r.Status.SpecialStatusDate }},
}
