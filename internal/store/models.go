// Package store holds the domain state: documents, clients, templates and
// block groups, mirrored record by record into the persistence adapter.
package store

import "time"

// Block is one unit of document content holding a sanitized HTML fragment.
// Order within a document is the slice index; there is no order field.
type Block struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Document is the user's editable artifact. ClientID may dangle after the
// client is deleted; readers treat an unresolved reference as "no client".
type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	ClientID  *string   `json:"clientId"`
	Blocks    []Block   `json:"blocks"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CloneBlocks deep-copies the block sequence. Templates and duplicates copy
// by value so later edits never reach back into the source.
func CloneBlocks(blocks []Block) []Block {
	out := make([]Block, len(blocks))
	copy(out, blocks)
	return out
}

// BlockTemplate is a reusable named block definition inside a group. It is
// copied, not referenced, when inserted into a document.
type BlockTemplate struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// BlockGroup is a named collection of block templates shown together in the
// authoring palette.
type BlockGroup struct {
	Name   string                   `json:"name"`
	Blocks map[string]BlockTemplate `json:"blocks"`
}

// Template is a saved snapshot of a document's block sequence. Applying it
// replaces the target document's blocks wholesale.
type Template struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Blocks    []Block   `json:"blocks"`
	CreatedAt time.Time `json:"createdAt"`
}

// Client is a contact/company record. Older records carry only the flat
// contact fields; newer ones also hold the risk assessment sub-document.
type Client struct {
	ID             string          `json:"id"`
	CompanyName    string          `json:"companyName"`
	ContactPerson  string          `json:"contactPerson,omitempty"`
	Email          string          `json:"email,omitempty"`
	Phone          string          `json:"phone,omitempty"`
	Address        string          `json:"address,omitempty"`
	City           string          `json:"city,omitempty"`
	Country        string          `json:"country,omitempty"`
	PostalCode     string          `json:"postalCode,omitempty"`
	TaxID          string          `json:"taxId,omitempty"`
	Industry       string          `json:"industry,omitempty"`
	Website        string          `json:"website,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	RiskAssessment *RiskAssessment `json:"risk_assessment,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// DisplayName resolves the company name from whichever shape the record
// carries: the flat field wins, then the assessment's company data.
func (c *Client) DisplayName() string {
	if c.CompanyName != "" {
		return c.CompanyName
	}
	if c.RiskAssessment != nil {
		if name := c.RiskAssessment.GeneralInformation.CompanyData["company_name"]; name != "" {
			return name
		}
	}
	return ""
}

// Clone returns a deep copy of the client. The risk assessment's maps and
// slices are duplicated so the copy shares nothing with the receiver.
func (c Client) Clone() Client {
	c.RiskAssessment = c.RiskAssessment.Clone()
	return c
}

// RiskAssessment is the multi-section client questionnaire. Section keys in
// the serialized form use the roman-numeral identifiers of the paper form.
type RiskAssessment struct {
	GeneralInformation GeneralInformation `json:"I_general_information"`
	BasicData          BasicData          `json:"II_basic_data_and_work_environment"`
}

// GeneralInformation is section I: free-form company and responsible-person
// fields keyed by the form's field names.
type GeneralInformation struct {
	CompanyData           map[string]string `json:"company_data"`
	ResponsiblePersonData map[string]string `json:"responsible_person_data"`
}

// BasicData is section II: headcount and workplace figures plus the
// checkbox-list selections.
type BasicData struct {
	QuantitativeData      map[string]float64  `json:"quantitative_data"`
	JobRoles              []string            `json:"job_roles"`
	EmployeeAgeGrouping   map[string][]string `json:"employee_age_grouping"`
	KeyRolesAndActivities []string            `json:"key_roles_and_activities"`
	Chemicals             []string            `json:"chemicals"`
}

// Clone deep-copies the assessment. Safe on a nil receiver.
func (r *RiskAssessment) Clone() *RiskAssessment {
	if r == nil {
		return nil
	}
	return &RiskAssessment{
		GeneralInformation: GeneralInformation{
			CompanyData:           copyStringMap(r.GeneralInformation.CompanyData),
			ResponsiblePersonData: copyStringMap(r.GeneralInformation.ResponsiblePersonData),
		},
		BasicData: BasicData{
			QuantitativeData:      copyFloatMap(r.BasicData.QuantitativeData),
			JobRoles:              append([]string(nil), r.BasicData.JobRoles...),
			EmployeeAgeGrouping:   copyStringSliceMap(r.BasicData.EmployeeAgeGrouping),
			KeyRolesAndActivities: append([]string(nil), r.BasicData.KeyRolesAndActivities...),
			Chemicals:             append([]string(nil), r.BasicData.Chemicals...),
		},
	}
}

func copyStringMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyFloatMap(in map[string]float64) map[string]float64 {
	if in == nil {
		return nil
	}
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyStringSliceMap(in map[string][]string) map[string][]string {
	if in == nil {
		return nil
	}
	out := make(map[string][]string, len(in))
	for k, v := range in {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// NewRiskAssessment returns an empty assessment with every section present,
// matching the shape the form collector produces.
func NewRiskAssessment() *RiskAssessment {
	return &RiskAssessment{
		GeneralInformation: GeneralInformation{
			CompanyData:           map[string]string{},
			ResponsiblePersonData: map[string]string{},
		},
		BasicData: BasicData{
			QuantitativeData:      map[string]float64{},
			JobRoles:              []string{},
			EmployeeAgeGrouping:   map[string][]string{},
			KeyRolesAndActivities: []string{},
			Chemicals:             []string{},
		},
	}
}
