package domain

import (
	"regexp"
	"strings"
)

type Field string

const (
	FieldEmail       Field = "email"
	FieldFirstName   Field = "firstName"
	FieldLastName    Field = "lastName"
	FieldCountry     Field = "country"
	FieldPostcode    Field = "postcode"
	FieldHouseNumber Field = "houseNumber"
	FieldAddition    Field = "addition"
	FieldStreet      Field = "street"
	FieldCity        Field = "city"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Postal-code patterns per supported country. Codes are uppercased and
// stripped of spaces before matching, except GB where the inward/outward
// space is part of the format.
var postalPatterns = map[string]*regexp.Regexp{
	"NL": regexp.MustCompile(`^\d{4}[A-Z]{2}$`),
	"BE": regexp.MustCompile(`^\d{4}$`),
	"DE": regexp.MustCompile(`^\d{5}$`),
	"FR": regexp.MustCompile(`^\d{5}$`),
	"GB": regexp.MustCompile(`^[A-Z]{1,2}\d[A-Z\d]?\s?\d[A-Z]{2}$`),
}

// LookupState tracks the NL postcode lookup attached to the form. It is
// wiped whenever the country changes.
type LookupState struct {
	Done        bool
	FullAddress string
	City        string
	Err         string
}

// Form is the transient checkout details form. Validation is per-field and
// progressive: errors exist as soon as a field is invalid, but are only
// shown for touched fields, and clear the moment a touched field becomes
// valid.
type Form struct {
	Email       string
	FirstName   string
	LastName    string
	Country     string
	Postcode    string
	HouseNumber string
	Addition    string
	Street      string
	City        string

	Lookup LookupState

	touched map[Field]bool
	errors  map[Field]string
}

func NewForm(country string) *Form {
	return &Form{
		Country: country,
		touched: make(map[Field]bool),
		errors:  make(map[Field]string),
	}
}

// Set assigns a field value and revalidates that field. Country must go
// through SetCountry instead.
func (f *Form) Set(field Field, value string) {
	switch field {
	case FieldEmail:
		f.Email = value
	case FieldFirstName:
		f.FirstName = value
	case FieldLastName:
		f.LastName = value
	case FieldPostcode:
		f.Postcode = value
	case FieldHouseNumber:
		f.HouseNumber = value
	case FieldAddition:
		f.Addition = value
	case FieldStreet:
		f.Street = value
	case FieldCity:
		f.City = value
	case FieldCountry:
		f.SetCountry(value)
		return
	}
	f.revalidate(field)
}

// Touch marks a field as interacted with, typically on blur.
func (f *Form) Touch(field Field) {
	f.touched[field] = true
}

// SetCountry switches country and wipes every field that was entered under
// the previous country's rules, lookup state included. Country changes are
// non-additive on purpose: an address validated under another country's
// postal format must not survive the switch.
func (f *Form) SetCountry(country string) {
	if country == f.Country {
		return
	}
	f.Country = country

	f.Postcode = ""
	f.HouseNumber = ""
	f.Addition = ""
	f.Street = ""
	f.City = ""
	f.Lookup = LookupState{}

	for _, fd := range []Field{FieldPostcode, FieldHouseNumber, FieldAddition, FieldStreet, FieldCity} {
		delete(f.touched, fd)
		delete(f.errors, fd)
	}
}

// VisibleError reports the field's error, but only once the field has been
// touched. Pristine fields never show errors.
func (f *Form) VisibleError(field Field) string {
	if !f.touched[field] {
		return ""
	}
	return f.errors[field]
}

// Validate checks every field, marks the form fully touched, and returns
// all errors keyed by field. An empty map means the form is submittable.
func (f *Form) Validate() map[Field]string {
	fields := []Field{
		FieldEmail, FieldFirstName, FieldLastName, FieldCountry,
		FieldPostcode, FieldHouseNumber, FieldStreet, FieldCity,
	}

	out := make(map[Field]string)
	for _, fd := range fields {
		f.touched[fd] = true
		f.revalidate(fd)
		if msg := f.errors[fd]; msg != "" {
			out[fd] = msg
		}
	}
	return out
}

func (f *Form) revalidate(field Field) {
	if msg := f.validateField(field); msg != "" {
		f.errors[field] = msg
	} else {
		delete(f.errors, field)
	}
}

func (f *Form) validateField(field Field) string {
	switch field {
	case FieldEmail:
		if !emailPattern.MatchString(strings.TrimSpace(f.Email)) {
			return "enter a valid email address"
		}
	case FieldFirstName:
		if strings.TrimSpace(f.FirstName) == "" {
			return "first name is required"
		}
	case FieldLastName:
		if strings.TrimSpace(f.LastName) == "" {
			return "last name is required"
		}
	case FieldCountry:
		if _, ok := postalPatterns[f.Country]; !ok {
			return "country is not supported"
		}
	case FieldPostcode:
		if !ValidPostcode(f.Country, f.Postcode) {
			return "enter a valid postal code"
		}
	case FieldHouseNumber:
		if strings.TrimSpace(f.HouseNumber) == "" {
			return "house number is required"
		}
	case FieldStreet:
		if strings.TrimSpace(f.Street) == "" {
			return "street is required"
		}
	case FieldCity:
		if strings.TrimSpace(f.City) == "" {
			return "city is required"
		}
	}
	return ""
}

// ValidPostcode checks a postal code against the country's format.
func ValidPostcode(country, code string) bool {
	pattern, ok := postalPatterns[country]
	if !ok {
		return false
	}

	code = strings.ToUpper(strings.TrimSpace(code))
	if country != "GB" {
		code = strings.ReplaceAll(code, " ", "")
	}
	return pattern.MatchString(code)
}
