package sheet

import (
	"fmt"
	"io"
	"strings"

	"aligncall/internal/model"
)

var (
	nameAliases      = []string{"name", "full_name", "fullname", "user_name", "username"}
	firstNameAliases = []string{"first_name", "firstname", "fname", "first"}
	lastNameAliases  = []string{"last_name", "lastname", "lname", "last"}
	emailAliases     = []string{"email", "email_address", "e_mail"}
	phoneAliases     = []string{"phone", "phone_number", "mobile", "mobile_number", "contact"}
)

// LeadSheet is the parsed lead list. Skipped counts rows dropped for missing data.
type LeadSheet struct {
	Leads   []model.Lead
	Skipped int
}

// ReadLeads parses a lead workbook. Column names are matched case-insensitively
// against the known aliases; name may be split into first and last name columns.
func ReadLeads(r io.Reader) (*LeadSheet, error) {
	header, rows, err := readFirstSheet(r)
	if err != nil {
		return nil, err
	}
	idx := columnIndex(header)

	nameCol := firstColumn(idx, nameAliases...)
	firstCol := firstColumn(idx, firstNameAliases...)
	lastCol := firstColumn(idx, lastNameAliases...)
	emailCol := firstColumn(idx, emailAliases...)
	phoneCol := firstColumn(idx, phoneAliases...)

	var missing []string
	if nameCol < 0 && (firstCol < 0 || lastCol < 0) {
		missing = append(missing, "name (or first_name + last_name)")
	}
	if emailCol < 0 {
		missing = append(missing, "email")
	}
	if phoneCol < 0 {
		missing = append(missing, "phone")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s. Available columns: %s",
			ErrMissingColumns, strings.Join(missing, ", "), strings.Join(header, ", "))
	}

	out := &LeadSheet{}
	for _, row := range rows {
		var name string
		if nameCol >= 0 {
			name = cell(row, nameCol)
		} else {
			name = strings.TrimSpace(cell(row, firstCol) + " " + cell(row, lastCol))
		}
		lead := model.Lead{
			Name:  name,
			Email: cell(row, emailCol),
			Phone: NormalizePhone(cell(row, phoneCol)),
		}
		if lead.Name == "" || lead.Email == "" || lead.Phone == "" {
			out.Skipped++
			continue
		}
		out.Leads = append(out.Leads, lead)
	}
	return out, nil
}

var phoneSeparators = strings.NewReplacer("-", "", " ", "", "(", "", ")", "")

// NormalizePhone renders Indian numbers as +91 E.164. Numbers that do not look
// like a 10-digit local or 12-digit 91-prefixed number are returned cleaned but
// otherwise unchanged.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ""
	}
	if strings.HasPrefix(phone, "+91") {
		return "+91" + phoneSeparators.Replace(phone[3:])
	}
	clean := phoneSeparators.Replace(strings.ReplaceAll(strings.ReplaceAll(phone, "+91", ""), "+", ""))
	switch {
	case !strings.HasPrefix(clean, "91") && len(clean) == 10:
		return "+91" + clean
	case strings.HasPrefix(clean, "91") && len(clean) == 12:
		return "+" + clean
	default:
		return clean
	}
}
