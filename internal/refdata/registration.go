package refdata

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// authorizedStatuses are the registration table status codes that count as
// an active distribution authorization.
var authorizedStatuses = map[string]bool{
	"authorized": true,
	"registered": true,
	"notified":   true,
	"active":     true,
}

// RegistrationTable maps a fund ISIN to the set of canonical country names in
// which distribution is authorized.
type RegistrationTable struct {
	byISIN map[string]map[string]bool
}

// NewRegistrationTable builds a table from an ISIN-to-countries map. All
// listed countries count as authorized; country names are canonicalized.
func NewRegistrationTable(entries map[string][]string) *RegistrationTable {
	t := &RegistrationTable{byISIN: make(map[string]map[string]bool, len(entries))}
	for isin, countries := range entries {
		for _, c := range countries {
			t.add(isin, c, "authorized")
		}
	}
	return t
}

// Funds returns the number of ISINs in the table.
func (t *RegistrationTable) Funds() int {
	return len(t.byISIN)
}

// AuthorizedCountries returns the canonical country set for an ISIN, or
// (nil, false) when the fund is not in the table.
func (t *RegistrationTable) AuthorizedCountries(isin string) (map[string]bool, bool) {
	if t == nil {
		return nil, false
	}
	set, ok := t.byISIN[strings.ToUpper(strings.TrimSpace(isin))]
	return set, ok
}

// IsAuthorized reports whether a document-mentioned country is covered for
// the ISIN, either exactly or as a normalized substring of a table entry
// ("hong kong" covers "hong kong sar").
func (t *RegistrationTable) IsAuthorized(isin, country string) bool {
	set, ok := t.AuthorizedCountries(isin)
	if !ok {
		return false
	}
	canon := CanonicalCountry(country)
	if set[canon] {
		return true
	}
	for entry := range set {
		if strings.Contains(entry, canon) || strings.Contains(canon, entry) {
			return true
		}
	}
	return false
}

func (t *RegistrationTable) add(isin, country, status string) {
	if !authorizedStatuses[strings.ToLower(strings.TrimSpace(status))] {
		return
	}
	isin = strings.ToUpper(strings.TrimSpace(isin))
	if isin == "" {
		return
	}
	if t.byISIN[isin] == nil {
		t.byISIN[isin] = make(map[string]bool)
	}
	t.byISIN[isin][CanonicalCountry(country)] = true
}

// LoadRegistrationXLSX reads a registration table exported as XLSX with
// columns: fund name, ISIN, share class, country, status. The first row is a
// header.
func LoadRegistrationXLSX(path string) (*RegistrationTable, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "refdata: open registration xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("refdata: registration xlsx has no sheets")
	}

	t := &RegistrationTable{byISIN: make(map[string]map[string]bool)}
	for i, row := range f.Sheets[0].Rows {
		if i == 0 {
			continue
		}
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		if len(cells) < 5 {
			continue
		}
		t.add(cells[1], cells[3], cells[4])
	}
	return t, nil
}

// registrationRecord is the JSON wire shape of one registration entry.
type registrationRecord struct {
	FundName   string `json:"fund_name"`
	ISIN       string `json:"isin"`
	ShareClass string `json:"share_class"`
	Country    string `json:"country"`
	Status     string `json:"status"`
}

// LoadRegistrationJSON reads a registration table from a JSON array. Used
// when the table arrives from the upstream extraction service instead of a
// spreadsheet export.
func LoadRegistrationJSON(path string) (*RegistrationTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "refdata: read registration json")
	}
	var records []registrationRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, eris.Wrap(err, "refdata: parse registration json")
	}

	t := &RegistrationTable{byISIN: make(map[string]map[string]bool)}
	for _, r := range records {
		t.add(r.ISIN, r.Country, r.Status)
	}
	return t, nil
}

// LoadRegistration picks the loader from the file extension.
func LoadRegistration(path string) (*RegistrationTable, error) {
	if strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		return LoadRegistrationXLSX(path)
	}
	return LoadRegistrationJSON(path)
}
