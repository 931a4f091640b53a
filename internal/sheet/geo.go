package sheet

import (
	"fmt"
	"io"

	"aligncall/internal/model"
)

// GeoSheet is a parsed geo directory export. Dropped counts rows without a
// pincode or without any clinic.
type GeoSheet struct {
	Records []model.GeoRecord
	Dropped int
}

// ReadGeo accepts both directory layouts: (pincode, home_scan_available,
// clinic_1, clinic_2[, city]) and (pincode, city, home_scan_available,
// nearby clinic_1_display_name, nearby clinic_2_display_name).
func ReadGeo(r io.Reader) (*GeoSheet, error) {
	header, rows, err := readFirstSheet(r)
	if err != nil {
		return nil, err
	}
	idx := columnIndex(header)

	pincodeCol := firstColumn(idx, "pincode", "pin_code", "pin")
	cityCol := firstColumn(idx, "city")
	scanCol := firstColumn(idx, "home_scan_available", "home_scan")
	clinic1Col := firstColumn(idx, "clinic_1", "nearby clinic_1_display_name")
	clinic2Col := firstColumn(idx, "clinic_2", "nearby clinic_2_display_name")
	if pincodeCol < 0 || (clinic1Col < 0 && clinic2Col < 0) {
		return nil, fmt.Errorf("%w: pincode and clinic_1/clinic_2", ErrMissingColumns)
	}

	out := &GeoSheet{}
	for _, row := range rows {
		rec := model.GeoRecord{
			Pincode:           cell(row, pincodeCol),
			City:              cell(row, cityCol),
			HomeScanAvailable: cell(row, scanCol),
			Clinic1:           optional(cell(row, clinic1Col)),
			Clinic2:           optional(cell(row, clinic2Col)),
		}
		if rec.Pincode == "" || !rec.Useful() {
			out.Dropped++
			continue
		}
		out.Records = append(out.Records, rec)
	}
	return out, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
