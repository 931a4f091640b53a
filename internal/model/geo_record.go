package model

// GeoRecord maps a pincode (and optionally a city) to up to two nearby clinics.
// Rows without any clinic are never stored.
type GeoRecord struct {
	ID                uint    `gorm:"primaryKey" json:"-"`
	Pincode           string  `gorm:"size:16;not null;index;index:idx_geo_pincode_city,priority:1" json:"pincode"`
	City              string  `gorm:"size:128;index;index:idx_geo_pincode_city,priority:2" json:"city"`
	HomeScanAvailable string  `gorm:"size:32" json:"home_scan_available"`
	Clinic1           *string `gorm:"size:256" json:"clinic_1,omitempty"`
	Clinic2           *string `gorm:"size:256" json:"clinic_2,omitempty"`
}

// Clinics returns the non-empty clinic names in order.
func (g GeoRecord) Clinics() []string {
	var out []string
	for _, c := range []*string{g.Clinic1, g.Clinic2} {
		if c != nil && *c != "" {
			out = append(out, *c)
		}
	}
	return out
}

// Useful reports whether the record carries at least one clinic.
func (g GeoRecord) Useful() bool {
	return len(g.Clinics()) > 0
}
