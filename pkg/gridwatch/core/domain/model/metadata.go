package model

import "strings"

// FuelTypeUnknown is the sentinel fuel type attached to records whose DUID
// has no match in the metadata reference table. Rows are never dropped for
// lack of metadata; they are tagged and kept.
const FuelTypeUnknown = "unknown"

// Canonical fuel type names after normalization. Reference tables from
// different sources disagree on casing ("Wind" vs "wind") and stray
// whitespace, so every fuel type string crossing the integration boundary
// goes through NormalizeFuelType exactly once.
const (
	FuelWind         = "wind"
	FuelSolar        = "solar"
	FuelRooftopSolar = "rooftop_solar"
	FuelHydro        = "hydro"
	FuelBattery      = "battery"
	FuelCoal         = "coal"
	FuelGas          = "gas"
)

// UnitMetadata maps a DUID to its region, fuel type and nameplate capacity.
// Loaded once per analysis session from the reference table and treated as
// immutable for the duration of a request.
type UnitMetadata struct {
	DUID       string
	RegionID   string
	FuelType   string
	CapacityMW float64
}

// MetadataTable is a DUID-keyed snapshot of the reference table.
type MetadataTable map[string]UnitMetadata

// NormalizeFuelType applies the single deterministic normalization rule of
// the integration layer: trim surrounding whitespace, lower-case, and
// replace interior spaces with underscores. "Rooftop Solar", " rooftop
// solar " and "ROOFTOP_SOLAR" all normalize to "rooftop_solar".
func NormalizeFuelType(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return FuelTypeUnknown
	}
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, " ", "_")
}

// NormalizeRegionID lower-cases and trims a region identifier. Source files
// disagree on "REGIONID" vs "regionid" casing at both the column and the
// value level.
func NormalizeRegionID(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeDUID trims and upper-cases a unit identifier. DUIDs are
// conventionally upper-case in every published table; trimming guards
// against hand-edited reference sheets.
func NormalizeDUID(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// IsVRE reports whether a normalized fuel type counts as variable renewable
// energy for penetration metrics.
func IsVRE(fuelType string) bool {
	switch fuelType {
	case FuelWind, FuelSolar, FuelRooftopSolar:
		return true
	}
	return false
}
