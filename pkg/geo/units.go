package geo

// Unit conversion constants. Distances accumulate in meters internally;
// foot/acre conversions happen only at read/report time.
const (
	MetersToFeet      = 3.28084
	FeetToMeters      = 0.3048
	MetersPerSecToMph = 2.23694
	SquareFeetPerAcre = 43560.0
)
