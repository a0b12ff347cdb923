package ports

// DeviceTimestampPolicy decides what happens to a device-supplied timestamp.
type DeviceTimestampPolicy string

const (
	DeviceTimestampDrop DeviceTimestampPolicy = "drop"
	DeviceTimestampKeep DeviceTimestampPolicy = "keep"
)

// RoundingMode selects how values are rounded to two decimals.
type RoundingMode string

const (
	RoundHalfAwayFromZero RoundingMode = "half_away_from_zero"
	RoundHalfEven         RoundingMode = "half_even"
)

// DecodePolicy decides how a line with invalid UTF-8 is treated.
type DecodePolicy string

const (
	DecodeDrop  DecodePolicy = "drop"  // whole line becomes empty
	DecodeStrip DecodePolicy = "strip" // invalid bytes removed
)
