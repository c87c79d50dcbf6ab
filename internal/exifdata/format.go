package exifdata

import (
	"fmt"
	"math"
)

// compassPoints is the 16-point compass rose, clockwise from north.
var compassPoints = [16]string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

// round rounds half up, so 2.5 becomes 3 and -2.5 becomes -2.
func round(f float64) float64 {
	return math.Floor(f + 0.5)
}

// FormatShutterSpeed renders an exposure time in seconds: "2s" or "1/250".
func FormatShutterSpeed(seconds float64) string {
	if seconds >= 1 {
		return formatNumber(seconds) + "s"
	}
	return fmt.Sprintf("1/%d", int64(round(1/seconds)))
}

// CompassLabel returns the nearest of the 16 compass points, wrapping at 360.
func CompassLabel(degrees float64) string {
	i := int(round(degrees/22.5)) % 16
	if i < 0 {
		i += 16
	}
	return compassPoints[i]
}

// FormatDirection renders a heading as "23° NNE".
func FormatDirection(degrees float64) string {
	return fmt.Sprintf("%d° %s", int64(round(degrees)), CompassLabel(degrees))
}

// FormatAltitude renders meters rounded to whole numbers: "12m".
func FormatAltitude(meters float64) string {
	return fmt.Sprintf("%dm", int64(round(meters)))
}

// FormatSpeed converts knots to km/h: "19km/h".
func FormatSpeed(knots float64) string {
	return fmt.Sprintf("%dkm/h", int64(round(knots*1.852)))
}
