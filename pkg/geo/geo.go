// Package geo provides the coarse locality primitives used by the feed
// filters and item records: geohash encoding and great-circle distance.
package geo

import "math"

const base32 = "0123456789bcdefghjkmnpqrstuvwxyz"

var bits = [5]int{16, 8, 4, 2, 1}

// DefaultPrecision is 8 characters, roughly a 19m cell.
const DefaultPrecision = 8

// Encode returns the geohash of the given coordinates using interleaved
// binary subdivision of the lat/lng ranges.
func Encode(lat, lng float64, precision int) string {
	latMin, latMax := -90.0, 90.0
	lngMin, lngMax := -180.0, 180.0

	buf := make([]byte, 0, precision)
	isEven := true
	bit := 0
	ch := 0

	for len(buf) < precision {
		if isEven {
			mid := (lngMin + lngMax) / 2
			if lng >= mid {
				ch |= bits[bit]
				lngMin = mid
			} else {
				lngMax = mid
			}
		} else {
			mid := (latMin + latMax) / 2
			if lat >= mid {
				ch |= bits[bit]
				latMin = mid
			} else {
				latMax = mid
			}
		}

		isEven = !isEven
		if bit < 4 {
			bit++
		} else {
			buf = append(buf, base32[ch])
			bit = 0
			ch = 0
		}
	}

	return string(buf)
}

const earthRadiusKm = 6371.0

// DistanceKm returns the haversine great-circle distance in kilometers,
// assuming a spherical Earth.
func DistanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLng := radians(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
