package internal

// AbrConstraints bound the rendition ladder MediaConvert generates for a
// lesson. Bitrates are in bits per second.
type AbrConstraints struct {
	MaxRenditions int `json:"maxRenditions"`
	MinBitrate    int `json:"minBitrate"`
	MaxBitrate    int `json:"maxBitrate"`
}

var DefaultAbrConstraints = AbrConstraints{
	MaxRenditions: 4,
	MinBitrate:    600_000,
	MaxBitrate:    8_000_000,
}

// MediaConvert accepts between 1 and 15 automated renditions and ABR
// bitrates between 100 kbps and 100 Mbps.
const (
	maxAbrRenditions = 15
	minAbrBitrate    = 100_000
	maxAbrBitrate    = 100_000_000
)

// IsValid reports whether MediaConvert accepts c. Valid bitrates always fit
// in the int32 fields of the job settings.
func (c AbrConstraints) IsValid() bool {
	switch {
	case c.MaxRenditions < 1 || c.MaxRenditions > maxAbrRenditions:
		return false
	case c.MinBitrate < minAbrBitrate || c.MaxBitrate > maxAbrBitrate:
		return false
	case c.MinBitrate > c.MaxBitrate:
		return false
	default:
		return true
	}
}
