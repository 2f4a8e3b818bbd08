// Package condition holds the weather condition vocabulary used for display and the
// mapping from condition codes to icon identifiers.
package condition

// Code is a condition tag in the primary provider's vocabulary.
type Code string

const (
	ClearDay     Code = "clear_day"
	ClearNight   Code = "clear_night"
	Rain         Code = "rain"
	Storm        Code = "storm"
	Snow         Code = "snow"
	Hail         Code = "hail"
	Fog          Code = "fog"
	CloudlyDay   Code = "cloudly_day"
	CloudlyNight Code = "cloudly_night"
	Cloud        Code = "cloud"
	NoneDay      Code = "none_day"
	NoneNight    Code = "none_night"
	Default      Code = "default"
)

// DefaultIcon is returned for any code without an explicit entry.
const DefaultIcon = "cloud-outline"

var icons = map[Code]string{
	ClearDay:     "sunny-outline",
	ClearNight:   "moon-outline",
	Rain:         "rainy-outline",
	Storm:        "thunderstorm-outline",
	Snow:         "snow-outline",
	Hail:         "cloudy-outline",
	Fog:          "cloudy-outline",
	CloudlyDay:   "partly-sunny-outline",
	CloudlyNight: "cloudy-night-outline",
	Cloud:        "cloud-outline",
	NoneDay:      "sunny-outline",
	NoneNight:    "moon-outline",
	Default:      DefaultIcon,
}

// Icon returns the icon identifier for code. It never returns an empty string.
func Icon(code string) string {
	if icon, ok := icons[Code(code)]; ok {
		return icon
	}
	return DefaultIcon
}

// Known reports whether code belongs to the vocabulary.
func Known(code string) bool {
	_, ok := icons[Code(code)]
	return ok
}
