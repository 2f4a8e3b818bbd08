package condition

// WeatherAPI reports conditions as numeric codes plus an is_day flag. The two
// vocabularies do not overlap, so hourly entries are translated here before any
// icon lookup. See https://www.weatherapi.com/docs/weather_conditions.json.

type dayNight struct {
	day, night Code
}

func same(c Code) dayNight { return dayNight{c, c} }

var weatherAPICodes = map[int]dayNight{
	1000: {ClearDay, ClearNight},
	1003: {CloudlyDay, CloudlyNight},
	1006: same(Cloud),
	1009: same(Cloud),

	1030: same(Fog),
	1135: same(Fog),
	1147: same(Fog),

	1063: same(Rain),
	1072: same(Rain),
	1150: same(Rain),
	1153: same(Rain),
	1168: same(Rain),
	1171: same(Rain),
	1180: same(Rain),
	1183: same(Rain),
	1186: same(Rain),
	1189: same(Rain),
	1192: same(Rain),
	1195: same(Rain),
	1198: same(Rain),
	1201: same(Rain),
	1240: same(Rain),
	1243: same(Rain),
	1246: same(Rain),

	1066: same(Snow),
	1069: same(Snow),
	1114: same(Snow),
	1117: same(Snow),
	1204: same(Snow),
	1207: same(Snow),
	1210: same(Snow),
	1213: same(Snow),
	1216: same(Snow),
	1219: same(Snow),
	1222: same(Snow),
	1225: same(Snow),
	1249: same(Snow),
	1252: same(Snow),
	1255: same(Snow),
	1258: same(Snow),

	1237: same(Hail),
	1261: same(Hail),
	1264: same(Hail),

	1087: same(Storm),
	1273: same(Storm),
	1276: same(Storm),
	1279: same(Storm),
	1282: same(Storm),
}

// FromWeatherAPI translates a WeatherAPI condition code into a Code.
// Unknown codes map to Default.
func FromWeatherAPI(code int, isDay bool) Code {
	dn, ok := weatherAPICodes[code]
	if !ok {
		return Default
	}
	if isDay {
		return dn.day
	}
	return dn.night
}
