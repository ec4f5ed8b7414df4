package domain

// Derived severity labels, carried over from the monitor's display rules so
// callers never re-implement threshold logic.

// Sea level anomaly thresholds in meters of deviation from the rolling mean.
const (
	SeaLevelWarningM  = 0.3
	SeaLevelCriticalM = 0.5
)

// SeaLevelAlert classifies a detided sea-level deviation.
func SeaLevelAlert(deviationM float64) string {
	abs := deviationM
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs >= SeaLevelCriticalM:
		return "CRITICAL"
	case abs >= SeaLevelWarningM:
		return "WARNING"
	default:
		return "NORMAL"
	}
}

// TyphoonCategory derives the PAGASA classification from maximum sustained
// winds in km/h.
func TyphoonCategory(windKPH int) string {
	switch {
	case windKPH >= 220:
		return "Super Typhoon"
	case windKPH >= 185:
		return "Typhoon"
	case windKPH >= 118:
		return "Severe Tropical Storm"
	case windKPH >= 62:
		return "Tropical Storm"
	default:
		return "Tropical Depression"
	}
}

// DepthCategory labels earthquake focal depth. Shallow quakes are the
// dangerous ones.
func DepthCategory(depthKM float64) string {
	switch {
	case depthKM < 70:
		return "Shallow"
	case depthKM < 300:
		return "Intermediate"
	default:
		return "Deep"
	}
}

// UVLevel labels an Open-Meteo UV index value.
func UVLevel(uv float64) string {
	switch {
	case uv < 3:
		return "Low"
	case uv < 6:
		return "Moderate"
	case uv < 8:
		return "High"
	case uv < 11:
		return "Very High"
	default:
		return "Extreme"
	}
}

// AQILevel labels a European AQI value.
func AQILevel(aqi float64) string {
	switch {
	case aqi <= 20:
		return "Good"
	case aqi <= 40:
		return "Fair"
	case aqi <= 60:
		return "Moderate"
	case aqi <= 80:
		return "Poor"
	case aqi <= 100:
		return "Very Poor"
	default:
		return "Extremely Poor"
	}
}

// weatherConditions maps WMO weather codes (as used by Open-Meteo) to short
// display labels. Unknown codes fall back to "Unknown".
var weatherConditions = map[int]string{
	0: "Clear", 1: "Mainly Clear", 2: "Partly Cloudy", 3: "Overcast",
	45: "Fog", 48: "Rime Fog",
	51: "Light Drizzle", 53: "Drizzle", 55: "Dense Drizzle",
	56: "Freezing Drizzle", 57: "Dense Freezing Drizzle",
	61: "Light Rain", 63: "Rain", 65: "Heavy Rain",
	66: "Freezing Rain", 67: "Heavy Freezing Rain",
	71: "Light Snow", 73: "Snow", 75: "Heavy Snow", 77: "Snow Grains",
	80: "Rain Showers", 81: "Moderate Rain Showers", 82: "Violent Rain Showers",
	85: "Snow Showers", 86: "Heavy Snow Showers",
	95: "Thunderstorm", 96: "Thunderstorm With Hail", 99: "Severe Thunderstorm",
}

// WeatherCondition returns the display label for a WMO weather code.
func WeatherCondition(code int) string {
	if c, ok := weatherConditions[code]; ok {
		return c
	}
	return "Unknown"
}
