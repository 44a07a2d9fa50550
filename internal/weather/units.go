package weather

// Conversion constants
const (
	celsiusToFahrenheitScale  = 9.0 / 5.0
	celsiusToFahrenheitOffset = 32.0
	kphPerMph                 = 1.609344
)

// FahrenheitToCelsius converts a temperature from Fahrenheit to Celsius.
func FahrenheitToCelsius(f float64) float64 {
	return (f - celsiusToFahrenheitOffset) / celsiusToFahrenheitScale
}

// MphToKph converts miles per hour to kilometres per hour.
func MphToKph(mph float64) float64 {
	return mph * kphPerMph
}

// InHgToHPa converts a pressure in inches of mercury to hectopascals.
func InHgToHPa(in float64) float64 {
	return in * PressureInHgToHPa
}
