package clientraw

import (
	"math"

	"github.com/i474232898/weather-clientraw/internal/weather"
)

const meterPerFoot = 0.3048

// DewpointC uses the Magnus-type approximation for temperature t (°C) and
// relative humidity rh (%).
func DewpointC(t, rh float64) (float64, bool) {
	if rh <= 0 {
		return 0, false
	}
	x := 1 - 0.01*rh
	dpd := (14.55 + 0.114*t) * x
	dpd += math.Pow((2.5+0.007*t)*x, 3)
	dpd += (15.9 + 0.117*t) * math.Pow(x, 14)
	return t - dpd, true
}

// HumidexC computes the Canadian humidex. Below a meaningful vapour pressure
// it equals the air temperature.
func HumidexC(t, rh float64) (float64, bool) {
	dp, ok := DewpointC(t, rh)
	if !ok {
		return t, true
	}
	e := 6.11 * math.Exp(5417.7530*(1/273.16-1/(dp+273.15)))
	h := 0.5555 * (e - 10.0)
	if h <= 0 {
		return t, true
	}
	return t + h, true
}

// AppTempC is the Australian apparent temperature for t (°C), rh (%) and
// wind speed ws (m/s).
func AppTempC(t, rh, ws float64) float64 {
	e := (rh / 100) * 6.105 * math.Exp(17.27*t/(237.7+t))
	return t + 0.33*e - 0.70*ws - 4.0
}

// CloudbaseM estimates the cloud base above sea level in metres.
func CloudbaseM(t, rh, altitudeM float64) (float64, bool) {
	dp, ok := DewpointC(t, rh)
	if !ok {
		return 0, false
	}
	feet := (t - dp) * 1000 / 2.5
	return altitudeM + feet*meterPerFoot, true
}

// WetBulbC approximates the wet bulb temperature from t (°C), rh (%) and
// pressure p (hPa).
func WetBulbC(t, rh, p float64) float64 {
	x := 1 - 0.01*rh
	tdc := t - (14.55+0.114*t)*x - math.Pow((2.5+0.007*t)*x, 3) - (15.9+0.117*t)*math.Pow(x, 14)
	bigE := 6.11 * math.Pow(10, 7.5*tdc/(237.7+tdc))
	slope := 4098 * bigE / math.Pow(tdc+237.7, 2)
	return ((0.00066*p)*t + slope*tdc) / ((0.00066 * p) + slope)
}

// derive applies f to the present inputs, or reports the first absent one.
func derive(f func(vals []float64) (float64, bool), inputs ...weather.Result) weather.Result {
	vals := make([]float64, len(inputs))
	for i, in := range inputs {
		if !in.OK() {
			return in
		}
		vals[i] = in.Value
	}
	v, ok := f(vals)
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return weather.Absent(weather.ReasonComputation)
	}
	return weather.Value(v)
}
