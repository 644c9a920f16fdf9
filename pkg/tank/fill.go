package tank

import "github.com/chewxy/math32"

// SensorOffsetCm is the dead zone between the sensor face and the
// highest surface it can range.
const SensorOffsetCm = 20

// FillPercent maps a raw distance reading to a fill percentage in
// [0,100]. Readings with no echo, and distances inside the sensor
// offset, read as empty. heightCm must be positive; validation
// rejects anything else before it can get here.
func FillPercent(distanceCm float32, ok bool, heightCm float32) float32 {
	if !ok || distanceCm < SensorOffsetCm {
		return 0
	}
	adjusted := distanceCm - SensorOffsetCm
	raw := (heightCm - adjusted) / heightCm * 100
	return math32.Min(100, math32.Max(0, raw))
}
