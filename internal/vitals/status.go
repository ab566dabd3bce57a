package vitals

// Status is the colour band a tile is rendered with.
type Status string

const (
	StatusGreen  Status = "green"
	StatusYellow Status = "yellow"
	StatusRed    Status = "red"
)

// StatusOf classifies a reading. Thresholds are demo values, not clinical ones.
func StatusOf(f Field, value int) Status {
	switch f {
	case SystolicBP:
		return band(value < 130, StatusRed)
	case DiastolicBP:
		return band(value < 90, StatusRed)
	case HeartRate:
		return band(value < 100, StatusRed)
	case SpO2:
		return band(value >= 95, StatusYellow)
	case Glucose:
		return band(value < 120, StatusRed)
	}
	return StatusGreen
}

func band(ok bool, otherwise Status) Status {
	if ok {
		return StatusGreen
	}
	return otherwise
}
