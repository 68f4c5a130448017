package utils

import (
	"time"
)

// NowUnixMilli retorna el timestamp actual en milisegundos desde Unix epoch.
func NowUnixMilli() int64 {
	return time.Now().UnixMilli()
}

// UnixMilliToTime convierte un timestamp Unix en milisegundos a time.Time (UTC).
func UnixMilliToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// TimeToUnixMilli convierte un time.Time a timestamp Unix en milisegundos.
func TimeToUnixMilli(t time.Time) int64 {
	return t.UnixMilli()
}

// ElapsedMsSince calcula los milisegundos transcurridos desde start, con
// resolución sub-milisegundo.
func ElapsedMsSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
