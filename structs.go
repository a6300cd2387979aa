package main

import "fmt"

var appversion = "0.5.0"

const (
	kb = 1 << 10
	mb = 1 << 20
	gb = 1 << 30
	tb = 1 << 40
	pb = 1 << 50
)

// dataSizeNumber allows any signed or unsigned integer type.
type dataSizeNumber interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~uintptr
}

// unit is a data size unit with its name and threshold.
type unit struct {
	Name      string
	Threshold uint64
}

// Predefined units in descending order.
var units = []unit{
	{"PB", pb},
	{"TB", tb},
	{"GB", gb},
	{"MB", mb},
	{"KB", kb},
	{"bytes", 1},
}

// formatBytes renders n with the largest unit it reaches, e.g. "1.50 GB".
func formatBytes[T dataSizeNumber](n T) string {
	if n < 0 {
		return "-" + formatBytes(uint64(-int64(n)))
	}
	v := uint64(n)
	for _, u := range units {
		if v >= u.Threshold && u.Threshold > 1 {
			return fmt.Sprintf("%.2f %s", float64(v)/float64(u.Threshold), u.Name)
		}
	}
	return fmt.Sprintf("%d bytes", v)
}

func formatSpeed(bytesPerSecond float64) string {
	if bytesPerSecond <= 0 {
		return "N/A"
	}
	return formatBytes(uint64(bytesPerSecond)) + "/s"
}
