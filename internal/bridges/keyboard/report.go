package keyboard

import "github.com/nerrad567/chroma-sync/internal/device"

// Feature report layout for 4-zone ITE keyboard controllers.
const (
	reportID      byte = 0xCC
	reportCommand byte = 0x16

	effectStatic byte = 0x01
	speedSlowest byte = 0x01

	// ReportSize is the length of one feature report.
	ReportSize = 33

	colorOffset = 5
)

// Brightness levels accepted by the controller.
const (
	BrightnessLow  = 1
	BrightnessHigh = 2
)

// EncodeReport builds the static-color feature report. zoneMap[z] selects
// which effect color lights physical zone z.
//
//	[0xCC, 0x16, effect, speed, brightness, r1,g1,b1, ... r4,g4,b4, 0, 0, 0, pad...]
func EncodeReport(effect device.ColorEffect, zoneMap []int, brightness int) []byte {
	report := make([]byte, ReportSize)
	report[0] = reportID
	report[1] = reportCommand
	report[2] = effectStatic
	report[3] = speedSlowest
	report[4] = BrightnessLow
	if brightness == BrightnessHigh {
		report[4] = BrightnessHigh
	}

	for zone := range device.ZoneCount {
		idx := zone
		if len(zoneMap) == device.ZoneCount && zoneMap[zone] >= 0 && zoneMap[zone] < device.ZoneCount {
			idx = zoneMap[zone]
		}
		c := effect[idx]
		off := colorOffset + zone*3
		report[off] = c.R
		report[off+1] = c.G
		report[off+2] = c.B
	}
	return report
}
