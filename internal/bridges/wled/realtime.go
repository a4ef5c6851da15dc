package wled

import (
	"github.com/nerrad567/chroma-sync/internal/device"
)

// WLED UDP realtime protocol identifiers.
const (
	// ProtocolDRGB carries up to 490 LEDs: [2, timeout, r, g, b, ...].
	ProtocolDRGB byte = 0x02

	// ProtocolDNRGB carries up to 489 LEDs from a start index:
	// [4, timeout, start_hi, start_lo, r, g, b, ...].
	ProtocolDNRGB byte = 0x04

	maxDRGBLEDs  = 490
	maxDNRGBLEDs = 489

	drgbHeaderSize  = 2
	dnrgbHeaderSize = 4
)

// Pixels expands the four effect colors across ledCount LEDs. segments
// holds each zone's first LED index; LEDs before segments[0] stay black.
func Pixels(effect device.ColorEffect, segments []int, ledCount int) []device.RGB {
	if len(segments) != device.ZoneCount {
		segments = device.QuarterSegments(ledCount)
	}
	pixels := make([]device.RGB, ledCount)
	zone := -1
	for i := range pixels {
		for zone+1 < device.ZoneCount && i >= segments[zone+1] {
			zone++
		}
		if zone >= 0 {
			pixels[i] = effect[zone]
		}
	}
	return pixels
}

// EncodeRealtime builds the UDP datagrams for one frame. Strips up to 490
// LEDs get a single DRGB packet; longer strips get DNRGB chunks.
func EncodeRealtime(pixels []device.RGB, timeout byte) [][]byte {
	if len(pixels) <= maxDRGBLEDs {
		pkt := make([]byte, drgbHeaderSize, drgbHeaderSize+3*len(pixels))
		pkt[0] = ProtocolDRGB
		pkt[1] = timeout
		return [][]byte{appendRGB(pkt, pixels)}
	}

	var packets [][]byte
	for start := 0; start < len(pixels); start += maxDNRGBLEDs {
		end := min(start+maxDNRGBLEDs, len(pixels))
		pkt := make([]byte, dnrgbHeaderSize, dnrgbHeaderSize+3*(end-start))
		pkt[0] = ProtocolDNRGB
		pkt[1] = timeout
		pkt[2] = byte(start >> 8)
		pkt[3] = byte(start)
		packets = append(packets, appendRGB(pkt, pixels[start:end]))
	}
	return packets
}

func appendRGB(pkt []byte, pixels []device.RGB) []byte {
	for _, p := range pixels {
		pkt = append(pkt, p.R, p.G, p.B)
	}
	return pkt
}
