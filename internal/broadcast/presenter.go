package broadcast

import "github.com/nerrad567/chroma-sync/internal/device"

// Presenter shows broadcast activity to the user. Status and preview calls
// come from the router's worker goroutine; reports also arrive from report
// waiters and the power controller. Implementations must be safe for
// concurrent use and must not block.
type Presenter interface {
	PresentStatus(status Status)
	PresentPreview(effect device.ColorEffect)
	PresentReport(report device.Report)
}

// Presenters fans every call out to each member in order.
type Presenters []Presenter

func (ps Presenters) PresentStatus(status Status) {
	for _, p := range ps {
		p.PresentStatus(status)
	}
}

func (ps Presenters) PresentPreview(effect device.ColorEffect) {
	for _, p := range ps {
		p.PresentPreview(effect)
	}
}

func (ps Presenters) PresentReport(report device.Report) {
	for _, p := range ps {
		p.PresentReport(report)
	}
}

// StatusPayload is the wire form of a status change.
type StatusPayload struct {
	Status Status `json:"status"`
	Label  string `json:"label"`
}

// NewStatusPayload builds the payload for status.
func NewStatusPayload(status Status) StatusPayload {
	return StatusPayload{Status: status, Label: status.Label()}
}

// PreviewPayload is the wire form of a color preview.
type PreviewPayload struct {
	Colors [device.ZoneCount]string `json:"colors"`
	RGB    device.ColorEffect       `json:"rgb"`
}

// NewPreviewPayload builds the payload for effect.
func NewPreviewPayload(effect device.ColorEffect) PreviewPayload {
	p := PreviewPayload{RGB: effect}
	for i, c := range effect {
		p.Colors[i] = c.String()
	}
	return p
}
