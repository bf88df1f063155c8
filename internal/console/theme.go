package console

import (
	"github.com/gdamore/tcell/v2"

	"github.com/Raje0906/Tourist-Safety-sub001/internal/feed"
)

// Theme colors for the console.
var (
	ColorBackground      = tcell.NewHexColor(0x1e1e2e)
	ColorBackgroundPanel = tcell.NewHexColor(0x181825)
	ColorText            = tcell.NewHexColor(0xcdd6f4)
	ColorTextMuted       = tcell.NewHexColor(0x6c7086)
	ColorSuccess         = tcell.NewHexColor(0xa6e3a1) // green
	ColorWarning         = tcell.NewHexColor(0xf9e2af) // yellow
	ColorError           = tcell.NewHexColor(0xf38ba8) // red
	ColorAccent          = tcell.NewHexColor(0xcba6f7) // mauve
	ColorSelected        = tcell.NewHexColor(0x89b4fa)
	ColorSelectedText    = tcell.NewHexColor(0x1e1e2e)
)

// KindColor maps an event kind to the color of its table row.
func KindColor(kind feed.Kind) tcell.Color {
	switch kind {
	case feed.KindEmergencyIncidentOpened:
		return ColorError
	case feed.KindAlertCreated, feed.KindAIAnomalyDetected:
		return ColorWarning
	case feed.KindTouristCreated, feed.KindAuthorityCreated:
		return ColorSuccess
	case feed.KindEFIRFiled, feed.KindEFIRUpdated:
		return ColorAccent
	default:
		return ColorText
	}
}
