package audacity

import (
	"fmt"
	"strings"
)

type InfoType string

const (
	InfoCommands    InfoType = "Commands"
	InfoMenus       InfoType = "Menus"
	InfoPreferences InfoType = "Preferences"
	InfoTracks      InfoType = "Tracks"
	InfoClips       InfoType = "Clips"
	InfoEnvelopes   InfoType = "Envelopes"
	InfoLabels      InfoType = "Labels"
	InfoBoxes       InfoType = "Boxes"
)

var infoTypeValues = []string{
	string(InfoCommands),
	string(InfoMenus),
	string(InfoPreferences),
	string(InfoTracks),
	string(InfoClips),
	string(InfoEnvelopes),
	string(InfoLabels),
	string(InfoBoxes),
}

type InfoFormat string

const (
	FormatJSON  InfoFormat = "JSON"
	FormatLISP  InfoFormat = "LISP"
	FormatBrief InfoFormat = "Brief"
)

var infoFormatValues = []string{string(FormatJSON), string(FormatLISP), string(FormatBrief)}

type ToneWaveform string

const (
	WaveformSine          ToneWaveform = "Sine"
	WaveformSquare        ToneWaveform = "Square"
	WaveformSawtooth      ToneWaveform = "Sawtooth"
	WaveformSquareNoAlias ToneWaveform = "Square, no alias"
	// WaveformTriangle is offered by the Tone dialog but missing from the scripting reference.
	WaveformTriangle ToneWaveform = "Triangle"
)

var toneWaveformValues = []string{
	string(WaveformSine),
	string(WaveformSquare),
	string(WaveformSawtooth),
	string(WaveformSquareNoAlias),
	string(WaveformTriangle),
}

type RelativeTo string

const (
	RelativeToProjectStart   RelativeTo = "ProjectStart"
	RelativeToProject        RelativeTo = "Project"
	RelativeToProjectEnd     RelativeTo = "ProjectEnd"
	RelativeToSelectionStart RelativeTo = "SelectionStart"
	RelativeToSelection      RelativeTo = "Selection"
	RelativeToSelectionEnd   RelativeTo = "SelectionEnd"
)

var relativeToValues = []string{
	string(RelativeToProjectStart),
	string(RelativeToProject),
	string(RelativeToProjectEnd),
	string(RelativeToSelectionStart),
	string(RelativeToSelection),
	string(RelativeToSelectionEnd),
}

// ParseInfoType matches raw case-insensitively against the GetInfo types.
func ParseInfoType(raw string) (InfoType, error) {
	for _, v := range infoTypeValues {
		if strings.EqualFold(strings.TrimSpace(raw), v) {
			return InfoType(v), nil
		}
	}
	return "", fmt.Errorf("unknown info type %q (want one of: %s)", raw, strings.ToLower(strings.Join(infoTypeValues, ", ")))
}
