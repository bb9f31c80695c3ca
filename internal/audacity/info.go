package audacity

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rbright/audpipe/internal/macro"
)

// Track is one entry of GetInfo Type=Tracks in JSON format.
type Track struct {
	Name     string  `json:"name"`
	Kind     string  `json:"kind"`
	Focused  int     `json:"focused"`
	Selected int     `json:"selected"`
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Pan      float64 `json:"pan"`
	Gain     float64 `json:"gain"`
	Channels int     `json:"channels"`
	Solo     int     `json:"solo"`
	Mute     int     `json:"mute"`
}

// Label is one region on a label track.
type Label struct {
	Start float64
	End   float64
	Text  string
}

// LabelTrack groups the labels of one track by its project index.
type LabelTrack struct {
	Track  int
	Labels []Label
}

// GetInfo returns the raw GetInfo response.
func (s Session) GetInfo(ctx context.Context, infoType InfoType, format InfoFormat) (string, error) {
	return s.Run(ctx, macro.New("GetInfo").
		Enum("Type", string(infoType), infoTypeValues...).
		Enum("Format", string(format), infoFormatValues...))
}

// Tracks decodes the project's track list.
func (s Session) Tracks(ctx context.Context) ([]Track, error) {
	payload, err := s.InfoJSON(ctx, InfoTracks)
	if err != nil {
		return nil, err
	}

	var tracks []Track
	if err := json.Unmarshal([]byte(payload), &tracks); err != nil {
		return nil, fmt.Errorf("decode tracks json: %w", err)
	}
	return tracks, nil
}

// Labels decodes every label track as [index, [[start, end, text], ...]].
func (s Session) Labels(ctx context.Context) ([]LabelTrack, error) {
	payload, err := s.InfoJSON(ctx, InfoLabels)
	if err != nil {
		return nil, err
	}

	var raw [][]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, fmt.Errorf("decode labels json: %w", err)
	}

	tracks := make([]LabelTrack, 0, len(raw))
	for i, entry := range raw {
		if len(entry) != 2 {
			return nil, fmt.Errorf("decode labels json: entry %d has %d elements, want 2", i, len(entry))
		}

		var track LabelTrack
		if err := json.Unmarshal(entry[0], &track.Track); err != nil {
			return nil, fmt.Errorf("decode labels json: entry %d track index: %w", i, err)
		}

		var regions [][3]json.RawMessage
		if err := json.Unmarshal(entry[1], &regions); err != nil {
			return nil, fmt.Errorf("decode labels json: entry %d regions: %w", i, err)
		}
		for _, region := range regions {
			var label Label
			if err := json.Unmarshal(region[0], &label.Start); err != nil {
				return nil, fmt.Errorf("decode label start: %w", err)
			}
			if err := json.Unmarshal(region[1], &label.End); err != nil {
				return nil, fmt.Errorf("decode label end: %w", err)
			}
			if err := json.Unmarshal(region[2], &label.Text); err != nil {
				return nil, fmt.Errorf("decode label text: %w", err)
			}
			track.Labels = append(track.Labels, label)
		}
		tracks = append(tracks, track)
	}
	return tracks, nil
}

// InfoJSON runs GetInfo in JSON format and returns the payload without the
// status line. An empty payload is reported as "[]".
func (s Session) InfoJSON(ctx context.Context, infoType InfoType) (string, error) {
	text, err := s.GetInfo(ctx, infoType, FormatJSON)
	if err != nil {
		return "", err
	}
	resp := macro.ParseResponse(text)
	if resp.Status != "" && !resp.OK {
		return "", fmt.Errorf("GetInfo %s finished with status %q", infoType, resp.Status)
	}
	payload := strings.TrimSpace(resp.Payload)
	if payload == "" {
		return "[]", nil
	}
	return payload, nil
}
