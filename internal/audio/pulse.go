// Package audio discovers the PulseAudio playback sinks Audacity plays through.
package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

// Device describes one Pulse playback sink.
type Device struct {
	ID          string
	Description string
	State       string
	Available   bool
	Muted       bool
	Default     bool
}

// ListDevices returns Pulse playback sinks with default/availability metadata.
func ListDevices(_ context.Context) ([]Device, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("audpipe"),
		pulse.ClientApplicationIconName("audio-card"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}
	defer client.Close()

	defaultSink, err := client.DefaultSink()
	if err != nil {
		return nil, fmt.Errorf("read default sink: %w", err)
	}
	defaultID := defaultSink.ID()

	var sinkInfos pulseproto.GetSinkInfoListReply
	if err := client.RawRequest(&pulseproto.GetSinkInfoList{}, &sinkInfos); err != nil {
		return nil, fmt.Errorf("list sinks: %w", err)
	}

	devices := make([]Device, 0, len(sinkInfos))
	for _, sink := range sinkInfos {
		if sink == nil {
			continue
		}
		devices = append(devices, Device{
			ID:          sink.SinkName,
			Description: sink.Device,
			State:       sinkStateString(sink.State),
			Available:   sinkAvailable(sink),
			Muted:       sink.Mute,
			Default:     sink.SinkName == defaultID,
		})
	}
	return devices, nil
}

// Playback resolves the sink Audacity will most likely play through: the
// first match for term, or the server default when term is empty or "default".
func Playback(ctx context.Context, term string) (Device, error) {
	devices, err := ListDevices(ctx)
	if err != nil {
		return Device{}, err
	}
	return selectSink(devices, term)
}

func selectSink(devices []Device, term string) (Device, error) {
	if len(devices) == 0 {
		return Device{}, errors.New("no audio playback sinks found")
	}

	term = strings.TrimSpace(strings.ToLower(term))
	var chosen *Device
	for i := range devices {
		dev := &devices[i]
		if term == "" || term == "default" {
			if dev.Default {
				chosen = dev
				break
			}
			continue
		}
		if deviceMatches(*dev, term) {
			chosen = dev
			break
		}
	}

	if chosen == nil {
		if term == "" || term == "default" {
			return Device{}, errors.New("default audio sink is unavailable")
		}
		return Device{}, fmt.Errorf("audio sink %q did not match any device", term)
	}
	if !chosen.Available {
		return *chosen, fmt.Errorf("audio sink %q is not available", chosen.ID)
	}
	if chosen.Muted {
		return *chosen, fmt.Errorf("audio sink %q is muted", chosen.ID)
	}
	return *chosen, nil
}

// Filter keeps devices whose id or description contains term.
func Filter(devices []Device, term string) []Device {
	term = strings.TrimSpace(strings.ToLower(term))
	if term == "" {
		return devices
	}
	out := make([]Device, 0, len(devices))
	for _, dev := range devices {
		if deviceMatches(dev, term) {
			out = append(out, dev)
		}
	}
	return out
}

// deviceMatches reports whether a search term matches a device id or description.
func deviceMatches(device Device, term string) bool {
	if term == "" {
		return false
	}
	id := strings.ToLower(device.ID)
	desc := strings.ToLower(device.Description)
	return strings.Contains(id, term) || strings.Contains(desc, term)
}

// sinkStateString maps Pulse sink state constants to human-readable values.
func sinkStateString(state uint32) string {
	switch state {
	case 0:
		return "running"
	case 1:
		return "idle"
	case 2:
		return "suspended"
	default:
		return fmt.Sprintf("unknown(%d)", state)
	}
}

// sinkAvailable maps Pulse sink port availability to a simple boolean.
func sinkAvailable(sink *pulseproto.GetSinkInfoReply) bool {
	if sink == nil {
		return false
	}
	if len(sink.Ports) == 0 {
		return true
	}
	for _, port := range sink.Ports {
		if port.Name != sink.ActivePortName {
			continue
		}
		// PulseAudio values: unknown=0, no=1, yes=2.
		return port.Available == 0 || port.Available == 2
	}
	return true
}
