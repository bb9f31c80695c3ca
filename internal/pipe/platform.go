// Package pipe exchanges macro commands with Audacity over mod-script-pipe.
package pipe

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
)

// Platform selects the endpoint naming and terminator convention.
type Platform string

const (
	PlatformAuto    Platform = "auto"
	PlatformPOSIX   Platform = "posix"
	PlatformWindows Platform = "windows"
)

const (
	posixToPeerPrefix   = "/tmp/audacity_script_pipe.to."
	posixFromPeerPrefix = "/tmp/audacity_script_pipe.from."
	windowsToPeer       = `\\.\pipe\ToSrvPipe`
	windowsFromPeer     = `\\.\pipe\FromSrvPipe`

	posixTerminator   = "\n"
	windowsTerminator = "\r\n\x00"
)

// Endpoints names the two pipes of one exchange and the command terminator.
type Endpoints struct {
	// ToPeer is written by the client and read by Audacity.
	ToPeer string
	// FromPeer is written by Audacity and read by the client.
	FromPeer   string
	Terminator string
}

// ParsePlatform accepts auto, posix, or windows (case-insensitive).
func ParsePlatform(raw string) (Platform, error) {
	switch Platform(strings.ToLower(strings.TrimSpace(raw))) {
	case "", PlatformAuto:
		return PlatformAuto, nil
	case PlatformPOSIX, "linux", "darwin", "unix":
		return PlatformPOSIX, nil
	case PlatformWindows, "win32":
		return PlatformWindows, nil
	default:
		return "", fmt.Errorf("unknown platform %q (want auto, posix, or windows)", raw)
	}
}

// HostPlatform maps runtime.GOOS onto a concrete platform.
func HostPlatform() Platform {
	if runtime.GOOS == "windows" {
		return PlatformWindows
	}
	return PlatformPOSIX
}

// Resolve replaces PlatformAuto with the host platform.
func (p Platform) Resolve() Platform {
	if p == "" || p == PlatformAuto {
		return HostPlatform()
	}
	return p
}

// ResolveEndpoints derives the endpoint pair for platform. uid is only used on POSIX.
func ResolveEndpoints(platform Platform, uid int) Endpoints {
	if platform.Resolve() == PlatformWindows {
		return Endpoints{
			ToPeer:     windowsToPeer,
			FromPeer:   windowsFromPeer,
			Terminator: windowsTerminator,
		}
	}

	id := strconv.Itoa(uid)
	return Endpoints{
		ToPeer:     posixToPeerPrefix + id,
		FromPeer:   posixFromPeerPrefix + id,
		Terminator: posixTerminator,
	}
}
