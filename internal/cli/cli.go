// Package cli parses the audpipe command line.
package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandDo      Command = "do"
	CommandInfo    Command = "info"
	CommandTracks  Command = "tracks"
	CommandLabels  Command = "labels"
	CommandPaths   Command = "paths"
	CommandDevices Command = "devices"
	CommandServe   Command = "serve"
	CommandDoctor  Command = "doctor"
	CommandVersion Command = "version"
	CommandHelp    Command = "help"
)

// arity bounds the positional arguments each command accepts; max < 0 is unbounded.
type arity struct {
	min, max int
}

var validCommands = map[Command]arity{
	CommandDo:      {min: 1, max: -1},
	CommandInfo:    {min: 1, max: 1},
	CommandTracks:  {},
	CommandLabels:  {},
	CommandPaths:   {},
	CommandDevices: {max: 1},
	CommandServe:   {},
	CommandDoctor:  {},
	CommandVersion: {},
	CommandHelp:    {},
}

type Parsed struct {
	Command    Command
	Args       []string
	ConfigPath string
	Remote     bool
	ShowHelp   bool
}

// Parse reads global flags, then one command and its arguments. Everything
// after the command belongs to it, so macro text is never read as a flag.
func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "--remote":
			parsed.Remote = true
		case "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			bounds, ok := validCommands[cmd]
			if !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}

			rest := args[i+1:]
			if len(rest) < bounds.min {
				return Parsed{}, fmt.Errorf("command %q requires an argument", arg)
			}
			if bounds.max >= 0 && len(rest) > bounds.max {
				return Parsed{}, fmt.Errorf("unexpected arguments after command %q", arg)
			}

			parsed.Command = cmd
			parsed.Args = rest
			parsed.ShowHelp = cmd == CommandHelp
			return parsed, nil
		}
	}

	return parsed, nil
}

// MacroLine joins the arguments of "do" into one macro command line.
func (p Parsed) MacroLine() string {
	return strings.TrimSpace(strings.Join(p.Args, " "))
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] [--remote] <command> [args]

Commands:
  do <macro...>   Send one macro line to Audacity and print the response
  info <type>     Print GetInfo JSON (commands, menus, preferences, tracks,
                  clips, envelopes, labels, boxes)
  tracks          List project tracks
  labels          List labels per label track
  paths           Print resolved pipe endpoints and terminator
  devices [TERM]  List PulseAudio playback sinks
  serve           Run the gRPC bridge on the runtime socket
  doctor          Run configuration and environment checks
  version         Print version information
  help            Show this help

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/audpipe/config.jsonc)
  --remote        Send macros through a running bridge instead of the pipes
  -h, --help      Show help
  --version       Show version

Exit codes:
  0 ok, 1 runtime failure, 2 usage error, 3 Audacity reported failure
`, binaryName)
}
