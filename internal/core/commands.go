package core

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// The remote print subsystem speaks the System V lp/lpstat/cancel
// surface. Each logical setting maps to one or more lp options; the
// mapping round-trips so a settings snapshot can be reconstructed from
// the issued arguments.

var submitIDPattern = regexp.MustCompile(`request id is (\S+)`)

// BuildSubmitArgs translates one job's settings into lp arguments.
// Copies is always forced to 1 here: multi-copy requests fan out into
// independent submissions upstream so each copy is tracked separately.
func BuildSubmitArgs(remotePath, queue string, settings PrintSettings) []string {
	args := []string{"-d", queue, "-n", "1"}

	if settings.Duplex != "" {
		args = append(args, "-o", "sides="+string(settings.Duplex))
	}
	if settings.PaperSize != "" {
		args = append(args, "-o", "media="+settings.PaperSize)
	}
	switch settings.Orientation {
	case OrientationLandscape:
		args = append(args, "-o", "orientation-requested=4")
	case OrientationPortrait:
		args = append(args, "-o", "orientation-requested=3")
	}
	if settings.PagesPerSheet > 1 {
		args = append(args, "-o", fmt.Sprintf("number-up=%d", settings.PagesPerSheet))
	}
	if settings.PageRange != "" {
		args = append(args, "-o", "page-ranges="+settings.PageRange)
	}

	return append(args, remotePath)
}

// ParseSubmitArgs reconstructs queue, settings, and file path from lp
// arguments produced by BuildSubmitArgs.
func ParseSubmitArgs(args []string) (queue string, settings PrintSettings, remotePath string, err error) {
	settings = PrintSettings{Copies: 1, PagesPerSheet: 1}

	i := 0
	for i < len(args) {
		switch args[i] {
		case "-d":
			if i+1 >= len(args) {
				return "", settings, "", fmt.Errorf("missing value for -d")
			}
			queue = args[i+1]
			i += 2
		case "-n":
			if i+1 >= len(args) {
				return "", settings, "", fmt.Errorf("missing value for -n")
			}
			n, convErr := strconv.Atoi(args[i+1])
			if convErr != nil {
				return "", settings, "", fmt.Errorf("invalid copy count %q", args[i+1])
			}
			settings.Copies = n
			i += 2
		case "-o":
			if i+1 >= len(args) {
				return "", settings, "", fmt.Errorf("missing value for -o")
			}
			if optErr := applyOption(&settings, args[i+1]); optErr != nil {
				return "", settings, "", optErr
			}
			i += 2
		default:
			remotePath = args[i]
			i++
		}
	}

	if queue == "" {
		return "", settings, "", fmt.Errorf("no queue in submit arguments")
	}
	return queue, settings, remotePath, nil
}

func applyOption(settings *PrintSettings, option string) error {
	key, value, found := strings.Cut(option, "=")
	if !found {
		return fmt.Errorf("malformed option %q", option)
	}

	switch key {
	case "sides":
		settings.Duplex = DuplexMode(value)
	case "media":
		settings.PaperSize = value
	case "orientation-requested":
		switch value {
		case "3":
			settings.Orientation = OrientationPortrait
		case "4":
			settings.Orientation = OrientationLandscape
		default:
			return fmt.Errorf("unknown orientation %q", value)
		}
	case "number-up":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid number-up %q", value)
		}
		settings.PagesPerSheet = n
	case "page-ranges":
		settings.PageRange = value
	default:
		return fmt.Errorf("unknown option %q", key)
	}
	return nil
}

// BuildSubmitCommand renders the full lp invocation with shell quoting
// applied to every argument.
func BuildSubmitCommand(remotePath, queue string, settings PrintSettings) string {
	args := BuildSubmitArgs(remotePath, queue, settings)
	quoted := make([]string, 0, len(args)+1)
	quoted = append(quoted, "lp")
	for _, arg := range args {
		quoted = append(quoted, shellQuote(arg))
	}
	return strings.Join(quoted, " ")
}

// ParseSubmitOutput extracts the remote-assigned job id from lp output
// of the form "request id is labprint-482 (1 file(s))".
func ParseSubmitOutput(output string) (string, bool) {
	match := submitIDPattern.FindStringSubmatch(output)
	if match == nil {
		return "", false
	}
	return match[1], true
}

// BuildListCommand renders the pending-job listing command for a queue.
func BuildListCommand(queue string) string {
	return "lpstat -o " + shellQuote(queue)
}

// ParseQueueListing parses lpstat -o output. Each non-empty line is one
// pending job: "<id> <owner> <bytes> <date...>". Lines that do not fit
// the shape are kept raw with only the id field populated, since the
// listing is the authoritative state either way.
func ParseQueueListing(output string) []QueueEntry {
	var entries []QueueEntry
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		fields := strings.Fields(line)
		entry := QueueEntry{RemoteID: fields[0], Raw: line}
		if len(fields) >= 2 {
			entry.Owner = fields[1]
		}
		if len(fields) >= 3 {
			if size, err := strconv.ParseInt(fields[2], 10, 64); err == nil {
				entry.SizeBytes = size
			}
		}
		entries = append(entries, entry)
	}
	return entries
}

// BuildCancelCommand renders the remote cancellation command for a
// previously captured remote job id.
func BuildCancelCommand(remoteID string) string {
	return "cancel " + shellQuote(remoteID)
}

// shellQuote single-quotes an argument for the remote shell, escaping
// embedded single quotes.
func shellQuote(arg string) string {
	if arg == "" {
		return "''"
	}
	if !strings.ContainsAny(arg, " \t\n'\"\\$&|;<>()*?[]#~%{}`!") {
		return arg
	}
	return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
}
