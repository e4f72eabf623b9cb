package cmd

import (
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/duration"
)

var helpText = map[string]string{
	"log-level":   "Log level: debug, info, warn or error",
	"log-format":  "Log format: console or json",
	"http-proxy":  "HTTP proxy used for model provider requests",
	"listen":      "Address the HTTP server listens on",
	"file":        "Blueprint file (JSON or YAML)",
	"query":       "Query to run; also accepts file:// paths and http(s) URLs",
	"user":        "User id reported in frame metadata",
	"raw":         "Print every frame as one JSON line",
	"pretty":      "Render the final answer as markdown",
	"record":      "Record the run transcript",
	"timeout":     "Per-probe timeout",
	"json":        "Print JSON",
	"older-than":  "Only runs older than this duration; e.g. 24h, 7d",
	"dry-run":     "List what would be deleted without deleting it",
	"show-frames": "Print the recorded frames as JSON lines",
}

type flagParseError struct {
	err    error
	reason string
	flag   string
}

func (f flagParseError) Error() string        { return f.err.Error() }
func (f flagParseError) ReasonFormat() string { return f.reason }
func (f flagParseError) Flag() string         { return f.flag }

var (
	unknownShorthandRe = regexp.MustCompile(`unknown shorthand flag: '.*' in (-\w)`)
	needsArgumentRe    = regexp.MustCompile(`flag needs an argument: ('(\w)' in )?(-{1,2}[\w-]+)`)
	invalidArgumentRe  = regexp.MustCompile(`invalid argument ".*" for "(.*)" flag: .*`)
	requiredFlagRe     = regexp.MustCompile(`required flag\(s\) "(.*)" not set`)
)

func newFlagParseError(err error) flagParseError {
	msg := err.Error()
	var reason, flag string
	switch {
	case strings.HasPrefix(msg, "unknown flag"):
		reason = "Flag %s is missing."
		flag = strings.TrimPrefix(msg, "unknown flag: ")
	case strings.HasPrefix(msg, "unknown shorthand flag"):
		reason = "Short flag %s is missing."
		if m := unknownShorthandRe.FindStringSubmatch(msg); m != nil {
			flag = m[1]
		}
	case strings.HasPrefix(msg, "flag needs an argument"):
		reason = "Flag %s needs an argument."
		if m := needsArgumentRe.FindStringSubmatch(msg); m != nil {
			flag = m[3]
			if m[2] != "" {
				flag = "-" + m[2]
			}
		}
	case strings.HasPrefix(msg, "invalid argument"):
		reason = "Flag %s have an invalid argument."
		if m := invalidArgumentRe.FindStringSubmatch(msg); m != nil {
			flag = m[1]
		}
	case strings.HasPrefix(msg, "required flag"):
		reason = "Flag %s is required."
		if m := requiredFlagRe.FindStringSubmatch(msg); m != nil {
			flag = "--" + m[1]
		}
	default:
		reason = msg
	}
	return flagParseError{err: err, reason: reason, flag: flag}
}

func newDurationFlag(val time.Duration, p *time.Duration) *durationFlag {
	*p = val
	return (*durationFlag)(p)
}

// durationFlag accepts day and week units on top of time.ParseDuration.
type durationFlag time.Duration

func (d *durationFlag) Set(s string) error {
	v, err := duration.Parse(s)
	*d = durationFlag(v)
	//nolint: wrapcheck
	return err
}

func (d *durationFlag) String() string {
	return time.Duration(*d).String()
}

func (*durationFlag) Type() string {
	return "duration"
}
