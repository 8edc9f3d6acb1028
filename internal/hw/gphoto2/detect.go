package gphoto2

import (
	"regexp"
	"strings"
)

var (
	// *** Error (-1): 'Could not detect any camera' ***
	// *** Error (-105: 'Unknown model') ***
	codedErrorPattern = regexp.MustCompile(`(?m)^\*\*\* Error \((-?[0-9]*)\)?: '(.*)'\)? \*\*\*.*$`)

	// *** Error ***
	// An error occurred in the io-library ('Could not claim the USB device'): ...
	bareErrorPattern = regexp.MustCompile(`(?m)^\*\*\* Error \*\*\*.*\n(.*)$`)
)

// Scan returns a *DeviceError when text carries any in-band gphoto2 error
// announcement, and nil otherwise. gphoto2 usually exits 0 even when the
// camera refused the command, so both transports run every response through it.
func Scan(text string) error {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var messages []string
	for _, m := range codedErrorPattern.FindAllStringSubmatch(text, -1) {
		messages = append(messages, m[2])
	}
	for _, m := range bareErrorPattern.FindAllStringSubmatch(text, -1) {
		messages = append(messages, m[1])
	}
	if len(messages) == 0 {
		return nil
	}

	details := strings.TrimSpace(strings.Join(messages, "\n"))
	if details == "" {
		details = "unspecified error"
	}
	return &DeviceError{Details: details}
}
