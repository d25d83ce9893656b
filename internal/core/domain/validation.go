package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// Validation Helpers

var (
	portAddressRegex = regexp.MustCompile(`^[A-Za-z0-9/._:\-]+$`)
	deviceHostRegex  = regexp.MustCompile(`^[A-Za-z0-9.\-]+(:[0-9]{1,5})?$`)
)

// IsValidPortAddress checks that the string is a plausible serial endpoint
// (device path or COM-style name) with no traversal tricks.
func IsValidPortAddress(addr string) bool {
	if addr == "" || len(addr) > 128 {
		return false
	}
	if strings.Contains(addr, "..") {
		return false
	}
	return portAddressRegex.MatchString(addr)
}

// IsValidBaud bounds the accepted line rates.
func IsValidBaud(baud int) bool {
	return baud >= 300 && baud <= 3000000
}

// IsValidDeviceHost checks an IP or hostname (optionally with port) used
// for the device HTTP proxy.
func IsValidDeviceHost(host string) bool {
	if host == "" || len(host) > 253 {
		return false
	}
	return deviceHostRegex.MatchString(host)
}

// CompilePattern compiles a user-supplied regular expression, wrapping
// failures as ErrPatternInvalid so handlers can map them to 4xx.
func CompilePattern(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, fmt.Errorf("%w: empty pattern", ErrPatternInvalid)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrPatternInvalid, pattern, err)
	}
	return re, nil
}
