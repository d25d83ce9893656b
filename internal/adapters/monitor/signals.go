package monitor

import "regexp"

// SignalKind classifies a matched crash/reboot line.
type SignalKind string

const (
	SignalCrash  SignalKind = "crash"
	SignalReboot SignalKind = "reboot"
)

// rebootRegex matches the ESP32 boot-reason prefix printed on every
// reset.
var rebootRegex = regexp.MustCompile(`rst:0x[0-9a-f]+`)

// crashRegexes mark fault output that precedes a reboot.
var crashRegexes = []*regexp.Regexp{
	regexp.MustCompile(`Brownout detector`),
	regexp.MustCompile(`Backtrace:`),
	regexp.MustCompile(`Guru Meditation Error`),
	regexp.MustCompile(`CPU halted`),
	regexp.MustCompile(`panic`),
	regexp.MustCompile(`assert failed`),
	regexp.MustCompile(`(Load|Store|InstrFetch)Prohibited`),
	regexp.MustCompile(`IllegalInstruction`),
}

// DetectSignal reports whether the line is a crash or reboot signal.
func DetectSignal(line string) (SignalKind, bool) {
	if rebootRegex.MatchString(line) {
		return SignalReboot, true
	}
	for _, re := range crashRegexes {
		if re.MatchString(line) {
			return SignalCrash, true
		}
	}
	return "", false
}

// ansiRegex matches terminal escape sequences emitted by the monitor
// tool and by coloured firmware logs.
var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;?]*[a-zA-Z]|\x1b\][^\x07]*\x07|\x1b[=>]`)

// StripANSI removes terminal escape codes from a framed line.
func StripANSI(line string) string {
	return ansiRegex.ReplaceAllString(line, "")
}
