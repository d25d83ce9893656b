package serialport

import (
	"context"
	"strings"
	"time"

	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/ports"
)

const (
	// ProbeWindow is how long each candidate rate is sampled.
	ProbeWindow = 1800 * time.Millisecond
	// probeEarlyStop ends the scan when a candidate scores this high.
	probeEarlyStop = 0.80
	// probeMinScore is the floor below which the probe falls back to the
	// requested rate.
	probeMinScore = 0.30
)

// probeKeywords are substrings typical of ESP32 boot and application
// output. Seeing any of them in a sample is strong evidence the rate is
// right.
var probeKeywords = []string{
	"rst:0x", "wifi", "rssi", "http", "webhook", "esp32", "guru", "connecting", "ip:",
}

// ProbeResult reports the outcome of an auto-baud scan.
type ProbeResult struct {
	Baud     int
	Score    float64
	FellBack bool
}

// BaudCandidates returns the de-duplicated candidate order for a probe.
func BaudCandidates(requested int) []int {
	defaults := []int{115200, 74880, 57600, 9600}
	out := make([]int, 0, len(defaults)+1)
	if requested > 0 {
		out = append(out, requested)
	}
	for _, b := range defaults {
		if b != requested {
			out = append(out, b)
		}
	}
	return out
}

// ScoreSample rates a byte sample in [0, 1]: how plausible it is that the
// sample was read at the correct rate.
func ScoreSample(sample []byte) float64 {
	if len(sample) == 0 {
		return 0
	}

	printable := 0
	newlines := 0
	for _, b := range sample {
		if (b >= 0x20 && b < 0x7f) || b == '\t' || b == '\r' || b == '\n' {
			printable++
		}
		if b == '\n' {
			newlines++
		}
	}
	printableRatio := float64(printable) / float64(len(sample))

	if newlines > 10 {
		newlines = 10
	}
	newlineDensity := float64(newlines) / 10

	keywordBonus := 0.0
	lower := strings.ToLower(string(sample))
	for _, kw := range probeKeywords {
		if strings.Contains(lower, kw) {
			keywordBonus = 1
			break
		}
	}

	return 0.60*printableRatio + 0.25*newlineDensity + 0.15*keywordBonus
}

// ProbeBaud scans the candidate rates and picks the best-scoring one.
// When nothing scores above the minimum the requested rate wins and
// FellBack is set; sampling errors on individual candidates are skipped.
func ProbeBaud(ctx context.Context, control ports.PortControl, port string, requested int) ProbeResult {
	bestBaud := requested
	bestScore := -1.0

	for _, baud := range BaudCandidates(requested) {
		if ctx.Err() != nil {
			break
		}
		sample, err := control.Sample(ctx, port, baud, ProbeWindow)
		if err != nil {
			continue
		}
		score := ScoreSample(sample)
		if score > bestScore {
			bestScore = score
			bestBaud = baud
		}
		if score >= probeEarlyStop {
			break
		}
	}

	if bestScore < probeMinScore {
		return ProbeResult{Baud: requested, Score: bestScore, FellBack: true}
	}
	return ProbeResult{Baud: bestBaud, Score: bestScore}
}
