package domain

import "time"

// HealthRecord aggregates per-port observations from the monitor stream.
type HealthRecord struct {
	Port             string    `json:"port"`
	Lines            int64     `json:"lines"`
	StderrLines      int64     `json:"stderrLines"`
	CrashLines       int64     `json:"crashLines"`
	RebootLines      int64     `json:"rebootLines"`
	LastCrash        string    `json:"lastCrash,omitempty"`
	LastReboot       string    `json:"lastReboot,omitempty"`
	FirstSeen        time.Time `json:"firstSeen"`
	LastSeen         time.Time `json:"lastSeen"`
	CrashesPerMinute float64   `json:"crashesPerMinute"`
}

// FleetHealth is the cross-port summary.
type FleetHealth struct {
	Ports        []HealthRecord `json:"ports"`
	TotalLines   int64          `json:"totalLines"`
	TotalCrashes int64          `json:"totalCrashes"`
	TotalReboots int64          `json:"totalReboots"`
	GeneratedAt  time.Time      `json:"generatedAt"`
}
