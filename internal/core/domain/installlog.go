package domain

import "time"

// WifiCredential is one SSID/password pair from a registration record.
type WifiCredential struct {
	SSID string `json:"ssid,omitempty"`
	Pass string `json:"pass,omitempty"`
}

// InstallLogEntry is a structured registration record parsed from device
// output or submitted over the API. DeviceID doubles as the dedup key.
type InstallLogEntry struct {
	DeviceID   string          `json:"device_id"`
	Status     string          `json:"status,omitempty"`
	CustomerID string          `json:"customer_id,omitempty"`
	WifiMain   *WifiCredential `json:"wifi_main,omitempty"`
	WifiAlt    *WifiCredential `json:"wifi_alt,omitempty"`
	WifiDev    *WifiCredential `json:"wifi_dev,omitempty"`
	Note       string          `json:"note,omitempty"`
	Port       string          `json:"port,omitempty"`
	Nickname   string          `json:"nickname,omitempty"`
}

// InstallLogRecord is one persisted line of the install log. Key is the
// composite timestamp+identifier the entry was stored under.
type InstallLogRecord struct {
	Key       string          `json:"key"`
	Timestamp time.Time       `json:"timestamp"`
	Port      string          `json:"port,omitempty"`
	Nickname  string          `json:"nickname,omitempty"`
	Entry     InstallLogEntry `json:"entry"`
}
