package installlog

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/domain"
	"github.com/warusakudeveroper/Arduino-MCP-sub000/internal/core/ports"
)

// Prefix marks a registration record in device output.
const Prefix = "INSTALL_LOG:"

// DefaultDedupWindow is how many recent device identifiers are remembered
// for duplicate suppression.
const DefaultDedupWindow = 50

// Ingester extracts registration records from serial lines, deduplicates
// them by device identifier and appends fresh ones to the persistent log.
// Appends are serialised through the ingester's lock (single writer).
type Ingester struct {
	store  ports.InstallLogStore
	sink   ports.EventSink
	window int

	mu     sync.Mutex
	recent []string
	now    func() time.Time
}

// New creates an Ingester; window <= 0 selects the default.
func New(store ports.InstallLogStore, sink ports.EventSink, window int) *Ingester {
	if window <= 0 {
		window = DefaultDedupWindow
	}
	return &Ingester{store: store, sink: sink, window: window, now: time.Now}
}

// ScanLine inspects one framed line. Lines without the prefix are
// ignored; parse failures are logged and dropped, never fatal.
func (i *Ingester) ScanLine(port, nickname, line string) {
	entry, ok := Parse(line)
	if !ok {
		return
	}
	entry.Port = port
	entry.Nickname = nickname
	if _, _, err := i.Submit(entry); err != nil {
		slog.Error("install log append failed", "port", port, "device", entry.DeviceID, "error", err)
	}
}

// Submit runs the shared dedup-and-append path. Manual API submissions
// and scanned lines both land here. A duplicate within the window
// acknowledges without appending.
func (i *Ingester) Submit(entry domain.InstallLogEntry) (key string, duplicate bool, err error) {
	if entry.DeviceID == "" {
		return "", false, fmt.Errorf("%w: missing device_id", domain.ErrInvalidInput)
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	for _, seen := range i.recent {
		if seen == entry.DeviceID {
			return "", true, nil
		}
	}

	now := i.now().UTC()
	key = fmt.Sprintf("%s_%s", now.Format("20060102T150405.000"), entry.DeviceID)
	record := domain.InstallLogRecord{
		Key:       key,
		Timestamp: now,
		Port:      entry.Port,
		Nickname:  entry.Nickname,
		Entry:     entry,
	}
	if err := i.store.Append(record); err != nil {
		return "", false, err
	}

	i.recent = append(i.recent, entry.DeviceID)
	if len(i.recent) > i.window {
		i.recent = i.recent[1:]
	}

	if i.sink != nil {
		i.sink.Publish(domain.NewInstallLogEvent(key, entry))
	}
	return key, false, nil
}

// Recent returns the newest persisted records.
func (i *Ingester) Recent(limit int) ([]domain.InstallLogRecord, error) {
	return i.store.Recent(limit)
}

// Parse extracts a registration record from one line. Expected shape:
//
//	INSTALL_LOG: [device_id:ESP-AABBCC, status:registered, customer_id:C042,
//	              wifi_main:home/secret, wifi_alt:shop/pass2, wifi_dev:lab/dev123,
//	              note:first install]
//
// Unknown keys are ignored so newer firmware can extend the format.
func Parse(line string) (domain.InstallLogEntry, bool) {
	idx := strings.Index(line, Prefix)
	if idx < 0 {
		return domain.InstallLogEntry{}, false
	}
	body := strings.TrimSpace(line[idx+len(Prefix):])
	body = strings.TrimPrefix(body, "[")
	body = strings.TrimSuffix(body, "]")
	if body == "" {
		return domain.InstallLogEntry{}, false
	}

	var entry domain.InstallLogEntry
	for _, token := range strings.Split(body, ",") {
		token = strings.TrimSpace(token)
		k, v, found := strings.Cut(token, ":")
		if !found {
			continue
		}
		k = strings.TrimSpace(k)
		v = strings.Trim(strings.TrimSpace(v), `"'`)
		switch k {
		case "device_id", "device":
			entry.DeviceID = v
		case "status":
			entry.Status = v
		case "customer_id", "customer":
			entry.CustomerID = v
		case "wifi_main":
			entry.WifiMain = parseCredential(v)
		case "wifi_alt":
			entry.WifiAlt = parseCredential(v)
		case "wifi_dev":
			entry.WifiDev = parseCredential(v)
		case "note":
			entry.Note = v
		}
	}
	if entry.DeviceID == "" {
		return domain.InstallLogEntry{}, false
	}
	return entry, true
}

// parseCredential splits "ssid/pass"; a bare value is an open network.
func parseCredential(v string) *domain.WifiCredential {
	if v == "" {
		return nil
	}
	ssid, pass, _ := strings.Cut(v, "/")
	return &domain.WifiCredential{SSID: ssid, Pass: pass}
}
