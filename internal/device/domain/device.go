package domain

// UnknownDeviceName is the label used when no classification rule matches.
const UnknownDeviceName = "Unknown Device"

// DeviceInfo describes the requesting client. It is derived per request from raw
// client signals; only DeviceID and DeviceName are written into a challenge.
type DeviceInfo struct {
	DeviceID   string
	DeviceName string
	UserAgent  string
	IPAddress  string
}
