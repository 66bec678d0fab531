// Package device derives a device identity and a human-readable label from raw client signals.
package device

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"otp-verification-service/internal/device/domain"
)

// IDPrefix is prepended to every device id.
const IDPrefix = "dev_"

// idHexLen is the number of hex characters of the digest kept in the id.
const idHexLen = 32

// nameRule maps a lower-cased user-agent token to a device label.
type nameRule struct {
	token string
	name  string
	// also, when set, must be present as well for the rule to match.
	also string
}

// nameRules is evaluated in order: phone/tablet OS tokens, desktop OS tokens,
// CLI/API tooling, then the generic "mobile" keyword. More specific tokens come first.
var nameRules = []nameRule{
	{token: "ipad", name: "iPad"},
	{token: "iphone", name: "iPhone"},
	{token: "ipod", name: "iPod"},
	{token: "windows phone", name: "Windows Phone"},
	{token: "android", also: "mobile", name: "Android Phone"},
	{token: "android", name: "Android Tablet"},
	{token: "windows", name: "Windows PC"},
	{token: "cros ", name: "Chromebook"},
	{token: "macintosh", name: "Mac"},
	{token: "mac os x", name: "Mac"},
	{token: "linux", name: "Linux PC"},
	{token: "postmanruntime", name: "Postman"},
	{token: "insomnia", name: "Insomnia"},
	{token: "httpie", name: "HTTPie"},
	{token: "curl", name: "curl"},
	{token: "wget", name: "Wget"},
	{token: "python-requests", name: "Python Requests"},
	{token: "go-http-client", name: "Go HTTP Client"},
	{token: "okhttp", name: "OkHttp"},
	{token: "mobile", name: "Mobile Device"},
}

// Fingerprint returns the DeviceInfo for the given user agent and source address.
// It is pure: the same inputs always produce the same id and label.
func Fingerprint(userAgent, sourceAddress string) domain.DeviceInfo {
	return domain.DeviceInfo{
		DeviceID:   DeviceID(userAgent, sourceAddress),
		DeviceName: DeviceName(userAgent),
		UserAgent:  userAgent,
		IPAddress:  sourceAddress,
	}
}

// DeviceID hashes userAgent and sourceAddress into a fixed-length id with IDPrefix.
// Clients behind the same NAT with the same browser share an id.
func DeviceID(userAgent, sourceAddress string) string {
	h := sha256.Sum256([]byte(userAgent + sourceAddress))
	return IDPrefix + hex.EncodeToString(h[:])[:idHexLen]
}

// DeviceName classifies userAgent. Returns domain.UnknownDeviceName when nothing matches.
func DeviceName(userAgent string) string {
	ua := strings.ToLower(userAgent)
	if ua == "" {
		return domain.UnknownDeviceName
	}
	for _, r := range nameRules {
		if !strings.Contains(ua, r.token) {
			continue
		}
		if r.also != "" && !strings.Contains(ua, r.also) {
			continue
		}
		return r.name
	}
	return domain.UnknownDeviceName
}
