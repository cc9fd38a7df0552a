// Package device derives coarse, non-authoritative client metadata from a User-Agent.
package device

import (
	"strings"

	"go-auth-session/internal/model"
)

type rule struct {
	token string
	name  string
}

// Order matters: Edge and Opera also advertise Chrome, Chrome advertises Safari.
var browserRules = []rule{
	{"edg/", "Edge"},
	{"opr/", "Opera"},
	{"firefox/", "Firefox"},
	{"chrome/", "Chrome"},
	{"crios/", "Chrome"},
	{"safari/", "Safari"},
	{"curl/", "curl"},
	{"postman", "Postman"},
}

var osRules = []rule{
	{"windows", "Windows"},
	{"android", "Android"},
	{"iphone", "iOS"},
	{"ipad", "iOS"},
	{"mac os x", "macOS"},
	{"linux", "Linux"},
}

func Parse(userAgent string) model.DeviceInfo {
	info := model.DeviceInfo{
		UserAgent: userAgent,
		Browser:   "Unknown",
		OS:        "Unknown",
		Device:    "Desktop",
	}

	ua := strings.ToLower(userAgent)
	if strings.TrimSpace(ua) == "" {
		info.Device = "Unknown"
		return info
	}

	info.Browser = match(ua, browserRules, "Unknown")
	info.OS = match(ua, osRules, "Unknown")

	switch {
	case strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet"):
		info.Device = "Tablet"
		info.IsMobile = true
	case strings.Contains(ua, "mobile") || strings.Contains(ua, "iphone") || strings.Contains(ua, "android"):
		info.Device = "Mobile"
		info.IsMobile = true
	case strings.Contains(ua, "bot") || strings.Contains(ua, "curl/"):
		info.Device = "Bot"
	}

	return info
}

func match(ua string, rules []rule, fallback string) string {
	for _, r := range rules {
		if strings.Contains(ua, r.token) {
			return r.name
		}
	}
	return fallback
}
