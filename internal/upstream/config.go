package upstream

import (
	"time"

	"github.com/ksutools/portalgate/internal/proxy"
)

// Config holds the upstream endpoints and how requests to them are routed.
// Endpoints are overridable so tests can point fetchers at local servers.
type Config struct {
	UserInfoURL     string
	PersonalInfoURL string
	GradesURL       string
	CalendarURL     string

	// Mode selects which execution path carries the fetches. The portal
	// endpoints reject calls carrying browser-origin restrictions, so the
	// default is the privileged remote path.
	Mode proxy.Mode

	// PortalReferer is sent as the referer on authenticated calls.
	PortalReferer string

	// Timeouts per endpoint class.
	InfoTimeout  time.Duration
	FetchTimeout time.Duration
}

// DefaultConfig returns the production endpoints.
func DefaultConfig() Config {
	return Config{
		UserInfoURL:     "https://authx-service.ksu.edu.cn/personal/api/v1/personal/me/user",
		PersonalInfoURL: "https://portal-data.ksu.edu.cn/portalCenter/v2/personalData/getPersonalInfo",
		GradesURL:       "https://score-inquiry.ksu.edu.cn/api/std-grade/detail?project=1",
		CalendarURL:     "https://portal-data.ksu.edu.cn/portalCenter/v2/personalData/getXlInfo",
		Mode:            proxy.ModeRemote,
		PortalReferer:   "https://portal.ksu.edu.cn/main.html",
		InfoTimeout:     20 * time.Second,
		FetchTimeout:    25 * time.Second,
	}
}
