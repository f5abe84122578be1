package democracy

import (
	"net/url"
	"strings"
)

// Platform is a committee-management system used by councils.
type Platform string

const (
	// PlatformModernGov is Civica ModernGov (mgMemberIndex.aspx, mgUserInfo.aspx, mgRofI.aspx)
	PlatformModernGov Platform = "moderngov"
	// PlatformCMIS is the CMIS committee system
	PlatformCMIS Platform = "cmis"
	// PlatformUnknown is an unrecognized platform
	PlatformUnknown Platform = "unknown"
)

// DetectPlatform identifies the democracy platform from a URL.
func DetectPlatform(urlStr string) Platform {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return PlatformUnknown
	}

	host := strings.ToLower(parsed.Host)
	path := strings.ToLower(parsed.Path)

	if strings.Contains(host, "moderngov") ||
		(strings.HasPrefix(pathBase(path), "mg") && strings.HasSuffix(path, ".aspx")) {
		return PlatformModernGov
	}

	if strings.Contains(host, "cmis") || strings.Contains(path, "/cmis5/") {
		return PlatformCMIS
	}

	return PlatformUnknown
}

// RegisterURLFromProfile derives the register page of a ModernGov member profile:
// mgUserInfo.aspx?UID=N has its register at mgRofI.aspx?UID=N.
func RegisterURLFromProfile(profileURL string) (string, bool) {
	if DetectPlatform(profileURL) != PlatformModernGov {
		return "", false
	}
	u, err := url.Parse(profileURL)
	if err != nil || !strings.EqualFold(pathBase(u.Path), "mgUserInfo.aspx") {
		return "", false
	}
	uid := u.Query().Get("UID")
	if uid == "" {
		return "", false
	}

	dir := u.Path[:len(u.Path)-len(pathBase(u.Path))]
	register := *u
	register.Path = dir + "mgRofI.aspx"
	register.RawPath = ""
	register.RawQuery = url.Values{"UID": []string{uid}}.Encode()
	register.Fragment = ""
	return register.String(), true
}

func pathBase(p string) string {
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}
