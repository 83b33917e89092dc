package util

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP resolves the caller address for rate-limit keying. Forwarded
// headers are honored only when trustForwarded is set, since the service
// normally sits directly next to the studio UI with no proxy in between.
func ClientIP(r *http.Request, trustForwarded bool) string {
	if trustForwarded {
		if ip := firstForwardedIP(r.Header.Get("X-Forwarded-For")); ip != "" {
			return ip
		}
		if ip := parseIP(r.Header.Get("X-Real-Ip")); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}

func firstForwardedIP(raw string) string {
	for _, part := range strings.Split(raw, ",") {
		if ip := parseIP(part); ip != "" {
			return ip
		}
	}
	return ""
}

func parseIP(raw string) string {
	ip := net.ParseIP(strings.TrimSpace(raw))
	if ip == nil {
		return ""
	}
	return ip.String()
}
