package vpn

import "strings"

// LineKind is the classification of one client output line.
type LineKind int

const (
	// LineNormal carries no state signal.
	LineNormal LineKind = iota
	// LineConnected confirms the tunnel or SOCKS listener is up.
	LineConnected
	// LineConnectError is a failure reported before the connection was confirmed.
	LineConnectError
	// LinePostConnectError is an anomaly reported after the connection was confirmed.
	LinePostConnectError
)

func (k LineKind) String() string {
	switch k {
	case LineConnected:
		return "connected"
	case LineConnectError:
		return "connect_error"
	case LinePostConnectError:
		return "post_connect_error"
	}
	return "normal"
}

// Phrases matched case-insensitively against client output.
var (
	connectedPhrases = []string{
		"successfully connected to endpoint",
		"successfully connected",
		"socks listener started",
	}

	connectErrorPhrases = []string{
		"failed to",
		"denied",
		"unauthorized",
		"refused",
		"failed parsing",
		"failed to start listening",
		"failed to create listener",
		"failed to initialize tunnel",
		"couldn't detect active network",
		"failed on create vpn",
	}
)

// Classify tags a client output line. alreadyConnected selects which error
// rules apply: connect-phase rules before confirmation, post-connect rules after.
// The connected check always runs first.
func Classify(line string, alreadyConnected bool) LineKind {
	lower := strings.ToLower(line)

	if containsAny(lower, connectedPhrases) ||
		(strings.Contains(lower, "listening") && strings.Contains(lower, "socks")) ||
		(strings.Contains(lower, "socks") && strings.Contains(lower, "bind")) {
		return LineConnected
	}

	if !alreadyConnected {
		if strings.Contains(lower, "waiting recovery") {
			return LineNormal
		}
		if strings.HasPrefix(lower, "error:") || containsAny(lower, connectErrorPhrases) {
			return LineConnectError
		}
		return LineNormal
	}

	switch {
	case strings.Contains(lower, "health check error"),
		strings.Contains(lower, "response: http/2.0 407"),
		strings.Contains(lower, "authorization required") && !strings.Contains(lower, "proxy-authenticate"),
		strings.Contains(lower, "connection failed") && strings.Contains(lower, "socks"):
		return LinePostConnectError
	}
	return LineNormal
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
