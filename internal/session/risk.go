package session

import (
	"net"
	"strings"
	"time"
)

// Risk increments per heuristic. The score is advisory telemetry: a high
// score is surfaced for inspection, never a block by itself.
const (
	riskPrivateIP  = 10
	riskBotAgent   = 30
	riskOddAgent   = 15
	riskStaleAge   = 15
	highRiskCutoff = 50

	normalUseCeiling = 8 * time.Hour
)

var botMarkers = []string{"bot", "crawler", "spider", "scraper", "curl", "wget", "python-requests"}

// RiskScore estimates how anomalous a browsing context looks, clamped to
// [0,100].
func RiskScore(ip, userAgent string, age time.Duration) int {
	score := 0
	if parsed := net.ParseIP(ip); parsed != nil && (parsed.IsPrivate() || parsed.IsLoopback()) {
		score += riskPrivateIP
	}
	ua := strings.ToLower(userAgent)
	for _, m := range botMarkers {
		if strings.Contains(ua, m) {
			score += riskBotAgent
			break
		}
	}
	if len(userAgent) < 20 || len(userAgent) > 500 {
		score += riskOddAgent
	}
	if age > normalUseCeiling {
		score += riskStaleAge
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score
}

// HighRisk reports whether a score crosses the inspection threshold.
func HighRisk(score int) bool {
	return score > highRiskCutoff
}
