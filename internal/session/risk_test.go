package session

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const normalUA = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 Chrome/120.0"

func TestRiskScoreBaseline(t *testing.T) {
	assert.Equal(t, 0, RiskScore("203.0.113.7", normalUA, time.Hour))
}

func TestRiskScoreHeuristics(t *testing.T) {
	assert.Equal(t, riskPrivateIP, RiskScore("10.0.0.5", normalUA, 0))
	assert.Equal(t, riskPrivateIP, RiskScore("127.0.0.1", normalUA, 0))
	assert.Equal(t, riskBotAgent, RiskScore("203.0.113.7", "Googlebot/2.1 (+http://www.google.com/bot.html) something", 0))
	assert.Equal(t, riskStaleAge, RiskScore("203.0.113.7", normalUA, 9*time.Hour))
	// Markers stack with the length heuristic.
	assert.Equal(t, riskBotAgent+riskOddAgent, RiskScore("203.0.113.7", "curl/8.0", 0))
}

func TestRiskScoreShortAndLongAgents(t *testing.T) {
	assert.Equal(t, riskOddAgent, RiskScore("203.0.113.7", "MyApp/1.0 Browser X", 0))
	long := normalUA + strings.Repeat("x", 600)
	assert.Equal(t, riskOddAgent, RiskScore("203.0.113.7", long, 0))
}

// The score must be clamped to [0,100] for every combination of inputs.
func TestRiskScoreAlwaysInRange(t *testing.T) {
	ips := []string{"", "10.0.0.1", "192.168.1.9", "127.0.0.1", "203.0.113.7", "not-an-ip"}
	agents := []string{"", "x", normalUA, "crawler spider bot curl wget", strings.Repeat("bot", 400)}
	ages := []time.Duration{0, time.Minute, 8 * time.Hour, 9 * time.Hour, 100 * time.Hour}
	for _, ip := range ips {
		for _, ua := range agents {
			for _, age := range ages {
				score := RiskScore(ip, ua, age)
				assert.GreaterOrEqual(t, score, 0, "ip=%q ua=%q age=%v", ip, ua, age)
				assert.LessOrEqual(t, score, 100, "ip=%q ua=%q age=%v", ip, ua, age)
			}
		}
	}
}

func TestHighRiskCutoff(t *testing.T) {
	assert.False(t, HighRisk(50))
	assert.True(t, HighRisk(51))
	// Private IP + bot agent that is also oddly short + stale age crosses it.
	score := RiskScore("192.168.0.2", "curl/8.0", 9*time.Hour)
	assert.True(t, HighRisk(score))
}
