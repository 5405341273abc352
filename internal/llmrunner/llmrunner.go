// Package llmrunner provides concrete swarmtypes.RunnerFactory implementations
// backed by real LLM providers (Anthropic, OpenAI), plus an in-memory scripted
// factory for tests and demos. Each factory's Runner runs one subagent task
// to completion and reports the outcome as a swarmtypes.SubResult; the
// prompt/tool-call loop itself is intentionally thin — orchestration concerns
// (retries, admission, dependency gating) live above this package in
// subagentmgr and dispatcher.
package llmrunner

import (
	"strings"
	"time"
)

// isRetryableError classifies common transient provider failures the same
// way across backends: rate limits, 5xx, timeouts, and connection resets
// are retried; everything else (bad auth, malformed request) is not.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "rate_limit"), strings.Contains(msg, "429"), strings.Contains(msg, "too many requests"):
		return true
	case strings.Contains(msg, "500"), strings.Contains(msg, "502"), strings.Contains(msg, "503"), strings.Contains(msg, "504"),
		strings.Contains(msg, "internal server error"), strings.Contains(msg, "bad gateway"),
		strings.Contains(msg, "service unavailable"), strings.Contains(msg, "gateway timeout"):
		return true
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return true
	case strings.Contains(msg, "connection reset"), strings.Contains(msg, "connection refused"), strings.Contains(msg, "no such host"):
		return true
	default:
		return false
	}
}

// defaultMaxTokens is used when a RunnerConfig doesn't imply one.
const defaultMaxTokens = 4096

// defaultRetryDelay is the base delay between retry attempts: the Anthropic
// runner doubles it on each attempt, the OpenAI runner multiplies it by the
// attempt number.
const defaultRetryDelay = time.Second
