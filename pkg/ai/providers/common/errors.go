// Package common provides shared utilities used by every provider adapter:
// error enhancement, retry-with-backoff, and cache-key derivation.
package common

import (
	"fmt"
	"strings"
)

// ErrorContext carries provider-specific information for error enhancement.
type ErrorContext struct {
	ProviderName      string // e.g. "OpenAI", "Claude", "Google Gemini"
	APIKeysURL        string
	StatusPageURL     string
	BillingURL        string
	AlternateProvider string
}

// EnhanceAPIError adds actionable context to a provider API error, the same
// way across every adapter (the teacher's Claude/OpenAI adapters each had
// their own copy of this; here it is the single shared implementation every
// adapter calls).
func EnhanceAPIError(err error, ctx ErrorContext) error {
	if err == nil {
		return nil
	}
	errMsg := err.Error()

	switch {
	case containsAny(errMsg, "401", "unauthorized", "invalid api key"):
		envVar := strings.ToUpper(ctx.ProviderName) + "_API_KEY"
		return fmt.Errorf("%s API authentication failed: %w\n\n"+
			"Possible causes:\n"+
			"  - Invalid or expired API key\n"+
			"  - API key revoked or deleted\n\n"+
			"To fix:\n"+
			"  1. Verify your API key at: %s\n"+
			"  2. Ensure %s is set correctly\n"+
			"  3. Try generating a new API key", ctx.ProviderName, err, ctx.APIKeysURL, envVar)

	case containsAny(errMsg, "429", "rate limit"):
		return fmt.Errorf("%s API rate limit exceeded: %w\n\n"+
			"You've made too many requests in a short period.\n\n"+
			"To fix:\n"+
			"  1. Wait a few minutes and try again\n"+
			"  2. Reduce concurrency (ai_max_concurrent)\n"+
			"  3. Upgrade your %s API plan for higher limits", ctx.ProviderName, err, ctx.ProviderName)

	case containsAny(errMsg, "insufficient_quota", "quota"):
		msg := fmt.Sprintf("%s API quota exceeded: %%w\n\n"+
			"You've reached your account spending limit.\n\n"+
			"To fix:\n"+
			"  1. Check your usage and add credits if needed\n"+
			"  2. Upgrade your plan for higher limits", ctx.ProviderName)
		if ctx.BillingURL != "" {
			msg = fmt.Sprintf("%s API quota exceeded: %%w\n\n"+
				"You've reached your account spending limit.\n\n"+
				"To fix:\n"+
				"  1. Add credits: %s\n"+
				"  2. Upgrade your plan for higher limits", ctx.ProviderName, ctx.BillingURL)
		}
		if ctx.AlternateProvider != "" {
			msg += fmt.Sprintf("\n  3. Or switch provider to %s", strings.ToLower(ctx.AlternateProvider))
		}
		return fmt.Errorf(msg, err)

	case containsAny(errMsg, "timeout", "deadline exceeded"):
		return fmt.Errorf("%s API request timed out: %w\n\n"+
			"The request took too long to complete.\n\n"+
			"To fix:\n"+
			"  1. Check your internet connection\n"+
			"  2. Try again - this is often transient\n"+
			"  3. If persistent, reduce file size or lower max_tokens", ctx.ProviderName, err)

	case containsAny(errMsg, "connection", "network", "dial"):
		return fmt.Errorf("network error connecting to %s API: %w\n\n"+
			"Unable to reach the API servers.\n\n"+
			"To fix:\n"+
			"  1. Check your internet connection\n"+
			"  2. Check if a firewall/proxy is blocking the connection\n"+
			"  3. Try again in a few moments", ctx.ProviderName, err)

	case containsAny(errMsg, "500", "502", "503"):
		msg := fmt.Sprintf("%s API server error: %%w\n\n"+
			"The API is experiencing issues.\n\n"+
			"To fix:\n"+
			"  1. Wait a few minutes and try again", ctx.ProviderName)
		if ctx.StatusPageURL != "" {
			msg += fmt.Sprintf("\n  2. Check status page: %s", ctx.StatusPageURL)
		}
		if ctx.AlternateProvider != "" {
			msg += fmt.Sprintf("\n  3. If urgent, switch provider to %s", strings.ToLower(ctx.AlternateProvider))
		}
		return fmt.Errorf(msg, err)

	default:
		return fmt.Errorf("%s API error: %w", ctx.ProviderName, err)
	}
}

func containsAny(s string, substrs ...string) bool {
	lower := strings.ToLower(s)
	for _, sub := range substrs {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}
