package security

import "strings"

// CandidateSecrets expands the configured signing secrets into the ordered
// list verification walks. Each secret contributes its raw form and its
// whitespace-trimmed form (deployments have shipped secrets with trailing
// newlines from env files). Empty values are skipped and duplicates removed
// while preserving first-seen order, so the primary secret is always tried
// before a rotation secret.
func CandidateSecrets(secrets ...string) []string {
	seen := make(map[string]struct{}, len(secrets)*2)
	candidates := make([]string, 0, len(secrets)*2)

	add := func(s string) {
		if s == "" {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		candidates = append(candidates, s)
	}

	for _, secret := range secrets {
		trimmed := strings.TrimSpace(secret)
		if trimmed == "" {
			continue
		}
		add(secret)
		add(trimmed)
	}
	return candidates
}
