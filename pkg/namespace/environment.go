package namespace

import "strings"

// Environment represents the deployment environment
type Environment string

const (
	EnvironmentProduction  Environment = "production"
	EnvironmentStaging     Environment = "staging"
	EnvironmentDevelopment Environment = "development"
	EnvironmentUnknown     Environment = "unknown"
)

var (
	productionPatterns  = []string{"prod", "production", "prd"}
	stagingPatterns     = []string{"staging", "stage", "stg", "uat"}
	developmentPatterns = []string{"dev", "develop", "test", "sandbox", "demo"}
)

// ClassifyEnvironment determines the environment of a namespace from its
// labels, falling back to its name.
func ClassifyEnvironment(name string, labels map[string]string) Environment {
	if env, ok := labels["environment"]; ok {
		if e := normalizeEnvironment(env); e != EnvironmentUnknown {
			return e
		}
	}

	if tier, ok := labels["tier"]; ok {
		switch strings.ToLower(tier) {
		case "prod", "production":
			return EnvironmentProduction
		case "staging", "stage":
			return EnvironmentStaging
		case "dev", "development":
			return EnvironmentDevelopment
		}
	}

	return environmentFromName(name)
}

// normalizeEnvironment converts label value to Environment type
func normalizeEnvironment(label string) Environment {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "production", "prod", "prd":
		return EnvironmentProduction
	case "staging", "stage", "stg":
		return EnvironmentStaging
	case "development", "dev", "test", "testing":
		return EnvironmentDevelopment
	default:
		return EnvironmentUnknown
	}
}

func environmentFromName(namespace string) Environment {
	name := strings.ToLower(namespace)

	if containsAny(name, productionPatterns) {
		return EnvironmentProduction
	}
	if containsAny(name, stagingPatterns) {
		return EnvironmentStaging
	}
	if containsAny(name, developmentPatterns) {
		return EnvironmentDevelopment
	}
	return EnvironmentUnknown
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
