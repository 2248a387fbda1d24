package namespace

import "testing"

func TestClassifyEnvironment(t *testing.T) {
	tests := []struct {
		name      string
		namespace string
		labels    map[string]string
		want      Environment
	}{
		{"environment label", "apps", map[string]string{"environment": "Prod"}, EnvironmentProduction},
		{"environment label staging", "apps", map[string]string{"environment": "stg"}, EnvironmentStaging},
		{"tier label", "apps", map[string]string{"tier": "dev"}, EnvironmentDevelopment},
		{"unknown label falls through to name", "shop-prod", map[string]string{"environment": "blue"}, EnvironmentProduction},
		{"name production", "payments-prd", nil, EnvironmentProduction},
		{"name staging", "shop-uat", nil, EnvironmentStaging},
		{"name development", "sandbox-42", nil, EnvironmentDevelopment},
		{"label wins over name", "shop-dev", map[string]string{"environment": "production"}, EnvironmentProduction},
		{"nothing matches", "shop", nil, EnvironmentUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyEnvironment(tt.namespace, tt.labels); got != tt.want {
				t.Errorf("ClassifyEnvironment(%q) = %v, want %v", tt.namespace, got, tt.want)
			}
		})
	}
}
