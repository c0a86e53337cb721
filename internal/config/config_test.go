package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const minimalConfig = `
providers:
  brief:
    base_url: https://briefs.example.com
  generation:
    base_url: https://llm.example.com
    model: writer-lg
  qa:
    base_url: https://qa.example.com
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, 5, cfg.Pipeline.Concurrency)
	require.Equal(t, 5, cfg.Breaker.FailureThreshold)
	require.Equal(t, 30, cfg.Breaker.CooldownSeconds)
	require.False(t, cfg.Breaker.ShadowMode)
	require.True(t, cfg.Providers.Brief.Enabled)
	require.True(t, cfg.Providers.QA.Enabled)
	require.Equal(t, "writer-lg", cfg.Providers.Generation.Model)
	require.Equal(t, "drafts", cfg.Pipeline.DraftPrefix)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CONTENTGEN_PIPELINE_CONCURRENCY", "10")
	t.Setenv("CONTENTGEN_BREAKER_SHADOW_MODE", "true")
	t.Setenv("CONTENTGEN_PROVIDERS_BRIEF_ENABLED", "false")

	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	require.Equal(t, 10, cfg.Pipeline.Concurrency)
	require.True(t, cfg.Breaker.ShadowMode)
	require.False(t, cfg.Providers.Brief.Enabled)
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "missing generation url",
			body: `
providers:
  brief:
    base_url: https://briefs.example.com
  qa:
    base_url: https://qa.example.com
`,
			want: "providers.generation.base_url",
		},
		{
			name: "auth enabled without key",
			body: minimalConfig + `
auth:
  enabled: true
`,
			want: "auth.api_key",
		},
		{
			name: "zero breaker threshold",
			body: minimalConfig + `
breaker:
  failure_threshold: 0
`,
			want: "breaker.failure_threshold",
		},
		{
			name: "topic without project",
			body: minimalConfig + `
pubsub:
  topic_name: content-events
`,
			want: "pubsub.project_id",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestBriefDisabledNeedsNoURL(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
providers:
  brief:
    enabled: false
  generation:
    base_url: https://llm.example.com
  qa:
    enabled: false
`))
	require.NoError(t, err)
	require.False(t, cfg.Providers.Brief.Enabled)
	require.False(t, cfg.Providers.QA.Enabled)
}
