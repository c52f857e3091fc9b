package notifications

import (
	"testing"

	"github.com/bissquit/healthboard/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderer_RenderStatusChange(t *testing.T) {
	renderer, err := NewRenderer()
	require.NoError(t, err)

	tests := []struct {
		name        string
		from, to    domain.StatusLevel
		eventURL    bool
		wantSubject string
		wantBody    []string
	}{
		{"degraded", domain.StatusGreen, domain.StatusOrange, true, "[Degraded] Cache",
			[]string{"🟠 **Cache** is now **Orange** (was Green)", "major outage", "[View event]"}},
		{"improving", domain.StatusRed, domain.StatusYellow, true, "[Improving] Cache",
			[]string{"**Yellow** (was Red)", "some issues"}},
		{"recovered without link", domain.StatusYellow, domain.StatusGreen, false, "[Recovered] Cache",
			[]string{"🟢", "operating as expected", "Jan 1, 2024 12:30 UTC"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			change := databaseDown
			change.Name, change.Slug = "Cache", "cache"
			change.OldStatus, change.NewStatus = tt.from, tt.to

			baseURL := ""
			if tt.eventURL {
				baseURL = "https://status.example.com"
			}

			subject, body, err := renderer.RenderStatusChange(NewStatusChangePayload(change, baseURL))
			require.NoError(t, err)

			assert.Equal(t, tt.wantSubject, subject)
			for _, want := range tt.wantBody {
				assert.Contains(t, body, want)
			}
			if !tt.eventURL {
				assert.NotContains(t, body, "View event")
			}
		})
	}
}
