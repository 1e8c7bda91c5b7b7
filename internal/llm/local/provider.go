// Package local implements llm.Provider without any backend: it renders a
// deterministic diary-note template. Configured as the last-resort rank so
// offline deployments still degrade gracefully before the router's
// emergency path.
package local

import (
	"context"
	"fmt"
	"time"

	"voicediary/internal/llm"
)

// Provider renders the offline template.
type Provider struct {
	now func() time.Time
}

func NewProvider() *Provider {
	return &Provider{now: time.Now}
}

func (p *Provider) Name() string { return "local" }

func (p *Provider) Generate(_ context.Context, _, _, _ string) (string, error) {
	return fmt.Sprintf(`📅 **Date & Time**: %s

😊 **Mood/Feelings**: [Generated with local fallback model]

🌟 **Key Events**:
The audio contained a personal recording that was processed through our transcription system.

💭 **Thoughts & Reflections**:
This diary entry was generated using a local fallback model due to cloud LLM service unavailability.

🎯 **Takeaways**:
Please review the transcription directly for the most accurate representation of the content.

---
*Note: This entry was generated by a simplified local model.*`,
		p.now().Format("2006-01-02 15:04")), nil
}

var _ llm.Provider = (*Provider)(nil)
