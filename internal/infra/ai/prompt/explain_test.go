package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bryanwahyu/cloudsec/internal/domain/ai"
	"github.com/bryanwahyu/cloudsec/internal/domain/resources"
	"github.com/bryanwahyu/cloudsec/internal/domain/risks"
)

func TestGetUserPrompt(t *testing.T) {
	k := &risks.Risk{Type: risks.TypePublicBucket, Severity: risks.SeverityHigh, Description: "Bucket public-assets is publicly accessible."}

	p := GetUserPrompt(ai.Subject{Risk: k})
	assert.Contains(t, p, "PUBLIC_BUCKET")
	assert.Contains(t, p, "HIGH")
	assert.NotContains(t, p, "Resource:")

	p = GetUserPrompt(ai.Subject{Risk: k, Resource: &resources.Resource{Type: resources.TypeBucket, Name: "public-assets", Public: true}})
	assert.Contains(t, p, `BUCKET "public-assets" in - (public: true)`)
}
