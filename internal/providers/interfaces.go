package providers

import (
	"context"

	"github.com/tributary-ai/postgen/internal/types"
)

// GenerationProvider is implemented by every text generation backend.
// The credential is passed per call so a pool can rotate secrets between attempts.
type GenerationProvider interface {
	GetProviderName() string
	Generate(ctx context.Context, credential string, req *types.GenerationRequest) (*types.GenerationResponse, error)
}

// VisionProvider is a provider that accepts inline images
type VisionProvider interface {
	GenerationProvider
	SupportsVision() bool
	GetSupportedImageFormats() []string
}

// SupportsImage reports whether a provider can take an inline image of the given MIME type
func SupportsImage(p GenerationProvider, mimeType string) bool {
	vp, ok := p.(VisionProvider)
	if !ok || !vp.SupportsVision() {
		return false
	}
	for _, f := range vp.GetSupportedImageFormats() {
		if f == mimeType {
			return true
		}
	}
	return false
}
