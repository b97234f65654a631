// Package images exposes the synchronous image endpoints: generation,
// editing, and variations, plus the SSRF-gated fetcher for URL-form
// results.
package images

// GenerateRequest holds the parameters for image generation.
type GenerateRequest struct {
	// Prompt is the text description. Required.
	Prompt string

	// Model selects the image model (e.g. "gpt-image-1", "dall-e-3").
	Model string

	// N is the number of images (server default when zero).
	N int

	// Size is the output resolution, e.g. "1024x1024".
	Size string

	// Quality is model-specific ("standard", "hd", ...).
	Quality string

	// ResponseFormat is "url" or "b64_json"; the server default applies
	// when empty. Some models only support one of the two.
	ResponseFormat string
}

// EditRequest holds the parameters for an image edit.
type EditRequest struct {
	// ImagePaths names one or more local input images. Required.
	ImagePaths []string

	// MaskPath optionally names a mask image whose transparent areas mark
	// the regions to edit.
	MaskPath string

	// Prompt describes the desired edit. Required.
	Prompt string

	Model string
	N     int
	Size  string
}

// VariationRequest holds the parameters for an image variation.
type VariationRequest struct {
	// ImagePath names the single local input image. Required.
	ImagePath string

	Model string
	N     int
	Size  string
}

// ImageData is one generated image, delivered either as a temporary URL
// or inline base64 depending on the requested response format.
type ImageData struct {
	URL           string `json:"url"`
	B64JSON       string `json:"b64_json"`
	RevisedPrompt string `json:"revised_prompt"`
}

// Response is the common payload of all three image endpoints.
type Response struct {
	Created int64       `json:"created"`
	Data    []ImageData `json:"data"`
}
