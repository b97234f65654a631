package images

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"soragen/logging"
	"soragen/transport"
	"soragen/validation"
)

const (
	generationsPath = "/v1/images/generations"
	editsPath       = "/v1/images/edits"
	variationsPath  = "/v1/images/variations"
)

// Service exposes the synchronous image operations through the shared
// dispatcher.
//
// Thread Safety: Service is safe for concurrent use.
type Service struct {
	dispatcher *transport.Dispatcher
	logger     *logging.Logger
}

// NewService creates an image service on top of a dispatcher.
func NewService(dispatcher *transport.Dispatcher, logger *logging.Logger) (*Service, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("images: dispatcher cannot be nil")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Service{
		dispatcher: dispatcher,
		logger:     logger.Named("images"),
	}, nil
}

// generateBody is the JSON payload of the generations endpoint.
type generateBody struct {
	Prompt         string `json:"prompt"`
	Model          string `json:"model,omitempty"`
	N              int    `json:"n,omitempty"`
	Size           string `json:"size,omitempty"`
	Quality        string `json:"quality,omitempty"`
	ResponseFormat string `json:"response_format,omitempty"`
}

// Generate creates images from a prompt. The call is synchronous: the
// response carries the finished images.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (*Response, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("images: prompt cannot be empty")
	}

	var resp Response
	err := s.dispatcher.DoJSON(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   generationsPath,
		JSONBody: generateBody{
			Prompt:         req.Prompt,
			Model:          req.Model,
			N:              req.N,
			Size:           req.Size,
			Quality:        req.Quality,
			ResponseFormat: req.ResponseFormat,
		},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("images: response contained no images")
	}

	s.logger.Info("images generated",
		zap.Int("count", len(resp.Data)),
		zap.String("model", req.Model),
	)
	return &resp, nil
}

// Edit modifies one or more input images according to a prompt, with an
// optional mask marking the editable region.
func (s *Service) Edit(ctx context.Context, req EditRequest) (*Response, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("images: prompt cannot be empty")
	}
	if len(req.ImagePaths) == 0 {
		return nil, fmt.Errorf("images: at least one input image is required")
	}

	fields := map[string]string{"prompt": req.Prompt}
	addCommonImageFields(fields, req.Model, req.N, req.Size)

	// A single image uses the scalar field name; multiple inputs use the
	// array form the endpoint expects.
	imageField := "image"
	if len(req.ImagePaths) > 1 {
		imageField = "image[]"
	}

	var files []transport.FilePart
	var closers []*os.File
	defer func() {
		for _, f := range closers {
			f.Close()
		}
	}()

	for _, path := range req.ImagePaths {
		part, file, err := imageFilePart(imageField, path)
		if err != nil {
			return nil, err
		}
		closers = append(closers, file)
		files = append(files, part)
	}

	if req.MaskPath != "" {
		part, file, err := imageFilePart("mask", req.MaskPath)
		if err != nil {
			return nil, err
		}
		closers = append(closers, file)
		files = append(files, part)
	}

	var resp Response
	err := s.dispatcher.DoJSON(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   editsPath,
		Fields: fields,
		Files:  files,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("images: response contained no images")
	}

	s.logger.Info("image edit complete",
		zap.Int("inputs", len(req.ImagePaths)),
		zap.Bool("mask", req.MaskPath != ""),
	)
	return &resp, nil
}

// Variation produces variations of a single input image.
func (s *Service) Variation(ctx context.Context, req VariationRequest) (*Response, error) {
	if req.ImagePath == "" {
		return nil, fmt.Errorf("images: input image is required")
	}

	part, file, err := imageFilePart("image", req.ImagePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	fields := map[string]string{}
	addCommonImageFields(fields, req.Model, req.N, req.Size)

	var resp Response
	err = s.dispatcher.DoJSON(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   variationsPath,
		Fields: fields,
		Files:  []transport.FilePart{part},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("images: response contained no images")
	}

	s.logger.Info("image variation complete", zap.String("source", req.ImagePath))
	return &resp, nil
}

// addCommonImageFields fills the form fields shared by edits and
// variations.
func addCommonImageFields(fields map[string]string, model string, n int, size string) {
	if model != "" {
		fields["model"] = model
	}
	if n > 0 {
		fields["n"] = strconv.Itoa(n)
	}
	if size != "" {
		fields["size"] = size
	}
}

// imageFilePart validates a local image and opens it as a multipart file
// part. The returned file must be closed by the caller after dispatch.
func imageFilePart(field, path string) (transport.FilePart, *os.File, error) {
	mimeType, err := validation.DetectReferenceMIME(path)
	if err != nil {
		return transport.FilePart{}, nil, fmt.Errorf("images: input file: %w", err)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return transport.FilePart{}, nil, fmt.Errorf("images: %s is %s, not an image", path, mimeType)
	}

	file, err := os.Open(path)
	if err != nil {
		return transport.FilePart{}, nil, fmt.Errorf("images: opening %s: %w", path, err)
	}

	return transport.FilePart{
		Field:       field,
		Filename:    filepath.Base(path),
		ContentType: mimeType,
		Reader:      file,
	}, file, nil
}
