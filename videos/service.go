package videos

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"soragen/logging"
	"soragen/transport"
	"soragen/validation"
)

const videosPath = "/v1/videos"

// Service exposes the video job operations. All calls go through the
// shared dispatcher, so pacing and error classification are uniform.
//
// Thread Safety: Service is safe for concurrent use.
type Service struct {
	dispatcher *transport.Dispatcher
	logger     *logging.Logger
}

// NewService creates a video job service on top of a dispatcher.
func NewService(dispatcher *transport.Dispatcher, logger *logging.Logger) (*Service, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("videos: dispatcher cannot be nil")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Service{
		dispatcher: dispatcher,
		logger:     logger.Named("videos"),
	}, nil
}

// CreateRequest holds the parameters for a new video generation job.
type CreateRequest struct {
	// Prompt is the text description. Required.
	Prompt string

	// Model selects the generation model (e.g. "sora-2").
	Model string

	// Seconds is the clip length. Zero lets the server pick its default.
	Seconds int

	// Size is the output resolution, e.g. "1280x720".
	Size string

	// InputReferencePath optionally names a local image or mp4 used as a
	// generation reference. The file's type is sniffed and the upload is
	// rejected locally when it is not a supported reference type.
	InputReferencePath string
}

// Create submits a new video generation job and returns its initial
// snapshot (normally queued). The endpoint takes multipart form fields;
// an attached reference file becomes an additional file part.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Job, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("videos: prompt cannot be empty")
	}

	fields := map[string]string{"prompt": req.Prompt}
	if req.Model != "" {
		fields["model"] = req.Model
	}
	if req.Seconds > 0 {
		fields["seconds"] = strconv.Itoa(req.Seconds)
	}
	if req.Size != "" {
		fields["size"] = req.Size
	}

	treq := transport.Request{
		Method: http.MethodPost,
		Path:   videosPath,
		Fields: fields,
	}

	if req.InputReferencePath != "" {
		mimeType, err := validation.DetectReferenceMIME(req.InputReferencePath)
		if err != nil {
			return nil, fmt.Errorf("videos: reference file: %w", err)
		}
		file, err := os.Open(req.InputReferencePath)
		if err != nil {
			return nil, fmt.Errorf("videos: opening reference file: %w", err)
		}
		defer file.Close()

		treq.Files = []transport.FilePart{{
			Field:       "input_reference",
			Filename:    filepath.Base(req.InputReferencePath),
			ContentType: mimeType,
			Reader:      file,
		}}
	}

	var job Job
	if err := s.dispatcher.DoJSON(ctx, treq, &job); err != nil {
		return nil, err
	}
	if job.ID == "" {
		return nil, fmt.Errorf("videos: response missing job id")
	}

	s.logger.Info("video job created",
		zap.String("job_id", job.ID),
		zap.String("model", job.Model),
		zap.String("status", string(job.Status)),
	)
	return &job, nil
}

// Retrieve fetches the current snapshot of a job.
func (s *Service) Retrieve(ctx context.Context, id string) (*Job, error) {
	if id == "" {
		return nil, fmt.Errorf("videos: job id cannot be empty")
	}

	var job Job
	err := s.dispatcher.DoJSON(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   videosPath + "/{id}",
		ID:     id,
	}, &job)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// Download fetches the content of a completed job as raw bytes.
//
// The variant selects the rendition: VariantVideo for the primary mp4,
// VariantThumbnail for the preview image, VariantSpritesheet for the
// summary-frames image.
func (s *Service) Download(ctx context.Context, id string, variant Variant) ([]byte, string, error) {
	if id == "" {
		return nil, "", fmt.Errorf("videos: job id cannot be empty")
	}
	if variant == "" {
		variant = VariantVideo
	}
	if !variant.Valid() {
		return nil, "", fmt.Errorf("videos: unknown content variant %q", variant)
	}

	query := url.Values{}
	if variant != VariantVideo {
		query.Set("variant", string(variant))
	}

	accept := "video/mp4"
	if variant != VariantVideo {
		accept = "image/*"
	}

	return s.dispatcher.DoBinary(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   videosPath + "/{id}/content",
		ID:     id,
		Query:  query,
		Accept: accept,
	})
}

// DownloadToFile downloads a job's content and writes it atomically: the
// data lands in a temporary sibling file that is renamed into place only
// after a complete write, so a partial download never shadows a good file.
func (s *Service) DownloadToFile(ctx context.Context, id string, variant Variant, outputPath string) error {
	data, _, err := s.Download(ctx, id, variant)
	if err != nil {
		return err
	}

	tmpPath := outputPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("videos: writing %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, outputPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("videos: renaming %s: %w", tmpPath, err)
	}

	s.logger.Info("job content saved",
		zap.String("job_id", id),
		zap.String("variant", string(variant)),
		zap.String("path", outputPath),
		zap.Int("bytes", len(data)),
	)
	return nil
}

// ListOptions controls job listing pagination.
type ListOptions struct {
	// Limit caps the page size (server default applies when zero).
	Limit int

	// After is the pagination cursor from a previous page.
	After string

	// Order is "asc" or "desc" by creation time.
	Order string
}

// List fetches one page of jobs.
func (s *Service) List(ctx context.Context, opts ListOptions) (*JobList, error) {
	query := url.Values{}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.After != "" {
		query.Set("after", opts.After)
	}
	if opts.Order != "" {
		query.Set("order", opts.Order)
	}

	var list JobList
	err := s.dispatcher.DoJSON(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   videosPath,
		Query:  query,
	}, &list)
	if err != nil {
		return nil, err
	}
	return &list, nil
}

// Delete removes a job and its stored content from the service.
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("videos: job id cannot be empty")
	}

	err := s.dispatcher.DoJSON(ctx, transport.Request{
		Method: http.MethodDelete,
		Path:   videosPath + "/{id}",
		ID:     id,
	}, nil)
	if err != nil {
		return err
	}

	s.logger.Info("video job deleted", zap.String("job_id", id))
	return nil
}

// Remix creates a new job derived from an existing video with a fresh
// prompt describing the change.
func (s *Service) Remix(ctx context.Context, id string, prompt string) (*Job, error) {
	if id == "" {
		return nil, fmt.Errorf("videos: job id cannot be empty")
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, fmt.Errorf("videos: remix prompt cannot be empty")
	}

	var job Job
	err := s.dispatcher.DoJSON(ctx, transport.Request{
		Method:   http.MethodPost,
		Path:     videosPath + "/{id}/remix",
		ID:       id,
		JSONBody: map[string]string{"prompt": prompt},
	}, &job)
	if err != nil {
		return nil, err
	}
	if job.ID == "" {
		return nil, fmt.Errorf("videos: response missing job id")
	}

	s.logger.Info("remix job created",
		zap.String("job_id", job.ID),
		zap.String("source_id", id),
	)
	return &job, nil
}

// CreateAndWait submits a job and polls it to completion with the same
// session semantics as WaitForCompletion.
func (s *Service) CreateAndWait(ctx context.Context, req CreateRequest, opts PollOptions) (*Job, error) {
	job, err := s.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.WaitForCompletion(ctx, job.ID, opts)
}
