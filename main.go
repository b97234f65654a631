package main

import (
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"soragen/client"
	"soragen/core"
	"soragen/history"
	"soragen/images"
	"soragen/logging"
	"soragen/promptgen"
	"soragen/shutdown"
	"soragen/videos"
)

const usageText = `Usage: soragen <command> [flags]

Video commands:
  create     Submit a video generation job
  status     Show a job's current state
  download   Save a completed job's content
  list       List recent jobs
  delete     Remove a job from the service
  remix      Derive a new job from an existing video

Image commands:
  image      Generate images from a prompt
  edit       Edit images with a prompt and optional mask
  variation  Produce variations of an image

Other:
  history    List locally recorded generations

Run 'soragen <command> -h' for command flags.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(2)
	}

	cfg, err := core.LoadConfig(os.Getenv("SORAGEN_CONFIG"))
	if err != nil {
		fatalf("configuration: %v", err)
	}

	logger, err := logging.NewLogger(!cfg.IsProduction(), cfg.LogFile)
	if err != nil {
		fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := shutdown.WithSignals(context.Background(), func() {
		fmt.Fprintln(os.Stderr, "forced exit")
		os.Exit(1)
	})
	defer stop()

	app := &app{cfg: cfg, logger: logger}
	defer app.close()
	if err := app.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		logger.Error("command failed", zap.String("command", os.Args[1]), zap.Error(err))
		fatalf("%v", err)
	}
}

func fatalf(format string, args ...interface{}) {
	color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "error: ")
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// app carries the lazily built client and history store through one
// command invocation.
type app struct {
	cfg    *core.Config
	logger *logging.Logger

	cli   *client.Client
	store *history.Store
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "create":
		return a.cmdCreate(ctx, args)
	case "status":
		return a.cmdStatus(ctx, args)
	case "download":
		return a.cmdDownload(ctx, args)
	case "list":
		return a.cmdList(ctx, args)
	case "delete":
		return a.cmdDelete(ctx, args)
	case "remix":
		return a.cmdRemix(ctx, args)
	case "image":
		return a.cmdImage(ctx, args)
	case "edit":
		return a.cmdEdit(ctx, args)
	case "variation":
		return a.cmdVariation(ctx, args)
	case "history":
		return a.cmdHistory(ctx, args)
	case "help", "-h", "--help":
		fmt.Print(usageText)
		return nil
	default:
		fmt.Fprint(os.Stderr, usageText)
		return fmt.Errorf("unknown command %q", command)
	}
}

// client builds the API client on first use so local-only commands
// (history) work without a credential.
func (a *app) client() (*client.Client, error) {
	if a.cli != nil {
		return a.cli, nil
	}
	cli, err := client.New(a.cfg, a.logger)
	if err != nil {
		return nil, err
	}
	a.cli = cli
	return cli, nil
}

func (a *app) close() {
	if a.store != nil {
		a.store.Close()
	}
}

func (a *app) openStore() (*history.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	store, err := history.Open(a.cfg.HistoryDBPath)
	if err != nil {
		return nil, err
	}
	a.store = store
	return store, nil
}

// record writes a history row; failures are logged, never fatal, so a
// broken local database cannot block a generation in flight.
func (a *app) record(ctx context.Context, rec history.Record) {
	store, err := a.openStore()
	if err != nil {
		a.logger.Warn("history unavailable", zap.Error(err))
		return
	}
	if _, err := store.Add(ctx, rec); err != nil {
		a.logger.Warn("history record failed", zap.Error(err))
	}
}

func (a *app) cmdCreate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	prompt := fs.String("prompt", "", "text description of the video (required)")
	model := fs.String("model", a.cfg.VideoModel, "generation model")
	seconds := fs.Int("seconds", 0, "clip length in seconds (0 = server default)")
	size := fs.String("size", "", "output resolution, e.g. 1280x720")
	ref := fs.String("ref", "", "local image or mp4 used as a generation reference")
	wait := fs.Bool("wait", true, "poll until the job finishes")
	output := fs.String("output", "", "save the finished video to this path (implies -wait)")
	enhance := fs.Bool("enhance", a.cfg.EnhancePrompts, "rewrite the prompt with a chat model first")
	fs.Parse(args)

	if strings.TrimSpace(*prompt) == "" {
		return fmt.Errorf("create: -prompt is required")
	}
	if *seconds > 0 && !videos.SupportsDuration(*model, *seconds) {
		return fmt.Errorf("create: model %s does not support %d-second clips", *model, *seconds)
	}
	if *size != "" && !videos.SupportsSize(*model, *size) {
		return fmt.Errorf("create: model %s does not support size %s", *model, *size)
	}

	cli, err := a.client()
	if err != nil {
		return err
	}

	finalPrompt := *prompt
	if *enhance && cli.Enhancer() != nil {
		enhanced, err := cli.Enhancer().Enhance(ctx, promptgen.KindVideo, *prompt)
		if err != nil {
			a.logger.Warn("prompt enhancement failed, using original", zap.Error(err))
		} else {
			finalPrompt = enhanced
			color.New(color.FgHiBlack).Printf("enhanced prompt: %s\n", enhanced)
		}
	}

	if *seconds > 0 {
		if cost, ok := videos.EstimateCost(*model, *seconds); ok {
			color.New(color.FgHiBlack).Printf("estimated cost: $%.2f\n", cost)
		}
	}

	job, err := cli.Videos().Create(ctx, videos.CreateRequest{
		Prompt:             finalPrompt,
		Model:              *model,
		Seconds:            *seconds,
		Size:               *size,
		InputReferencePath: *ref,
	})
	if err != nil {
		return err
	}
	a.record(ctx, history.Record{
		Kind:     history.KindVideo,
		RemoteID: job.ID,
		Prompt:   finalPrompt,
		Model:    job.Model,
		Status:   string(job.Status),
	})
	printJob(job)

	if !*wait && *output == "" {
		return nil
	}
	return a.waitAndMaybeDownload(ctx, cli, job.ID, *output)
}

// waitAndMaybeDownload polls a job to completion, then downloads it when
// an output path was given (a default name is derived otherwise).
func (a *app) waitAndMaybeDownload(ctx context.Context, cli *client.Client, jobID, output string) error {
	color.New(color.FgCyan).Printf("waiting for %s...\n", jobID)
	job, err := cli.Videos().WaitForCompletion(ctx, jobID, cli.PollOptions())
	if err != nil {
		if store, serr := a.openStore(); serr == nil {
			status := "failed"
			if videos.IsTimedOut(err) || videos.IsCanceled(err) {
				status = "abandoned"
			}
			_ = store.UpdateStatus(ctx, jobID, status, "")
		}
		return err
	}

	if output == "" {
		output = filepath.Join(a.cfg.DownloadsDir, job.ID+".mp4")
		if err := os.MkdirAll(a.cfg.DownloadsDir, 0o755); err != nil {
			return fmt.Errorf("creating downloads directory: %w", err)
		}
	}
	if err := cli.Videos().DownloadToFile(ctx, job.ID, videos.VariantVideo, output); err != nil {
		return err
	}
	if store, serr := a.openStore(); serr == nil {
		_ = store.UpdateStatus(ctx, job.ID, string(job.Status), output)
	}
	color.New(color.FgGreen, color.Bold).Printf("saved %s\n", output)
	return nil
}

func (a *app) cmdStatus(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	id := fs.String("id", "", "job id (required)")
	fs.Parse(args)
	if *id == "" {
		return fmt.Errorf("status: -id is required")
	}

	cli, err := a.client()
	if err != nil {
		return err
	}
	job, err := cli.Videos().Retrieve(ctx, *id)
	if err != nil {
		return err
	}
	printJob(job)
	return nil
}

func (a *app) cmdDownload(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("download", flag.ExitOnError)
	id := fs.String("id", "", "job id (required)")
	variant := fs.String("variant", "video", "content variant: video, thumbnail, spritesheet")
	output := fs.String("output", "", "output path (default derived from id and variant)")
	fs.Parse(args)
	if *id == "" {
		return fmt.Errorf("download: -id is required")
	}

	v := videos.Variant(*variant)
	if !v.Valid() {
		return fmt.Errorf("download: unknown variant %q", *variant)
	}

	out := *output
	if out == "" {
		ext := ".mp4"
		if v != videos.VariantVideo {
			ext = ".webp"
		}
		out = filepath.Join(a.cfg.DownloadsDir, *id+"_"+string(v)+ext)
		if err := os.MkdirAll(a.cfg.DownloadsDir, 0o755); err != nil {
			return fmt.Errorf("creating downloads directory: %w", err)
		}
	}

	cli, err := a.client()
	if err != nil {
		return err
	}
	if err := cli.Videos().DownloadToFile(ctx, *id, v, out); err != nil {
		return err
	}
	color.New(color.FgGreen, color.Bold).Printf("saved %s\n", out)
	return nil
}

func (a *app) cmdList(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	limit := fs.Int("limit", 20, "page size")
	after := fs.String("after", "", "pagination cursor from a previous page")
	order := fs.String("order", "desc", "sort order: asc or desc")
	fs.Parse(args)

	cli, err := a.client()
	if err != nil {
		return err
	}
	list, err := cli.Videos().List(ctx, videos.ListOptions{
		Limit: *limit,
		After: *after,
		Order: *order,
	})
	if err != nil {
		return err
	}

	for i := range list.Data {
		printJobLine(&list.Data[i])
	}
	if cursor := list.Cursor(); cursor != "" {
		color.New(color.FgHiBlack).Printf("next page: -after %s\n", cursor)
	}
	return nil
}

func (a *app) cmdDelete(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	id := fs.String("id", "", "job id (required)")
	fs.Parse(args)
	if *id == "" {
		return fmt.Errorf("delete: -id is required")
	}

	cli, err := a.client()
	if err != nil {
		return err
	}
	if err := cli.Videos().Delete(ctx, *id); err != nil {
		return err
	}
	color.New(color.FgGreen).Printf("deleted %s\n", *id)
	return nil
}

func (a *app) cmdRemix(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("remix", flag.ExitOnError)
	id := fs.String("id", "", "source video job id (required)")
	prompt := fs.String("prompt", "", "description of the change (required)")
	wait := fs.Bool("wait", true, "poll until the remix finishes")
	output := fs.String("output", "", "save the finished video to this path (implies -wait)")
	fs.Parse(args)
	if *id == "" || strings.TrimSpace(*prompt) == "" {
		return fmt.Errorf("remix: -id and -prompt are required")
	}

	cli, err := a.client()
	if err != nil {
		return err
	}
	job, err := cli.Videos().Remix(ctx, *id, *prompt)
	if err != nil {
		return err
	}
	a.record(ctx, history.Record{
		Kind:     history.KindRemix,
		RemoteID: job.ID,
		Prompt:   *prompt,
		Model:    job.Model,
		Status:   string(job.Status),
	})
	printJob(job)

	if !*wait && *output == "" {
		return nil
	}
	return a.waitAndMaybeDownload(ctx, cli, job.ID, *output)
}

func (a *app) cmdImage(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("image", flag.ExitOnError)
	prompt := fs.String("prompt", "", "text description of the image (required)")
	model := fs.String("model", a.cfg.ImageModel, "image model")
	n := fs.Int("n", 1, "number of images")
	size := fs.String("size", "", "output resolution, e.g. 1024x1024")
	quality := fs.String("quality", "", "model-specific quality setting")
	enhance := fs.Bool("enhance", a.cfg.EnhancePrompts, "rewrite the prompt with a chat model first")
	fs.Parse(args)
	if strings.TrimSpace(*prompt) == "" {
		return fmt.Errorf("image: -prompt is required")
	}

	cli, err := a.client()
	if err != nil {
		return err
	}

	finalPrompt := *prompt
	if *enhance && cli.Enhancer() != nil {
		enhanced, err := cli.Enhancer().Enhance(ctx, promptgen.KindImage, *prompt)
		if err != nil {
			a.logger.Warn("prompt enhancement failed, using original", zap.Error(err))
		} else {
			finalPrompt = enhanced
			color.New(color.FgHiBlack).Printf("enhanced prompt: %s\n", enhanced)
		}
	}

	resp, err := cli.Images().Generate(ctx, images.GenerateRequest{
		Prompt:  finalPrompt,
		Model:   *model,
		N:       *n,
		Size:    *size,
		Quality: *quality,
	})
	if err != nil {
		return err
	}
	return a.saveImages(ctx, cli, resp, finalPrompt, *model, history.KindImage)
}

func (a *app) cmdEdit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("edit", flag.ExitOnError)
	var imagePaths stringList
	fs.Var(&imagePaths, "image", "input image path (repeatable)")
	mask := fs.String("mask", "", "mask image whose transparent areas mark the editable region")
	prompt := fs.String("prompt", "", "description of the edit (required)")
	model := fs.String("model", a.cfg.ImageModel, "image model")
	n := fs.Int("n", 1, "number of images")
	size := fs.String("size", "", "output resolution")
	fs.Parse(args)
	if strings.TrimSpace(*prompt) == "" || len(imagePaths) == 0 {
		return fmt.Errorf("edit: -prompt and at least one -image are required")
	}

	cli, err := a.client()
	if err != nil {
		return err
	}
	resp, err := cli.Images().Edit(ctx, images.EditRequest{
		ImagePaths: imagePaths,
		MaskPath:   *mask,
		Prompt:     *prompt,
		Model:      *model,
		N:          *n,
		Size:       *size,
	})
	if err != nil {
		return err
	}
	return a.saveImages(ctx, cli, resp, *prompt, *model, history.KindImageEdit)
}

func (a *app) cmdVariation(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("variation", flag.ExitOnError)
	image := fs.String("image", "", "input image path (required)")
	model := fs.String("model", "", "image model (server default when empty)")
	n := fs.Int("n", 1, "number of variations")
	size := fs.String("size", "", "output resolution")
	fs.Parse(args)
	if *image == "" {
		return fmt.Errorf("variation: -image is required")
	}

	cli, err := a.client()
	if err != nil {
		return err
	}
	resp, err := cli.Images().Variation(ctx, images.VariationRequest{
		ImagePath: *image,
		Model:     *model,
		N:         *n,
		Size:      *size,
	})
	if err != nil {
		return err
	}
	return a.saveImages(ctx, cli, resp, filepath.Base(*image), *model, history.KindImageVariation)
}

// saveImages persists every returned image, fetching URL-form results
// through the SSRF-gated fetcher and decoding inline base64 directly.
func (a *app) saveImages(ctx context.Context, cli *client.Client, resp *images.Response, prompt, model string, kind history.Kind) error {
	stamp := time.Now().Format("20060102-150405")
	for i, img := range resp.Data {
		name := fmt.Sprintf("%s_%s_%d", kind, stamp, i+1)

		var path string
		switch {
		case img.URL != "":
			result, err := cli.Fetcher().FetchToFile(ctx, img.URL, name)
			if err != nil {
				return err
			}
			path = result.Path
		case img.B64JSON != "":
			data, err := base64.StdEncoding.DecodeString(img.B64JSON)
			if err != nil {
				return fmt.Errorf("decoding image data: %w", err)
			}
			path = filepath.Join(cli.Fetcher().DownloadsDir(), name+".png")
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}
		default:
			return fmt.Errorf("image %d carried neither a URL nor inline data", i+1)
		}

		a.record(ctx, history.Record{
			Kind:       kind,
			Prompt:     prompt,
			Model:      model,
			Status:     "completed",
			OutputPath: path,
		})
		color.New(color.FgGreen, color.Bold).Printf("saved %s\n", path)
		if img.RevisedPrompt != "" {
			color.New(color.FgHiBlack).Printf("revised prompt: %s\n", img.RevisedPrompt)
		}
	}
	return nil
}

func (a *app) cmdHistory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	kind := fs.String("kind", "", "filter by kind (video, remix, image, image_edit, image_variation)")
	limit := fs.Int("limit", 20, "maximum rows")
	fs.Parse(args)

	store, err := a.openStore()
	if err != nil {
		return err
	}
	records, err := store.List(ctx, history.ListOptions{
		Kind:  history.Kind(*kind),
		Limit: *limit,
	})
	if err != nil {
		return err
	}

	for _, rec := range records {
		created := rec.CreatedAt.Local().Format("2006-01-02 15:04")
		line := fmt.Sprintf("%-16s %-10s %-10s %s", created, rec.Kind, rec.Status, truncate(rec.Prompt, 60))
		fmt.Println(line)
		if rec.OutputPath != "" {
			color.New(color.FgHiBlack).Printf("  %s\n", rec.OutputPath)
		}
	}
	return nil
}

func printJob(job *videos.Job) {
	statusColor(job.Status).Printf("%s\n", job.Status)
	fmt.Printf("  id:       %s\n", job.ID)
	if job.Model != "" {
		fmt.Printf("  model:    %s\n", job.Model)
	}
	if job.Size != "" {
		fmt.Printf("  size:     %s\n", job.Size)
	}
	if job.Seconds != "" {
		fmt.Printf("  seconds:  %s\n", job.Seconds)
	}
	if !job.Status.Terminal() {
		fmt.Printf("  progress: %.0f%%\n", job.ProgressPercent())
	}
	if job.RemixedFromVideoID != "" {
		fmt.Printf("  remix of: %s\n", job.RemixedFromVideoID)
	}
	if job.Error != nil {
		color.New(color.FgRed).Printf("  error:    %s\n", job.Error.Message)
	}
}

func printJobLine(job *videos.Job) {
	created := job.Created().Local().Format("2006-01-02 15:04")
	fmt.Printf("%-36s %-16s ", job.ID, created)
	statusColor(job.Status).Printf("%-12s", job.Status)
	if !job.Status.Terminal() {
		fmt.Printf(" %3.0f%%", job.ProgressPercent())
	}
	fmt.Println()
}

func statusColor(status videos.Status) *color.Color {
	switch status {
	case videos.StatusCompleted:
		return color.New(color.FgGreen)
	case videos.StatusFailed:
		return color.New(color.FgRed)
	case videos.StatusInProgress:
		return color.New(color.FgCyan)
	default:
		return color.New(color.FgYellow)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

// stringList collects repeated flag values.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(value string) error {
	*s = append(*s, value)
	return nil
}
