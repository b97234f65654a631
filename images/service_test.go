package images

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"soragen/logging"
	"soragen/transport"
)

var pngBytes = []byte{
	0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A,
	0x00, 0x00, 0x00, 0x0D, 'I', 'H', 'D', 'R',
}

func writeTestImage(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, pngBytes, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestService(t *testing.T, handler http.HandlerFunc) *Service {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	dispatcher, err := transport.NewDispatcher(transport.DispatcherConfig{
		BaseURL:         server.URL,
		APIKey:          "sk-test",
		MinRequestDelay: -1,
	})
	if err != nil {
		t.Fatal(err)
	}
	svc, err := NewService(dispatcher, logging.NewNopLogger())
	if err != nil {
		t.Fatal(err)
	}
	return svc
}

func imageResponse(urls ...string) map[string]interface{} {
	var data []map[string]string
	for _, u := range urls {
		data = append(data, map[string]string{"url": u})
	}
	return map[string]interface{}{"created": 1700000000, "data": data}
}

func TestGenerate(t *testing.T) {
	var gotPath, gotContentType string
	var gotBody map[string]interface{}
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(imageResponse("https://cdn.example.com/a.png"))
	})

	resp, err := svc.Generate(context.Background(), GenerateRequest{
		Prompt:  "a lighthouse in fog",
		Model:   "gpt-image-1",
		N:       2,
		Size:    "1024x1024",
		Quality: "hd",
	})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if gotPath != "/v1/images/generations" {
		t.Errorf("path = %s", gotPath)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q", gotContentType)
	}
	if gotBody["prompt"] != "a lighthouse in fog" || gotBody["model"] != "gpt-image-1" {
		t.Errorf("body = %v", gotBody)
	}
	if gotBody["n"] != float64(2) || gotBody["size"] != "1024x1024" || gotBody["quality"] != "hd" {
		t.Errorf("body = %v", gotBody)
	}
	if len(resp.Data) != 1 || resp.Data[0].URL != "https://cdn.example.com/a.png" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestGenerateEmptyPrompt(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach the server")
	})
	if _, err := svc.Generate(context.Background(), GenerateRequest{Prompt: " "}); err == nil {
		t.Error("Generate(empty prompt) = nil, want error")
	}
}

func TestGenerateEmptyResponse(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"created": 1, "data": []string{}})
	})
	if _, err := svc.Generate(context.Background(), GenerateRequest{Prompt: "x"}); err == nil {
		t.Error("Generate(empty data) = nil, want error")
	}
}

func TestEditSingleImage(t *testing.T) {
	imagePath := writeTestImage(t, "in.png")

	var fileFields []string
	var gotPrompt string
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		r.ParseMultipartForm(1 << 20)
		gotPrompt = r.MultipartForm.Value["prompt"][0]
		for field := range r.MultipartForm.File {
			fileFields = append(fileFields, field)
		}
		json.NewEncoder(w).Encode(imageResponse("https://cdn.example.com/edited.png"))
	})

	_, err := svc.Edit(context.Background(), EditRequest{
		ImagePaths: []string{imagePath},
		Prompt:     "add a rainbow",
	})
	if err != nil {
		t.Fatalf("Edit() error = %v", err)
	}
	if gotPrompt != "add a rainbow" {
		t.Errorf("prompt = %q", gotPrompt)
	}
	if len(fileFields) != 1 || fileFields[0] != "image" {
		t.Errorf("file fields = %v, want [image]", fileFields)
	}
}

func TestEditMultipleImagesWithMask(t *testing.T) {
	imageA := writeTestImage(t, "a.png")
	imageB := writeTestImage(t, "b.png")
	maskPath := writeTestImage(t, "mask.png")

	gotCounts := map[string]int{}
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		r.ParseMultipartForm(1 << 20)
		for field, headers := range r.MultipartForm.File {
			gotCounts[field] = len(headers)
		}
		json.NewEncoder(w).Encode(imageResponse("https://cdn.example.com/edited.png"))
	})

	_, err := svc.Edit(context.Background(), EditRequest{
		ImagePaths: []string{imageA, imageB},
		MaskPath:   maskPath,
		Prompt:     "swap the sky",
	})
	if err != nil {
		t.Fatalf("Edit() error = %v", err)
	}
	// Multiple inputs use the array field name.
	if gotCounts["image[]"] != 2 {
		t.Errorf("image[] parts = %d, want 2", gotCounts["image[]"])
	}
	if gotCounts["mask"] != 1 {
		t.Errorf("mask parts = %d, want 1", gotCounts["mask"])
	}
}

func TestEditRequiresInputs(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach the server")
	})
	ctx := context.Background()
	if _, err := svc.Edit(ctx, EditRequest{Prompt: "x"}); err == nil {
		t.Error("Edit(no images) = nil, want error")
	}
	if _, err := svc.Edit(ctx, EditRequest{ImagePaths: []string{"a.png"}}); err == nil {
		t.Error("Edit(no prompt) = nil, want error")
	}
}

func TestVariation(t *testing.T) {
	imagePath := writeTestImage(t, "src.png")

	var gotFields map[string][]string
	var gotFiles []string
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/images/variations" {
			t.Errorf("path = %s", r.URL.Path)
		}
		r.ParseMultipartForm(1 << 20)
		gotFields = r.MultipartForm.Value
		for field := range r.MultipartForm.File {
			gotFiles = append(gotFiles, field)
		}
		json.NewEncoder(w).Encode(imageResponse("https://cdn.example.com/v1.png", "https://cdn.example.com/v2.png"))
	})

	resp, err := svc.Variation(context.Background(), VariationRequest{
		ImagePath: imagePath,
		N:         2,
		Size:      "512x512",
	})
	if err != nil {
		t.Fatalf("Variation() error = %v", err)
	}
	if len(gotFiles) != 1 || gotFiles[0] != "image" {
		t.Errorf("file fields = %v", gotFiles)
	}
	if got := gotFields["n"]; len(got) != 1 || got[0] != "2" {
		t.Errorf("n field = %v", got)
	}
	if got := gotFields["size"]; len(got) != 1 || got[0] != "512x512" {
		t.Errorf("size field = %v", got)
	}
	if len(resp.Data) != 2 {
		t.Errorf("len(Data) = %d", len(resp.Data))
	}
}

func TestVariationRejectsNonImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.mp4")
	// mp4 is a valid reference type for videos but not an image input.
	if err := os.WriteFile(path, []byte("fake mp4 data"), 0o644); err != nil {
		t.Fatal(err)
	}

	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach the server")
	})
	if _, err := svc.Variation(context.Background(), VariationRequest{ImagePath: path}); err == nil {
		t.Error("Variation(mp4 input) = nil, want error")
	}
}
