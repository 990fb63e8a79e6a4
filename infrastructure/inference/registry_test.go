package inference

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRegistryURLsAddressPlainArtifacts(t *testing.T) {
	for name, spec := range registry {
		if spec.URL == "" {
			// Operator-provisioned model; EnsureModel reports it.
			continue
		}
		u, err := url.Parse(spec.URL)
		if err != nil {
			t.Errorf("model %s: bad URL %q: %v", name, spec.URL, err)
			continue
		}
		if u.Scheme != "https" {
			t.Errorf("model %s: URL %q is not https", name, spec.URL)
		}
		// A path like .../archive.zip/file.onnx points inside an
		// archive and cannot be fetched with a plain GET.
		if strings.Contains(u.Path, ".zip/") || strings.Contains(u.Path, ".tar") {
			t.Errorf("model %s: URL %q addresses a file inside an archive", name, spec.URL)
		}
	}
}

func TestEnsureModelReturnsExistingFile(t *testing.T) {
	dir := t.TempDir()
	spec := ModelSpec{Name: "local", FileName: "local.onnx"}
	want := filepath.Join(dir, spec.FileName)
	if err := os.WriteFile(want, []byte("weights"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := EnsureModel(context.Background(), dir, spec)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("path = %q, want %q", got, want)
	}
}

func TestEnsureModelWithoutSourceErrors(t *testing.T) {
	spec := ModelSpec{Name: "provisioned", FileName: "provisioned.onnx"}

	_, err := EnsureModel(context.Background(), t.TempDir(), spec)
	if err == nil {
		t.Fatal("expected error for missing file with no download source")
	}
	if !strings.Contains(err.Error(), "provision") {
		t.Errorf("error %q does not tell the operator to provision the file", err)
	}
}

func TestEnsureModelVerifiesChecksum(t *testing.T) {
	payload := []byte("model bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	sum := sha256.Sum256(payload)
	good := ModelSpec{
		Name:     "checked",
		FileName: "checked.onnx",
		URL:      srv.URL,
		SHA256:   hex.EncodeToString(sum[:]),
	}

	dir := t.TempDir()
	path, err := EnsureModel(context.Background(), dir, good)
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != string(payload) {
		t.Error("installed artifact differs from download")
	}

	bad := good
	bad.FileName = "tampered.onnx"
	bad.SHA256 = strings.Repeat("0", 64)
	if _, err := EnsureModel(context.Background(), t.TempDir(), bad); err == nil {
		t.Fatal("expected checksum mismatch error")
	}
}
