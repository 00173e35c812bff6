package appdirs

import (
	"path/filepath"
	"testing"
)

func TestRuntimePathDerivations(t *testing.T) {
	paths := Paths{
		OutputDir: filepath.Join("var", "visiongw", "output"),
		CacheDir:  filepath.Join("var", "visiongw", "cache"),
	}

	if got, want := ArtifactRootFor(paths), filepath.Join("var", "visiongw", "output", "artifacts"); got != want {
		t.Fatalf("ArtifactRootFor() = %q, want %q", got, want)
	}

	if got, want := JobArtifactDirFor(paths, "job_123"), filepath.Join("var", "visiongw", "output", "artifacts", "job_123"); got != want {
		t.Fatalf("JobArtifactDirFor() = %q, want %q", got, want)
	}

	if got, want := DBPathFor(paths), filepath.Join("var", "visiongw", "cache", "jobs.db"); got != want {
		t.Fatalf("DBPathFor() = %q, want %q", got, want)
	}
}

func TestRuntimePathDerivationsWithFallbacks(t *testing.T) {
	paths := Paths{}

	if got, want := ArtifactRootFor(paths), "artifacts"; got != want {
		t.Fatalf("ArtifactRootFor() with empty output dir = %q, want %q", got, want)
	}

	if got, want := DBPathFor(paths), filepath.Join("cache", "jobs.db"); got != want {
		t.Fatalf("DBPathFor() with empty cache dir = %q, want %q", got, want)
	}
}
