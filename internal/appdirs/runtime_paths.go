package appdirs

import (
	"path/filepath"
	"strings"
)

const (
	ArtifactRootName = "artifacts"
	dbFileName       = "jobs.db"
)

func ArtifactRootFor(paths Paths) string {
	return filepath.Join(normalizeOutputDir(paths.OutputDir), ArtifactRootName)
}

func JobArtifactDirFor(paths Paths, jobID string) string {
	return filepath.Join(ArtifactRootFor(paths), jobID)
}

func DBPathFor(paths Paths) string {
	return filepath.Join(normalizeCacheDir(paths.CacheDir), dbFileName)
}

func ResolveArtifactRoot() (string, error) {
	paths, err := Resolve()
	if err != nil {
		return "", err
	}
	return ArtifactRootFor(paths), nil
}

func ResolveDBPath() (string, error) {
	paths, err := Resolve()
	if err != nil {
		return "", err
	}
	return DBPathFor(paths), nil
}

func normalizeOutputDir(outputDir string) string {
	cleaned := strings.TrimSpace(outputDir)
	if cleaned == "" {
		return "."
	}
	return filepath.Clean(cleaned)
}

func normalizeCacheDir(cacheDir string) string {
	cleaned := strings.TrimSpace(cacheDir)
	if cleaned == "" {
		return "cache"
	}
	return filepath.Clean(cleaned)
}
