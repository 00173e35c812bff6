package artifact

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"vision-gateway/log"
	apperrors "vision-gateway/pkg/errors"
)

// FileStore keeps artifacts as files under root/<job id>/<name>.
type FileStore struct {
	root string
}

func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &FileStore{root: root}, nil
}

func (s *FileStore) Root() string { return s.root }

func (s *FileStore) path(jobID string, name Name) string {
	return filepath.Join(s.root, jobID, string(name))
}

func (s *FileStore) Write(_ context.Context, jobID string, name Name, data []byte) error {
	if err := checkKey(jobID, name); err != nil {
		return err
	}
	dir := filepath.Join(s.root, jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return apperrors.Wrap(apperrors.CodeArtifactWrite, "Failed to write artifact", err)
	}

	tmp, err := os.CreateTemp(dir, "."+string(name)+"-*")
	if err != nil {
		return apperrors.Wrap(apperrors.CodeArtifactWrite, "Failed to write artifact", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return apperrors.Wrap(apperrors.CodeArtifactWrite, "Failed to write artifact", err)
	}
	if err := tmp.Close(); err != nil {
		return apperrors.Wrap(apperrors.CodeArtifactWrite, "Failed to write artifact", err)
	}
	if err := os.Rename(tmp.Name(), s.path(jobID, name)); err != nil {
		return apperrors.Wrap(apperrors.CodeArtifactWrite, "Failed to write artifact", err)
	}
	return nil
}

func (s *FileStore) Read(_ context.Context, jobID string, name Name) ([]byte, error) {
	if err := checkKey(jobID, name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(jobID, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, notFound(jobID, name)
	}
	if err != nil {
		log.GetLogger().Error("[ArtifactStore] read failed",
			zap.String("job_id", jobID), zap.String("name", string(name)), zap.Error(err))
		return nil, err
	}
	return data, nil
}

func (s *FileStore) Delete(_ context.Context, jobID string) error {
	if err := checkJobID(jobID); err != nil {
		return err
	}
	return os.RemoveAll(filepath.Join(s.root, jobID))
}
