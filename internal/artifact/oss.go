package artifact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/aliyun/alibabacloud-oss-go-sdk-v2/oss"
	"github.com/aliyun/alibabacloud-oss-go-sdk-v2/oss/credentials"
	"go.uber.org/zap"

	"vision-gateway/log"
	apperrors "vision-gateway/pkg/errors"
)

type OSSConfig struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	AccessKeySecret string
	Prefix          string
}

// ossAPI is the subset of *oss.Client used by OSSStore.
type ossAPI interface {
	PutObject(ctx context.Context, request *oss.PutObjectRequest, optFns ...func(*oss.Options)) (*oss.PutObjectResult, error)
	GetObject(ctx context.Context, request *oss.GetObjectRequest, optFns ...func(*oss.Options)) (*oss.GetObjectResult, error)
	DeleteObject(ctx context.Context, request *oss.DeleteObjectRequest, optFns ...func(*oss.Options)) (*oss.DeleteObjectResult, error)
}

// OSSStore keeps artifacts as objects <prefix>/<job id>/<name> in an Aliyun
// OSS bucket.
type OSSStore struct {
	client ossAPI
	bucket string
	prefix string
}

func NewOSSStore(cfg OSSConfig) (*OSSStore, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, errors.New("oss artifact store: bucket and region are required")
	}
	ossCfg := oss.LoadDefaultConfig().
		WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.AccessKeySecret)).
		WithRegion(cfg.Region)
	if cfg.Endpoint != "" {
		ossCfg = ossCfg.WithEndpoint(cfg.Endpoint)
	}
	return newOSSStore(oss.NewClient(ossCfg), cfg.Bucket, cfg.Prefix), nil
}

func newOSSStore(client ossAPI, bucket, prefix string) *OSSStore {
	return &OSSStore{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

func (s *OSSStore) key(jobID string, name Name) string {
	return path.Join(s.prefix, jobID, string(name))
}

func (s *OSSStore) Write(ctx context.Context, jobID string, name Name, data []byte) error {
	if err := checkKey(jobID, name); err != nil {
		return err
	}
	_, err := s.client.PutObject(ctx, &oss.PutObjectRequest{
		Bucket:      oss.Ptr(s.bucket),
		Key:         oss.Ptr(s.key(jobID, name)),
		Body:        bytes.NewReader(data),
		ContentType: oss.Ptr(MediaType(data)),
	})
	if err != nil {
		log.GetLogger().Error("[ArtifactStore] oss put failed",
			zap.String("job_id", jobID), zap.String("name", string(name)), zap.Error(err))
		return apperrors.Wrap(apperrors.CodeArtifactWrite, "Failed to write artifact", err)
	}
	return nil
}

func (s *OSSStore) Read(ctx context.Context, jobID string, name Name) ([]byte, error) {
	if err := checkKey(jobID, name); err != nil {
		return nil, err
	}
	res, err := s.client.GetObject(ctx, &oss.GetObjectRequest{
		Bucket: oss.Ptr(s.bucket),
		Key:    oss.Ptr(s.key(jobID, name)),
	})
	if err != nil {
		var svcErr *oss.ServiceError
		if errors.As(err, &svcErr) && svcErr.StatusCode == http.StatusNotFound {
			return nil, notFound(jobID, name)
		}
		return nil, fmt.Errorf("oss get %s: %w", s.key(jobID, name), err)
	}
	defer res.Body.Close()
	return io.ReadAll(res.Body)
}

func (s *OSSStore) Delete(ctx context.Context, jobID string) error {
	if err := checkJobID(jobID); err != nil {
		return err
	}
	var errs []error
	for _, name := range Names {
		_, err := s.client.DeleteObject(ctx, &oss.DeleteObjectRequest{
			Bucket: oss.Ptr(s.bucket),
			Key:    oss.Ptr(s.key(jobID, name)),
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
