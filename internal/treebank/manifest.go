package treebank

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// ManifestExtension is the suffix of a component's database list.
const ManifestExtension = ".lst"

// ManifestSource looks up the databases a component is split into. A
// missing manifest is reported with found == false, not as an error.
type ManifestSource interface {
	Databases(ctx context.Context, corpus, component string) (databases []string, found bool, err error)
}

// FileManifests reads manifests from <Dir>/<corpus>/<component>.lst.
type FileManifests struct {
	Dir string
}

// NewFileManifests creates a FileManifests rooted at dir
func NewFileManifests(dir string) *FileManifests {
	return &FileManifests{Dir: dir}
}

func (f *FileManifests) Databases(_ context.Context, corpus, component string) ([]string, bool, error) {
	if err := checkManifestNames(corpus, component); err != nil {
		return nil, false, err
	}

	file, err := os.Open(filepath.Join(f.Dir, corpus, component+ManifestExtension))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer file.Close()

	databases, err := parseManifest(file)
	if err != nil {
		return nil, false, err
	}
	return databases, true, nil
}

// S3API is the subset of the S3 client used for manifests.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Manifests reads manifests from s3://<bucket>/<prefix><corpus>/<component>.lst.
type S3Manifests struct {
	client S3API
	bucket string
	prefix string
}

// NewS3Manifests creates an S3Manifests using the default AWS credential chain
func NewS3Manifests(ctx context.Context, bucket, prefix, region string) (*S3Manifests, error) {
	if bucket == "" {
		return nil, fmt.Errorf("S3 bucket name is required")
	}

	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	return NewS3ManifestsWithClient(s3.NewFromConfig(cfg), bucket, prefix), nil
}

// NewS3ManifestsWithClient creates an S3Manifests with a custom client.
func NewS3ManifestsWithClient(client S3API, bucket, prefix string) *S3Manifests {
	normalizedPrefix := prefix
	if normalizedPrefix != "" && !strings.HasSuffix(normalizedPrefix, "/") {
		normalizedPrefix += "/"
	}
	return &S3Manifests{client: client, bucket: bucket, prefix: normalizedPrefix}
}

func (s *S3Manifests) Databases(ctx context.Context, corpus, component string) ([]string, bool, error) {
	if err := checkManifestNames(corpus, component); err != nil {
		return nil, false, err
	}

	key := s.prefix + path.Join(corpus, component+ManifestExtension)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get manifest s3://%s/%s: %w", s.bucket, key, err)
	}
	defer out.Body.Close()

	databases, err := parseManifest(out.Body)
	if err != nil {
		return nil, false, err
	}
	return databases, true, nil
}

func isNotFound(err error) bool {
	var noSuchKey *s3types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

// parseManifest reads one database name per non-blank line.
func parseManifest(r io.Reader) ([]string, error) {
	var databases []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			databases = append(databases, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return databases, nil
}

func checkManifestNames(names ...string) error {
	for _, n := range names {
		if n == "" || n == "." || n == ".." || strings.ContainsAny(n, `/\`) {
			return fmt.Errorf("invalid manifest name %q", n)
		}
	}
	return nil
}
