package treebank

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/johannesboyne/gofakes3"
	"github.com/johannesboyne/gofakes3/backend/s3mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, dir, corpus, component, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, corpus), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, corpus, component+ManifestExtension), []byte(content), 0o644))
}

func TestFileManifests(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "sonar", "WRPE", "WRPE0001\n\n  WRPE0002  \nWRPE0003\n")
	m := NewFileManifests(dir)

	databases, found, err := m.Databases(context.Background(), "sonar", "WRPE")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"WRPE0001", "WRPE0002", "WRPE0003"}, databases)

	databases, found, err = m.Databases(context.Background(), "sonar", "WSU")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, databases)

	_, _, err = m.Databases(context.Background(), "..", "WRPE")
	assert.Error(t, err)
	_, _, err = m.Databases(context.Background(), "sonar", "a/b")
	assert.Error(t, err)
}

// setupFakeS3 creates a fake S3 server and returns an S3 client configured to use it
func setupFakeS3(t *testing.T) *s3.Client {
	t.Helper()

	backend := s3mem.New()
	faker := gofakes3.New(backend)
	server := httptest.NewServer(faker.Server())
	t.Cleanup(server.Close)

	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "")),
	)
	require.NoError(t, err)

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(server.URL)
		o.UsePathStyle = true
	})
}

func TestS3Manifests(t *testing.T) {
	client := setupFakeS3(t)
	ctx := context.Background()

	_, err := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String("manifests")})
	require.NoError(t, err)
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String("manifests"),
		Key:    aws.String("parts/sonar/WRPE.lst"),
		Body:   strings.NewReader("WRPE0001\nWRPE0002\n"),
	})
	require.NoError(t, err)

	m := NewS3ManifestsWithClient(client, "manifests", "parts")

	databases, found, err := m.Databases(ctx, "sonar", "WRPE")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"WRPE0001", "WRPE0002"}, databases)

	databases, found, err = m.Databases(ctx, "sonar", "WSU")
	require.NoError(t, err)
	assert.False(t, found, "missing key is not an error")
	assert.Nil(t, databases)
}

func TestNewS3ManifestsRequiresBucket(t *testing.T) {
	_, err := NewS3Manifests(context.Background(), "", "", "us-east-1")
	assert.Error(t, err)
}

type stubManifests struct {
	databases []string
	found     bool
	err       error
}

func (s stubManifests) Databases(context.Context, string, string) ([]string, bool, error) {
	return s.databases, s.found, s.err
}

func TestResolverUngrinded(t *testing.T) {
	ctx := context.Background()

	r := NewResolver(stubManifests{databases: []string{"A1", "A2"}, found: true}, nil, nil)
	databases, err := r.Resolve(ctx, "sonar", "A", Strategy{})
	require.NoError(t, err)
	assert.Equal(t, []string{"A1", "A2"}, databases)

	r = NewResolver(stubManifests{}, nil, nil)
	databases, err = r.Resolve(ctx, "sonar", "A", Strategy{})
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, databases, "no manifest means the component is one database")

	r = NewResolver(nil, nil, nil)
	databases, err = r.Resolve(ctx, "sonar", "A", Strategy{})
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, databases)

	r = NewResolver(stubManifests{err: errors.New("disk on fire")}, nil, nil)
	_, err = r.Resolve(ctx, "sonar", "A", Strategy{})
	assert.ErrorContains(t, err, "disk on fire")
	var manifestErr *ManifestError
	require.True(t, errors.As(err, &manifestErr))
	assert.Equal(t, "A", manifestErr.Component)
}

func TestResolverGrinded(t *testing.T) {
	ctx := context.Background()
	r := NewResolver(stubManifests{databases: []string{"ignored"}, found: true}, []string{"np", "pp", "smain"}, nil)

	databases, err := r.Resolve(ctx, "sonar", "WRPE", Strategy{Grinded: true, BreadthFirst: "np%det_hd"})
	require.NoError(t, err)
	assert.Equal(t, []string{"WRPEnp%det_hd"}, databases)

	databases, err = r.Resolve(ctx, "sonar", "WRPE", Strategy{Grinded: true, BreadthFirst: "ALL%su"})
	require.NoError(t, err)
	assert.Equal(t, []string{"WRPEnp%su", "WRPEpp%su", "WRPEsmain%su"}, databases)
}

func TestGrindEntriesReplacesEveryCategoryToken(t *testing.T) {
	testcases := []struct {
		name string
		bf   string
		want []string
	}{
		{name: "leading", bf: "ALL%su", want: []string{"Cnp%su", "Cpp%su"}},
		{name: "repeated", bf: "ALL%ALLx", want: []string{"Cnp%npx", "Cpp%ppx"}},
		{name: "inner", bf: "np%ALL", want: []string{"Cnp%np", "Cnp%pp"}},
		{name: "none", bf: "np%det", want: []string{"Cnp%det"}},
	}

	for _, tt := range testcases {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GrindEntries("C", tt.bf, []string{"np", "pp"}))
		})
	}
}
