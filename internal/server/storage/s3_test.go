package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObjects struct {
	headErr error
	getErr  error
	body    string
	keys    []string
}

func (f *fakeObjects) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.keys = append(f.keys, aws.ToString(in.Key))
	if f.headErr != nil {
		return nil, f.headErr
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeObjects) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.keys = append(f.keys, aws.ToString(in.Key))
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(f.body))}, nil
}

type fakeSigner struct {
	err         error
	expires     time.Duration
	contentType string
}

func (f *fakeSigner) apply(optFns []func(*s3.PresignOptions)) {
	var o s3.PresignOptions
	for _, fn := range optFns {
		fn(&o)
	}
	f.expires = o.Expires
}

func (f *fakeSigner) PresignPutObject(_ context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	f.apply(optFns)
	f.contentType = aws.ToString(in.ContentType)
	if f.err != nil {
		return nil, f.err
	}
	return &v4.PresignedHTTPRequest{URL: "https://s3/" + aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key) + "?put"}, nil
}

func (f *fakeSigner) PresignGetObject(_ context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	f.apply(optFns)
	if f.err != nil {
		return nil, f.err
	}
	return &v4.PresignedHTTPRequest{URL: "https://s3/" + aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key) + "?get"}, nil
}

func TestPresign(t *testing.T) {
	signer := &fakeSigner{}
	s := newStore(Config{Bucket: "recordings"}, &fakeObjects{}, signer)

	url, err := s.PresignPut(context.Background(), "u1/abc-visit.wav", "audio/wav")
	require.NoError(t, err)
	assert.Equal(t, "https://s3/recordings/u1/abc-visit.wav?put", url)
	assert.Equal(t, "audio/wav", signer.contentType)
	assert.Equal(t, DefaultPresignExpiry, signer.expires)

	url, err = s.PresignGet(context.Background(), "u1/abc-visit.wav")
	require.NoError(t, err)
	assert.Equal(t, "https://s3/recordings/u1/abc-visit.wav?get", url)
}

func TestPresign_Errors(t *testing.T) {
	s := newStore(Config{Bucket: "b", PresignExpiry: time.Minute}, &fakeObjects{}, &fakeSigner{err: errors.New("sign boom")})

	_, err := s.PresignPut(context.Background(), "k", "")
	require.ErrorContains(t, err, "sign boom")
	_, err = s.PresignGet(context.Background(), "k")
	require.ErrorContains(t, err, "sign boom")
}

func TestExists(t *testing.T) {
	tests := []struct {
		name    string
		headErr error
		want    bool
		wantErr bool
	}{
		{name: "present", want: true},
		{name: "typed not found", headErr: &types.NotFound{}, want: false},
		{name: "http 404", headErr: response404(), want: false},
		{name: "other failure", headErr: errors.New("denied"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(Config{Bucket: "b"}, &fakeObjects{headErr: tt.headErr}, &fakeSigner{})
			got, err := s.Exists(context.Background(), "k")
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpen(t *testing.T) {
	objects := &fakeObjects{body: "RIFF"}
	s := newStore(Config{Bucket: "b"}, objects, &fakeSigner{})

	rc, err := s.Open(context.Background(), "u1/k.wav")
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(b))
	assert.Equal(t, []string{"u1/k.wav"}, objects.keys)
}

func TestOpen_NotFound(t *testing.T) {
	s := newStore(Config{Bucket: "b"}, &fakeObjects{getErr: &types.NoSuchKey{}}, &fakeSigner{})

	_, err := s.Open(context.Background(), "k")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestNewS3Store_AppliesConfig(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	origNew := newS3ClientFromConfig
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNew
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		assert.Equal(t, "eu-west-1", lo.Region)
		require.NotNil(t, lo.Credentials)
		creds, err := lo.Credentials.Retrieve(ctx)
		require.NoError(t, err)
		assert.Equal(t, "minio", creds.AccessKeyID)
		return aws.Config{}, nil
	}

	var opts s3.Options
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		for _, fn := range optFns {
			fn(&opts)
		}
		return s3.New(opts)
	}

	s, err := NewS3Store(context.Background(), Config{
		Bucket: "b", Region: "eu-west-1", BaseEndpoint: "http://127.0.0.1:9000",
		AccessKey: "minio", SecretKey: "minio123",
	})
	require.NoError(t, err)
	require.NotNil(t, s)
	require.NotNil(t, opts.BaseEndpoint)
	assert.Equal(t, "http://127.0.0.1:9000", *opts.BaseEndpoint)
	assert.True(t, opts.UsePathStyle)
}

func TestNewS3Store_LoadError(t *testing.T) {
	orig := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = orig })
	loadDefaultAWSConfig = func(context.Context, ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no config")
	}

	_, err := NewS3Store(context.Background(), Config{})
	require.ErrorContains(t, err, "no config")
}

func response404() error {
	return &awshttp.ResponseError{
		ResponseError: &smithyhttp.ResponseError{
			Response: &smithyhttp.Response{Response: &http.Response{StatusCode: http.StatusNotFound}},
			Err:      errors.New("not found"),
		},
	}
}
