package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/helpdesk-rbac/pkg/observability"
	"github.com/platinummonkey/helpdesk-rbac/pkg/rbac"
)

// maxRolesObjectSize bounds how much of the object is read
const maxRolesObjectSize = 1 << 20

var tracer = otel.Tracer("github.com/platinummonkey/helpdesk-rbac/pkg/storage")

// S3Config locates the group roles document in a bucket
type S3Config struct {
	Bucket       string
	Key          string
	Region       string
	Endpoint     string // MinIO or another S3-compatible service
	UsePathStyle bool
	AccessKey    string // empty uses the default credential chain
	SecretKey    string
}

// S3RolesSource reads group roles from a YAML object. Unchanged objects are
// not downloaded again: the last ETag is sent as If-None-Match and a 304
// returns the rows decoded from the previous body.
type S3RolesSource struct {
	client *s3.Client
	bucket string
	key    string
	log    *logrus.Logger

	mu   sync.Mutex
	etag string
	rows []rbac.RawGroupRole
}

// NewS3RolesSource loads AWS configuration and creates the source
func NewS3RolesSource(ctx context.Context, cfg S3Config, log *logrus.Logger) (*S3RolesSource, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return NewS3RolesSourceWithClient(client, cfg.Bucket, cfg.Key, log), nil
}

// NewS3RolesSourceWithClient creates the source around an existing client
func NewS3RolesSourceWithClient(client *s3.Client, bucket, key string, log *logrus.Logger) *S3RolesSource {
	if log == nil {
		log = logrus.New()
	}
	return &S3RolesSource{client: client, bucket: bucket, key: key, log: log}
}

// Location returns the object as an s3:// URI
func (s *S3RolesSource) Location() string {
	return "s3://" + s.bucket + "/" + s.key
}

// FetchGroupRoles downloads and decodes the roles object
func (s *S3RolesSource) FetchGroupRoles(ctx context.Context) (rows []rbac.RawGroupRole, err error) {
	ctx, span := s.startSpan(ctx, "S3.GetObject")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to fetch group roles object")
		}
		span.End()
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	input := &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	}
	if s.etag != "" {
		input.IfNoneMatch = aws.String(s.etag)
	}

	out, err := s.client.GetObject(ctx, input)
	if err != nil {
		if s.etag != "" && isNotModified(err) {
			span.SetAttributes(attribute.Bool("s3.not_modified", true))
			return s.rows, nil
		}
		return nil, fmt.Errorf("failed to get %s: %w", s.Location(), err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, maxRolesObjectSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.Location(), err)
	}
	if len(data) > maxRolesObjectSize {
		return nil, fmt.Errorf("%s exceeds %d bytes", s.Location(), maxRolesObjectSize)
	}

	rows, err = rbac.ParseGroupRolesYAML(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Location(), err)
	}

	s.etag = aws.ToString(out.ETag)
	s.rows = rows
	span.SetAttributes(attribute.Int("content.size", len(data)))

	s.log.WithFields(logrus.Fields{
		"object": s.Location(),
		"etag":   s.etag,
		"rows":   len(rows),
	}).Debug("Downloaded group roles object")
	return rows, nil
}

// Check probes the object with HeadObject for the readiness endpoint
func (s *S3RolesSource) Check() observability.CheckFunc {
	return func(ctx context.Context) observability.DependencyStatus {
		start := time.Now()
		status := observability.DependencyStatus{Status: observability.StatusHealthy}

		ctx, span := s.startSpan(ctx, "S3.HeadObject")
		defer span.End()

		_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(s.key),
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "head object failed")
			status.Status = observability.StatusUnhealthy
			status.Message = err.Error()
		}

		status.Latency = time.Since(start)
		status.Timestamp = time.Now()
		return status
	}
}

func (s *S3RolesSource) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("s3.bucket", s.bucket),
		attribute.String("s3.key", s.key),
	))
}

func isNotModified(err error) bool {
	var respErr *awshttp.ResponseError
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotModified
}
