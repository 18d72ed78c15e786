// Package storage guarda los PDFs de factura en un almacenamiento S3-compatible (AWS S3, MinIO).
package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"

	"github.com/jhoicas/invoicing-core/internal/application/billing"
	"github.com/jhoicas/invoicing-core/pkg/config"
)

var _ billing.ArtifactStorage = (*S3Storage)(nil)

// S3Storage implementa billing.ArtifactStorage sobre el SDK v2 de AWS.
type S3Storage struct {
	client *s3.Client
	bucket string
	log    zerolog.Logger
}

// NewS3Storage construye el cliente. Con Endpoint vacío se usa AWS; si no, el endpoint indicado
// (MinIO en desarrollo) con direccionamiento path-style.
func NewS3Storage(ctx context.Context, cfg config.StorageConfig, log zerolog.Logger) (*S3Storage, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("storage: bucket requerido")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: config AWS: %w", err)
	}

	endpoint := cfg.Endpoint
	if endpoint != "" && !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	})

	return &S3Storage{
		client: client,
		bucket: cfg.Bucket,
		log:    log.With().Str("component", "s3-storage").Str("bucket", cfg.Bucket).Logger(),
	}, nil
}

// EnsureBucket crea el bucket si no existe. Se llama al arrancar.
func (s *S3Storage) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}
	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("storage: comprobar bucket: %w", err)
	}

	s.log.Info().Msg("creando bucket")
	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		return fmt.Errorf("storage: crear bucket: %w", err)
	}
	return nil
}

// Put sube el objeto con su checksum SHA-256. Misma clave = sobrescritura.
// Devuelve la referencia durable s3://bucket/key.
func (s *S3Storage) Put(ctx context.Context, key string, content []byte, contentType, sha256Hex string) (string, error) {
	if key == "" {
		return "", errors.New("storage: clave requerida")
	}
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(content),
		ContentLength: aws.Int64(int64(len(content))),
		ContentType:   aws.String(contentType),
		Metadata:      map[string]string{"sha256": sha256Hex},
	}
	if raw, err := hex.DecodeString(sha256Hex); err == nil && len(raw) == 32 {
		input.ChecksumSHA256 = aws.String(base64.StdEncoding.EncodeToString(raw))
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("storage: subir %s: %w", key, err)
	}
	s.log.Debug().Str("key", key).Int("bytes", len(content)).Msg("objeto subido")
	return Ref(s.bucket, key), nil
}

// Get descarga un objeto por referencia s3://bucket/key o por clave.
func (s *S3Storage) Get(ctx context.Context, ref string) ([]byte, error) {
	key := strings.TrimPrefix(ref, "s3://"+s.bucket+"/")
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("storage: descargar %s: %w", key, err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

// Ref referencia durable de un objeto.
func Ref(bucket, key string) string {
	return "s3://" + bucket + "/" + key
}
