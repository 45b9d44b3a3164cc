package s3

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

var ErrNotConfigured = errors.New("s3: no bucket configured")

const presignTTL = 15 * time.Minute

// ISnapshotStore archives annotated frames for critical alerts.
type ISnapshotStore interface {
	Upload(ctx context.Context, key string, body []byte, contentType string) (string, error)
	PresignURL(key string) (string, error)
}

type uploader interface {
	UploadWithContext(ctx aws.Context, input *s3manager.UploadInput, opts ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error)
}

type snapshotStore struct {
	uploader   uploader
	client     *s3.S3
	bucketName string
}

// New reads AWS_BUCKET_NAME, AWS_REGION and static credentials from the
// environment. AWS_S3_ENDPOINT points the client at an S3 compatible store
// such as MinIO.
func New() (ISnapshotStore, error) {
	bucket := os.Getenv("AWS_BUCKET_NAME")
	if bucket == "" {
		return nil, ErrNotConfigured
	}

	sess, err := newSession()
	if err != nil {
		return nil, fmt.Errorf("s3 session: %w", err)
	}

	logrus.Infof("Alert snapshots archived to bucket %s", bucket)

	return &snapshotStore{
		uploader:   s3manager.NewUploader(sess),
		client:     s3.New(sess),
		bucketName: bucket,
	}, nil
}

func (s *snapshotStore) Upload(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	out, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return out.Location, nil
}

func (s *snapshotStore) PresignURL(key string) (string, error) {
	if s.client == nil {
		return "", ErrNotConfigured
	}
	req, _ := s.client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	return req.Presign(presignTTL)
}

// SnapshotKey is the object key for the frame that raised an alert.
func SnapshotKey(cameraID, eventID string) string {
	return fmt.Sprintf("snapshots/%s/%s.jpg", cameraID, eventID)
}

func newSession() (*session.Session, error) {
	cfg := &aws.Config{
		Region: aws.String(os.Getenv("AWS_REGION")),
	}
	if id := os.Getenv("AWS_ACCESS_KEY_ID"); id != "" {
		cfg.Credentials = credentials.NewStaticCredentials(id, os.Getenv("AWS_SECRET_ACCESS_KEY"), "")
	}
	if endpoint := os.Getenv("AWS_S3_ENDPOINT"); endpoint != "" {
		cfg.Endpoint = aws.String(endpoint)
		cfg.S3ForcePathStyle = aws.Bool(true)
	}
	return session.NewSession(cfg)
}
