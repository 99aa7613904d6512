package space

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/sirupsen/logrus"
)

var s3Log = logrus.WithField("component", "space.s3remote")

// S3RemoteConfig configures an S3Remote. AccessKeyID/SecretAccessKey may be
// left empty to fall back to the AWS SDK's default credential chain (env
// vars, shared config, instance profile), matching how the teacher's S3
// driver accepts either explicit credentials in the URL or ambient ones.
type S3RemoteConfig struct {
	Bucket          string
	Region          string
	Endpoint        string // optional, for S3-compatible services (e.g. MinIO)
	KeyPrefix       string
	AccessKeyID     string
	SecretAccessKey string
	ForcePathStyle  bool
}

// S3Remote is a RemoteState backed by an S3 bucket: each (spaceDID, branch)
// snapshot is stored as one JSON object, keyed bucket-relative as
// "<keyPrefix>/<spaceDID>/<branch>.json".
type S3Remote struct {
	client *s3.S3
	cfg    S3RemoteConfig
}

// NewS3Remote builds an S3Remote from cfg.
func NewS3Remote(cfg S3RemoteConfig) (*S3Remote, error) {
	awsCfg := aws.NewConfig().WithRegion(cfg.Region)
	if cfg.Endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(cfg.Endpoint).WithS3ForcePathStyle(true)
	}
	if cfg.ForcePathStyle {
		awsCfg = awsCfg.WithS3ForcePathStyle(true)
	}
	if cfg.AccessKeyID != "" {
		awsCfg = awsCfg.WithCredentials(credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, ""))
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("space: open s3 session: %w", err)
	}
	return &S3Remote{client: s3.New(sess), cfg: cfg}, nil
}

func (r *S3Remote) objectKey(spaceDID, branch string) string {
	key := path.Join(spaceDID, branch+".json")
	if r.cfg.KeyPrefix != "" {
		key = path.Join(r.cfg.KeyPrefix, key)
	}
	return key
}

func (r *S3Remote) Fetch(ctx context.Context, spaceDID, branch string) (Snapshot, bool, error) {
	key := r.objectKey(spaceDID, branch)
	out, err := r.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, fmt.Errorf("space: fetch s3 object %s: %w", key, err)
	}
	defer out.Body.Close()

	var snap Snapshot
	if err := json.NewDecoder(out.Body).Decode(&snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("space: decode s3 snapshot %s: %w", key, err)
	}
	return snap, true, nil
}

func (r *S3Remote) Store(ctx context.Context, spaceDID, branch string, snap Snapshot) error {
	key := r.objectKey(spaceDID, branch)
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("space: encode snapshot for %s: %w", key, err)
	}
	_, err = r.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(r.cfg.Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("space: put s3 object %s: %w", key, err)
	}
	s3Log.WithField("key", key).Debug("stored space snapshot")
	return nil
}

func isNotFound(err error) bool {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		return aerr.Code() == s3.ErrCodeNoSuchKey || aerr.Code() == "NotFound"
	}
	return false
}

var _ RemoteState = (*S3Remote)(nil)
