package space

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/sirupsen/logrus"
)

var gcsLog = logrus.WithField("component", "space.gcsremote")

// GCSRemoteConfig configures a GCSRemote. CredentialsJSON may be left empty
// to fall back to Application Default Credentials, matching how S3Remote
// falls back to the AWS SDK's default credential chain when no explicit
// keys are given.
type GCSRemoteConfig struct {
	Bucket          string
	KeyPrefix       string
	CredentialsJSON []byte
}

// GCSRemote is a RemoteState backed by a Google Cloud Storage bucket, the
// same role S3Remote plays for S3: each (spaceDID, branch) snapshot is
// stored as one JSON object, keyed bucket-relative as
// "<keyPrefix>/<spaceDID>/<branch>.json".
type GCSRemote struct {
	client *storage.Client
	cfg    GCSRemoteConfig
}

// NewGCSRemote builds a GCSRemote from cfg.
func NewGCSRemote(ctx context.Context, cfg GCSRemoteConfig) (*GCSRemote, error) {
	var opts []option.ClientOption
	if len(cfg.CredentialsJSON) > 0 {
		opts = append(opts, option.WithCredentialsJSON(cfg.CredentialsJSON))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("space: open gcs client: %w", err)
	}
	return &GCSRemote{client: client, cfg: cfg}, nil
}

func (r *GCSRemote) objectKey(spaceDID, branch string) string {
	key := path.Join(spaceDID, branch+".json")
	if r.cfg.KeyPrefix != "" {
		key = path.Join(r.cfg.KeyPrefix, key)
	}
	return key
}

func (r *GCSRemote) Fetch(ctx context.Context, spaceDID, branch string) (Snapshot, bool, error) {
	key := r.objectKey(spaceDID, branch)
	obj := r.client.Bucket(r.cfg.Bucket).Object(key)
	reader, err := obj.NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, fmt.Errorf("space: fetch gcs object %s: %w", key, err)
	}
	defer reader.Close()

	var snap Snapshot
	if err := json.NewDecoder(reader).Decode(&snap); err != nil {
		return Snapshot{}, false, fmt.Errorf("space: decode gcs snapshot %s: %w", key, err)
	}
	return snap, true, nil
}

func (r *GCSRemote) Store(ctx context.Context, spaceDID, branch string, snap Snapshot) error {
	key := r.objectKey(spaceDID, branch)
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("space: encode snapshot for %s: %w", key, err)
	}

	obj := r.client.Bucket(r.cfg.Bucket).Object(key)
	writer := obj.NewWriter(ctx)
	writer.ContentType = "application/json"
	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return fmt.Errorf("space: write gcs object %s: %w", key, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("space: close gcs object %s: %w", key, err)
	}
	gcsLog.WithField("key", key).Debug("stored space snapshot")
	return nil
}

var _ RemoteState = (*GCSRemote)(nil)
