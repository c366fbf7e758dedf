package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/gata-works/dataset-prep/internal/dataset"
)

const (
	partitionTrain = "train"
	partitionTest  = "test"
	dataFileName   = "data.json"
)

// DatasetStore persists the partitions of one dataset for a batch.
type DatasetStore interface {
	Put(ctx context.Context, batchID string, parts dataset.Partitions) (Location, error)
}

// Location is where the partitions of a dataset ended up.
type Location struct {
	Train string
	Test  string
}

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// datasetKey returns {prefix}/{dataset}/{batch}/{partition}/data.json.
func datasetKey(prefix, name, batchID, partition string) string {
	return path.Join(prefix, name, batchID, partition, dataFileName)
}

// encodePartition renders records as a JSON array. An empty partition is
// written as [] rather than null.
func encodePartition(records []dataset.Record) ([]byte, error) {
	if records == nil {
		records = []dataset.Record{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type encodedPartition struct {
	name    string
	records int
	body    []byte
}

// encodeBoth encodes both partitions up front so a serialization failure
// leaves nothing half written.
func encodeBoth(parts dataset.Partitions) ([]encodedPartition, error) {
	out := make([]encodedPartition, 0, 2)
	for _, p := range []struct {
		name    string
		records []dataset.Record
	}{
		{partitionTrain, parts.Train},
		{partitionTest, parts.Test},
	} {
		body, err := encodePartition(p.records)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s partition of %s: %w", p.name, parts.Name, err)
		}
		out = append(out, encodedPartition{name: p.name, records: len(p.records), body: body})
	}
	return out, nil
}

// S3Store writes partitions to an S3 bucket.
type S3Store struct {
	client objectPutter
	bucket string
	prefix string
	runID  string
}

// NewS3Store returns a store writing under s3://bucket/prefix. runID is
// attached to every object as metadata.
func NewS3Store(client objectPutter, bucket, prefix, runID string) *S3Store {
	return &S3Store{client: client, bucket: bucket, prefix: prefix, runID: runID}
}

func (s *S3Store) Put(ctx context.Context, batchID string, parts dataset.Partitions) (Location, error) {
	encoded, err := encodeBoth(parts)
	if err != nil {
		return Location{}, err
	}

	uris := make(map[string]string, len(encoded))
	for _, p := range encoded {
		key := datasetKey(s.prefix, parts.Name, batchID, p.name)
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(p.body),
			ContentType: aws.String("application/json"),
			Metadata: map[string]string{
				"batch-id":   batchID,
				"dataset":    parts.Name,
				"partition":  p.name,
				"records":    strconv.Itoa(p.records),
				"run-id":     s.runID,
				"written-at": time.Now().UTC().Format(time.RFC3339),
			},
		})
		if err != nil {
			uploadsTotal.WithLabelValues("error").Inc()
			return Location{}, fmt.Errorf("failed to upload %s partition of %s to S3: %w", p.name, parts.Name, err)
		}
		uploadsTotal.WithLabelValues("ok").Inc()

		uri := fmt.Sprintf("s3://%s/%s", s.bucket, key)
		log.Printf("Uploaded %d %s records to %s (%d bytes)", p.records, p.name, uri, len(p.body))
		uris[p.name] = uri
	}

	return Location{Train: uris[partitionTrain], Test: uris[partitionTest]}, nil
}

// FileStore writes partitions under a local directory using the same layout
// as the bucket.
type FileStore struct {
	root   string
	prefix string
}

func NewFileStore(root, prefix string) *FileStore {
	return &FileStore{root: root, prefix: prefix}
}

func (s *FileStore) Put(_ context.Context, batchID string, parts dataset.Partitions) (Location, error) {
	encoded, err := encodeBoth(parts)
	if err != nil {
		return Location{}, err
	}

	paths := make(map[string]string, len(encoded))
	for _, p := range encoded {
		target := filepath.Join(s.root, filepath.FromSlash(datasetKey(s.prefix, parts.Name, batchID, p.name)))
		if err := writeFileAtomic(target, p.body); err != nil {
			uploadsTotal.WithLabelValues("error").Inc()
			return Location{}, fmt.Errorf("failed to write %s partition of %s: %w", p.name, parts.Name, err)
		}
		uploadsTotal.WithLabelValues("ok").Inc()
		log.Printf("Wrote %d %s records to %s", p.records, p.name, target)
		paths[p.name] = target
	}

	return Location{Train: paths[partitionTrain], Test: paths[partitionTest]}, nil
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it into place.
func writeFileAtomic(target string, data []byte) error {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".data-*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, target)
}
