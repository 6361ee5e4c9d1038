package aws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"time"

	"collabcanvas/core"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/oklog/ulid/v2"
)

const (
	canvasPrefix = "canvases/"
	sharePrefix  = "shares/"
)

type s3Store struct {
	s3Client *s3.Client
	bucket   string
}

// NewStore creates a new S3-based store.
func NewStore(bucketName string) *s3Store {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		log.Fatalf("unable to load SDK config, %v", err)
	}

	return &s3Store{
		s3Client: s3.NewFromConfig(cfg),
		bucket:   bucketName,
	}
}

// canvasKey rejects ids that would escape the canvas prefix.
func canvasKey(id string) (string, error) {
	if id == "" || id == "." || id == ".." || path.Base(id) != id {
		return "", fmt.Errorf("invalid canvas id")
	}
	return canvasPrefix + id, nil
}

func (s *s3Store) Get(ctx context.Context, id string) (*core.Canvas, error) {
	key, err := canvasKey(id)
	if err != nil {
		return nil, err
	}

	resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%w: %s", core.ErrCanvasNotFound, id)
		}
		return nil, fmt.Errorf("failed to get canvas %s: %v", id, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read canvas data: %v", err)
	}

	var canvas core.Canvas
	if err := json.Unmarshal(data, &canvas); err != nil {
		return nil, fmt.Errorf("failed to unmarshal canvas data: %v", err)
	}
	return &canvas, nil
}

func (s *s3Store) List(ctx context.Context, userID string) ([]*core.Canvas, error) {
	output, err := s.s3Client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(canvasPrefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list canvases: %v", err)
	}

	canvases := make([]*core.Canvas, 0, len(output.Contents))
	for _, object := range output.Contents {
		resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    object.Key,
		})
		if err != nil {
			log.Printf("warn: failed to get object %s: %v", *object.Key, err)
			continue
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			log.Printf("warn: failed to read object body %s: %v", *object.Key, err)
			continue
		}

		var canvas core.Canvas
		if err := json.Unmarshal(data, &canvas); err != nil {
			log.Printf("warn: failed to unmarshal canvas %s: %v", *object.Key, err)
			continue
		}

		if canvas.HasAccess(userID) {
			canvas.Data = nil
			canvases = append(canvases, &canvas)
		}
	}

	return canvases, nil
}

func (s *s3Store) Create(ctx context.Context, canvas *core.Canvas) error {
	return s.put(ctx, canvas)
}

func (s *s3Store) SaveData(ctx context.Context, id string, data json.RawMessage, modified time.Time) error {
	canvas, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	canvas.Data = data
	canvas.LastModified = modified
	return s.put(ctx, canvas)
}

func (s *s3Store) AddCollaborator(ctx context.Context, id, userID string) error {
	canvas, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	for _, collaborator := range canvas.Collaborators {
		if collaborator == userID {
			return nil
		}
	}
	canvas.Collaborators = append(canvas.Collaborators, userID)
	return s.put(ctx, canvas)
}

func (s *s3Store) Delete(ctx context.Context, id string) error {
	key, err := canvasKey(id)
	if err != nil {
		return err
	}

	_, err = s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete canvas %s: %v", id, err)
	}
	return nil
}

func (s *s3Store) put(ctx context.Context, canvas *core.Canvas) error {
	key, err := canvasKey(canvas.ID)
	if err != nil {
		return err
	}

	data, err := json.Marshal(canvas)
	if err != nil {
		return fmt.Errorf("failed to marshal canvas: %v", err)
	}

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("failed to save canvas %s: %v", canvas.ID, err)
	}
	return nil
}

// ShareStore implementation.

func (s *s3Store) FindID(ctx context.Context, id string) (*core.Share, error) {
	if id == "" || path.Base(id) != id {
		return nil, fmt.Errorf("invalid share id")
	}

	resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(sharePrefix + id),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get share with id %s: %v", id, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read share data: %v", err)
	}
	return &core.Share{Data: *bytes.NewBuffer(data)}, nil
}

func (s *s3Store) Publish(ctx context.Context, share *core.Share) (string, error) {
	id := ulid.Make().String()

	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(sharePrefix + id),
		Body:   bytes.NewReader(share.Data.Bytes()),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload share: %v", err)
	}
	return id, nil
}
