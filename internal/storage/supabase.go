package storage

import (
	"bytes"
	"fmt"

	"github.com/supabase-community/supabase-go"
)

type Config struct {
	URL            string
	ServiceRoleKey string
	Bucket         string
}

// Supabase archives call transcripts in a Supabase Storage bucket.
type Supabase struct {
	client *supabase.Client
	bucket string
}

func New(config Config) (*Supabase, error) {
	client, err := supabase.NewClient(config.URL, config.ServiceRoleKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create Supabase client: %w", err)
	}
	return &Supabase{client: client, bucket: config.Bucket}, nil
}

func (s *Supabase) Upload(objectKey string, contentType string, body []byte) error {
	_, err := s.client.Storage.UploadFile(s.bucket, objectKey, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to upload to Supabase: %w", err)
	}
	return nil
}
