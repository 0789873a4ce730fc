// Package gcs stores uploaded sale documents in a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

type Client struct {
	client *storage.Client
	bucket string

	// signer credentials, empty when running on ambient credentials
	accessID   string
	privateKey []byte
}

type serviceAccount struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
}

// New opens a client for bucket. When credentialsJSON is empty the
// application default credentials are used.
func New(ctx context.Context, bucket, credentialsJSON string) (*Client, error) {
	if bucket == "" {
		return nil, errors.New("gcs: bucket is required")
	}

	var opts []option.ClientOption

	c := &Client{bucket: bucket}

	if strings.TrimSpace(credentialsJSON) != "" {
		var sa serviceAccount
		if err := json.Unmarshal([]byte(credentialsJSON), &sa); err != nil {
			return nil, fmt.Errorf("parsing credentials: %w", err)
		}

		c.accessID = sa.ClientEmail
		c.privateKey = []byte(strings.ReplaceAll(sa.PrivateKey, `\n`, "\n"))

		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}

	c.client = client

	return c, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) Upload(ctx context.Context, key, contentType string, r io.Reader) error {
	w := c.client.Bucket(c.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("writing object %s: %w", key, err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("closing object %s: %w", key, err)
	}

	return nil
}

// Delete treats a missing object as already deleted.
func (c *Client) Delete(ctx context.Context, key string) error {
	err := c.client.Bucket(c.bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("deleting object %s: %w", key, err)
	}

	return nil
}

func (c *Client) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := c.client.Bucket(c.bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening object %s: %w", key, err)
	}

	return r, nil
}

// SignedURL returns a V4 GET URL valid for ttl.
func (c *Client) SignedURL(key string, ttl time.Duration) (string, error) {
	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(ttl),
	}

	if c.accessID != "" {
		opts.GoogleAccessID = c.accessID
		opts.PrivateKey = c.privateKey
	}

	u, err := c.client.Bucket(c.bucket).SignedURL(key, opts)
	if err != nil {
		return "", fmt.Errorf("signing url for %s: %w", key, err)
	}

	return u, nil
}

// ObjectURL is the permanent, non-signed location of key.
func (c *Client) ObjectURL(key string) string {
	return "https://storage.googleapis.com/" + c.bucket + "/" + (&url.URL{Path: key}).EscapedPath()
}
