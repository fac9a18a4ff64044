/*******************************************************************************
* Copyright (C) 2026 the Eclipse BaSyx Authors and Fraunhofer IESE
*
* Permission is hereby granted, free of charge, to any person obtaining
* a copy of this software and associated documentation files (the
* "Software"), to deal in the Software without restriction, including
* without limitation the rights to use, copy, modify, merge, publish,
* distribute, sublicense, and/or sell copies of the Software, and to
* permit persons to whom the Software is furnished to do so, subject to
* the following conditions:
*
* The above copyright notice and this permission notice shall be
* included in all copies or substantial portions of the Software.
*
* THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND,
* EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF
* MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND
* NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR COPYRIGHT HOLDERS BE
* LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER IN AN ACTION
* OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN CONNECTION
* WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
*
* SPDX-License-Identifier: MIT
******************************************************************************/

package aasx

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/eclipse-basyx/titan-aas/internal/common"
)

// BlobStore persists package files and externalized supplementary parts.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, string, error)
	Delete(ctx context.Context, key string) error
}

// LocalBlobStore keeps blobs as files under a base directory. The content
// type rides in a sidecar file next to the payload.
type LocalBlobStore struct {
	dir string
}

// NewLocalBlobStore binds the store to a directory, creating it if needed.
func NewLocalBlobStore(dir string) (*LocalBlobStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("aasx: create blob dir: %w", err)
	}
	return &LocalBlobStore{dir: dir}, nil
}

func (s *LocalBlobStore) path(key string) (string, error) {
	clean := filepath.Join(s.dir, filepath.FromSlash(key))
	if !strings.HasPrefix(clean, filepath.Clean(s.dir)+string(os.PathSeparator)) {
		return "", common.NewErrBadRequest(fmt.Sprintf("invalid blob key %q", key))
	}
	return clean, nil
}

// Put writes the payload and its content-type sidecar.
func (s *LocalBlobStore) Put(_ context.Context, key, contentType string, data []byte) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return common.NewInternalServerError(fmt.Sprintf("TITAN-BLOB-PUT-MKDIR failed to create blob path: %s", err))
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return common.NewInternalServerError(fmt.Sprintf("TITAN-BLOB-PUT-WRITE failed to write blob: %s", err))
	}
	if err := os.WriteFile(p+".ctype", []byte(contentType), 0o644); err != nil {
		return common.NewInternalServerError(fmt.Sprintf("TITAN-BLOB-PUT-META failed to write blob metadata: %s", err))
	}
	return nil
}

// Get reads payload and content type back.
func (s *LocalBlobStore) Get(_ context.Context, key string) ([]byte, string, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", common.NewErrNotFound(fmt.Sprintf("no blob with key %q", key))
		}
		return nil, "", common.NewInternalServerError(fmt.Sprintf("TITAN-BLOB-GET-READ failed to read blob: %s", err))
	}
	ctype, err := os.ReadFile(p + ".ctype")
	if err != nil {
		ctype = []byte("application/octet-stream")
	}
	return data, string(ctype), nil
}

// Delete removes payload and sidecar; a missing blob is not an error.
func (s *LocalBlobStore) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return common.NewInternalServerError(fmt.Sprintf("TITAN-BLOB-DEL failed to delete blob: %s", err))
	}
	_ = os.Remove(p + ".ctype")
	return nil
}

// s3API is the slice of the S3 client the store uses.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3BlobStore keeps blobs as S3 objects.
type S3BlobStore struct {
	client s3API
	bucket string
}

// NewS3BlobStore binds the store to a bucket.
func NewS3BlobStore(client s3API, bucket string) *S3BlobStore {
	return &S3BlobStore{client: client, bucket: bucket}
}

// Put uploads the payload.
func (s *S3BlobStore) Put(ctx context.Context, key, contentType string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return common.NewInternalServerError(fmt.Sprintf("TITAN-BLOB-S3-PUT failed to upload blob: %s", err))
	}
	return nil
}

// Get downloads the payload.
func (s *S3BlobStore) Get(ctx context.Context, key string) ([]byte, string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, "", common.NewErrNotFound(fmt.Sprintf("no blob with key %q: %s", key, err))
	}
	defer func() { _ = out.Body.Close() }()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", common.NewInternalServerError(fmt.Sprintf("TITAN-BLOB-S3-READ failed to read blob body: %s", err))
	}
	ctype := "application/octet-stream"
	if out.ContentType != nil {
		ctype = *out.ContentType
	}
	return data, ctype, nil
}

// Delete removes the object.
func (s *S3BlobStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return common.NewInternalServerError(fmt.Sprintf("TITAN-BLOB-S3-DEL failed to delete blob: %s", err))
	}
	return nil
}
