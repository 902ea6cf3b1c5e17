package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
)

// MaxUpload bounds an image upload accepted from the browser.
const MaxUpload = 5 << 20

// ErrEmptyUpload is returned when the upload did not carry a filename back.
var ErrEmptyUpload = errors.New("api upload: no filename in response")

// UploadProfileImage stores a profile picture and returns its filename.  It
// is called before signup, so no credentials are sent.
func (c *Client) UploadProfileImage(ctx context.Context, creds Credentials, name string, r io.Reader) (string, error) {
	return c.upload(ctx, "/upload/profile", creds, name, r)
}

// UploadPostImage stores a post image and returns its filename.
func (c *Client) UploadPostImage(ctx context.Context, creds Credentials, name string, r io.Reader) (string, error) {
	return c.upload(ctx, "/upload/post", creds, name, r)
}

func (c *Client) upload(ctx context.Context, path string, creds Credentials, name string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", filepath.Base(name))
	if err != nil {
		return "", fmt.Errorf("api upload: %w", err)
	}
	n, err := io.Copy(part, io.LimitReader(r, MaxUpload+1))
	if err != nil {
		return "", fmt.Errorf("api upload: %w", err)
	}
	if n > MaxUpload {
		return "", fmt.Errorf("api upload: file exceeds %d bytes", MaxUpload)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("api upload: %w", err)
	}

	var out struct {
		Message  string `json:"message"`
		Filename string `json:"filename"`
	}
	if _, err := c.do(ctx, call{
		method: http.MethodPost,
		path:   path,
		creds:  creds,
		body:   &payload{contentType: mw.FormDataContentType(), data: buf.Bytes()},
		out:    &out,
	}); err != nil {
		return "", err
	}
	if out.Filename == "" {
		return "", ErrEmptyUpload
	}
	return out.Filename, nil
}
