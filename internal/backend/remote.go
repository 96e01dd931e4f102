// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/docprep/internal/httputil"
	"github.com/pdiddy/docprep/pkg/types"
)

const (
	remoteConvertPath = "/convert"
	remoteMaxRetries  = 3

	// maxRemoteError bounds the response body quoted in error messages.
	maxRemoteError = 512
)

// Remote converts documents through an HTTP conversion service. The source
// is uploaded as multipart field "file" to <baseURL>/convert?target=<ext>
// and the response body is the converted document.
type Remote struct {
	baseURL string
	token   string
	client  *http.Client
	log     *zap.Logger
}

// NewRemote returns a backend for the service at baseURL. A nil client
// uses http.DefaultClient; a nil logger disables logging.
func NewRemote(baseURL string, client *http.Client, log *zap.Logger) (*Remote, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid remote conversion URL %q", baseURL)
	}
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Remote{baseURL: strings.TrimRight(baseURL, "/"), client: client, log: log}, nil
}

// SetToken makes every request carry "Authorization: Bearer <token>". An
// empty token sends no authorization header.
func (r *Remote) SetToken(token string) { r.token = token }

// Name returns "remote".
func (r *Remote) Name() string { return string(types.BackendRemote) }

// Convert uploads sourcePath and writes the returned document into a stage
// directory beside it.
func (r *Remote) Convert(ctx context.Context, sourcePath string, target types.DocType) (string, error) {
	if !Supports(target) {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, target)
	}

	body, contentType, err := multipartBody(sourcePath)
	if err != nil {
		return "", err
	}

	endpoint := r.baseURL + remoteConvertPath + "?" + url.Values{"target": {string(target)}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := httputil.DoWithRetry(ctx, r.client, req, remoteMaxRetries)
	if err != nil {
		return "", timeoutErr(ctx, fmt.Errorf("remote conversion of %s: %w", filepath.Base(sourcePath), err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnsupportedMediaType, resp.StatusCode == http.StatusUnprocessableEntity:
		return "", fmt.Errorf("%w: service rejected %s (%s)", ErrUnsupported, filepath.Base(sourcePath), resp.Status)
	case resp.StatusCode != http.StatusOK:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxRemoteError))
		return "", fmt.Errorf("remote conversion of %s: %s: %s", filepath.Base(sourcePath), resp.Status, strings.TrimSpace(string(msg)))
	}

	stage, err := NewStage(sourcePath)
	if err != nil {
		return "", err
	}
	stem := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	outPath := filepath.Join(stage, stem+"."+string(target))
	n, err := writeAtomic(outPath, resp.Body)
	if err != nil {
		os.RemoveAll(stage)
		return "", timeoutErr(ctx, err)
	}
	if n == 0 {
		os.RemoveAll(stage)
		return "", fmt.Errorf("%w: empty response for %s", ErrNoOutput, filepath.Base(sourcePath))
	}

	r.log.Debug("remote conversion finished", zap.String("output", outPath), zap.Int64("bytes", n))
	return outPath, nil
}

// multipartBody buffers the upload so that retries can replay it.
func multipartBody(sourcePath string) ([]byte, string, error) {
	f, err := os.Open(sourcePath)
	if err != nil {
		return nil, "", fmt.Errorf("opening %s: %w", sourcePath, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(sourcePath))
	if err != nil {
		return nil, "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("reading %s: %w", sourcePath, err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart body: %w", err)
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

// writeAtomic streams r into path through a temporary sibling file.
func writeAtomic(path string, r io.Reader) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("renaming into %s: %w", path, err)
	}
	return n, nil
}
