// Package upload is the client for the external media upload service. The
// service takes raw bytes and answers with a public URL; nothing is stored
// locally.
package upload

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/tidechat/realtime/internal/domain"
)

// Kind names an attachment slot on a chat message.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
	KindPDF   Kind = "pdf"
)

type Client struct {
	baseURL     string
	maxBodySize int64
	http        *http.Client
}

func NewClient(baseURL string, timeout time.Duration, maxBodySize int64) *Client {
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		maxBodySize: maxBodySize,
		http:        &http.Client{Timeout: timeout},
	}
}

// Upload decodes a base64 or data-URI attachment, checks it really is the
// claimed kind, and posts it to the media service. The returned URL is what
// gets persisted on the message.
func (c *Client) Upload(ctx context.Context, kind Kind, data string) (string, error) {
	raw, err := decodeAttachment(data)
	if err != nil {
		return "", domain.WrapErr(err, domain.KindUploadFailed, "attachment is not valid base64")
	}

	if int64(len(raw)) > c.maxBodySize {
		return "", domain.E(domain.KindUploadFailed,
			fmt.Sprintf("attachment exceeds %d bytes", c.maxBodySize))
	}

	if err := checkKind(kind, raw); err != nil {
		return "", err
	}

	url, err := c.post(ctx, kind, raw)
	if err != nil {
		return "", domain.WrapErr(err, domain.KindUploadFailed, "media upload failed")
	}
	return url, nil
}

func (c *Client) post(ctx context.Context, kind Kind, raw []byte) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "attachment."+string(kind))
	if err != nil {
		return "", err
	}
	if _, err := part.Write(raw); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/upload/%s", c.baseURL, kind)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return "", fmt.Errorf("upload service returned %d: %s", resp.StatusCode, snippet)
	}

	var result struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("invalid upload response: %w", err)
	}
	if result.URL == "" {
		return "", fmt.Errorf("upload response missing url")
	}
	return result.URL, nil
}

// decodeAttachment accepts "data:<mime>;base64,<payload>" or bare base64.
func decodeAttachment(data string) ([]byte, error) {
	if idx := strings.Index(data, ";base64,"); idx >= 0 && strings.HasPrefix(data, "data:") {
		data = data[idx+len(";base64,"):]
	}
	return base64.StdEncoding.DecodeString(data)
}

func checkKind(kind Kind, raw []byte) error {
	mime := mimetype.Detect(raw)

	ok := false
	switch kind {
	case KindImage:
		ok = strings.HasPrefix(mime.String(), "image/")
	case KindVideo:
		ok = strings.HasPrefix(mime.String(), "video/")
	case KindPDF:
		ok = mime.Is("application/pdf")
	}

	if !ok {
		return domain.E(domain.KindUploadFailed,
			fmt.Sprintf("attachment does not look like a %s (%s)", kind, mime.String()))
	}
	return nil
}
