// Package submit posts GeoJSON submissions to a bathymetry archive as
// streaming multipart form data.
package submit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"
)

// userAgent identifies this logger on outbound requests.
const userAgent = "crowd-depth/1.0.0 (https://github.com/openwaters/crowd-depth)"

// Response is the archive's submission result body.
type Response struct {
	Success       bool     `json:"success"`
	Message       string   `json:"message"`
	SubmissionIDs []string `json:"submissionIds"`
}

// StatusError reports a non-2xx archive response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("archive returned status %d: %s", e.StatusCode, e.Body)
}

// Client submits multipart form data to one archive endpoint.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a submission client for the archive endpoint, bearer
// authenticated with the vessel's token.
func NewClient(endpoint, token string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		endpoint: endpoint,
		token:    token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Submit posts metadata and a file stream as multipart/form-data. The file
// is piped straight into the request body: a slow network applies
// backpressure up through the transform chain rather than buffering.
// Success requires a 2xx status and a well-formed response body.
func (c *Client) Submit(ctx context.Context, metadata any, filename string, file io.Reader) (*Response, error) {
	meta, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}

	body, contentType := FormBody(meta, filename, "application/geo+json", file)
	defer body.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.logger.Debug("submitting to archive", "endpoint", c.endpoint, "filename", filename)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var result Response
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode archive response: %w", err)
	}
	return &result, nil
}

// FormBody builds a streaming multipart body with the archive's expected
// fields: metadataInput as JSON and file with the given content type. The
// returned reader produces bytes on demand as the file is consumed; the
// second return value is the Content-Type header for the request.
func FormBody(meta []byte, filename, fileContentType string, file io.Reader) (io.ReadCloser, string) {
	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeForm(form, meta, filename, fileContentType, file))
	}()

	return pr, form.FormDataContentType()
}

func writeForm(form *multipart.Writer, meta []byte, filename, fileContentType string, file io.Reader) error {
	metaPart, err := form.CreatePart(partHeader(`form-data; name="metadataInput"`, "application/json"))
	if err != nil {
		return fmt.Errorf("create metadata part: %w", err)
	}
	if _, err := metaPart.Write(meta); err != nil {
		return fmt.Errorf("write metadata part: %w", err)
	}

	filePart, err := form.CreatePart(partHeader(
		fmt.Sprintf(`form-data; name="file"; filename=%q`, filename),
		fileContentType,
	))
	if err != nil {
		return fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(filePart, file); err != nil {
		return fmt.Errorf("write file part: %w", err)
	}

	return form.Close()
}

func partHeader(disposition, contentType string) textproto.MIMEHeader {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", disposition)
	h.Set("Content-Type", contentType)
	return h
}
