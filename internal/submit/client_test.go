package submit_test

import (
	"context"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openwaters/crowd-depth/internal/submit"
)

type capturedPart struct {
	formName    string
	fileName    string
	contentType string
	body        string
}

func capturedParts(t *testing.T, r *http.Request) []capturedPart {
	t.Helper()
	mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	require.NoError(t, err)
	require.Equal(t, "multipart/form-data", mediaType)

	var parts []capturedPart
	mr := multipart.NewReader(r.Body, params["boundary"])
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		body, err := io.ReadAll(p)
		require.NoError(t, err)
		parts = append(parts, capturedPart{
			formName:    p.FormName(),
			fileName:    p.FileName(),
			contentType: p.Header.Get("Content-Type"),
			body:        string(body),
		})
	}
	return parts
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSubmitSendsMultipartForm(t *testing.T) {
	var (
		gotParts []capturedPart
		gotAuth  string
		gotAgent string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotParts = capturedParts(t, r)
		gotAuth = r.Header.Get("Authorization")
		gotAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"message":"received","submissionIds":["abc-123"]}`))
	}))
	defer srv.Close()

	client := submit.NewClient(srv.URL, "secret-token", time.Minute, testLogger())

	meta := map[string]string{"uniqueID": "SIGNALK-test"}
	resp, err := client.Submit(context.Background(), meta,
		"vessel.geojson", strings.NewReader(`{"type":"FeatureCollection"}`))
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, []string{"abc-123"}, resp.SubmissionIDs)
	assert.Equal(t, "Bearer secret-token", gotAuth)
	assert.Contains(t, gotAgent, "crowd-depth")

	require.Len(t, gotParts, 2)
	assert.Equal(t, "metadataInput", gotParts[0].formName)
	assert.Equal(t, "application/json", gotParts[0].contentType)
	assert.JSONEq(t, `{"uniqueID":"SIGNALK-test"}`, gotParts[0].body)

	assert.Equal(t, "file", gotParts[1].formName)
	assert.Equal(t, "vessel.geojson", gotParts[1].fileName)
	assert.Equal(t, "application/geo+json", gotParts[1].contentType)
	assert.Equal(t, `{"type":"FeatureCollection"}`, gotParts[1].body)
}

func TestSubmitOmitsAuthorizationWithoutToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		io.Copy(io.Discard, r.Body)
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	client := submit.NewClient(srv.URL, "", time.Minute, testLogger())
	_, err := client.Submit(context.Background(), map[string]string{}, "f.geojson", strings.NewReader("{}"))
	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}

func TestSubmitStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := submit.NewClient(srv.URL, "tok", time.Minute, testLogger())
	_, err := client.Submit(context.Background(), map[string]string{}, "f.geojson", strings.NewReader("{}"))

	var statusErr *submit.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "quota exceeded")
}

func TestSubmitMalformedResponseBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	client := submit.NewClient(srv.URL, "tok", time.Minute, testLogger())
	_, err := client.Submit(context.Background(), map[string]string{}, "f.geojson", strings.NewReader("{}"))
	assert.Error(t, err)
}

func TestSubmitSurfacesFileReadError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	client := submit.NewClient(srv.URL, "tok", time.Minute, testLogger())
	_, err := client.Submit(context.Background(), map[string]string{}, "f.geojson", errReader{})
	assert.Error(t, err)
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, io.ErrUnexpectedEOF }

func TestFormBodyContentType(t *testing.T) {
	body, contentType := submit.FormBody([]byte(`{}`), "f.geojson", "application/geo+json", strings.NewReader("{}"))
	defer body.Close()

	mediaType, params, err := mime.ParseMediaType(contentType)
	require.NoError(t, err)
	assert.Equal(t, "multipart/form-data", mediaType)
	assert.NotEmpty(t, params["boundary"])
}
