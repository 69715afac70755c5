package proxyapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sync"

	"github.com/openwaters/crowd-depth/internal/domain"
	"github.com/openwaters/crowd-depth/internal/submit"
)

// submission holds the parsed inbound multipart body: the buffered metadata
// field and the still-unread file part.
type submission struct {
	metaRaw         []byte
	filePart        *multipart.Part
	fileName        string
	fileContentType string
}

// readSubmission consumes parts up to and including the file header. The
// metadataInput field must precede the file field so identity can be checked
// before any file byte is forwarded. The file part body is left unread for
// streaming.
func readSubmission(form *multipart.Reader) (*submission, error) {
	sub := &submission{}

	for {
		part, err := form.NextPart()
		if err == io.EOF {
			return nil, errors.New("missing file field")
		}
		if err != nil {
			return nil, fmt.Errorf("read part: %w", err)
		}

		switch part.FormName() {
		case "metadataInput":
			meta, err := io.ReadAll(io.LimitReader(part, maxMetadataBytes))
			if err != nil {
				return nil, fmt.Errorf("read metadata: %w", err)
			}
			sub.metaRaw = meta
		case "file":
			if sub.metaRaw == nil {
				return nil, errors.New("metadataInput must precede file")
			}
			sub.filePart = part
			sub.fileName = part.FileName()
			sub.fileContentType = part.Header.Get("Content-Type")
			if sub.fileName == "" {
				sub.fileName = "submission.geojson"
			}
			return sub, nil
		default:
			// Unknown fields are drained and ignored.
			if _, err := io.Copy(io.Discard, part); err != nil {
				return nil, fmt.Errorf("drain part %q: %w", part.FormName(), err)
			}
		}
	}
}

// uniqueID extracts the identity the metadata claims to submit for. Clients
// send either a bare {uniqueID} object or the full CSB envelope.
func (s *submission) uniqueID() string {
	var meta struct {
		UniqueID   string `json:"uniqueID"`
		Properties struct {
			TrustedNode struct {
				UniqueVesselID string `json:"uniqueVesselID"`
			} `json:"trustedNode"`
			Platform struct {
				UniqueID string `json:"uniqueID"`
			} `json:"platform"`
		} `json:"properties"`
	}
	if err := json.Unmarshal(s.metaRaw, &meta); err != nil {
		return ""
	}

	switch {
	case meta.UniqueID != "":
		return meta.UniqueID
	case meta.Properties.Platform.UniqueID != "":
		return meta.Properties.Platform.UniqueID
	default:
		return meta.Properties.TrustedNode.UniqueVesselID
	}
}

type fanOutResult struct {
	archiveStatus      int
	archiveContentType string
	archiveBody        []byte
	archiveErr         error
	storageErr         error
}

// fanOut streams the file part once into two independent destinations: the
// upstream archive (re-formed multipart under the server credential) and
// object storage (metadata and file as two writes). A failure on one side
// detaches that side's pipe without disturbing the other.
func (s *Server) fanOut(ctx context.Context, boundID string, sub *submission) fanOutResult {
	var result fanOutResult

	upR, upW := io.Pipe()
	stR, stW := io.Pipe()

	go pump(sub.filePart, upW, stW)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		status, contentType, body, err := s.submitUpstream(ctx, sub, upR)
		result.archiveStatus = status
		result.archiveContentType = contentType
		result.archiveBody = body
		result.archiveErr = err
	}()

	go func() {
		defer wg.Done()
		result.storageErr = s.mirror(ctx, boundID, sub, stR)
	}()

	wg.Wait()
	return result
}

// submitUpstream posts the submission to the archive with the client's
// bearer token stripped and the server credential in its place. The archive
// never sees per-vessel tokens.
func (s *Server) submitUpstream(ctx context.Context, sub *submission, file *io.PipeReader) (status int, contentType string, respBody []byte, err error) {
	// Unblock the pump if the request aborts before draining the pipe.
	defer func() { file.CloseWithError(err) }()

	body, formContentType := submit.FormBody(sub.metaRaw, sub.fileName, sub.fileContentType, file)
	defer body.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.UpstreamURL, body)
	if err != nil {
		return 0, "", nil, fmt.Errorf("create upstream request: %w", err)
	}
	req.Header.Set("Content-Type", formContentType)
	req.Header.Set("x-auth-token", s.cfg.UpstreamToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, "", nil, fmt.Errorf("upstream request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err = io.ReadAll(io.LimitReader(resp.Body, maxMetadataBytes))
	if err != nil {
		return 0, "", nil, fmt.Errorf("read upstream response: %w", err)
	}
	return resp.StatusCode, resp.Header.Get("Content-Type"), respBody, nil
}

// mirror writes the metadata and file objects under a vessel/time-derived
// key prefix.
func (s *Server) mirror(ctx context.Context, boundID string, sub *submission, file *io.PipeReader) (err error) {
	defer func() { file.CloseWithError(err) }()

	prefix := fmt.Sprintf("%s/%s", boundID, domain.Now().UTC().Format("20060102T150405Z"))

	if err := s.store.Put(ctx, prefix+"/metadata.json", "application/json",
		bytes.NewReader(sub.metaRaw), int64(len(sub.metaRaw))); err != nil {
		return fmt.Errorf("mirror metadata: %w", err)
	}

	if err := s.store.Put(ctx, prefix+"/"+sub.fileName, sub.fileContentType, file, -1); err != nil {
		return fmt.Errorf("mirror file: %w", err)
	}
	return nil
}

// pump copies src into every destination pipe. When one destination's
// reader goes away its writes start failing and that pipe is dropped; the
// remaining destinations keep receiving, so the two fan-out writes never
// share a failure domain.
func pump(src io.Reader, dsts ...*io.PipeWriter) {
	buf := make([]byte, 32*1024)
	var srcErr error

	for {
		n, err := src.Read(buf)
		if n > 0 {
			alive := false
			for i, w := range dsts {
				if w == nil {
					continue
				}
				if _, werr := w.Write(buf[:n]); werr != nil {
					dsts[i] = nil
					continue
				}
				alive = true
			}
			if !alive {
				srcErr = io.ErrClosedPipe
				break
			}
		}
		if err != nil {
			if err != io.EOF {
				srcErr = err
			}
			break
		}
	}

	for _, w := range dsts {
		if w != nil {
			w.CloseWithError(srcErr)
		}
	}
}
