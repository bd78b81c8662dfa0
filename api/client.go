package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const sessionTokenHeader = "X-Session-Token"

// uploadTokenHeader carries the per-asset token issued by Reserve.
const uploadTokenHeader = "X-Upload-Token"

// sessionTokenInjector is a custom http.RoundTripper that injects the session
// token into each request.
type sessionTokenInjector struct {
	token string
	next  http.RoundTripper
}

// RoundTrip intercepts the request, adds the session token header, and passes
// it to the next transport.
func (t *sessionTokenInjector) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.token != "" {
		req.Header.Set(sessionTokenHeader, t.token)
	}
	return t.next.RoundTrip(req)
}

// ProgressFunc reports incremental transfer progress. total is the size the
// caller announced at reservation time.
type ProgressFunc func(sent, total int64)

// Reservation is the remote slot issued by the backend for one pending item.
type Reservation struct {
	AssetID     string
	UploadToken string
	MaxBytes    int64
}

// TransferResult is the server's confirmation of a completed byte stream.
type TransferResult struct {
	BytesConfirmed int64
	SHA256         string
	Duplicate      bool
}

// FinalizeStatus is the backend's verdict on a committed upload.
type FinalizeStatus string

const (
	FinalizeQueued    FinalizeStatus = "queued"
	FinalizeDuplicate FinalizeStatus = "duplicate"
)

// FinalizeResult reports the outcome of the commit phase. AssetID is the
// surviving asset: for duplicates it points at the previously ingested copy.
type FinalizeResult struct {
	Status  FinalizeStatus
	AssetID string
}

// Client performs the three-call upload protocol against an Arciva backend.
// It is pure I/O: it keeps no per-transfer state, so a completed transfer
// holds no references once the caller drops the result.
type Client struct {
	HTTPClient *http.Client
	baseURL    string
}

// NewClient creates a protocol client for the backend at baseURL, configured
// to automatically inject the provided session token.
func NewClient(baseURL, sessionToken string) *Client {
	transport := &sessionTokenInjector{
		token: sessionToken,
		next:  http.DefaultTransport,
	}

	return &Client{
		HTTPClient: &http.Client{
			// No overall timeout: byte streams of large photos legitimately
			// outlive any fixed deadline. Cancellation flows through ctx and
			// stalls are bounded by the transport's own timeouts.
			Transport: transport,
		},
		baseURL: baseURL,
	}
}

// BaseURL returns the backend address this client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

type uploadInitIn struct {
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	Mime      string `json:"mime"`
}

type uploadInitOut struct {
	AssetID     string `json:"asset_id"`
	UploadToken string `json:"upload_token"`
	MaxBytes    int64  `json:"max_bytes"`
}

// Reserve asks the backend for an upload slot inside the target project.
func (c *Client) Reserve(ctx context.Context, projectID, filename string, sizeBytes int64, mime string) (*Reservation, error) {
	body, err := json.Marshal(uploadInitIn{Filename: filename, SizeBytes: sizeBytes, Mime: mime})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal init payload: %w", err)
	}

	url := fmt.Sprintf("%s/v1/projects/%s/uploads/init", c.baseURL, projectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create init request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &ReservationError{Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, &ReservationError{StatusCode: resp.StatusCode, Reason: readErrorDetail(resp.Body)}
	}

	var out uploadInitOut
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &ReservationError{StatusCode: resp.StatusCode, Reason: fmt.Sprintf("malformed init response: %v", err)}
	}

	return &Reservation{AssetID: out.AssetID, UploadToken: out.UploadToken, MaxBytes: out.MaxBytes}, nil
}

type uploadFileOut struct {
	OK        bool   `json:"ok"`
	Bytes     int64  `json:"bytes"`
	SHA256    string `json:"sha256"`
	Duplicate bool   `json:"duplicate"`
}

// TransferBytes streams the byte source to the reserved slot, invoking
// onProgress as bytes move. Cancelling ctx aborts the stream promptly; the
// caller decides whether finalize is ever issued.
func (c *Client) TransferBytes(ctx context.Context, res *Reservation, src io.Reader, size int64, onProgress ProgressFunc) (*TransferResult, error) {
	url := fmt.Sprintf("%s/v1/uploads/%s", c.baseURL, res.AssetID)

	body := &progressReader{r: src, total: size, onProgress: onProgress}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create upload request: %w", err)
	}
	req.Header.Set(uploadTokenHeader, res.UploadToken)
	req.Header.Set("Content-Type", "application/octet-stream")
	req.ContentLength = size

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		// Context cancellation surfaces here; let the caller distinguish it.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransferError{Reason: "connection lost", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &TransferError{StatusCode: resp.StatusCode, Reason: readErrorDetail(resp.Body)}
	}

	var out uploadFileOut
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &TransferError{StatusCode: resp.StatusCode, Reason: fmt.Sprintf("malformed upload response: %v", err)}
	}
	if out.Bytes != size {
		return nil, &TransferError{
			StatusCode: resp.StatusCode,
			Reason:     fmt.Sprintf("byte count mismatch: sent %d, server confirmed %d", size, out.Bytes),
		}
	}

	return &TransferResult{BytesConfirmed: out.Bytes, SHA256: out.SHA256, Duplicate: out.Duplicate}, nil
}

type uploadCompleteIn struct {
	AssetID          string `json:"asset_id"`
	IgnoreDuplicates bool   `json:"ignore_duplicates"`
}

type uploadCompleteOut struct {
	Status           string `json:"status"`
	AssetID          string `json:"asset_id,omitempty"`
	DuplicateAssetID string `json:"duplicate_asset_id,omitempty"`
}

// Finalize commits the transfer so the backend may process the asset. A
// duplicate rejected by the ignoreDuplicates=false policy comes back as a
// FinalizeError carrying the surviving asset's id.
func (c *Client) Finalize(ctx context.Context, res *Reservation, ignoreDuplicates bool) (*FinalizeResult, error) {
	body, err := json.Marshal(uploadCompleteIn{AssetID: res.AssetID, IgnoreDuplicates: ignoreDuplicates})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal complete payload: %w", err)
	}

	url := c.baseURL + "/v1/uploads/complete"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create complete request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(uploadTokenHeader, res.UploadToken)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &FinalizeError{Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		var out uploadCompleteOut
		_ = json.NewDecoder(resp.Body).Decode(&out)
		return nil, &FinalizeError{
			StatusCode:       resp.StatusCode,
			Reason:           "duplicate asset rejected",
			DuplicateAssetID: out.DuplicateAssetID,
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &FinalizeError{StatusCode: resp.StatusCode, Reason: readErrorDetail(resp.Body)}
	}

	var out uploadCompleteOut
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &FinalizeError{StatusCode: resp.StatusCode, Reason: fmt.Sprintf("malformed complete response: %v", err)}
	}

	result := &FinalizeResult{Status: FinalizeStatus(out.Status), AssetID: out.AssetID}
	if result.AssetID == "" {
		result.AssetID = res.AssetID
	}
	return result, nil
}

// progressReader counts bytes as the HTTP transport drains the source and
// reports them to the progress callback.
type progressReader struct {
	r          io.Reader
	sent       int64
	total      int64
	onProgress ProgressFunc
}

func (pr *progressReader) Read(p []byte) (int, error) {
	n, err := pr.r.Read(p)
	if n > 0 {
		pr.sent += int64(n)
		if pr.onProgress != nil {
			pr.onProgress(pr.sent, pr.total)
		}
	}
	return n, err
}

// readErrorDetail extracts a human-readable message from an error response
// body, tolerating both JSON {"detail": ...} and plain text.
func readErrorDetail(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(raw) == 0 {
		return "no error detail"
	}
	var payload struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(raw, &payload) == nil && payload.Detail != "" {
		return payload.Detail
	}
	return string(bytes.TrimSpace(raw))
}
