package importer

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arciva/importer/api"
	"github.com/arciva/importer/internal/events/importing"
	"github.com/arciva/importer/pkg/pending"
	"github.com/arciva/importer/pkg/upload"
)

type memSource struct{ size int64 }

func (m memSource) Open(ctx context.Context) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(make([]byte, m.size))), nil
}

func (m memSource) Size() int64 { return m.size }

func testItems(names ...string) []pending.Item {
	items := make([]pending.Item, len(names))
	for i, name := range names {
		items[i] = pending.Item{
			ID:        name,
			Name:      name,
			SizeBytes: 100,
			MimeType:  "image/jpeg",
			Kind:      pending.SourceLocal,
			Source:    memSource{size: 100},
		}
	}
	return items
}

// quickClient resolves every protocol call immediately, with an optional gate
// on the transfer phase.
type quickClient struct {
	mu           sync.Mutex
	holdTransfer chan struct{}
}

func (c *quickClient) Reserve(ctx context.Context, projectID, filename string, sizeBytes int64, mime string) (*api.Reservation, error) {
	return &api.Reservation{AssetID: "asset-" + filename, UploadToken: "t"}, nil
}

func (c *quickClient) TransferBytes(ctx context.Context, res *api.Reservation, src io.Reader, size int64, onProgress api.ProgressFunc) (*api.TransferResult, error) {
	c.mu.Lock()
	gate := c.holdTransfer
	c.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if _, err := io.Copy(io.Discard, src); err != nil {
		return nil, err
	}
	if onProgress != nil {
		onProgress(size, size)
	}
	return &api.TransferResult{BytesConfirmed: size}, nil
}

func (c *quickClient) Finalize(ctx context.Context, res *api.Reservation, ignoreDuplicates bool) (*api.FinalizeResult, error) {
	return &api.FinalizeResult{Status: api.FinalizeQueued, AssetID: strings.TrimPrefix(res.AssetID, "asset-")}, nil
}

// startApp runs the app and collects its UI messages until the test ends.
// The returned channel is closed once the batch settles.
func startApp(t *testing.T, a *App, items []pending.Item) (<-chan struct{}, func() []tea.Msg) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	runDone := make(chan error, 1)
	go func() { runDone <- a.Run(ctx, items) }()

	settled := make(chan struct{})
	var mu sync.Mutex
	var msgs []tea.Msg
	go func() {
		for msg := range a.UIMessages() {
			mu.Lock()
			msgs = append(msgs, msg)
			mu.Unlock()
			if _, ok := msg.(importing.BatchSettledMsg); ok {
				close(settled)
			}
		}
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-runDone:
			assert.NoError(t, err)
		case <-time.After(3 * time.Second):
			t.Error("app did not shut down")
		}
	})

	return settled, func() []tea.Msg {
		mu.Lock()
		defer mu.Unlock()
		return append([]tea.Msg(nil), msgs...)
	}
}

func waitSettled(t *testing.T, settled <-chan struct{}) {
	t.Helper()
	select {
	case <-settled:
	case <-time.After(3 * time.Second):
		t.Fatal("batch never settled")
	}
}

func TestAppDrivesBatchToSettlement(t *testing.T) {
	a := NewAppWithClient(Config{ProjectID: "p"}, &quickClient{})
	settled, messages := startApp(t, a, testItems("a", "b"))
	waitSettled(t, settled)

	msgs := messages()
	require.NotEmpty(t, msgs)
	started, ok := msgs[0].(importing.BatchStartedMsg)
	require.True(t, ok, "first message must announce the batch, got %T", msgs[0])
	assert.Len(t, started.Tasks, 2)
	assert.Empty(t, started.Warnings)

	last := msgs[len(msgs)-1].(importing.BatchSettledMsg)
	assert.Equal(t, 2, last.Summary.CompletedCount)

	for _, task := range a.Tasks() {
		assert.Equal(t, upload.StatusSucceeded, task.Status)
	}
}

func TestAppHandlesControlEvents(t *testing.T) {
	client := &quickClient{holdTransfer: make(chan struct{})}
	a := NewAppWithClient(Config{ProjectID: "p", Concurrency: 1}, client)
	settled, _ := startApp(t, a, testItems("a", "b"))

	require.Eventually(t, func() bool {
		return a.Tasks()[0].Status == upload.StatusUploading
	}, 3*time.Second, 5*time.Millisecond)

	a.AppEvents() <- importing.PauseAllEvent{}
	require.Eventually(t, func() bool {
		for _, task := range a.Tasks() {
			if task.Status != upload.StatusPaused {
				return false
			}
		}
		return true
	}, 3*time.Second, 5*time.Millisecond)

	close(client.holdTransfer)
	a.AppEvents() <- importing.ResumeAllEvent{}
	waitSettled(t, settled)

	for _, task := range a.Tasks() {
		assert.Equal(t, upload.StatusSucceeded, task.Status)
	}
}

func TestAppSurfacesMissingProjectAsFailedTasks(t *testing.T) {
	a := NewAppWithClient(Config{}, &quickClient{})
	settled, _ := startApp(t, a, testItems("a"))
	waitSettled(t, settled)

	tasks := a.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, upload.StatusFailed, tasks[0].Status)
	assert.Equal(t, upload.ErrMissingProject.Error(), tasks[0].LastError)
}

func TestConfigPolicySelection(t *testing.T) {
	assert.Equal(t, "sequential", Config{Sequential: true}.policy().Name())

	p := Config{Concurrency: 5}.policy()
	assert.Equal(t, "bounded", p.Name())
	assert.Equal(t, 5, p.Ceiling())
	assert.Equal(t, upload.DefaultCeiling, Config{}.policy().Ceiling())
}
