package capability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariadne-labs/ariadne/pkg/schema"
)

// fakeCapability is a minimal provider for registry tests.
type fakeCapability struct {
	name    string
	version string
}

func (f *fakeCapability) Name() string           { return f.name }
func (f *fakeCapability) Description() string    { return "fake" }
func (f *fakeCapability) Version() string        { return f.version }
func (f *fakeCapability) Timeout() time.Duration { return time.Second }
func (f *fakeCapability) Validate(Input) error   { return nil }
func (f *fakeCapability) Execute(ctx context.Context, input Input) (*Output, error) {
	return &Output{Success: true}, nil
}

func TestRegisterAndGet(t *testing.T) {
	r := NewRegistry(nil)

	require.NoError(t, r.Register(&fakeCapability{name: "alpha", version: "1.0.0"}))
	assert.True(t, r.Has("alpha"))
	assert.Equal(t, 1, r.Count())

	got, err := r.Get("alpha")
	require.NoError(t, err)
	assert.Equal(t, "alpha", got.Name())
}

func TestGetMissingCapability(t *testing.T) {
	r := NewRegistry(nil)

	_, err := r.Get("nope")
	require.Error(t, err)
	var ae *schema.AriadneError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, schema.ErrCodeCapabilityUnavailable, ae.Code)
}

func TestRegisterDuplicateOverwritesWithWarning(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	r := NewRegistry(logger)

	require.NoError(t, r.Register(&fakeCapability{name: "alpha", version: "1.0.0"}))
	require.NoError(t, r.Register(&fakeCapability{name: "alpha", version: "2.0.0"}))

	// Duplicate registration never errors; the newer provider wins.
	got, err := r.Get("alpha")
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", got.Version())
	assert.Equal(t, 1, r.Count())
	assert.Contains(t, buf.String(), "already registered")
}

func TestRegisterRejectsNilAndEmptyName(t *testing.T) {
	r := NewRegistry(nil)

	assert.Error(t, r.Register(nil))
	assert.Error(t, r.Register(&fakeCapability{name: ""}))
	assert.Equal(t, 0, r.Count())
}

func TestListSorted(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(&fakeCapability{name: "zeta"}))
	require.NoError(t, r.Register(&fakeCapability{name: "alpha"}))
	require.NoError(t, r.Register(&fakeCapability{name: "mid"}))

	assert.Equal(t, []string{"alpha", "mid", "zeta"}, r.Names())
}

func TestUnregister(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(&fakeCapability{name: "alpha"}))

	assert.True(t, r.Unregister("alpha"))
	assert.False(t, r.Unregister("alpha"))
	assert.False(t, r.Has("alpha"))
}

func TestDiscoverRegistersManifestEntries(t *testing.T) {
	r := NewRegistry(nil)

	n := r.Discover(context.Background(), BuiltinManifest(), "tools", nil)
	assert.Equal(t, 3, n)
	assert.True(t, r.Has("web_search"))
	assert.True(t, r.Has("document_ingestion"))
	assert.True(t, r.Has("transform"))
}

func TestDiscoverSkipsFailedConstructors(t *testing.T) {
	m := NewManifest()
	m.Add("tools", "good", func(ctx context.Context) (Capability, error) {
		return &fakeCapability{name: "good"}, nil
	})
	m.Add("tools", "broken", func(ctx context.Context) (Capability, error) {
		return nil, errors.New("boom")
	})
	m.Add("tools", "also_good", func(ctx context.Context) (Capability, error) {
		return &fakeCapability{name: "also_good"}, nil
	})

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	r := NewRegistry(logger)

	// A failing constructor is skipped; discovery continues.
	n := r.Discover(context.Background(), m, "tools", nil)
	assert.Equal(t, 2, n)
	assert.True(t, r.Has("good"))
	assert.True(t, r.Has("also_good"))
	assert.False(t, r.Has("broken"))
	assert.Contains(t, buf.String(), "failed to construct capability")
}

func TestDiscoverExcludePatterns(t *testing.T) {
	r := NewRegistry(nil)

	n := r.Discover(context.Background(), BuiltinManifest(), "tools", []string{"document"})
	assert.Equal(t, 2, n)
	assert.False(t, r.Has("document_ingestion"))
}

func TestDiscoverUnknownNamespace(t *testing.T) {
	r := NewRegistry(nil)

	n := r.Discover(context.Background(), BuiltinManifest(), "missing", nil)
	assert.Equal(t, 0, n)
}
