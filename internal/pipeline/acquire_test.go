package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jaki95/yt-media-server/internal/audio"
	"github.com/jaki95/yt-media-server/internal/chapters"
	"github.com/jaki95/yt-media-server/internal/domain"
	"github.com/jaki95/yt-media-server/internal/downloader"
	"github.com/jaki95/yt-media-server/internal/progress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testRef = "https://www.youtube.com/watch?v=abc123"

type MockProber struct {
	mock.Mock
}

func (m *MockProber) Probe(ctx context.Context, ref string) (*domain.VideoInfo, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.VideoInfo), args.Error(1)
}

type MockThumbnailFetcher struct {
	mock.Mock
}

func (m *MockThumbnailFetcher) Fetch(ctx context.Context, url string, dst io.Writer) (int64, error) {
	args := m.Called(ctx, url, dst)
	return int64(args.Int(0)), args.Error(1)
}

type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) Resolve(ctx context.Context, info *domain.VideoInfo) (string, error) {
	args := m.Called(ctx, info)
	return args.String(0), args.Error(1)
}

type MockTranscoder struct {
	mock.Mock
}

func (m *MockTranscoder) Transcode(ctx context.Context, p audio.TranscodeParams) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Publish(ctx context.Context, localPath, objectName string) error {
	args := m.Called(ctx, localPath, objectName)
	return args.Error(0)
}

func (m *MockStorage) List(ctx context.Context, prefix string) ([]string, error) {
	args := m.Called(ctx, prefix)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockStorage) Close() error {
	return m.Called().Error(0)
}

// fakeFetcher writes a source file into the work directory it is given.
type fakeFetcher struct {
	mu      sync.Mutex
	err     error
	calls   int
	workDir string
}

func (f *fakeFetcher) FetchAudio(ctx context.Context, ref, outputDir string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.workDir = outputDir
	if f.err != nil {
		return "", f.err
	}
	path := filepath.Join(outputDir, "source.webm")
	if err := os.WriteFile(path, []byte("source-audio"), 0644); err != nil {
		return "", err
	}
	return path, nil
}

// blockingTranscoder waits for its context to end.
type blockingTranscoder struct{}

func (blockingTranscoder) Transcode(ctx context.Context, p audio.TranscodeParams) error {
	<-ctx.Done()
	return ctx.Err()
}

type fixture struct {
	audioDir   string
	dataDir    string
	tempDir    string
	prober     *MockProber
	thumbnails *MockThumbnailFetcher
	fetcher    *fakeFetcher
	transcoder *MockTranscoder
	store      *chapters.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		audioDir:   filepath.Join(root, "audios"),
		dataDir:    filepath.Join(root, "data"),
		tempDir:    filepath.Join(root, "tmp"),
		prober:     new(MockProber),
		thumbnails: new(MockThumbnailFetcher),
		fetcher:    &fakeFetcher{},
		transcoder: new(MockTranscoder),
	}
	f.store = chapters.NewStore(f.dataDir)
	require.NoError(t, os.MkdirAll(f.tempDir, 0755))
	return f
}

func (f *fixture) deps() Deps {
	return Deps{
		Prober:     f.prober,
		Thumbnails: f.thumbnails,
		Fetcher:    f.fetcher,
		Transcoder: f.transcoder,
		Chapters:   f.store,
	}
}

func (f *fixture) options() Options {
	return Options{
		AudioDir:      f.audioDir,
		TempDir:       f.tempDir,
		LockDir:       filepath.Join(f.tempDir, "locks"),
		FileExtension: "mp3",
	}
}

func (f *fixture) pipeline(t *testing.T) *Pipeline {
	t.Helper()
	p, err := New(f.deps(), f.options())
	require.NoError(t, err)
	return p
}

func (f *fixture) expectThumbnail() {
	f.thumbnails.On("Fetch", mock.Anything, "https://img.example/thumb.jpg", mock.Anything).
		Run(func(args mock.Arguments) {
			args.Get(2).(io.Writer).Write([]byte{0xFF, 0xD8, 0xFF})
		}).
		Return(3, nil)
}

func (f *fixture) expectTranscode() {
	f.transcoder.On("Transcode", mock.Anything, mock.AnythingOfType("audio.TranscodeParams")).
		Run(func(args mock.Arguments) {
			p := args.Get(1).(audio.TranscodeParams)
			os.MkdirAll(filepath.Dir(p.OutputPath), 0755)
			os.WriteFile(p.OutputPath, []byte("mp3"), 0644)
		}).
		Return(nil)
}

// tempEntries lists what is left in the temp dir, ignoring the lock directory.
func (f *fixture) tempEntries(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(f.tempDir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		if e.Name() == "locks" {
			continue
		}
		names = append(names, e.Name())
	}
	return names
}

func videoInfo(chapters ...domain.VideoChapter) *domain.VideoInfo {
	return &domain.VideoInfo{
		ID:         "abc123",
		Title:      `Live: Session "Vol/1"?`,
		Uploader:   "Some Channel",
		Thumbnail:  "https://img.example/thumb.jpg",
		WebpageURL: testRef,
		UploadDate: "20240102",
		Chapters:   chapters,
	}
}

func TestAcquireWithChapters(t *testing.T) {
	f := newFixture(t)
	info := videoInfo(
		domain.VideoChapter{StartTime: 0, EndTime: 60, Title: "Intro"},
		domain.VideoChapter{StartTime: 60, EndTime: 300, Title: "First"},
		domain.VideoChapter{StartTime: 300, EndTime: 600, Title: "Second"},
	)
	f.prober.On("Probe", mock.Anything, testRef).Return(info, nil)
	f.expectThumbnail()
	f.expectTranscode()

	result, err := f.pipeline(t).Acquire(context.Background(), testRef)
	require.NoError(t, err)

	want := []domain.ChapterMark{
		{StartTime: 0, Title: "Intro"},
		{StartTime: 60, Title: "First"},
		{StartTime: 300, Title: "Second"},
	}
	assert.Equal(t, 200, result.StatusCode)
	assert.Equal(t, want, result.Chapters)

	name := "Live Session Vol1"
	assert.FileExists(t, filepath.Join(f.audioDir, name+".mp3"))
	assert.Equal(t, want, f.store.Read(name))

	f.transcoder.AssertNumberOfCalls(t, "Transcode", 1)
	params := f.transcoder.Calls[0].Arguments.Get(1).(audio.TranscodeParams)
	assert.Equal(t, info.Title, params.Title)
	assert.Equal(t, "Some Channel", params.Artist)
	assert.Equal(t, "2024", params.Year)
	assert.Equal(t, testRef, params.Comment)
	assert.Equal(t, filepath.Join(f.audioDir, name+".mp3"), params.OutputPath)
	assert.True(t, strings.HasPrefix(filepath.Base(params.CoverArtPath), "thumbnail-"))
	assert.Equal(t, filepath.Join(f.fetcher.workDir, "source.webm"), params.InputPath)

	assert.Empty(t, f.tempEntries(t), "thumbnail and work directory are removed")
	f.prober.AssertExpectations(t)
	f.thumbnails.AssertExpectations(t)
}

func TestAcquireWithoutChapters(t *testing.T) {
	f := newFixture(t)
	f.prober.On("Probe", mock.Anything, testRef).Return(videoInfo(), nil)
	f.expectThumbnail()
	f.expectTranscode()

	result, err := f.pipeline(t).Acquire(context.Background(), testRef)
	require.NoError(t, err)

	require.NotNil(t, result.Chapters)
	assert.Empty(t, result.Chapters)

	data, err := json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":200,"chapters":[]}`, string(data))

	assert.False(t, f.store.Exists("Live Session Vol1"), "no sidecar is written")
	assert.Equal(t, domain.DefaultChapters(), f.store.Read("Live Session Vol1"))
	assert.Empty(t, f.tempEntries(t))
}

func TestAcquireThumbnailFailure(t *testing.T) {
	f := newFixture(t)
	f.prober.On("Probe", mock.Anything, testRef).Return(videoInfo(), nil)
	f.thumbnails.On("Fetch", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			args.Get(2).(io.Writer).Write([]byte("partial"))
		}).
		Return(0, errors.New("404 not found"))

	_, err := f.pipeline(t).Acquire(context.Background(), testRef)
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrThumbnail)
	assert.Equal(t, KindThumbnail, KindOf(err))
	assert.Equal(t, 0, f.fetcher.calls)
	f.transcoder.AssertNotCalled(t, "Transcode", mock.Anything, mock.Anything)
	assert.Empty(t, f.tempEntries(t), "thumbnail temp file is removed")
	assert.NoDirExists(t, f.audioDir)
}

func TestAcquireResolvesMissingThumbnail(t *testing.T) {
	f := newFixture(t)
	info := videoInfo()
	info.Thumbnail = ""
	resolver := new(MockResolver)
	resolver.On("Resolve", mock.Anything, info).Return("https://img.example/thumb.jpg", nil)

	f.prober.On("Probe", mock.Anything, testRef).Return(info, nil)
	f.expectThumbnail()
	f.expectTranscode()

	deps := f.deps()
	deps.Resolver = resolver
	p, err := New(deps, f.options())
	require.NoError(t, err)

	_, err = p.Acquire(context.Background(), testRef)
	require.NoError(t, err)
	resolver.AssertExpectations(t)
}

func TestAcquireMissingThumbnailWithoutResolver(t *testing.T) {
	f := newFixture(t)
	info := videoInfo()
	info.Thumbnail = ""
	f.prober.On("Probe", mock.Anything, testRef).Return(info, nil)

	_, err := f.pipeline(t).Acquire(context.Background(), testRef)
	assert.ErrorIs(t, err, ErrThumbnail)
	assert.ErrorIs(t, err, downloader.ErrNoThumbnail)
}

func TestAcquireProbeFailure(t *testing.T) {
	f := newFixture(t)
	cause := errors.New("video unavailable")
	f.prober.On("Probe", mock.Anything, testRef).Return(nil, cause)

	_, err := f.pipeline(t).Acquire(context.Background(), testRef)
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrProbe)
	assert.ErrorIs(t, err, cause)
	var acqErr *AcquisitionError
	require.ErrorAs(t, err, &acqErr)
	assert.Equal(t, testRef, acqErr.Ref)
	f.thumbnails.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything, mock.Anything)
}

func TestAcquireConversionFailure(t *testing.T) {
	f := newFixture(t)
	f.prober.On("Probe", mock.Anything, testRef).Return(videoInfo(), nil)
	f.expectThumbnail()
	f.fetcher.err = errors.New("download failed")

	_, err := f.pipeline(t).Acquire(context.Background(), testRef)
	assert.ErrorIs(t, err, ErrConversion)
	assert.Empty(t, f.tempEntries(t))
	f.transcoder.AssertNotCalled(t, "Transcode", mock.Anything, mock.Anything)
}

func TestAcquireLockFailure(t *testing.T) {
	f := newFixture(t)
	f.prober.On("Probe", mock.Anything, testRef).Return(videoInfo(), nil)
	f.expectThumbnail()
	opts := f.options()
	// a regular file where the lock directory should be
	opts.LockDir = filepath.Join(f.tempDir, "not-a-dir")
	require.NoError(t, os.WriteFile(opts.LockDir, []byte("x"), 0644))
	p, err := New(f.deps(), opts)
	require.NoError(t, err)

	_, err = p.Acquire(context.Background(), testRef)
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrLock)
	assert.NotErrorIs(t, err, ErrConversion)
	assert.Equal(t, KindLock, KindOf(err))
	assert.Equal(t, "lock", KindOf(err).String())
	assert.Zero(t, f.fetcher.calls)
	f.transcoder.AssertNotCalled(t, "Transcode", mock.Anything, mock.Anything)
}

func TestAcquireChaptersFailure(t *testing.T) {
	f := newFixture(t)
	// a regular file where the data directory should be
	require.NoError(t, os.WriteFile(f.dataDir, []byte("x"), 0644))

	f.prober.On("Probe", mock.Anything, testRef).
		Return(videoInfo(domain.VideoChapter{StartTime: 0, Title: "Only"}), nil)
	f.expectThumbnail()
	f.expectTranscode()

	_, err := f.pipeline(t).Acquire(context.Background(), testRef)
	assert.ErrorIs(t, err, ErrChapters)
	assert.Equal(t, KindChapters, KindOf(err))
}

func TestAcquireTimeout(t *testing.T) {
	f := newFixture(t)
	f.prober.On("Probe", mock.Anything, testRef).Return(videoInfo(), nil)
	f.expectThumbnail()

	deps := f.deps()
	deps.Transcoder = blockingTranscoder{}
	opts := f.options()
	opts.Timeout = 50 * time.Millisecond

	p, err := New(deps, opts)
	require.NoError(t, err)

	_, err = p.Acquire(context.Background(), testRef)
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, KindTimeout, KindOf(err))
	assert.Empty(t, f.tempEntries(t))
}

func TestAcquireCancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.prober.On("Probe", mock.Anything, testRef).Return(nil, context.Canceled)

	_, err := f.pipeline(t).Acquire(ctx, testRef)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, KindCancelled, KindOf(err))
}

func TestAcquireReportsProgress(t *testing.T) {
	f := newFixture(t)
	f.prober.On("Probe", mock.Anything, testRef).
		Return(videoInfo(domain.VideoChapter{StartTime: 0, Title: "Only"}), nil)
	f.expectThumbnail()
	f.expectTranscode()

	tracker := progress.NewTracker()
	var events []progress.Event
	tracker.AddListener(func(e progress.Event) {
		events = append(events, e)
	})

	_, err := f.pipeline(t).Acquire(context.Background(), testRef, WithProgress(tracker))
	require.NoError(t, err)

	var stages []progress.Stage
	var pcts []float64
	for _, e := range events {
		stages = append(stages, e.Stage)
		pcts = append(pcts, e.Progress)
	}
	assert.Equal(t, []progress.Stage{
		progress.StageProbing,
		progress.StageThumbnail,
		progress.StageConverting,
		progress.StageConverting,
		progress.StageConverting,
		progress.StageChapters,
		progress.StageComplete,
	}, stages)
	assert.Equal(t, []float64{10, 25, 40, 65, 90, 95, 100}, pcts)
	assert.Equal(t, `Live: Session "Vol/1"?`, tracker.Current().Title)
	assert.NotEmpty(t, tracker.Current().RunID)
}

func TestAcquireReportsError(t *testing.T) {
	f := newFixture(t)
	f.prober.On("Probe", mock.Anything, testRef).Return(nil, errors.New("boom"))

	tracker := progress.NewTracker()
	_, err := f.pipeline(t).Acquire(context.Background(), testRef, WithProgress(tracker))
	require.Error(t, err)

	state := tracker.Current()
	assert.Equal(t, progress.StageError, state.Stage)
	assert.Contains(t, state.Error, "boom")
}

func TestAcquireMirrorsArtifacts(t *testing.T) {
	f := newFixture(t)
	f.prober.On("Probe", mock.Anything, testRef).
		Return(videoInfo(domain.VideoChapter{StartTime: 0, Title: "Only"}), nil)
	f.expectThumbnail()
	f.expectTranscode()

	mirror := new(MockStorage)
	mirror.On("Publish", mock.Anything, filepath.Join(f.audioDir, "Live Session Vol1.mp3"), "audios/Live Session Vol1.mp3").
		Return(errors.New("bucket unavailable"))
	mirror.On("Publish", mock.Anything, f.store.Path("Live Session Vol1"), "chapters/Live Session Vol1.json").
		Return(nil)

	deps := f.deps()
	deps.Mirror = mirror
	p, err := New(deps, f.options())
	require.NoError(t, err)

	_, err = p.Acquire(context.Background(), testRef)
	require.NoError(t, err, "mirror failures are not fatal")
	mirror.AssertExpectations(t)
}

func TestNewValidation(t *testing.T) {
	f := newFixture(t)

	_, err := New(Deps{}, f.options())
	assert.Error(t, err)

	opts := f.options()
	opts.FileExtension = "xyz"
	_, err = New(f.deps(), opts)
	assert.ErrorIs(t, err, audio.ErrInvalidExtension)

	opts.FileExtension = ".OGG"
	p, err := New(f.deps(), opts)
	require.NoError(t, err)
	assert.Equal(t, "ogg", p.opts.FileExtension)
}
