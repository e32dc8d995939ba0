package workflow

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"reelsmith/internal/capture"
	"reelsmith/internal/journal"
	"reelsmith/internal/logging"
	"reelsmith/internal/notifications"
	"reelsmith/internal/production"
	"reelsmith/internal/sequencer"
	"reelsmith/internal/services"
	"reelsmith/internal/stage"
	"reelsmith/internal/testsupport"
)

type fakeHandler struct {
	name       string
	prepareErr error
	executeErr error
	execute    func(context.Context, *production.Run) error

	mu       sync.Mutex
	calls    int
	logger   bool
	statuses []production.Status
}

func (f *fakeHandler) Prepare(context.Context, *production.Run) error {
	return f.prepareErr
}

func (f *fakeHandler) Execute(ctx context.Context, run *production.Run) error {
	f.mu.Lock()
	f.calls++
	f.statuses = append(f.statuses, run.Status)
	f.mu.Unlock()
	if f.execute != nil {
		if err := f.execute(ctx, run); err != nil {
			return err
		}
	}
	run.SetProgressComplete(f.name, f.name+" done")
	return f.executeErr
}

func (f *fakeHandler) HealthCheck(context.Context) stage.Health {
	return stage.Healthy(f.name)
}

func (f *fakeHandler) SetLogger(*slog.Logger) {
	f.mu.Lock()
	f.logger = true
	f.mu.Unlock()
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
	last   notifications.Payload
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	r.last = payload
	return nil
}

func newTestManager(t *testing.T, opts ...ManagerOption) (*Manager, *journal.Journal, *recordingNotifier) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	j, err := journal.Open(journal.MemoryPath)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	notifier := &recordingNotifier{}
	opts = append([]ManagerOption{WithNotifier(notifier)}, opts...)
	return NewManager(cfg, j, logging.NewNop(), opts...), j, notifier
}

func fullStageSet() (StageSet, map[string]*fakeHandler) {
	handlers := map[string]*fakeHandler{}
	mk := func(name string) *fakeHandler {
		h := &fakeHandler{name: name}
		handlers[name] = h
		return h
	}
	images := mk("images")
	images.execute = func(_ context.Context, run *production.Run) error {
		run.Assets = []sequencer.MediaAsset{
			{Kind: sequencer.KindImage, Source: "/tmp/scene-01.png"},
			{Kind: sequencer.KindImage, Source: "/tmp/scene-02.png"},
		}
		return nil
	}
	script := mk("script")
	script.execute = func(_ context.Context, run *production.Run) error {
		run.Script = "Foxes leave tracks in fresh snow."
		run.Metadata.Title = "Fox Tracks"
		return nil
	}
	renderer := mk("renderer")
	renderer.execute = func(_ context.Context, run *production.Run) error {
		run.OutputPath = "/out/fox-tracks.mp4"
		run.Artifact = capture.Artifact{Path: run.OutputPath, SizeBytes: 2048}
		return nil
	}
	return StageSet{
		Transcriber:   mk("transcriber"),
		Partitioner:   mk("partitioner"),
		Images:        images,
		ScriptWriter:  script,
		VoiceProfiler: mk("voice"),
		Narrator:      mk("narrator"),
		Preloader:     mk("preloader"),
		Renderer:      renderer,
	}, handlers
}

func TestRunExecutesStagesInOrder(t *testing.T) {
	mgr, j, notifier := newTestManager(t)
	set, handlers := fullStageSet()
	mgr.ConfigureStages(set)

	run, err := mgr.Run(context.Background(), production.Inputs{Topic: "fox tracks"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if run.Status != production.StatusCompleted {
		t.Fatalf("status = %s, want completed", run.Status)
	}
	if !strings.HasSuffix(run.StagingDir, run.ID) {
		t.Fatalf("staging dir %q not scoped to run", run.StagingDir)
	}
	for name, h := range handlers {
		if h.calls != 1 {
			t.Fatalf("%s executed %d times", name, h.calls)
		}
		if !h.logger {
			t.Fatalf("%s did not receive a logger", name)
		}
	}
	if got := handlers["renderer"].statuses[0]; got != production.StatusRendering {
		t.Fatalf("renderer saw status %s", got)
	}

	ctx := context.Background()
	transitions, err := j.Transitions(ctx, run.ID)
	if err != nil {
		t.Fatalf("Transitions: %v", err)
	}
	if len(transitions) != 9 {
		t.Fatalf("transitions = %d, want 9", len(transitions))
	}
	if transitions[0].From != production.StatusIdle || transitions[0].To != production.StatusTranscribing {
		t.Fatalf("first transition = %s -> %s", transitions[0].From, transitions[0].To)
	}
	if last := transitions[len(transitions)-1]; last.To != production.StatusCompleted {
		t.Fatalf("last transition to %s", last.To)
	}

	record, err := j.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if record.Status != production.StatusCompleted || record.Title != "Fox Tracks" {
		t.Fatalf("unexpected record %+v", record)
	}
	scenes, err := j.Assets(ctx, run.ID)
	if err != nil {
		t.Fatalf("Assets: %v", err)
	}
	if len(scenes) != 2 {
		t.Fatalf("scene inventory = %d, want 2", len(scenes))
	}

	if len(notifier.events) != 1 || notifier.events[0] != notifications.EventRunCompleted {
		t.Fatalf("events = %v", notifier.events)
	}
	if notifier.last["size"] != int64(2048) {
		t.Fatalf("completion payload = %v", notifier.last)
	}

	status := mgr.Status(ctx)
	if status.Running || status.LastRun == nil || status.LastRun.Status != production.StatusCompleted {
		t.Fatalf("status summary = %+v", status)
	}
	if status.RunStats[production.StatusCompleted] != 1 {
		t.Fatalf("run stats = %v", status.RunStats)
	}
	if len(status.StageHealth) != 8 {
		t.Fatalf("stage health entries = %d", len(status.StageHealth))
	}
	if status.LastRun.LogPath == "" {
		t.Fatal("expected a run log path")
	}
	if _, err := os.Stat(status.LastRun.LogPath); err != nil {
		t.Fatalf("run log missing: %v", err)
	}
}

func TestRunStageFailureMarksRunFailed(t *testing.T) {
	mgr, j, notifier := newTestManager(t)
	set, handlers := fullStageSet()
	boom := services.Wrap(services.ErrSynthesis, "generating_script", "write script", "llm returned nothing", nil)
	handlers["script"].executeErr = boom
	mgr.ConfigureStages(set)

	run, err := mgr.Run(context.Background(), production.Inputs{Topic: "fox tracks"})
	if !errors.Is(err, services.ErrSynthesis) {
		t.Fatalf("Run error = %v, want synthesis failure", err)
	}
	if run.Status != production.StatusFailed {
		t.Fatalf("status = %s", run.Status)
	}
	if run.Message == "" {
		t.Fatal("expected failure message")
	}
	if handlers["voice"].calls != 0 || handlers["renderer"].calls != 0 {
		t.Fatal("stages after the failure must not run")
	}

	record, err := j.GetRun(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if record.Status != production.StatusFailed || record.Message != run.Message {
		t.Fatalf("record = %+v", record)
	}
	if len(notifier.events) != 1 || notifier.events[0] != notifications.EventError {
		t.Fatalf("events = %v", notifier.events)
	}
	if ctxLabel, _ := notifier.last["context"].(string); !strings.Contains(ctxLabel, "generating_script") {
		t.Fatalf("error context = %q", ctxLabel)
	}
	if mgr.Status(context.Background()).LastError == "" {
		t.Fatal("expected last error in status")
	}
}

func TestRunPrepareFailureSkipsExecute(t *testing.T) {
	mgr, _, _ := newTestManager(t, WithRunLogs(false))
	set, handlers := fullStageSet()
	handlers["preloader"].prepareErr = services.Wrap(services.ErrValidation, "ready", "prepare", "no narration", nil)
	mgr.ConfigureStages(set)

	run, err := mgr.Run(context.Background(), production.Inputs{Topic: "fox tracks"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("Run error = %v", err)
	}
	if handlers["preloader"].calls != 0 {
		t.Fatal("execute ran after prepare failed")
	}
	if run.Status != production.StatusFailed {
		t.Fatalf("status = %s", run.Status)
	}
}

func TestRunSkipsNilStages(t *testing.T) {
	mgr, j, _ := newTestManager(t, WithRunLogs(false))
	set, _ := fullStageSet()
	set.Transcriber = nil
	set.VoiceProfiler = nil
	mgr.ConfigureStages(set)

	run, err := mgr.Run(context.Background(), production.Inputs{Topic: "fox tracks"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	transitions, err := j.Transitions(context.Background(), run.ID)
	if err != nil {
		t.Fatalf("Transitions: %v", err)
	}
	skipped := 0
	for _, tr := range transitions {
		if tr.Detail == "skipped" {
			skipped++
		}
	}
	if skipped != 2 {
		t.Fatalf("skipped transitions = %d, want 2", skipped)
	}
	if mgr.Status(context.Background()).LastRun.LogPath != "" {
		t.Fatal("run logs disabled but a path was recorded")
	}
}

func TestRunRequiresStages(t *testing.T) {
	mgr, _, _ := newTestManager(t)
	if _, err := mgr.Run(context.Background(), production.Inputs{Topic: "x"}); err == nil {
		t.Fatal("expected error without configured stages")
	}
}

func TestRunCanceledDoesNotNotify(t *testing.T) {
	mgr, _, notifier := newTestManager(t, WithRunLogs(false))
	set, handlers := fullStageSet()
	ctx, cancel := context.WithCancel(context.Background())
	handlers["partitioner"].execute = func(context.Context, *production.Run) error {
		cancel()
		return context.Canceled
	}
	mgr.ConfigureStages(set)

	run, err := mgr.Run(ctx, production.Inputs{Topic: "fox tracks"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v", err)
	}
	if !strings.Contains(run.Message, "canceled") {
		t.Fatalf("message = %q", run.Message)
	}
	if len(notifier.events) != 0 {
		t.Fatalf("canceled run notified: %v", notifier.events)
	}
}

func TestProgressFlushedDuringStage(t *testing.T) {
	mgr, j, _ := newTestManager(t, WithRunLogs(false), WithProgressInterval(5*time.Millisecond))
	set, handlers := fullStageSet()
	seen := make(chan float64, 1)
	handlers["narrator"].execute = func(ctx context.Context, run *production.Run) error {
		run.SetProgress("Generating Audio", "synthesizing", 42)
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			record, err := j.GetRun(ctx, run.ID)
			if err == nil && record.ProgressPercent == 42 {
				seen <- record.ProgressPercent
				return nil
			}
			time.Sleep(5 * time.Millisecond)
		}
		return errors.New("progress never flushed")
	}
	mgr.ConfigureStages(set)

	if _, err := mgr.Run(context.Background(), production.Inputs{Topic: "fox tracks"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := <-seen; got != 42 {
		t.Fatalf("flushed percent = %v", got)
	}
}

func TestDeriveStageLabel(t *testing.T) {
	tests := map[production.Status]string{
		production.StatusGeneratingImages:  "Generating Images",
		production.StatusPartitioningVideo: "Partitioning Video",
		production.StatusReady:             "Ready",
		"":                                 "",
	}
	for status, want := range tests {
		if got := deriveStageLabel(status); got != want {
			t.Fatalf("deriveStageLabel(%q) = %q, want %q", status, got, want)
		}
	}
}

func TestRunLoggerFilename(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	logs := NewRunLogger(cfg)
	run := production.New("abcdef0123456789", production.Inputs{Topic: "Fox Tracks!"})
	path, err := logs.Path(run)
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	if filepath.Dir(path) != filepath.Join(cfg.Paths.LogDir, "runs") {
		t.Fatalf("log dir = %s", filepath.Dir(path))
	}
	if !strings.Contains(filepath.Base(path), "-abcdef01-") {
		t.Fatalf("log name = %s", filepath.Base(path))
	}
}
