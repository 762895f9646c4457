package playback

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/friendsincode/grimnir_panel/internal/catalog"
	"github.com/friendsincode/grimnir_panel/internal/media/mediatest"
	"github.com/friendsincode/grimnir_panel/internal/models"
	"github.com/friendsincode/grimnir_panel/internal/notice"
	"github.com/rs/zerolog"
)

type fakeLibrary struct {
	order  []string
	assets map[string]models.AudioAsset
	data   map[string][]byte
}

func newFakeLibrary() *fakeLibrary {
	return &fakeLibrary{assets: map[string]models.AudioAsset{}, data: map[string][]byte{}}
}

func (l *fakeLibrary) add(id string, duration float64, ready bool) {
	l.order = append(l.order, id)
	l.assets[id] = models.AudioAsset{ID: id, Name: "clip " + id, FileName: id + ".wav", Duration: duration, NeedsReload: !ready}
	if ready {
		l.data[id] = []byte("payload")
	}
}

func (l *fakeLibrary) Get(id string) (models.AudioAsset, bool) {
	a, ok := l.assets[id]
	return a, ok
}

func (l *fakeLibrary) Payload(id string) (catalog.Handle, bool) {
	data, ok := l.data[id]
	if !ok {
		return catalog.Handle{}, false
	}
	return catalog.Handle{AudioID: id, FileName: l.assets[id].FileName, FileType: "audio/wav", Data: data}, true
}

func (l *fakeLibrary) Order() []string {
	return append([]string(nil), l.order...)
}

type fakeExternal struct {
	mu    sync.Mutex
	calls []string
}

func (x *fakeExternal) RequestPause() {
	x.mu.Lock()
	x.calls = append(x.calls, "pause")
	x.mu.Unlock()
}

func (x *fakeExternal) RequestResume() {
	x.mu.Lock()
	x.calls = append(x.calls, "resume")
	x.mu.Unlock()
}

func (x *fakeExternal) all() []string {
	x.mu.Lock()
	defer x.mu.Unlock()
	return append([]string(nil), x.calls...)
}

type capturingDevice struct {
	*SimulatedDevice
	ends []func()
}

func (d *capturingDevice) Load(src Source, onEnd func()) error {
	d.ends = append(d.ends, onEnd)
	return d.SimulatedDevice.Load(src, onEnd)
}

type harness struct {
	mu       sync.Mutex
	engine   *Engine
	lib      *fakeLibrary
	device   *capturingDevice
	clock    *clock.Mock
	external *fakeExternal
	notices  *notice.Recorder

	nowPlaying []string
	started    []string
	ended      []string
	prompts    []string
}

func newHarness(t *testing.T, lib *fakeLibrary) *harness {
	t.Helper()
	h := &harness{
		lib:      lib,
		clock:    clock.NewMock(),
		external: &fakeExternal{},
		notices:  &notice.Recorder{},
	}
	h.device = &capturingDevice{SimulatedDevice: NewSimulatedDevice(h.clock)}
	h.engine = New(lib, h.device, zerolog.Nop(), Options{
		External: h.external,
		Notifier: h.notices,
		Hooks: Hooks{
			OnNowPlaying:   func(a models.AudioAsset) { h.nowPlaying = append(h.nowPlaying, a.ID) },
			OnStarted:      func(id string) { h.started = append(h.started, id) },
			OnEnded:        func(id string) { h.ended = append(h.ended, id) },
			OnReloadPrompt: func(a models.AudioAsset) { h.prompts = append(h.prompts, a.ID) },
		},
		Dispatch: func(fn func()) {
			h.mu.Lock()
			defer h.mu.Unlock()
			fn()
		},
	})
	return h
}

func (h *harness) do(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn()
}

func (h *harness) play(t *testing.T, id string) {
	t.Helper()
	var err error
	h.do(func() { err = h.engine.Play(id) })
	if err != nil {
		t.Fatalf("play %s: %v", id, err)
	}
}

func (h *harness) state() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.engine.State()
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func threeClips() *fakeLibrary {
	lib := newFakeLibrary()
	lib.add("a", 1, true)
	lib.add("b", 2, true)
	lib.add("c", 3, true)
	return lib
}

func TestPlayStartsDeviceAndPausesExternal(t *testing.T) {
	h := newHarness(t, threeClips())

	h.play(t, "b")

	if h.state() != StatePlaying {
		t.Fatalf("state = %s, want playing", h.state())
	}
	if h.engine.Current() != "b" || h.device.Loaded() != "b" {
		t.Fatalf("current = %q, loaded = %q", h.engine.Current(), h.device.Loaded())
	}
	if got := h.external.all(); !equalStrings(got, []string{"pause"}) {
		t.Fatalf("external calls = %v", got)
	}
	if !equalStrings(h.nowPlaying, []string{"b"}) || !equalStrings(h.started, []string{"b"}) {
		t.Fatalf("nowPlaying = %v, started = %v", h.nowPlaying, h.started)
	}
}

func TestPlayUnknownAudio(t *testing.T) {
	h := newHarness(t, threeClips())
	var err error
	h.do(func() { err = h.engine.Play("missing") })
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestPlayNeedsReloadLeavesStateUnchanged(t *testing.T) {
	lib := threeClips()
	lib.add("stale", 1, false)
	h := newHarness(t, lib)
	h.play(t, "a")

	var err error
	h.do(func() { err = h.engine.Play("stale") })
	if !errors.Is(err, ErrNeedsReload) {
		t.Fatalf("err = %v, want ErrNeedsReload", err)
	}
	if h.state() != StatePlaying || h.engine.Current() != "a" {
		t.Fatalf("state = %s current = %q, want playing a", h.state(), h.engine.Current())
	}
	if !equalStrings(h.prompts, []string{"stale"}) {
		t.Fatalf("prompts = %v", h.prompts)
	}
	if h.notices.Count(notice.SeverityWarning) != 1 {
		t.Fatalf("warnings = %d, want 1", h.notices.Count(notice.SeverityWarning))
	}
	if got := h.external.all(); !equalStrings(got, []string{"pause"}) {
		t.Fatalf("external calls = %v", got)
	}
}

func TestCyclicNavigation(t *testing.T) {
	lib := newFakeLibrary()
	ids := []string{"a", "b", "c", "d"}
	for _, id := range ids {
		lib.add(id, 5, true)
	}
	h := newHarness(t, lib)

	for _, start := range ids {
		h.play(t, start)
		for i := 0; i < len(ids); i++ {
			h.do(func() {
				if err := h.engine.Next(); err != nil {
					t.Fatalf("next: %v", err)
				}
			})
		}
		if h.engine.Current() != start {
			t.Fatalf("next x%d from %s ended at %s", len(ids), start, h.engine.Current())
		}
		for i := 0; i < len(ids); i++ {
			h.do(func() {
				if err := h.engine.Previous(); err != nil {
					t.Fatalf("previous: %v", err)
				}
			})
		}
		if h.engine.Current() != start {
			t.Fatalf("previous x%d from %s ended at %s", len(ids), start, h.engine.Current())
		}
	}

	h.play(t, "d")
	h.do(func() { _ = h.engine.Next() })
	if h.engine.Current() != "a" {
		t.Fatalf("next from last = %s, want a", h.engine.Current())
	}
	h.do(func() { _ = h.engine.Previous() })
	if h.engine.Current() != "d" {
		t.Fatalf("previous from first = %s, want d", h.engine.Current())
	}
}

func TestNavigationWithoutCurrentIsNoop(t *testing.T) {
	h := newHarness(t, threeClips())
	h.do(func() {
		if err := h.engine.Next(); err != nil {
			t.Fatalf("next: %v", err)
		}
		if err := h.engine.Previous(); err != nil {
			t.Fatalf("previous: %v", err)
		}
	})
	if h.state() != StateIdle || h.device.Starts() != 0 {
		t.Fatalf("state = %s starts = %d", h.state(), h.device.Starts())
	}

	empty := newHarness(t, newFakeLibrary())
	empty.do(func() {
		if err := empty.engine.Next(); err != nil {
			t.Fatalf("next on empty catalog: %v", err)
		}
	})
}

func TestCyclicNavigationWithPendingEntries(t *testing.T) {
	lib := newFakeLibrary()
	lib.add("a", 1, true)
	lib.add("b", 1, false)
	lib.add("c", 1, true)
	h := newHarness(t, lib)

	for _, start := range []string{"a", "c"} {
		h.play(t, start)
		for i := 0; i < 3; i++ {
			h.do(func() {
				if err := h.engine.Next(); err != nil {
					t.Fatalf("next: %v", err)
				}
			})
		}
		if h.engine.Current() != start {
			t.Fatalf("next x3 from %s ended at %s", start, h.engine.Current())
		}
		for i := 0; i < 3; i++ {
			h.do(func() {
				if err := h.engine.Previous(); err != nil {
					t.Fatalf("previous: %v", err)
				}
			})
		}
		if h.engine.Current() != start {
			t.Fatalf("previous x3 from %s ended at %s", start, h.engine.Current())
		}
	}
}

func TestNextSelectsPendingEntryWithoutLoading(t *testing.T) {
	lib := newFakeLibrary()
	lib.add("a", 1, true)
	lib.add("b", 1, false)
	lib.add("c", 1, true)
	h := newHarness(t, lib)
	h.play(t, "a")

	h.do(func() {
		if err := h.engine.Next(); err != nil {
			t.Fatalf("next: %v", err)
		}
	})
	if h.engine.Current() != "b" || h.state() != StateIdle {
		t.Fatalf("current = %q state = %s, want b idle", h.engine.Current(), h.state())
	}
	if h.device.Starts() != 1 {
		t.Fatalf("starts = %d, want only the start of a", h.device.Starts())
	}
	if !equalStrings(h.prompts, []string{"b"}) {
		t.Fatalf("prompts = %v, want [b]", h.prompts)
	}
	if !equalStrings(h.nowPlaying, []string{"a", "b"}) {
		t.Fatalf("nowPlaying = %v, want [a b]", h.nowPlaying)
	}
	if got := h.external.all(); !equalStrings(got, []string{"pause", "resume"}) {
		t.Fatalf("external calls = %v", got)
	}

	// The stopped track must not report an end.
	h.clock.Add(5 * time.Second)
	if len(h.ended) != 0 {
		t.Fatalf("ended = %v, want none", h.ended)
	}

	h.do(func() {
		if err := h.engine.Next(); err != nil {
			t.Fatalf("next: %v", err)
		}
	})
	if h.engine.Current() != "c" || h.state() != StatePlaying {
		t.Fatalf("current = %q state = %s, want c playing", h.engine.Current(), h.state())
	}
}

func TestNavigationOverPendingCatalog(t *testing.T) {
	lib := newFakeLibrary()
	lib.add("x", 1, false)
	lib.add("y", 1, false)
	h := newHarness(t, lib)
	h.do(func() { h.engine.RestoreCurrent("x") })

	h.do(func() {
		if err := h.engine.Next(); err != nil {
			t.Fatalf("next: %v", err)
		}
	})
	if h.engine.Current() != "y" || h.state() != StateIdle {
		t.Fatalf("current = %q state = %s, want y idle", h.engine.Current(), h.state())
	}
	if h.device.Starts() != 0 {
		t.Fatalf("starts = %d, want 0", h.device.Starts())
	}
	if !equalStrings(h.prompts, []string{"y"}) {
		t.Fatalf("prompts = %v, want [y]", h.prompts)
	}
	if got := h.external.all(); len(got) != 0 {
		t.Fatalf("external calls = %v, want none", got)
	}
}

func TestPauseAndResumeMirrorExternalPlayer(t *testing.T) {
	h := newHarness(t, threeClips())
	h.play(t, "c")

	h.clock.Add(time.Second)
	h.do(func() { _ = h.engine.Pause() })
	if h.state() != StatePaused || h.device.Playing() {
		t.Fatalf("state = %s playing = %v", h.state(), h.device.Playing())
	}
	if got := h.device.Position(); got != time.Second {
		t.Fatalf("position = %s, want 1s", got)
	}

	h.clock.Add(10 * time.Second)
	if h.state() != StatePaused {
		t.Fatalf("paused track ended: %s", h.state())
	}

	h.do(func() { _ = h.engine.Resume() })
	if h.state() != StatePlaying {
		t.Fatalf("state = %s, want playing", h.state())
	}
	want := []string{"pause", "resume", "pause"}
	if got := h.external.all(); !equalStrings(got, want) {
		t.Fatalf("external calls = %v, want %v", got, want)
	}

	h.clock.Add(2 * time.Second)
	waitFor(t, "end of track", func() bool { return h.state() == StateEnded })
}

func TestEndOfTrackResumesExternalAndReportsEnded(t *testing.T) {
	h := newHarness(t, threeClips())
	h.play(t, "a")

	h.clock.Add(time.Second)
	waitFor(t, "end of track", func() bool { return h.state() == StateEnded })

	h.do(func() {
		if !equalStrings(h.ended, []string{"a"}) {
			t.Fatalf("ended = %v", h.ended)
		}
	})
	if got := h.external.all(); !equalStrings(got, []string{"pause", "resume"}) {
		t.Fatalf("external calls = %v", got)
	}
	if h.engine.Current() != "a" {
		t.Fatalf("current cleared at end of track")
	}
}

func TestLoopRestartsInsteadOfEnding(t *testing.T) {
	h := newHarness(t, threeClips())
	h.do(func() { h.engine.SetLoop(true) })
	h.play(t, "a")

	h.clock.Add(time.Second)
	waitFor(t, "loop restart", func() bool { return h.device.Starts() == 2 })

	if h.state() != StatePlaying {
		t.Fatalf("state = %s, want playing", h.state())
	}
	h.do(func() {
		if len(h.ended) != 0 {
			t.Fatalf("ended fired while looping: %v", h.ended)
		}
	})

	h.do(func() { h.engine.SetLoop(false) })
	h.clock.Add(time.Second)
	waitFor(t, "end after loop off", func() bool { return h.state() == StateEnded })
}

func TestStaleEndIsIgnored(t *testing.T) {
	h := newHarness(t, threeClips())
	h.play(t, "a")
	h.play(t, "b")

	h.device.ends[0]()

	if h.state() != StatePlaying || h.engine.Current() != "b" {
		t.Fatalf("state = %s current = %q", h.state(), h.engine.Current())
	}
	if len(h.ended) != 0 {
		t.Fatalf("stale end reported: %v", h.ended)
	}
}

func TestStartFailureClasses(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantErr   error
		wantState State
		external  []string
		warnings  int
	}{
		{name: "aborted", err: ErrAborted, wantErr: nil, wantState: StateLoading, external: []string{"pause"}},
		{name: "blocked", err: ErrBlocked, wantErr: ErrBlocked, wantState: StatePaused, external: []string{"pause", "resume"}, warnings: 1},
		{name: "device failure", err: errors.New("no output device"), wantErr: nil, wantState: StateIdle, external: []string{"pause", "resume"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, threeClips())
			h.device.FailNextStart(tt.err)

			var err error
			h.do(func() { err = h.engine.Play("a") })

			switch {
			case tt.name == "device failure":
				if err == nil || errors.Is(err, ErrBlocked) {
					t.Fatalf("err = %v, want wrapped device error", err)
				}
			case !errors.Is(err, tt.wantErr) && err != tt.wantErr:
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if h.state() != tt.wantState {
				t.Fatalf("state = %s, want %s", h.state(), tt.wantState)
			}
			if got := h.external.all(); !equalStrings(got, tt.external) {
				t.Fatalf("external calls = %v, want %v", got, tt.external)
			}
			if h.notices.Count(notice.SeverityWarning) != tt.warnings {
				t.Fatalf("warnings = %d, want %d", h.notices.Count(notice.SeverityWarning), tt.warnings)
			}
			// The selection reflects intent even when the device fails.
			if h.engine.Current() != "a" || !equalStrings(h.nowPlaying, []string{"a"}) {
				t.Fatalf("current = %q nowPlaying = %v", h.engine.Current(), h.nowPlaying)
			}
			if len(h.started) != 0 {
				t.Fatalf("started reported on failure: %v", h.started)
			}
		})
	}
}

func TestBlockedPlaybackResumesOnToggle(t *testing.T) {
	h := newHarness(t, threeClips())
	h.device.FailNextStart(ErrBlocked)
	h.do(func() { _ = h.engine.Play("a") })

	h.do(func() {
		if err := h.engine.TogglePlayPause(); err != nil {
			t.Fatalf("toggle: %v", err)
		}
	})
	if h.state() != StatePlaying || !h.device.Playing() {
		t.Fatalf("state = %s playing = %v", h.state(), h.device.Playing())
	}
}

func TestTogglePlayPause(t *testing.T) {
	h := newHarness(t, threeClips())

	h.do(func() { _ = h.engine.TogglePlayPause() })
	if h.engine.Current() != "a" || h.state() != StatePlaying {
		t.Fatalf("first toggle: current = %q state = %s", h.engine.Current(), h.state())
	}
	h.do(func() { _ = h.engine.TogglePlayPause() })
	if h.state() != StatePaused {
		t.Fatalf("second toggle: state = %s", h.state())
	}
	h.do(func() { _ = h.engine.TogglePlayPause() })
	if h.state() != StatePlaying {
		t.Fatalf("third toggle: state = %s", h.state())
	}

	h.clock.Add(time.Second)
	waitFor(t, "end of track", func() bool { return h.state() == StateEnded })

	h.do(func() { _ = h.engine.TogglePlayPause() })
	if h.state() != StatePlaying || h.device.Starts() != 3 {
		t.Fatalf("replay: state = %s starts = %d", h.state(), h.device.Starts())
	}

	empty := newHarness(t, newFakeLibrary())
	var err error
	empty.do(func() { err = empty.engine.TogglePlayPause() })
	if !errors.Is(err, ErrNoCurrent) {
		t.Fatalf("toggle on empty catalog: %v", err)
	}
}

func TestStopIfCurrent(t *testing.T) {
	h := newHarness(t, threeClips())
	h.play(t, "a")

	h.do(func() {
		if h.engine.StopIfCurrent("b") {
			t.Fatal("stopped for a non-current audio")
		}
		if !h.engine.StopIfCurrent("a") {
			t.Fatal("did not stop the current audio")
		}
	})
	if h.state() != StateIdle || h.engine.Current() != "" || h.device.Playing() {
		t.Fatalf("state = %s current = %q playing = %v", h.state(), h.engine.Current(), h.device.Playing())
	}
	if got := h.external.all(); !equalStrings(got, []string{"pause", "resume"}) {
		t.Fatalf("external calls = %v", got)
	}

	h.clock.Add(5 * time.Second)
	if len(h.ended) != 0 {
		t.Fatalf("end reported after stop: %v", h.ended)
	}
}

func TestVolumeAndSeek(t *testing.T) {
	lib := newFakeLibrary()
	lib.add("long", 10, true)
	h := newHarness(t, lib)

	h.do(func() {
		if err := h.engine.SetVolume(101); !errors.Is(err, ErrInvalidVolume) {
			t.Fatalf("volume 101: %v", err)
		}
		if err := h.engine.SetVolume(40); err != nil {
			t.Fatalf("volume 40: %v", err)
		}
		if err := h.engine.Seek(0.5); !errors.Is(err, ErrNoCurrent) {
			t.Fatalf("seek without current: %v", err)
		}
	})
	if got := h.device.Volume(); got != 0.4 {
		t.Fatalf("device volume = %v, want 0.4", got)
	}

	h.play(t, "long")
	h.do(func() {
		if err := h.engine.Seek(1.5); !errors.Is(err, ErrInvalidSeek) {
			t.Fatalf("seek 1.5: %v", err)
		}
		if err := h.engine.Seek(0.5); err != nil {
			t.Fatalf("seek 0.5: %v", err)
		}
	})
	st := h.engine.Status()
	if st.Position != 5 || st.Duration != 10 || st.Volume != 40 {
		t.Fatalf("status = %+v", st)
	}
	if got := h.external.all(); !equalStrings(got, []string{"pause"}) {
		t.Fatalf("external calls = %v", got)
	}

	h.clock.Add(5 * time.Second)
	waitFor(t, "end of track", func() bool { return h.state() == StateEnded })
}

func TestRestoreCurrent(t *testing.T) {
	h := newHarness(t, threeClips())
	h.do(func() {
		h.engine.RestoreCurrent("gone")
		if h.engine.Current() != "" {
			t.Fatalf("restored a missing audio")
		}
		h.engine.RestoreCurrent("b")
	})
	if h.engine.Current() != "b" || h.state() != StateIdle {
		t.Fatalf("current = %q state = %s", h.engine.Current(), h.state())
	}
	h.do(func() { _ = h.engine.Resume() })
	if h.state() != StatePlaying || h.device.Loaded() != "b" {
		t.Fatalf("resume after restore: state = %s loaded = %q", h.state(), h.device.Loaded())
	}
}

func TestSimulatedDeviceProbesUnknownDuration(t *testing.T) {
	mock := clock.NewMock()
	dev := NewSimulatedDevice(mock)
	ended := make(chan struct{}, 1)

	err := dev.Load(Source{AudioID: "w", FileName: "w.wav", Data: mediatest.SilentWAV(8000, 4000)}, func() { ended <- struct{}{} })
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if dev.Length() != 500*time.Millisecond {
		t.Fatalf("length = %s, want 500ms", dev.Length())
	}
	if err := dev.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	mock.Add(500 * time.Millisecond)
	select {
	case <-ended:
	case <-time.After(2 * time.Second):
		t.Fatal("end callback not invoked")
	}

	if err := dev.Load(Source{AudioID: "x", FileName: "x.wav", Data: []byte("junk")}, nil); err == nil {
		t.Fatal("expected error for an undecodable source")
	}
}
