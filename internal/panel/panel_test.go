package panel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/friendsincode/grimnir_panel/internal/assetstore"
	"github.com/friendsincode/grimnir_panel/internal/catalog"
	"github.com/friendsincode/grimnir_panel/internal/events"
	"github.com/friendsincode/grimnir_panel/internal/media/mediatest"
	"github.com/friendsincode/grimnir_panel/internal/models"
	"github.com/friendsincode/grimnir_panel/internal/notice"
	"github.com/friendsincode/grimnir_panel/internal/playback"
	"github.com/friendsincode/grimnir_panel/internal/scheduler"
	"github.com/friendsincode/grimnir_panel/internal/snapshot"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// monday0900 is a Monday.
var monday0900 = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

type env struct {
	t       *testing.T
	store   assetstore.Store
	kv      snapshot.KV
	clock   *clock.Mock
	device  *playback.SimulatedDevice
	bus     *events.Bus
	notices *notice.Recorder
	panel   *Panel
	ids     int
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&models.SnapshotEntry{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	store, err := assetstore.NewFilesystemStore(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("filesystem store: %v", err)
	}

	e := &env{
		t:     t,
		store: store,
		kv:    snapshot.NewDBKV(db),
		clock: clock.NewMock(),
	}
	e.clock.Add(monday0900.Sub(e.clock.Now()))
	e.open()
	return e
}

// open starts a fresh panel over the same store and snapshot, as after a
// process restart.
func (e *env) open() {
	e.t.Helper()
	if e.panel != nil {
		if err := e.panel.Close(context.Background()); err != nil {
			e.t.Fatalf("close panel: %v", err)
		}
	}
	e.device = playback.NewSimulatedDevice(e.clock)
	e.bus = events.NewBus()
	e.notices = &notice.Recorder{}
	e.panel = New(e.store, e.kv, zerolog.Nop(), Options{
		Clock:    e.clock,
		Location: time.UTC,
		Device:   e.device,
		Bus:      e.bus,
		Notifier: e.notices,
		Defaults: models.PanelSettings{PauseOtherMedia: true, ShowNotifications: true, UseMediaSession: true},
		NewID: func() string {
			e.ids++
			return fmt.Sprintf("id-%d", e.ids)
		},
	})
	if err := e.panel.Open(context.Background()); err != nil {
		e.t.Fatalf("open panel: %v", err)
	}
	e.t.Cleanup(func() { _ = e.panel.Close(context.Background()) })
}

func (e *env) add(fileName, customName, category string, seconds int) models.AudioAsset {
	e.t.Helper()
	res, err := e.panel.AddAudios(context.Background(), []catalog.NewAsset{{
		Upload:     catalog.Upload{FileName: fileName, ContentType: "audio/wav", Data: mediatest.SilentWAV(8000, 8000*seconds)},
		CustomName: customName,
		Category:   category,
	}})
	if err != nil {
		e.t.Fatalf("add %s: %v", fileName, err)
	}
	if len(res.Added) != 1 {
		e.t.Fatalf("add %s: rejected %+v", fileName, res.Rejected)
	}
	return res.Added[0]
}

func (e *env) flush() {
	e.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.panel.Flush(ctx); err != nil {
		e.t.Fatalf("flush: %v", err)
	}
}

func (e *env) advanceTo(t time.Time) {
	e.clock.Add(t.Sub(e.clock.Now()))
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

func TestOperationsRequireOpen(t *testing.T) {
	p := New(assetstoreStub(t), snapshot.NewDBKV(nil), zerolog.Nop(), Options{})
	defer p.Close(context.Background())

	if _, err := p.AddAudios(context.Background(), nil); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("AddAudios before Open: %v", err)
	}
	if err := p.Play("x"); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("Play before Open: %v", err)
	}
}

func assetstoreStub(t *testing.T) assetstore.Store {
	t.Helper()
	s, err := assetstore.NewFilesystemStore(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("filesystem store: %v", err)
	}
	return s
}

func TestDefaultFilterShowsWholeCatalog(t *testing.T) {
	e := newEnv(t)
	e.add("bell.wav", "", "announcements", 1)
	e.add("song.wav", "", "music", 1)

	if got := len(e.panel.Audios("", "")); got != 2 {
		t.Fatalf("default view = %d entries, want 2", got)
	}
	if got := e.panel.Filter(); got.Category != models.CategoryAll || got.Search != "" {
		t.Fatalf("filter = %+v", got)
	}
	if got := len(e.panel.Audios("", "music")); got != 1 {
		t.Fatalf("music view = %d entries, want 1", got)
	}
}

func TestRestartRestoresCatalogRulesAndSelection(t *testing.T) {
	e := newEnv(t)
	bell := e.add("bell.wav", "Morning Bell", "announcements", 2)
	song := e.add("song.wav", "", "music", 1)
	rule, err := e.panel.AddRule(scheduler.RuleInput{AudioID: bell.ID, Time: "10:30", Days: []int{1, 3}, Repeat: 2, Interval: 5})
	if err != nil {
		t.Fatalf("add rule: %v", err)
	}
	if err := e.panel.Play(song.ID); err != nil {
		t.Fatalf("play: %v", err)
	}
	if _, err := e.panel.UpdateSettings(SettingsPatch{PauseOtherMedia: boolPtr(false)}); err != nil {
		t.Fatalf("update settings: %v", err)
	}
	before := e.panel.Audios("", "")
	e.flush()

	e.open()

	after := e.panel.Audios("", "")
	if len(after) != len(before) {
		t.Fatalf("restored %d entries, want %d", len(after), len(before))
	}
	for i := range before {
		b, a := before[i], after[i]
		if a.ID != b.ID || a.DisplayName() != b.DisplayName() || a.Category != b.Category ||
			a.Duration != b.Duration || a.NeedsReload != b.NeedsReload || !a.DateAdded.Equal(b.DateAdded) {
			t.Fatalf("entry %d changed across restart:\nbefore %+v\nafter  %+v", i, b, a)
		}
	}

	rules := e.panel.Rules()
	if len(rules) != 1 || rules[0].ID != rule.ID || rules[0].Repeat != 2 {
		t.Fatalf("rules = %+v", rules)
	}
	if rules[0].NextFire == nil || !rules[0].NextFire.Equal(time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)) {
		t.Fatalf("next fire = %v", rules[0].NextFire)
	}

	st := e.panel.Status()
	if st.CurrentID != song.ID || st.State != playback.StateIdle {
		t.Fatalf("status = %+v, want idle with %s selected", st, song.ID)
	}
	if e.panel.Settings().PauseOtherMedia {
		t.Fatal("settings not restored")
	}
	if e.notices.Count(notice.SeverityInfo) != 1 {
		t.Fatalf("notices = %+v", e.notices.All())
	}
}

func TestRestartWithMissingPayloadNeedsReload(t *testing.T) {
	e := newEnv(t)
	keep := e.add("keep.wav", "", "other", 1)
	lost := e.add("lost.wav", "", "other", 1)
	e.flush()

	if err := e.store.Delete(context.Background(), lost.ID); err != nil {
		t.Fatalf("delete payload: %v", err)
	}
	e.open()

	if a, _ := e.panel.Audio(keep.ID); a.NeedsReload {
		t.Fatal("entry with payload needs reload")
	}
	if a, _ := e.panel.Audio(lost.ID); !a.NeedsReload {
		t.Fatal("entry without payload is playable")
	}
	var summary string
	for _, n := range e.notices.All() {
		if n.Severity == notice.SeverityWarning {
			summary = n.Message
		}
	}
	if summary != "1 ready, 1 need reload" {
		t.Fatalf("summary = %q", summary)
	}

	if err := e.panel.Play(lost.ID); !errors.Is(err, playback.ErrNeedsReload) {
		t.Fatalf("play pending entry: %v", err)
	}

	if _, err := e.panel.ReloadAudio(context.Background(), lost.ID, catalog.Upload{
		FileName: "lost.wav", ContentType: "audio/wav", Data: mediatest.SilentWAV(8000, 8000),
	}); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if err := e.panel.Play(lost.ID); err != nil {
		t.Fatalf("play after reload: %v", err)
	}
}

func TestDeletionCascade(t *testing.T) {
	e := newEnv(t)
	playing := e.add("playing.wav", "", "other", 5)
	scheduled := e.add("scheduled.wav", "", "other", 1)
	if _, err := e.panel.AddRule(scheduler.RuleInput{AudioID: scheduled.ID, Time: "09:01", Days: []int{1}}); err != nil {
		t.Fatalf("add rule: %v", err)
	}

	if err := e.panel.Play(playing.ID); err != nil {
		t.Fatalf("play: %v", err)
	}
	if err := e.panel.RemoveAudio(context.Background(), playing.ID); err != nil {
		t.Fatalf("remove playing: %v", err)
	}
	st := e.panel.Status()
	if st.State != playback.StateIdle || st.CurrentID != "" || e.device.Playing() {
		t.Fatalf("status after removing current = %+v", st)
	}
	if _, ok := e.panel.Payload(playing.ID); ok {
		t.Fatal("payload still attached")
	}

	if err := e.panel.RemoveAudio(context.Background(), scheduled.ID); err != nil {
		t.Fatalf("remove scheduled: %v", err)
	}
	if len(e.panel.Rules()) != 1 {
		t.Fatal("rule removed with its audio")
	}

	e.advanceTo(monday0900.Add(time.Minute))
	fired, err := e.panel.Evaluate(context.Background())
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if fired != 0 || e.device.Starts() != 1 {
		t.Fatalf("fired = %d starts = %d", fired, e.device.Starts())
	}

	if err := e.panel.RemoveAudio(context.Background(), "missing"); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("remove missing: %v", err)
	}
}

func TestScheduledRepeatsThroughPanel(t *testing.T) {
	e := newEnv(t)
	clip := e.add("chime.wav", "", "announcements", 1)
	if _, err := e.panel.AddRule(scheduler.RuleInput{AudioID: clip.ID, Time: "09:01", Days: []int{1}, Repeat: 3, Interval: 2}); err != nil {
		t.Fatalf("add rule: %v", err)
	}

	e.advanceTo(monday0900.Add(time.Minute))
	if fired, _ := e.panel.Evaluate(context.Background()); fired != 1 {
		t.Fatalf("fired = %d, want 1", fired)
	}
	if fired, _ := e.panel.Evaluate(context.Background()); fired != 0 {
		t.Fatalf("second evaluation fired %d", fired)
	}

	for want := 2; want <= 3; want++ {
		e.clock.Add(time.Second)
		waitFor(t, "end of track", func() bool { return e.panel.Status().State == playback.StateEnded })
		e.clock.Add(time.Second)
		if e.device.Starts() != want-1 {
			t.Fatalf("repeat started before the interval elapsed")
		}
		e.clock.Add(time.Second)
		waitFor(t, fmt.Sprintf("play %d", want), func() bool { return e.device.Starts() == want })
	}

	e.clock.Add(time.Second)
	waitFor(t, "sequence end", func() bool {
		_, active := e.panel.Sequence()
		return !active && e.panel.Status().State == playback.StateEnded
	})
	e.clock.Add(10 * time.Second)
	if e.device.Starts() != 3 {
		t.Fatalf("starts = %d, want 3", e.device.Starts())
	}
}

func TestManualPlaybackCancelsSequence(t *testing.T) {
	e := newEnv(t)
	clip := e.add("chime.wav", "", "announcements", 1)
	other := e.add("other.wav", "", "music", 1)
	if _, err := e.panel.AddRule(scheduler.RuleInput{AudioID: clip.ID, Time: "09:01", Days: []int{1}, Repeat: 3, Interval: 5}); err != nil {
		t.Fatalf("add rule: %v", err)
	}
	e.advanceTo(monday0900.Add(time.Minute))
	if _, err := e.panel.Evaluate(context.Background()); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if _, active := e.panel.Sequence(); !active {
		t.Fatal("no active sequence")
	}

	if err := e.panel.Play(other.ID); err != nil {
		t.Fatalf("play: %v", err)
	}
	if _, active := e.panel.Sequence(); active {
		t.Fatal("sequence survived manual playback")
	}
}

func TestBlockedScheduledStartKeepsRepeats(t *testing.T) {
	e := newEnv(t)
	clip := e.add("chime.wav", "", "announcements", 1)
	if _, err := e.panel.AddRule(scheduler.RuleInput{AudioID: clip.ID, Time: "09:01", Days: []int{1}, Repeat: 3}); err != nil {
		t.Fatalf("add rule: %v", err)
	}
	e.advanceTo(monday0900.Add(time.Minute))
	e.device.FailNextStart(playback.ErrBlocked)

	if fired, _ := e.panel.Evaluate(context.Background()); fired != 1 {
		t.Fatalf("fired = %d, want 1", fired)
	}
	if st := e.panel.Status(); st.State != playback.StatePaused || st.CurrentID != clip.ID {
		t.Fatalf("status = %+v, want paused on the scheduled clip", st)
	}
	if _, active := e.panel.Sequence(); !active {
		t.Fatal("blocked start dropped the repeat sequence")
	}

	if err := e.panel.TogglePlayPause(); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if e.device.Starts() != 1 {
		t.Fatalf("starts = %d, want 1", e.device.Starts())
	}
	for want := 2; want <= 3; want++ {
		e.clock.Add(time.Second)
		waitFor(t, fmt.Sprintf("play %d", want), func() bool { return e.device.Starts() == want })
	}

	e.clock.Add(time.Second)
	waitFor(t, "sequence end", func() bool {
		_, active := e.panel.Sequence()
		return !active && e.panel.Status().State == playback.StateEnded
	})
	if e.device.Starts() != 3 {
		t.Fatalf("starts = %d, want 3", e.device.Starts())
	}
}

func TestNextOntoPendingEntryCancelsSequence(t *testing.T) {
	e := newEnv(t)
	clip := e.add("chime.wav", "", "announcements", 1)
	lost := e.add("lost.wav", "", "other", 1)
	e.flush()
	if err := e.store.Delete(context.Background(), lost.ID); err != nil {
		t.Fatalf("delete payload: %v", err)
	}
	e.open()
	prompts := e.bus.Subscribe(events.EventReloadPrompt)

	if _, err := e.panel.AddRule(scheduler.RuleInput{AudioID: clip.ID, Time: "09:01", Days: []int{1}, Repeat: 3, Interval: 5}); err != nil {
		t.Fatalf("add rule: %v", err)
	}
	e.advanceTo(monday0900.Add(time.Minute))
	if fired, _ := e.panel.Evaluate(context.Background()); fired != 1 {
		t.Fatalf("fired = %d, want 1", fired)
	}

	if err := e.panel.Next(); err != nil {
		t.Fatalf("next: %v", err)
	}
	if st := e.panel.Status(); st.CurrentID != lost.ID || st.State != playback.StateIdle {
		t.Fatalf("status = %+v, want idle on the pending entry", st)
	}
	if _, active := e.panel.Sequence(); active {
		t.Fatal("sequence survived navigation away from its track")
	}
	select {
	case payload := <-prompts:
		if payload["audio_id"] != lost.ID {
			t.Fatalf("reload prompt = %+v", payload)
		}
	case <-time.After(time.Second):
		t.Fatal("no reload prompt")
	}

	e.clock.Add(10 * time.Second)
	if e.device.Starts() != 1 {
		t.Fatalf("starts = %d, want 1", e.device.Starts())
	}
}

func TestNowPlayingEvents(t *testing.T) {
	e := newEnv(t)
	clip := e.add("chime.wav", "Doors", "announcements", 1)
	nowPlaying := e.bus.Subscribe(events.EventNowPlaying)
	desktop := e.bus.Subscribe(events.EventDesktopNotify)

	if err := e.panel.Play(clip.ID); err != nil {
		t.Fatalf("play: %v", err)
	}

	select {
	case payload := <-nowPlaying:
		if payload["audio_id"] != clip.ID || payload["active"] != true {
			t.Fatalf("now playing payload = %+v", payload)
		}
	case <-time.After(time.Second):
		t.Fatal("no now playing event")
	}
	select {
	case payload := <-desktop:
		title, _ := payload["title"].(string)
		if !strings.Contains(title, "Doors") {
			t.Fatalf("desktop notification = %+v", payload)
		}
	case <-time.After(time.Second):
		t.Fatal("no desktop notification")
	}

	if _, err := e.panel.UpdateSettings(SettingsPatch{ShowNotifications: boolPtr(false)}); err != nil {
		t.Fatalf("update settings: %v", err)
	}
	if err := e.panel.Play(clip.ID); err != nil {
		t.Fatalf("play: %v", err)
	}
	select {
	case payload := <-desktop:
		t.Fatalf("desktop notification while disabled: %+v", payload)
	default:
	}
}

func TestMediaSessionActions(t *testing.T) {
	e := newEnv(t)
	first := e.add("a.wav", "", "other", 3)
	second := e.add("b.wav", "", "other", 3)

	if err := e.panel.MediaSessionAction("rewind"); !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("unknown action: %v", err)
	}
	if err := e.panel.MediaSessionAction(ActionPlay); err != nil {
		t.Fatalf("play: %v", err)
	}
	if st := e.panel.Status(); st.CurrentID != first.ID || st.State != playback.StatePlaying {
		t.Fatalf("status = %+v", st)
	}
	if err := e.panel.MediaSessionAction(ActionNext); err != nil {
		t.Fatalf("next: %v", err)
	}
	if st := e.panel.Status(); st.CurrentID != second.ID {
		t.Fatalf("after next = %+v", st)
	}
	if err := e.panel.MediaSessionAction(ActionPause); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if st := e.panel.Status(); st.State != playback.StatePaused {
		t.Fatalf("after pause = %+v", st)
	}
	if err := e.panel.MediaSessionAction(ActionPrevious); err != nil {
		t.Fatalf("previous: %v", err)
	}
	if st := e.panel.Status(); st.CurrentID != first.ID || st.State != playback.StatePlaying {
		t.Fatalf("after previous = %+v", st)
	}
}

func TestOpenFailsOnCorruptSnapshot(t *testing.T) {
	e := newEnv(t)
	e.flush()
	if err := e.kv.Set(context.Background(), snapshot.KeyAudios, []byte("{not json")); err != nil {
		t.Fatalf("corrupt snapshot: %v", err)
	}

	p := New(e.store, e.kv, zerolog.Nop(), Options{Clock: e.clock})
	defer p.Close(context.Background())
	if err := p.Open(context.Background()); err == nil {
		t.Fatal("expected Open to fail")
	}
}

func boolPtr(b bool) *bool { return &b }
