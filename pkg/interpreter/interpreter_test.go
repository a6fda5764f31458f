package interpreter

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AshramC/YXZX-ARG/pkg/conditionals"
	"github.com/AshramC/YXZX-ARG/pkg/i18n"
	"github.com/AshramC/YXZX-ARG/pkg/minigame"
	"github.com/AshramC/YXZX-ARG/pkg/script"
	"github.com/AshramC/YXZX-ARG/pkg/state"
)

// scriptedUI records dialog and answers choices from a fixed list
type scriptedUI struct {
	mu      sync.Mutex
	lines   []DialogLine
	offered [][]string
	picks   []int
}

func (u *scriptedUI) ShowDialog(_ context.Context, line DialogLine) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.lines = append(u.lines, line)
	return nil
}

func (u *scriptedUI) Choose(_ context.Context, labels []string) (int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.offered = append(u.offered, labels)
	if len(u.picks) == 0 {
		return 0, errors.New("no scripted pick left")
	}
	p := u.picks[0]
	u.picks = u.picks[1:]
	return p, nil
}

func (u *scriptedUI) texts() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]string, len(u.lines))
	for i, l := range u.lines {
		out[i] = l.Text
	}
	return out
}

type memBadges struct{ keys []string }

func (m *memBadges) SetBadge(_ context.Context, key string) error {
	m.keys = append(m.keys, key)
	return nil
}

func say(text string) script.Dialog {
	return script.Dialog{Speaker: "chen", Text: i18n.Plain(text)}
}

func TestExecute_JumpTerminatesScan(t *testing.T) {
	root := script.Script{
		say("before"),
		script.Jump{Target: "later"},
		say("never"),
		script.Block{Label: "later", Script: script.Script{say("after")}},
	}
	ui := &scriptedUI{}
	out, err := New(state.NewStore(1), ui).Execute(context.Background(), root)

	require.NoError(t, err)
	assert.Equal(t, Continue, out.Status)
	assert.Equal(t, []string{"before", "after"}, ui.texts())
}

func TestExecute_JumpEscapesIntoSiblingBlock(t *testing.T) {
	root := script.Script{
		script.Block{Label: "a", Script: script.Script{say("in a"), script.Jump{Target: "b"}}},
		script.Block{Label: "b", Script: script.Script{say("in b")}},
		script.Jump{Target: "a"},
	}
	ui := &scriptedUI{}
	_, err := New(state.NewStore(1), ui).Execute(context.Background(), root)

	require.NoError(t, err)
	assert.Equal(t, []string{"in a", "in b"}, ui.texts())
}

func TestExecute_UnknownLabelEndsExecution(t *testing.T) {
	root := script.Script{script.Jump{Target: "nowhere"}, say("never")}
	ui := &scriptedUI{}
	out, err := New(state.NewStore(1), ui).Execute(context.Background(), root)

	require.NoError(t, err)
	assert.Equal(t, Continue, out.Status)
	assert.Empty(t, ui.texts())
}

func TestExecute_ChoiceFiltering(t *testing.T) {
	root := script.Script{
		script.Choice{Options: []script.Option{
			{Text: i18n.Plain("A"), Requires: &conditionals.Requirement{Flag: "FLAG_X"}, Effect: &state.Effect{AddFlag: "PICKED_A"}},
			{Text: i18n.Plain("B"), Effect: &state.Effect{AddFlag: "PICKED_B"}},
		}},
	}
	store := state.NewStore(1)
	ui := &scriptedUI{picks: []int{0}}
	_, err := New(store, ui).Execute(context.Background(), root)

	require.NoError(t, err)
	require.Len(t, ui.offered, 1)
	assert.Equal(t, []string{"B"}, ui.offered[0])
	assert.True(t, store.HasFlag("PICKED_B"))
	assert.False(t, store.HasFlag("PICKED_A"))
}

func TestExecute_ChoiceWithoutNextContinues(t *testing.T) {
	root := script.Script{
		script.Choice{Options: []script.Option{{Text: i18n.Plain("ok"), Score: 2}}},
		say("next line"),
	}
	store := state.NewStore(1)
	ui := &scriptedUI{picks: []int{0}}
	_, err := New(store, ui).Execute(context.Background(), root)

	require.NoError(t, err)
	assert.Equal(t, 2, store.Score())
	assert.Equal(t, []string{"next line"}, ui.texts())
}

func TestExecute_ChoiceNextSubScriptIsTail(t *testing.T) {
	root := script.Script{
		script.Choice{Options: []script.Option{
			{Text: i18n.Plain("go"), Next: script.Script{say("inline")}},
		}},
		say("never"),
	}
	ui := &scriptedUI{picks: []int{0}}
	_, err := New(state.NewStore(1), ui).Execute(context.Background(), root)

	require.NoError(t, err)
	assert.Equal(t, []string{"inline"}, ui.texts())
}

func TestExecute_ChoiceOutOfRange(t *testing.T) {
	root := script.Script{script.Choice{Options: []script.Option{{Text: i18n.Plain("only")}}}}
	ui := &scriptedUI{picks: []int{3}}
	_, err := New(state.NewStore(1), ui).Execute(context.Background(), root)
	assert.Error(t, err)
}

func TestExecute_CheckScore(t *testing.T) {
	tests := []struct {
		name      string
		score     int
		check     script.CheckScore
		wantTexts []string
	}{
		{name: "default threshold passes at 1", score: 1, check: script.CheckScore{Pass: "p", Fail: "f"}, wantTexts: []string{"pass"}},
		{name: "default threshold fails at 0", score: 0, check: script.CheckScore{Pass: "p", Fail: "f"}, wantTexts: []string{"fail"}},
		{name: "equal to threshold passes", score: 3, check: script.CheckScore{Threshold: 3, Pass: "p", Fail: "f"}, wantTexts: []string{"pass"}},
		{name: "below threshold fails", score: 2, check: script.CheckScore{Threshold: 3, Pass: "p", Fail: "f"}, wantTexts: []string{"fail"}},
		{name: "missing branch label still terminates", score: 5, check: script.CheckScore{Fail: "f"}, wantTexts: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := script.Script{
				script.Choice{Options: []script.Option{{Text: i18n.Plain("x"), Score: tt.score}}},
				tt.check,
				say("after check"),
				script.Block{Label: "p", Script: script.Script{say("pass")}},
				script.Block{Label: "f", Script: script.Script{say("fail")}},
			}
			ui := &scriptedUI{picks: []int{0}}
			_, err := New(state.NewStore(1), ui).Execute(context.Background(), root)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTexts, ui.texts())
		})
	}
}

func TestExecute_CheckFlag(t *testing.T) {
	root := script.Script{
		script.CheckFlag{Flag: "MET", Yes: "met"},
		say("fallthrough"),
		script.Block{Label: "met", Script: script.Script{say("met")}},
	}

	t.Run("flag set jumps", func(t *testing.T) {
		store := state.NewStore(1)
		store.AddFlag("MET")
		ui := &scriptedUI{}
		_, err := New(store, ui).Execute(context.Background(), root)
		require.NoError(t, err)
		assert.Equal(t, []string{"met"}, ui.texts())
	})

	t.Run("no label for branch falls through", func(t *testing.T) {
		ui := &scriptedUI{}
		_, err := New(state.NewStore(1), ui).Execute(context.Background(), root)
		require.NoError(t, err)
		assert.Equal(t, []string{"fallthrough"}, ui.texts())
	})
}

func TestExecute_RewardAndBadge(t *testing.T) {
	root := script.Script{
		script.Reward{Effect: state.Effect{AddTrust: &state.TrustDelta{Target: "lin", Value: 2}, AddFlag: "F", GlobalBadge: "B"}},
		script.Reward{Effect: state.Effect{AddTrust: &state.TrustDelta{Target: "lin", Value: 3}, AddFlag: "F"}},
	}
	store := state.NewStore(1)
	badges := &memBadges{}
	_, err := New(store, &scriptedUI{}, WithBadgeSink(badges)).Execute(context.Background(), root)

	require.NoError(t, err)
	assert.Equal(t, 5, store.TrustOf("lin"))
	assert.True(t, store.HasFlag("F"))
	assert.Equal(t, []string{"B"}, badges.keys)
}

type failingBadges struct{}

func (failingBadges) SetBadge(context.Context, string) error {
	return errors.New("store offline")
}

func TestExecute_BadgeWriteFailureStops(t *testing.T) {
	badge := &state.Effect{GlobalBadge: "B"}
	win := func(context.Context, map[string]any) (minigame.Result, error) {
		return minigame.Result{Success: true}, nil
	}
	host := minigame.NewRegistry().Register("win", win)

	tests := []struct {
		name  string
		root  script.Script
		picks []int
	}{
		{
			name: "reward",
			root: script.Script{script.Reward{Effect: *badge}, say("never")},
		},
		{
			name: "choice effect",
			root: script.Script{
				script.Choice{Options: []script.Option{{Text: i18n.Plain("a"), Effect: badge}}},
				say("never"),
			},
			picks: []int{0},
		},
		{
			name: "mini-game reward",
			root: script.Script{script.MiniGame{GameID: "win", Reward: badge}, say("never")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ui := &scriptedUI{picks: tt.picks}
			in := New(state.NewStore(1), ui, WithBadgeSink(failingBadges{}), WithMiniGames(host))
			out, err := in.Execute(context.Background(), tt.root)

			require.Error(t, err)
			assert.Equal(t, Stopped, out.Status)
			assert.Empty(t, ui.texts())
		})
	}
}

func TestExecute_MiniGame(t *testing.T) {
	win := func(context.Context, map[string]any) (minigame.Result, error) {
		return minigame.Result{Success: true}, nil
	}
	lose := func(context.Context, map[string]any) (minigame.Result, error) {
		return minigame.Result{Success: false}, nil
	}
	host := minigame.NewRegistry().Register("win", win).Register("lose", lose)

	blocks := script.Script{
		script.Block{Label: "p", Script: script.Script{say("pass")}},
		script.Block{Label: "f", Script: script.Script{say("fail")}},
	}

	tests := []struct {
		name      string
		game      script.MiniGame
		wantTexts []string
		wantFlag  bool
	}{
		{
			name:      "success jumps to pass and rewards",
			game:      script.MiniGame{GameID: "win", Reward: &state.Effect{AddFlag: "WON"}, Pass: "p", Fail: "f"},
			wantTexts: []string{"pass"},
			wantFlag:  true,
		},
		{
			name:      "failure jumps to fail without reward",
			game:      script.MiniGame{GameID: "lose", Reward: &state.Effect{AddFlag: "WON"}, Pass: "p", Fail: "f"},
			wantTexts: []string{"fail"},
		},
		{
			name:      "unavailable game takes fail branch",
			game:      script.MiniGame{GameID: "missing", Pass: "p", Fail: "f"},
			wantTexts: []string{"fail"},
		},
		{
			name:      "no labels continues",
			game:      script.MiniGame{GameID: "win", Reward: &state.Effect{AddFlag: "WON"}},
			wantTexts: []string{"after"},
			wantFlag:  true,
		},
		{
			name:      "only pass label stops scan on failure",
			game:      script.MiniGame{GameID: "lose", Pass: "p"},
			wantTexts: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := append(script.Script{tt.game, say("after")}, blocks...)
			store := state.NewStore(1)
			ui := &scriptedUI{}
			_, err := New(store, ui, WithMiniGames(host)).Execute(context.Background(), root)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTexts, ui.texts())
			assert.Equal(t, tt.wantFlag, store.HasFlag("WON"))
		})
	}
}

func TestExecute_StopReasons(t *testing.T) {
	var endings int
	trigger := func(context.Context) error {
		endings++
		return nil
	}

	t.Run("end_event", func(t *testing.T) {
		out, err := New(state.NewStore(1), &scriptedUI{}).Execute(context.Background(),
			script.Script{script.EndEvent{}, say("never")})
		require.NoError(t, err)
		assert.Equal(t, Outcome{Status: Stopped, Reason: ReasonEndEvent}, out)
	})

	t.Run("play_ending propagates out of a jump", func(t *testing.T) {
		root := script.Script{
			script.Jump{Target: "end"},
			script.Block{Label: "end", Script: script.Script{script.PlayEnding{}}},
		}
		out, err := New(state.NewStore(1), &scriptedUI{}, WithEndingTrigger(trigger)).Execute(context.Background(), root)
		require.NoError(t, err)
		assert.Equal(t, Outcome{Status: Stopped, Reason: ReasonEnding}, out)
		assert.Equal(t, 1, endings)
	})
}

func TestExecute_SkipMode(t *testing.T) {
	skip := &SkipMode{}
	assert.False(t, skip.Toggle(), "locked skip mode cannot be switched on")

	skip.Unlock()
	require.True(t, skip.Toggle())

	root := script.Script{
		say("fast"),
		script.Choice{Options: []script.Option{{Text: i18n.Plain("stop")}}},
		say("slow"),
	}
	ui := &scriptedUI{picks: []int{0}}
	_, err := New(state.NewStore(1), ui, WithSkipMode(skip)).Execute(context.Background(), root)

	require.NoError(t, err)
	require.Len(t, ui.lines, 2)
	assert.True(t, ui.lines[0].Instant)
	assert.False(t, ui.lines[1].Instant)
	assert.False(t, skip.Active())
}

func TestExecute_SpeakerNames(t *testing.T) {
	in := New(state.NewStore(1), &scriptedUI{}, WithLanguage(i18n.NewResolver("cn"), "en", map[string]i18n.Text{
		"chen": {"cn": "陈雨菲", "en": "Chen Yufei"},
	}))
	line := in.dialogLine(script.Dialog{Speaker: "chen", Text: i18n.Text{"cn": "你好", "en": "Hello"}})
	assert.Equal(t, "Chen Yufei", line.Speaker)
	assert.Equal(t, "Hello", line.Text)

	line = in.dialogLine(script.Dialog{Speaker: "stranger", Text: i18n.Plain("...")})
	assert.Equal(t, "stranger", line.Speaker)
}

// countingStage counts performed commands and tracks peak concurrency
type countingStage struct {
	mu      sync.Mutex
	cmds    []string
	running int32
	peak    int32
	delay   time.Duration
}

func (s *countingStage) Perform(ctx context.Context, cmd script.Stage) error {
	n := atomic.AddInt32(&s.running, 1)
	defer atomic.AddInt32(&s.running, -1)
	for {
		p := atomic.LoadInt32(&s.peak)
		if n <= p || atomic.CompareAndSwapInt32(&s.peak, p, n) {
			break
		}
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.delay):
	}
	s.mu.Lock()
	s.cmds = append(s.cmds, cmd.Cmd)
	s.mu.Unlock()
	return nil
}

func TestExecute_ParallelWaitsForAll(t *testing.T) {
	stage := &countingStage{delay: 20 * time.Millisecond}
	root := script.Script{
		script.Parallel{Actions: script.Script{
			script.Stage{Cmd: "move"},
			script.Stage{Cmd: "bubble"},
			script.Stage{Cmd: "shake"},
		}},
		script.Stage{Cmd: "after"},
	}
	_, err := New(state.NewStore(1), &scriptedUI{}, WithStage(stage)).Execute(context.Background(), root)

	require.NoError(t, err)
	require.Len(t, stage.cmds, 4)
	assert.Equal(t, "after", stage.cmds[3], "barrier holds until every branch finishes")
	assert.Equal(t, int32(3), atomic.LoadInt32(&stage.peak))
}

func TestExecute_LoopAndEndShow(t *testing.T) {
	stage := &countingStage{}
	in := New(state.NewStore(1), &scriptedUI{}, WithStage(stage))
	root := script.Script{
		script.Loop{Count: 3, Interval: time.Millisecond, Script: script.Script{script.Stage{Cmd: "spawn"}}},
		script.EndShow{Outcome: "perfect"},
		script.Stage{Cmd: "never"},
	}
	out, err := in.Execute(context.Background(), root)
	in.Wait()

	require.NoError(t, err)
	assert.Equal(t, Outcome{Status: Stopped, Reason: ReasonEndShow}, out)
	assert.Equal(t, "perfect", in.ShowOutcome())
	assert.Equal(t, []string{"spawn", "spawn", "spawn"}, stage.cmds)

	in.ResetShow()
	assert.Equal(t, "", in.ShowOutcome())
}

func TestExecute_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, err := New(state.NewStore(1), &scriptedUI{}).Execute(ctx, script.Script{say("x")})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, ReasonCanceled, out.Reason)
}
