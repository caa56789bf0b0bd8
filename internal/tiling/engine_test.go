package tiling

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1broseidon/tsps/internal/apperr"
	"github.com/1broseidon/tsps/internal/layout"
	"github.com/1broseidon/tsps/internal/mux"
	"github.com/1broseidon/tsps/internal/workdir"
)

// fakeResolver accepts only the listed directories and records every lookup.
type fakeResolver struct {
	known map[string]string
	calls []string
}

func newFakeResolver(dirs ...string) *fakeResolver {
	r := &fakeResolver{known: map[string]string{}}
	for _, d := range dirs {
		r.known[d] = d
	}
	return r
}

func (r *fakeResolver) Resolve(path string) (string, error) {
	r.calls = append(r.calls, path)
	if abs, ok := r.known[path]; ok {
		return abs, nil
	}
	return "", &workdir.NotFoundError{Path: path}
}

type harness struct {
	rec    *mux.Recorder
	res    *fakeResolver
	sleeps []time.Duration
	engine *Engine
}

func newHarness(dirs ...string) *harness {
	h := &harness{rec: mux.NewRecorder(), res: newFakeResolver(dirs...)}
	h.engine = NewEngine(h.rec,
		WithResolver(h.res.Resolve),
		WithSleeper(func(d time.Duration) { h.sleeps = append(h.sleeps, d) }),
	)
	return h
}

func cd(dir string) mux.Op {
	return mux.Op{Name: mux.OpSendKeys, Arg: "cd '" + dir + "'"}
}

func split(axis mux.Axis, dir string) mux.Op {
	return mux.Op{Name: mux.OpSplitWindow, Axis: axis, Arg: dir}
}

func tiled() mux.Op {
	return mux.Op{Name: mux.OpSelectLayout, Arg: "tiled"}
}

func resize(pane int, dim mux.Dimension, amount string) mux.Op {
	return mux.Op{Name: mux.OpResizePane, Pane: pane, Dim: dim, Arg: amount}
}

func sel(pane int) mux.Op {
	return mux.Op{Name: mux.OpSelectPane, Pane: pane}
}

func keys(text string) mux.Op {
	return mux.Op{Name: mux.OpSendKeys, Arg: text}
}

func assertOps(t *testing.T, want, got []mux.Op) {
	t.Helper()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ops mismatch (-want +got):\n%s", diff)
	}
}

func opsNamed(ops []mux.Op, name string) []mux.Op {
	var out []mux.Op
	for _, op := range ops {
		if op.Name == name {
			out = append(out, op)
		}
	}
	return out
}

func TestApply_EndToEndScenario(t *testing.T) {
	h := newHarness("/tmp")
	l := &layout.Layout{
		Workspace: layout.Workspace{Name: "demo", Directory: "/tmp"},
		Panes: []layout.PaneSpec{
			{Focus: true, Commands: []string{"echo A"}},
			{Split: layout.SplitHorizontal, Size: "10", Commands: []string{"echo B"}},
		},
	}

	dir, err := h.engine.Apply(context.Background(), l)
	require.NoError(t, err)
	assert.Equal(t, "/tmp", dir)

	assertOps(t, []mux.Op{
		cd("/tmp"),
		split(mux.AxisVertical, "/tmp"),
		tiled(),
		resize(1, mux.DimensionHeight, "10"),
		resize(1, mux.DimensionHeight, "10"),
		sel(0),
		keys("echo A"),
		sel(1),
		keys("echo B"),
		sel(0),
	}, h.rec.Ops)
	assert.Equal(t, []time.Duration{DefaultSettleDelay}, h.sleeps)
	assert.Equal(t, []string{"/tmp"}, h.res.calls)
}

func TestApply_SidebarAndBottomLayout(t *testing.T) {
	h := newHarness("/srv")
	l := &layout.Layout{
		Workspace: layout.Workspace{Name: "dev", Directory: "/srv"},
		Panes: []layout.PaneSpec{
			{ID: "main", Commands: []string{"nvim"}, Focus: true},
			{ID: "sidebar", Split: layout.SplitVertical, Size: "30%"},
			{ID: "bottom", Split: layout.SplitHorizontal, Size: "25%", Commands: []string{"git status", "ls"}},
		},
	}

	_, err := h.engine.Apply(context.Background(), l)
	require.NoError(t, err)

	assertOps(t, []mux.Op{
		cd("/srv"),
		split(mux.AxisHorizontal, "/srv"),
		split(mux.AxisVertical, "/srv"),
		tiled(),
		resize(1, mux.DimensionWidth, "30%"),
		resize(2, mux.DimensionHeight, "25%"),
		resize(2, mux.DimensionHeight, "25%"),
		sel(0),
		keys("nvim"),
		sel(1),
		sel(2),
		keys("git status"),
		keys("ls"),
		sel(0),
	}, h.rec.Ops)
}

func TestApply_DefaultSplitAlternates(t *testing.T) {
	h := newHarness("/w")
	l := &layout.Layout{
		Workspace: layout.Workspace{Name: "grid", Directory: "/w"},
		Panes:     make([]layout.PaneSpec, 5),
	}

	_, err := h.engine.Apply(context.Background(), l)
	require.NoError(t, err)

	assertOps(t, []mux.Op{
		split(mux.AxisHorizontal, "/w"),
		split(mux.AxisVertical, "/w"),
		split(mux.AxisHorizontal, "/w"),
		split(mux.AxisVertical, "/w"),
	}, opsNamed(h.rec.Ops, mux.OpSplitWindow))
}

func TestApply_ExplicitSplitOverridesAlternation(t *testing.T) {
	h := newHarness("/w")
	l := &layout.Layout{
		Workspace: layout.Workspace{Name: "x", Directory: "/w"},
		Panes: []layout.PaneSpec{
			{},
			{Split: layout.SplitHorizontal},
			{Split: layout.SplitVertical},
			{},
		},
	}

	_, err := h.engine.Apply(context.Background(), l)
	require.NoError(t, err)

	assertOps(t, []mux.Op{
		split(mux.AxisVertical, "/w"),
		split(mux.AxisHorizontal, "/w"),
		split(mux.AxisHorizontal, "/w"),
	}, opsNamed(h.rec.Ops, mux.OpSplitWindow))
}

func TestResizeDimensionTable(t *testing.T) {
	tests := []struct {
		size  string
		split layout.Split
		dim   mux.Dimension
		amt   string
	}{
		{"30%", layout.SplitVertical, mux.DimensionWidth, "30%"},
		{"30%", layout.SplitHorizontal, mux.DimensionHeight, "30%"},
		{"30%", layout.SplitDefault, mux.DimensionWidth, "30%"},
		{"12", layout.SplitVertical, mux.DimensionWidth, "12"},
		{"12", layout.SplitHorizontal, mux.DimensionHeight, "12"},
		{"12", layout.SplitDefault, mux.DimensionHeight, "12"},
		{"abc", layout.SplitDefault, mux.DimensionHeight, "10"},
		{"abc", layout.SplitVertical, mux.DimensionWidth, "10"},
	}
	for _, tt := range tests {
		t.Run(tt.size+"/"+string(tt.split), func(t *testing.T) {
			h := newHarness("/w")
			l := &layout.Layout{
				Workspace: layout.Workspace{Name: "x", Directory: "/w"},
				Panes:     []layout.PaneSpec{{}, {Size: tt.size, Split: tt.split}},
			}
			_, err := h.engine.Apply(context.Background(), l)
			require.NoError(t, err)

			resizes := opsNamed(h.rec.Ops, mux.OpResizePane)
			require.NotEmpty(t, resizes)
			assert.Equal(t, resize(1, tt.dim, tt.amt), resizes[0])
		})
	}
}

func TestResize_SecondPassOnlyFirstHorizontal(t *testing.T) {
	h := newHarness("/w")
	l := &layout.Layout{
		Workspace: layout.Workspace{Name: "x", Directory: "/w"},
		Panes: []layout.PaneSpec{
			{Size: "40%"},
			{Split: layout.SplitHorizontal},
			{Split: layout.SplitHorizontal, Size: "20%"},
			{Split: layout.SplitHorizontal, Size: "15%"},
		},
	}

	_, err := h.engine.Apply(context.Background(), l)
	require.NoError(t, err)

	assertOps(t, []mux.Op{
		resize(0, mux.DimensionWidth, "40%"),
		resize(2, mux.DimensionHeight, "20%"),
		resize(3, mux.DimensionHeight, "15%"),
		resize(2, mux.DimensionHeight, "20%"),
	}, opsNamed(h.rec.Ops, mux.OpResizePane))
}

func TestResize_SecondPassAppliesFixedHeightBeforePercent(t *testing.T) {
	h := newHarness("/w")
	l := &layout.Layout{
		Workspace: layout.Workspace{Name: "x", Directory: "/w"},
		Panes: []layout.PaneSpec{
			{},
			{Split: layout.SplitHorizontal, Size: "10"},
			{Split: layout.SplitHorizontal, Size: "30%"},
		},
	}

	_, err := h.engine.Apply(context.Background(), l)
	require.NoError(t, err)

	assertOps(t, []mux.Op{
		resize(1, mux.DimensionHeight, "10"),
		resize(2, mux.DimensionHeight, "30%"),
		resize(1, mux.DimensionHeight, "10"),
	}, opsNamed(h.rec.Ops, mux.OpResizePane))
}

func TestResize_NoSizesStillSettles(t *testing.T) {
	h := newHarness("/w")
	l := &layout.Layout{
		Workspace: layout.Workspace{Name: "x", Directory: "/w"},
		Panes:     []layout.PaneSpec{{}, {}},
	}

	_, err := h.engine.Apply(context.Background(), l)
	require.NoError(t, err)
	assert.Empty(t, opsNamed(h.rec.Ops, mux.OpResizePane))
	assert.Len(t, h.sleeps, 1)
}

func TestResize_ZeroDelaySkipsSleep(t *testing.T) {
	var slept bool
	rec := mux.NewRecorder()
	res := newFakeResolver("/w")
	e := NewEngine(rec,
		WithResolver(res.Resolve),
		WithSettleDelay(0),
		WithSleeper(func(time.Duration) { slept = true }),
	)
	l := &layout.Layout{Workspace: layout.Workspace{Name: "x", Directory: "/w"}, Panes: []layout.PaneSpec{{}}}

	_, err := e.Apply(context.Background(), l)
	require.NoError(t, err)
	assert.False(t, slept)
}

func TestExecuteCommands_SelectsEveryPaneInOrder(t *testing.T) {
	h := newHarness("/w")
	l := &layout.Layout{
		Workspace: layout.Workspace{Name: "x", Directory: "/w"},
		Panes: []layout.PaneSpec{
			{Commands: []string{"a1", "a2"}},
			{},
			{Commands: []string{"c1"}},
		},
	}

	_, err := h.engine.Apply(context.Background(), l)
	require.NoError(t, err)

	// Drop the cd, splits, layout and resizes: everything after select-layout
	// belongs to command execution (no focus flag is set).
	var tail []mux.Op
	for i, op := range h.rec.Ops {
		if op.Name == mux.OpSelectLayout {
			tail = h.rec.Ops[i+1:]
			break
		}
	}
	assertOps(t, []mux.Op{
		sel(0), keys("a1"), keys("a2"),
		sel(1),
		sel(2), keys("c1"),
	}, tail)
	assert.Equal(t, 3, h.rec.Count(mux.OpSelectPane))
}

func TestFocus_FirstFlagWins(t *testing.T) {
	run := func(panes []layout.PaneSpec) []mux.Op {
		h := newHarness("/w")
		_, err := h.engine.Apply(context.Background(), &layout.Layout{
			Workspace: layout.Workspace{Name: "x", Directory: "/w"},
			Panes:     panes,
		})
		require.NoError(t, err)
		return h.rec.Ops
	}

	twoFlags := run([]layout.PaneSpec{{}, {Focus: true}, {Focus: true}})
	oneFlag := run([]layout.PaneSpec{{}, {Focus: true}, {}})

	assertOps(t, oneFlag, twoFlags)
	assert.Equal(t, sel(1), twoFlags[len(twoFlags)-1])
}

func TestFocus_NoneFlaggedIssuesNoExtraSelect(t *testing.T) {
	h := newHarness("/w")
	_, err := h.engine.Apply(context.Background(), &layout.Layout{
		Workspace: layout.Workspace{Name: "x", Directory: "/w"},
		Panes:     []layout.PaneSpec{{}, {}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, h.rec.Count(mux.OpSelectPane))
}

func TestApply_OverriddenDirectoryIsTheOnlyOneChecked(t *testing.T) {
	h := newHarness("/b")
	l := &layout.Layout{
		Workspace: layout.Workspace{Name: "x", Directory: "/a"},
		Panes:     []layout.PaneSpec{{}, {}},
	}
	l.OverrideDirectory("/b")

	dir, err := h.engine.Apply(context.Background(), l)
	require.NoError(t, err)
	assert.Equal(t, "/b", dir)
	assert.Equal(t, []string{"/b"}, h.res.calls)
	assert.Equal(t, split(mux.AxisHorizontal, "/b"), opsNamed(h.rec.Ops, mux.OpSplitWindow)[0])
}

func TestApply_MissingDirectoryIssuesNothing(t *testing.T) {
	h := newHarness()
	_, err := h.engine.Apply(context.Background(), &layout.Layout{
		Workspace: layout.Workspace{Name: "x", Directory: "/nowhere"},
		Panes:     []layout.PaneSpec{{}, {}},
	})
	require.Error(t, err)

	var nf *workdir.NotFoundError
	assert.True(t, errors.As(err, &nf))
	assert.Empty(t, h.rec.Ops)
}

func TestApply_RealResolver(t *testing.T) {
	dir := t.TempDir()
	want, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)

	rec := mux.NewRecorder()
	e := NewEngine(rec, WithSettleDelay(0))
	got, err := e.Apply(context.Background(), &layout.Layout{
		Workspace: layout.Workspace{Name: "x", Directory: dir},
		Panes:     []layout.PaneSpec{{}, {}},
	})
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, cd(want), rec.Ops[0])
}

func TestApply_SplitFailureAbortsRemainingSteps(t *testing.T) {
	h := newHarness("/w")
	splits := 0
	h.rec.FailOn = func(op mux.Op) error {
		if op.Name == mux.OpSplitWindow {
			splits++
			if splits == 2 {
				return errors.New("no space for new pane")
			}
		}
		return nil
	}

	_, err := h.engine.Apply(context.Background(), &layout.Layout{
		Workspace: layout.Workspace{Name: "x", Directory: "/w"},
		Panes:     []layout.PaneSpec{{}, {}, {}, {}},
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindExternalCommandFailed, apperr.KindOf(err))
	assert.Equal(t, "failed to create pane 3: no space for new pane", err.Error())

	assertOps(t, []mux.Op{cd("/w"), split(mux.AxisHorizontal, "/w")}, h.rec.Ops)
	assert.Empty(t, h.sleeps)
}

func TestApply_FailureMessages(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name   string
		failOn func(mux.Op) bool
		want   string
	}{
		{"cd", func(op mux.Op) bool { return op.Name == mux.OpSendKeys && op.Arg == "cd '/w'" }, "failed to execute tmux command: boom"},
		{"arrange", func(op mux.Op) bool { return op.Name == mux.OpSelectLayout }, "failed to arrange panes: boom"},
		{"resize", func(op mux.Op) bool { return op.Name == mux.OpResizePane }, "failed to resize pane 1 -y: boom"},
		{"select", func(op mux.Op) bool { return op.Name == mux.OpSelectPane && op.Pane == 1 }, "failed to select pane 1: boom"},
		{"command", func(op mux.Op) bool { return op.Arg == "make" }, "failed to execute command 'make' in pane 1: boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness("/w")
			h.rec.FailOn = func(op mux.Op) error {
				if tt.failOn(op) {
					return boom
				}
				return nil
			}
			_, err := h.engine.Apply(context.Background(), &layout.Layout{
				Workspace: layout.Workspace{Name: "x", Directory: "/w"},
				Panes: []layout.PaneSpec{
					{},
					{Split: layout.SplitHorizontal, Size: "5", Commands: []string{"make"}},
				},
			})
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
			assert.ErrorIs(t, err, boom)
		})
	}
}

func TestApply_SecondPassFailureMessage(t *testing.T) {
	h := newHarness("/w")
	resizes := 0
	h.rec.FailOn = func(op mux.Op) error {
		if op.Name == mux.OpResizePane {
			resizes++
			if resizes == 2 {
				return errors.New("boom")
			}
		}
		return nil
	}
	_, err := h.engine.Apply(context.Background(), &layout.Layout{
		Workspace: layout.Workspace{Name: "x", Directory: "/w"},
		Panes:     []layout.PaneSpec{{}, {Split: layout.SplitHorizontal, Size: "30%"}},
	})
	require.Error(t, err)
	assert.Equal(t, "failed to adjust row height for pane 1: boom", err.Error())
}

func TestApplyPositional_SplitCountAndAlternation(t *testing.T) {
	for n := 1; n <= 7; n++ {
		h := newHarness("/p")
		dir, err := h.engine.ApplyPositional(context.Background(), n, "/p")
		require.NoError(t, err)
		assert.Equal(t, "/p", dir)

		splits := opsNamed(h.rec.Ops, mux.OpSplitWindow)
		require.Len(t, splits, n-1)
		for i, op := range splits {
			order := i + 1
			want := mux.AxisVertical
			if order%2 == 1 {
				want = mux.AxisHorizontal
			}
			assert.Equal(t, split(want, "/p"), op, "n=%d split %d", n, order)
		}
	}
}

func TestApplyPositional_OnlyCreatesAndArranges(t *testing.T) {
	h := newHarness("/p")
	_, err := h.engine.ApplyPositional(context.Background(), 3, "/p")
	require.NoError(t, err)

	assertOps(t, []mux.Op{
		cd("/p"),
		split(mux.AxisHorizontal, "/p"),
		split(mux.AxisVertical, "/p"),
		tiled(),
	}, h.rec.Ops)
	assert.Empty(t, h.sleeps)
}

func TestApplyPositional_InvalidCount(t *testing.T) {
	h := newHarness("/p")
	_, err := h.engine.ApplyPositional(context.Background(), 0, "/p")
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidArgument, apperr.KindOf(err))
	assert.Empty(t, h.rec.Ops)
	assert.Empty(t, h.res.calls)
}

func TestApplyPositional_CountAboveLimit(t *testing.T) {
	h := newHarness("/p")
	_, err := h.engine.ApplyPositional(context.Background(), MaxPaneCount+1, "/p")
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidArgument, apperr.KindOf(err))
	assert.Equal(t, "pane_count must be at most 1024", err.Error())
	assert.Empty(t, h.rec.Ops)
	assert.Empty(t, h.res.calls)
}

func TestApplyPositional_AtLimit(t *testing.T) {
	h := newHarness("/p")
	_, err := h.engine.ApplyPositional(context.Background(), MaxPaneCount, "/p")
	require.NoError(t, err)
	assert.Len(t, opsNamed(h.rec.Ops, mux.OpSplitWindow), MaxPaneCount-1)
}

func TestApplyPositional_MissingDirectory(t *testing.T) {
	h := newHarness()
	_, err := h.engine.ApplyPositional(context.Background(), 2, "/nope")
	require.Error(t, err)
	assert.Equal(t, apperr.KindPreconditionFailed, apperr.KindOf(err))
	assert.Empty(t, h.rec.Ops)
}

func TestWithArrangement(t *testing.T) {
	rec := mux.NewRecorder()
	res := newFakeResolver("/p")
	e := NewEngine(rec, WithResolver(res.Resolve), WithArrangement("even-horizontal"))

	_, err := e.ApplyPositional(context.Background(), 2, "/p")
	require.NoError(t, err)
	assert.Equal(t, mux.Op{Name: mux.OpSelectLayout, Arg: "even-horizontal"}, rec.Ops[len(rec.Ops)-1])
}

func TestShellQuote(t *testing.T) {
	assert.Equal(t, `'/tmp/a b'`, shellQuote("/tmp/a b"))
	assert.Equal(t, `'/tmp/it'\''s'`, shellQuote("/tmp/it's"))
}

func TestPreflight_RunsOnceAfterResolve(t *testing.T) {
	rec := mux.NewRecorder()
	res := newFakeResolver("/w")
	var checks int
	e := NewEngine(rec,
		WithResolver(res.Resolve),
		WithSleeper(func(time.Duration) {}),
		WithPreflight(func() error {
			assert.Equal(t, []string{"/w"}, res.calls)
			checks++
			return nil
		}),
	)

	_, err := e.Apply(context.Background(), &layout.Layout{
		Workspace: layout.Workspace{Name: "x", Directory: "/w"},
		Panes:     []layout.PaneSpec{{}, {Size: "30%"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, checks)
	assert.Equal(t, []string{"/w"}, res.calls)
}

func TestPreflight_FailureIssuesNothing(t *testing.T) {
	rec := mux.NewRecorder()
	res := newFakeResolver("/p")
	boom := apperr.New(apperr.KindPreconditionFailed, "Not in a tmux session")
	e := NewEngine(rec, WithResolver(res.Resolve), WithPreflight(func() error { return boom }))

	_, err := e.ApplyPositional(context.Background(), 3, "/p")
	require.ErrorIs(t, err, boom)
	assert.Empty(t, rec.Ops)
}

func TestPreflight_SkippedWhenDirectoryMissing(t *testing.T) {
	rec := mux.NewRecorder()
	res := newFakeResolver()
	e := NewEngine(rec, WithResolver(res.Resolve), WithPreflight(func() error {
		t.Fatal("preflight must not run for a missing directory")
		return nil
	}))

	_, err := e.ApplyPositional(context.Background(), 2, "/nope")
	var notFound *workdir.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Empty(t, rec.Ops)
}
