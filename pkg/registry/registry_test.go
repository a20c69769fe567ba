package registry

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	lines []string
}

func (l *recordingLogger) Debugf(format string, v ...interface{}) {
	l.lines = append(l.lines, fmt.Sprintf(format, v...))
}

func urls(nodes []*Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.URL)
	}
	return out
}

func TestBuildTree_NilWithoutRegistrations(t *testing.T) {
	reg := New()
	assert.Nil(t, reg.BuildTree("tab-1"))

	require.NoError(t, reg.Register("tab-1", "https://a.example/", 0))
	assert.NotNil(t, reg.BuildTree("tab-1"))
	assert.Nil(t, reg.BuildTree("tab-2"), "other sessions stay empty")
}

func TestBuildTree_NilAfterOnlyFailedRegistrations(t *testing.T) {
	reg := New()
	assert.Error(t, reg.Register("tab-1", "https://a.example/", -1))
	assert.Error(t, reg.Register("tab-1", "", 0))
	assert.Nil(t, reg.BuildTree("tab-1"))
}

func TestRegister_SameURLOverwritesDepth(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Register("tab-1", "https://a.example/", 0))
	require.NoError(t, reg.Register("tab-1", "https://b.example/", 1))
	require.Equal(t, 2, reg.Len("tab-1"))

	require.NoError(t, reg.Register("tab-1", "https://b.example/", 3))
	assert.Equal(t, 2, reg.Len("tab-1"))

	snap := reg.Snapshot()
	assert.Equal(t, []FrameRecord{
		{URL: "https://a.example/", Depth: 0},
		{URL: "https://b.example/", Depth: 3},
	}, snap["tab-1"])
}

func TestRegister_Idempotent(t *testing.T) {
	reg := New()
	for i := 0; i < 3; i++ {
		require.NoError(t, reg.Register("tab-1", "https://a.example/", 0))
	}
	assert.Equal(t, 1, reg.Len("tab-1"))
	assert.Equal(t, []FrameRecord{{URL: "https://a.example/", Depth: 0}}, reg.Snapshot()["tab-1"])
}

func TestBuildTree_OverReplicatesSharedDepth(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Register("tab-1", "A", 0))
	require.NoError(t, reg.Register("tab-1", "B", 1))
	require.NoError(t, reg.Register("tab-1", "C", 1))
	require.NoError(t, reg.Register("tab-1", "D", 2))

	tree := reg.BuildTree("tab-1")
	require.Len(t, tree, 1)

	root := tree[0]
	assert.Equal(t, "A", root.URL)
	assert.Equal(t, 0, root.Depth)
	require.Equal(t, []string{"B", "C"}, urls(root.Children))

	for _, child := range root.Children {
		require.Len(t, child.Children, 1, "%s should list D", child.URL)
		assert.Equal(t, "D", child.Children[0].URL)
		assert.Equal(t, 2, child.Children[0].Depth)
		assert.NotNil(t, child.Children[0].Children)
		assert.Empty(t, child.Children[0].Children)
	}

	assert.Equal(t, 5, tree.Count(), "D appears once under B and once under C")
}

func TestBuildTree_FlatListWithoutRoot(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Register("tab-1", "X", 1))
	require.NoError(t, reg.Register("tab-1", "Y", 2))

	tree := reg.BuildTree("tab-1")
	require.Len(t, tree, 2)
	assert.Equal(t, &Node{URL: "X", Depth: 1}, tree[0])
	assert.Equal(t, &Node{URL: "Y", Depth: 2}, tree[1])
	for _, n := range tree {
		assert.Nil(t, n.Children)
	}

	data, err := json.Marshal(tree)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"url":"X","depth":1},{"url":"Y","depth":2}]`, string(data))
}

func TestBuildTree_JSONKeepsRootedLeaves(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Register("tab-1", "A", 0))
	require.NoError(t, reg.Register("tab-1", "B", 1))

	data, err := json.Marshal(reg.BuildTree("tab-1"))
	require.NoError(t, err)
	assert.JSONEq(t, `[{"url":"A","depth":0,"children":[{"url":"B","depth":1,"children":[]}]}]`, string(data))

	var decoded Tree
	require.NoError(t, json.Unmarshal(data, &decoded))
	leaf := decoded[0].Children[0]
	assert.NotNil(t, leaf.Children)
	assert.Empty(t, leaf.Children)
}

func TestBuildTree_MultipleRoots(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Register("tab-1", "R1", 0))
	require.NoError(t, reg.Register("tab-1", "K", 1))
	require.NoError(t, reg.Register("tab-1", "R2", 0))

	tree := reg.BuildTree("tab-1")
	require.Equal(t, []string{"R1", "R2"}, urls(tree))
	assert.Equal(t, []string{"K"}, urls(tree[0].Children))
	assert.Equal(t, []string{"K"}, urls(tree[1].Children))
}

func TestBuildTree_SkippedLevelIsNotAttached(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Register("tab-1", "A", 0))
	require.NoError(t, reg.Register("tab-1", "deep", 2))

	tree := reg.BuildTree("tab-1")
	require.Len(t, tree, 1)
	assert.NotNil(t, tree[0].Children)
	assert.Empty(t, tree[0].Children)
}

func TestBuildTree_DepthChangeMovesFrame(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Register("tab-1", "A", 0))
	require.NoError(t, reg.Register("tab-1", "B", 1))
	require.NoError(t, reg.Register("tab-1", "B", 0))

	tree := reg.BuildTree("tab-1")
	assert.Equal(t, []string{"A", "B"}, urls(tree))
	assert.Empty(t, tree[0].Children)
}

func TestBuildTree_DoesNotAliasRegistryState(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Register("tab-1", "A", 0))

	tree := reg.BuildTree("tab-1")
	tree[0].URL = "mutated"
	tree[0].Depth = 9

	assert.Equal(t, []FrameRecord{{URL: "A", Depth: 0}}, reg.Snapshot()["tab-1"])
}

func TestCloseSession_RemovesOnlyThatSession(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Register("tab-1", "A", 0))
	require.NoError(t, reg.Register("tab-1", "B", 1))
	require.NoError(t, reg.Register("tab-2", "C", 0))

	assert.True(t, reg.CloseSession("tab-1"))
	assert.Nil(t, reg.BuildTree("tab-1"))
	assert.Equal(t, 0, reg.Len("tab-1"))

	tree := reg.BuildTree("tab-2")
	require.Len(t, tree, 1)
	assert.Equal(t, "C", tree[0].URL)
	assert.Equal(t, []SessionID{"tab-2"}, reg.Sessions())

	assert.False(t, reg.CloseSession("tab-1"), "second close is a no-op")
}

func TestCloseSession_LateRegistrationStartsFresh(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Register("tab-1", "A", 0))
	require.NoError(t, reg.Register("tab-1", "B", 1))
	reg.CloseSession("tab-1")

	require.NoError(t, reg.Register("tab-1", "B", 1))
	assert.Equal(t, []FrameRecord{{URL: "B", Depth: 1}}, reg.Snapshot()["tab-1"])
}

func TestRegister_InvalidInputLeavesStateUnchanged(t *testing.T) {
	tests := []struct {
		name    string
		session SessionID
		url     string
		depth   int
		wantErr error
	}{
		{name: "missing session", session: "", url: "https://a.example/", depth: 0, wantErr: ErrInvalidSender},
		{name: "missing url", session: "tab-1", url: "", depth: 0, wantErr: ErrInvalidSender},
		{name: "negative depth", session: "tab-1", url: "https://x.example/", depth: -1, wantErr: ErrInvalidDepth},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := New()
			require.NoError(t, reg.Register("tab-1", "https://a.example/", 0))
			require.NoError(t, reg.Register("tab-2", "https://b.example/", 1))
			before := reg.Snapshot()

			err := reg.Register(tt.session, tt.url, tt.depth)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, before, reg.Snapshot())
		})
	}
}

func TestRegister_MissingSessionMatchesBothSentinels(t *testing.T) {
	err := New().Register("", "https://a.example/", 0)
	assert.ErrorIs(t, err, ErrInvalidSender)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestRegister_LogsAcceptedFrames(t *testing.T) {
	logger := &recordingLogger{}
	reg := New(WithLogger(logger))

	require.NoError(t, reg.Register("tab-1", "https://a.example/", 0))
	_ = reg.Register("tab-1", "https://a.example/", -2)

	require.Len(t, logger.lines, 1)
	assert.Equal(t, "Registered frame: https://a.example/, depth: 0, session: tab-1", logger.lines[0])
}

func TestRegistry_ConcurrentRegistrations(t *testing.T) {
	reg := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = reg.Register("tab-1", fmt.Sprintf("https://f%d.example/", i%10), i%3)
			_ = reg.BuildTree("tab-1")
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, reg.Len("tab-1"))
}
