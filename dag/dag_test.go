package dag

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kbukum/meetscribe/logger"
)

func recordNode(name string, log *[]string, mu *sync.Mutex) Node {
	return NodeFunc(name, func(_ context.Context, _ *State) (any, error) {
		mu.Lock()
		*log = append(*log, name)
		mu.Unlock()
		return name, nil
	})
}

// diamond: normalize -> {diarize, transcribe} -> align
func diamond(nodes map[string]Node) *Graph {
	return &Graph{
		Nodes: nodes,
		Edges: []Edge{
			{From: "normalize", To: "transcribe"},
			{From: "normalize", To: "diarize"},
			{From: "transcribe", To: "align"},
			{From: "diarize", To: "align"},
		},
	}
}

func TestPort_ReadWrite(t *testing.T) {
	s := NewState()
	port := Port[int]{Key: "count"}
	Write(s, port, 42)

	val, err := Read(s, port)
	if err != nil || val != 42 {
		t.Fatalf("expected 42, got %d (err=%v)", val, err)
	}
	if !s.Has("count") {
		t.Error("expected Has to report the key")
	}

	s.Set("name", "x")
	if _, err := Read(s, Port[int]{Key: "name"}); err == nil {
		t.Error("expected error for type mismatch")
	}
	if _, err := Read(s, Port[int]{Key: "missing"}); err == nil {
		t.Error("expected error for missing key")
	}
}

func TestBuildLevels_Deterministic(t *testing.T) {
	var mu sync.Mutex
	var log []string
	g := diamond(map[string]Node{
		"normalize":  recordNode("normalize", &log, &mu),
		"transcribe": recordNode("transcribe", &log, &mu),
		"diarize":    recordNode("diarize", &log, &mu),
		"align":      recordNode("align", &log, &mu),
	})

	levels, err := BuildLevels(g)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(levels) != 3 {
		t.Fatalf("expected 3 levels, got %d", len(levels))
	}
	if levels[1][0] != "diarize" || levels[1][1] != "transcribe" {
		t.Errorf("expected sorted middle level [diarize transcribe], got %v", levels[1])
	}
}

func TestBuildLevels_Cycle(t *testing.T) {
	n := func(name string) Node { return NodeFunc(name, func(context.Context, *State) (any, error) { return nil, nil }) }
	g := &Graph{
		Nodes: map[string]Node{"a": n("a"), "b": n("b")},
		Edges: []Edge{{From: "a", To: "b"}, {From: "b", To: "a"}},
	}
	if _, err := BuildLevels(g); err == nil {
		t.Fatal("expected cycle error")
	}
}

func TestBuildLevels_UnknownNode(t *testing.T) {
	g := &Graph{Nodes: map[string]Node{}, Edges: []Edge{{From: "a", To: "b"}}}
	if _, err := BuildLevels(g); err == nil {
		t.Fatal("expected unknown node error")
	}
}

func TestEngine_RunsParallelLevel(t *testing.T) {
	var running, peak int32
	slow := func(name string) Node {
		return NodeFunc(name, func(context.Context, *State) (any, error) {
			n := atomic.AddInt32(&running, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			return nil, nil
		})
	}
	g := diamond(map[string]Node{
		"normalize":  slow("normalize"),
		"transcribe": slow("transcribe"),
		"diarize":    slow("diarize"),
		"align":      slow("align"),
	})

	res, err := (&Engine{}).ExecuteStreaming(context.Background(), g, NewState(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if peak != 2 {
		t.Errorf("expected transcribe and diarize to overlap, peak=%d", peak)
	}
	for name, nr := range res.NodeResults {
		if nr.Status != StatusCompleted {
			t.Errorf("expected %s completed, got %s", name, nr.Status)
		}
	}
}

func TestEngine_StopsAfterFailedLevel(t *testing.T) {
	var mu sync.Mutex
	var log []string
	boom := errors.New("sidecar unreachable")
	g := diamond(map[string]Node{
		"normalize":  recordNode("normalize", &log, &mu),
		"transcribe": recordNode("transcribe", &log, &mu),
		"diarize": NodeFunc("diarize", func(context.Context, *State) (any, error) {
			return nil, boom
		}),
		"align": recordNode("align", &log, &mu),
	})

	res, err := (&Engine{}).ExecuteStreaming(context.Background(), g, NewState(), nil)
	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("expected StageError, got %v", err)
	}
	if stageErr.Stage != "diarize" {
		t.Errorf("expected failed stage diarize, got %s", stageErr.Stage)
	}
	if !errors.Is(err, boom) {
		t.Error("expected StageError to unwrap to the node error")
	}
	if _, ran := res.NodeResults["align"]; ran {
		t.Error("expected align not to run after a failed level")
	}
	if res.NodeResults["transcribe"].Status != StatusCompleted {
		t.Errorf("expected sibling transcribe to complete, got %s", res.NodeResults["transcribe"].Status)
	}
}

func TestEngine_FirstFailureInLevelOrderWins(t *testing.T) {
	fail := func(name string) Node {
		return NodeFunc(name, func(context.Context, *State) (any, error) { return nil, errors.New(name) })
	}
	g := &Graph{Nodes: map[string]Node{"transcribe": fail("transcribe"), "diarize": fail("diarize")}}
	_, err := (&Engine{}).ExecuteStreaming(context.Background(), g, NewState(), nil)
	var stageErr *StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != "diarize" {
		t.Errorf("expected diarize reported first, got %v", err)
	}
}

func TestEngine_FilterSkipsAndOnNodeDone(t *testing.T) {
	var mu sync.Mutex
	var log []string
	g := diamond(map[string]Node{
		"normalize":  recordNode("normalize", &log, &mu),
		"transcribe": recordNode("transcribe", &log, &mu),
		"diarize":    recordNode("diarize", &log, &mu),
		"align":      recordNode("align", &log, &mu),
	})

	var done []string
	var doneMu sync.Mutex
	engine := &Engine{OnNodeDone: func(_ context.Context, nr NodeResult) {
		doneMu.Lock()
		done = append(done, nr.Name)
		doneMu.Unlock()
	}}
	filter := func(name string, _ *State) bool { return name != "normalize" && name != "transcribe" }

	res, err := engine.ExecuteStreaming(context.Background(), g, NewState(), filter)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.NodeResults["normalize"].Status != StatusSkipped {
		t.Errorf("expected normalize skipped, got %s", res.NodeResults["normalize"].Status)
	}
	sort.Strings(done)
	if len(done) != 2 || done[0] != "align" || done[1] != "diarize" {
		t.Errorf("expected OnNodeDone for [align diarize], got %v", done)
	}
}

func TestEngine_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := &Graph{Nodes: map[string]Node{"a": NodeFunc("a", func(context.Context, *State) (any, error) { return nil, nil })}}
	if _, err := (&Engine{}).ExecuteStreaming(ctx, g, NewState(), nil); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestEngine_MaxParallel(t *testing.T) {
	var running, peak int32
	var mu sync.Mutex
	nodes := map[string]Node{}
	for _, name := range []string{"a", "b", "c", "d"} {
		nodes[name] = NodeFunc(name, func(context.Context, *State) (any, error) {
			n := atomic.AddInt32(&running, 1)
			mu.Lock()
			if n > peak {
				peak = n
			}
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			return nil, nil
		})
	}
	if _, err := (&Engine{MaxParallel: 1}).ExecuteStreaming(context.Background(), &Graph{Nodes: nodes}, NewState(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if peak != 1 {
		t.Errorf("expected serial execution, peak=%d", peak)
	}
}

const processYAML = `
name: process
nodes:
  - component: normalize
  - component: transcribe
    depends_on: [normalize]
  - component: diarize
    depends_on: [normalize]
  - component: align
    depends_on: [transcribe, diarize]
`

func TestResolvePipeline(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"normalize", "transcribe", "diarize", "align"} {
		reg.Register(Instrument(NodeFunc(name, func(context.Context, *State) (any, error) { return nil, nil }), "pipeline", nil, logger.Nop()))
	}

	p, err := ParsePipeline([]byte(processYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	g, err := ResolvePipeline(p, reg)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if deps := g.Dependencies("align"); len(deps) != 2 || deps[0] != "diarize" {
		t.Errorf("expected align deps [diarize transcribe], got %v", deps)
	}
	if _, err := (&Engine{}).ExecuteStreaming(context.Background(), g, NewState(), nil); err != nil {
		t.Errorf("unexpected execute error: %v", err)
	}
}

func TestResolvePipeline_Errors(t *testing.T) {
	if _, err := ParsePipeline([]byte("nodes: []")); err == nil {
		t.Error("expected error for unnamed pipeline")
	}
	p, _ := ParsePipeline([]byte(processYAML))
	if _, err := ResolvePipeline(p, NewRegistry()); err == nil {
		t.Error("expected error for unregistered component")
	}
}

func TestLoadPipeline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "process.yaml")
	if err := os.WriteFile(path, []byte(processYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := LoadPipeline(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name != "process" || len(p.Nodes) != 4 {
		t.Errorf("unexpected pipeline: %+v", p)
	}
	if _, err := LoadPipeline(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
