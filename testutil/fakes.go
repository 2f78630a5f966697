package testutil

import (
	"context"
	"sync"

	"github.com/kbukum/meetscribe/audio"
	"github.com/kbukum/meetscribe/diarization"
	"github.com/kbukum/meetscribe/embedding"
	"github.com/kbukum/meetscribe/llm"
	"github.com/kbukum/meetscribe/meeting"
	"github.com/kbukum/meetscribe/provider"
	"github.com/kbukum/meetscribe/transcription"
)

// Silence returns seconds of zero-valued PCM in the pipeline format.
func Silence(seconds float64) []byte {
	return make([]byte, int(seconds*audio.SampleRate)*audio.Channels*audio.BitsPerSample/8)
}

// Tone returns seconds of loud PCM in the pipeline format.
func Tone(seconds float64) []byte {
	pcm := Silence(seconds)
	for i := 0; i+1 < len(pcm); i += 2 {
		v := int16(8000)
		if (i/2)%2 == 1 {
			v = -8000
		}
		pcm[i] = byte(uint16(v))
		pcm[i+1] = byte(uint16(v) >> 8)
	}
	return pcm
}

// Normalizer converts any input into a WAV of fixed duration and decodes
// chunks by passing them through unchanged.
type Normalizer struct {
	mu       sync.Mutex
	Seconds  float64
	Err      error
	normals  int
	decoders int
}

// Normalize implements the normalizer contract.
func (n *Normalizer) Normalize(_ context.Context, _ []byte, _ string) ([]byte, float64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.normals++
	if n.Err != nil {
		return nil, 0, n.Err
	}
	return audio.EncodeWAV(Silence(n.Seconds)), n.Seconds, nil
}

// DecodeChunk returns the chunk as PCM.
func (n *Normalizer) DecodeChunk(_ context.Context, chunk []byte) ([]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.decoders++
	if n.Err != nil {
		return nil, n.Err
	}
	return chunk, nil
}

// Normalized returns how many times Normalize was called.
func (n *Normalizer) Normalized() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.normals
}

// Transcriber is a scripted transcription provider.
type Transcriber struct {
	mu       sync.Mutex
	Tokens   []meeting.Token
	Err      error
	Fn       func(req transcription.Request) (*transcription.Response, error)
	requests []transcription.Request
}

func (f *Transcriber) Name() string                       { return "fake-transcriber" }
func (f *Transcriber) IsAvailable(_ context.Context) bool { return true }

// Transcribe implements transcription.Provider.
func (f *Transcriber) Transcribe(ctx context.Context, req transcription.Request) (*transcription.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	fn, tokens, err := f.Fn, f.Tokens, f.Err
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fn != nil {
		return fn(req)
	}
	if err != nil {
		return nil, err
	}
	return &transcription.Response{Tokens: append([]meeting.Token(nil), tokens...), Language: "en"}, nil
}

// Requests returns the calls seen so far.
func (f *Transcriber) Requests() []transcription.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]transcription.Request(nil), f.requests...)
}

// Diarizer is a scripted diarization provider.
type Diarizer struct {
	mu       sync.Mutex
	Turns    []meeting.Turn
	Err      error
	requests []diarization.Request
}

func (f *Diarizer) Name() string                       { return "fake-diarizer" }
func (f *Diarizer) IsAvailable(_ context.Context) bool { return true }

// Diarize implements diarization.Provider.
func (f *Diarizer) Diarize(ctx context.Context, req diarization.Request) (*diarization.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	turns, err := f.Turns, f.Err
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	return &diarization.Response{Turns: append([]meeting.Turn(nil), turns...)}, nil
}

// Requests returns the calls seen so far.
func (f *Diarizer) Requests() []diarization.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]diarization.Request(nil), f.requests...)
}

// Embedder returns vectors from Fn, or a constant vector.
type Embedder struct {
	Fn  func(req embedding.Request) []float32
	Err error
}

func (f *Embedder) Name() string                       { return "fake-embedder" }
func (f *Embedder) IsAvailable(_ context.Context) bool { return true }

// Embed implements embedding.Provider.
func (f *Embedder) Embed(_ context.Context, req embedding.Request) ([]float32, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	if f.Fn != nil {
		return f.Fn(req), nil
	}
	return []float32{1, 0, 0}, nil
}

// Completer is a text-completion fake answering every request with Reply.
type Completer struct {
	mu    sync.Mutex
	Reply func(req llm.CompletionRequest) (string, error)
	calls int
}

// RR adapts the fake to the request/response contract.
func (c *Completer) RR() provider.RequestResponse[llm.CompletionRequest, llm.CompletionResponse] {
	return provider.Func("fake-llm", func(_ context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
		c.mu.Lock()
		c.calls++
		reply := c.Reply
		c.mu.Unlock()
		if reply == nil {
			return llm.CompletionResponse{Content: `{"speakers": []}`}, nil
		}
		content, err := reply(req)
		if err != nil {
			return llm.CompletionResponse{}, err
		}
		return llm.CompletionResponse{Content: content}, nil
	})
}

// Calls returns how many completions were requested.
func (c *Completer) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Recorder collects published meeting events.
type Recorder struct {
	mu     sync.Mutex
	events []meeting.Event
}

// Notify records e.
func (r *Recorder) Notify(_ context.Context, e meeting.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns the events recorded so far.
func (r *Recorder) Events() []meeting.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]meeting.Event(nil), r.events...)
}

// OfType returns the recorded events of type t.
func (r *Recorder) OfType(t meeting.EventType) []meeting.Event {
	var out []meeting.Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
