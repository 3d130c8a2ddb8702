package library

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// ── 测试替身 ──

type stubEmbedder struct {
	dims int
	err  error
}

func (s stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0, 0}
	}
	return out, nil
}

func (s stubEmbedder) Dims() int { return s.dims }

type stubIndex struct {
	matches []Match
	err     error
}

func (s stubIndex) Upsert(context.Context, []VectorRecord) error { return nil }
func (s stubIndex) Clear(context.Context) error                  { return nil }
func (s stubIndex) Query(context.Context, []float32, int) ([]Match, error) {
	return s.matches, s.err
}

type mapStore map[string]string

func (m mapStore) Get(id string) (string, error) {
	text, ok := m[id]
	if !ok {
		return "", ErrPassageNotFound
	}
	return text, nil
}

type stubGenerator struct {
	answer string
	err    error
	prompt string
}

func (g *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.prompt = prompt
	if g.err != nil {
		return "", g.err
	}
	return g.answer, nil
}

func threeMatches() []Match {
	return []Match{
		{ID: "moby.pdf_3", Score: 0.81, Metadata: RecordMetadata{Book: "moby.pdf", ParagraphID: "moby.pdf_3"}},
		{ID: "moby.pdf_7", Score: 0.76, Metadata: RecordMetadata{Book: "moby.pdf", ParagraphID: "moby.pdf_7"}},
		{ID: "iliad.epub_1", Score: 0.52, Metadata: RecordMetadata{Book: "iliad.epub", ParagraphID: "iliad.epub_1"}},
	}
}

func threeTexts() mapStore {
	return mapStore{
		"moby.pdf_3":   "call me ishmael some years ago never mind how long precisely",
		"moby.pdf_7":   "it is a way i have of driving off the spleen and regulating the circulation",
		"iliad.epub_1": "sing o goddess the anger of achilles son of peleus",
	}
}

func TestAnswerOrdersByScore(t *testing.T) {
	r := NewRetriever(stubEmbedder{dims: 4}, stubIndex{matches: threeMatches()}, threeTexts(), Options{})

	resp, err := r.Answer(context.Background(), "whaling", 3)
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if resp.Query != "whaling" {
		t.Errorf("query echo mismatch: got %q", resp.Query)
	}
	if len(resp.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(resp.Results))
	}

	wantScores := []float64{0.81, 0.76, 0.52}
	wantBooks := []string{"moby.pdf", "moby.pdf", "iliad.epub"}
	for i, res := range resp.Results {
		if res.Score != wantScores[i] {
			t.Errorf("result %d score = %v, want %v", i, res.Score, wantScores[i])
		}
		if res.Book != wantBooks[i] {
			t.Errorf("result %d book = %q, want %q", i, res.Book, wantBooks[i])
		}
		if res.Paragraph == "" {
			t.Errorf("result %d has empty paragraph", i)
		}
	}
}

func TestAnswerEmptyQuery(t *testing.T) {
	r := NewRetriever(stubEmbedder{dims: 4}, stubIndex{}, mapStore{}, Options{})

	for _, query := range []string{"", "   ", "\n\t"} {
		if _, err := r.Answer(context.Background(), query, 5); !errors.Is(err, ErrEmptyQuery) {
			t.Errorf("query %q: got err %v, want ErrEmptyQuery", query, err)
		}
	}
}

func TestAnswerThresholdFilters(t *testing.T) {
	matches := threeMatches()
	matches[2].Score = 0.42
	r := NewRetriever(stubEmbedder{dims: 4}, stubIndex{matches: matches}, threeTexts(),
		Options{ScoreThreshold: 0.5})

	resp, err := r.Answer(context.Background(), "whaling", 3)
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("expected threshold to drop 1 result, got %d results", len(resp.Results))
	}
	for _, res := range resp.Results {
		if res.Score <= 0.5 {
			t.Errorf("result below threshold survived: score %v", res.Score)
		}
	}
}

func TestAnswerMissingPassageSentinel(t *testing.T) {
	store := threeTexts()
	delete(store, "moby.pdf_7")
	r := NewRetriever(stubEmbedder{dims: 4}, stubIndex{matches: threeMatches()}, store, Options{})

	resp, err := r.Answer(context.Background(), "whaling", 3)
	if err != nil {
		t.Fatalf("missing passage must not fail the request: %v", err)
	}
	if len(resp.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(resp.Results))
	}
	if resp.Results[1].Paragraph != NotFoundSentinel {
		t.Errorf("expected sentinel for missing id, got %q", resp.Results[1].Paragraph)
	}
}

func TestAnswerIndexFailure(t *testing.T) {
	r := NewRetriever(stubEmbedder{dims: 4}, stubIndex{err: errors.New("connection refused")},
		mapStore{}, Options{})

	if _, err := r.Answer(context.Background(), "whaling", 3); err == nil {
		t.Fatal("expected index failure to propagate")
	}
}

func TestAnswerSynthesis(t *testing.T) {
	gen := &stubGenerator{answer: "Ishmael goes whaling."}
	r := NewRetriever(stubEmbedder{dims: 4}, stubIndex{matches: threeMatches()}, threeTexts(),
		Options{Synthesize: true})
	r.SetGenerator(gen)

	resp, err := r.Answer(context.Background(), "whaling", 3)
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if resp.AnthropicResponse != "Ishmael goes whaling." {
		t.Errorf("anthropic_response = %q", resp.AnthropicResponse)
	}
	if !strings.Contains(gen.prompt, "Query: whaling") {
		t.Error("prompt missing the query")
	}
	if !strings.Contains(gen.prompt, "From 'moby.pdf':") {
		t.Error("prompt missing source attribution")
	}
}

func TestAnswerSynthesisFailureDegrades(t *testing.T) {
	gen := &stubGenerator{err: errors.New("rate limited")}
	r := NewRetriever(stubEmbedder{dims: 4}, stubIndex{matches: threeMatches()}, threeTexts(),
		Options{Synthesize: true})
	r.SetGenerator(gen)

	resp, err := r.Answer(context.Background(), "whaling", 3)
	if err != nil {
		t.Fatalf("synthesis failure must degrade, not fail: %v", err)
	}
	if resp.AnthropicResponse != "" {
		t.Errorf("expected empty anthropic_response, got %q", resp.AnthropicResponse)
	}
	if len(resp.Results) != 3 {
		t.Errorf("raw results must survive synthesis failure, got %d", len(resp.Results))
	}
}

func TestAnswerNoSynthesisWithoutResults(t *testing.T) {
	gen := &stubGenerator{answer: "should not be called"}
	r := NewRetriever(stubEmbedder{dims: 4}, stubIndex{}, mapStore{}, Options{Synthesize: true})
	r.SetGenerator(gen)

	resp, err := r.Answer(context.Background(), "whaling", 3)
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if resp.AnthropicResponse != "" {
		t.Error("synthesis must be skipped when retrieval is empty")
	}
	if gen.prompt != "" {
		t.Error("generator was called with no results")
	}
}

func TestAnswerDefaultTopK(t *testing.T) {
	r := NewRetriever(stubEmbedder{dims: 4}, stubIndex{matches: threeMatches()}, threeTexts(),
		Options{DefaultTopK: 7})

	resp, err := r.Answer(context.Background(), "whaling", 0)
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if len(resp.Results) != 3 {
		t.Errorf("expected all stub matches back, got %d", len(resp.Results))
	}
}

func TestPostProcessParagraph(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "capitalizes sentences",
			in:   "call me ishmael. some years ago i went to sea.",
			want: "Call me ishmael. Some years ago i went to sea.",
		},
		{
			name: "strips reference numbers",
			in:   "the whale[12] was white. it sank the ship[3].",
			want: "The whale was white. It sank the ship.",
		},
		{
			name: "strips page stamps",
			in:   "the voyage began. 12_Book.indb 345 the crew assembled.",
			want: "The voyage began.  The crew assembled.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := postProcessParagraph(tt.in); got != tt.want {
				t.Errorf("postProcessParagraph(%q)\ngot  %q\nwant %q", tt.in, got, tt.want)
			}
		})
	}
}
