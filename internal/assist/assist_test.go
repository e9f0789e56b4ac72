package assist

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"github.com/inamate/projmap/internal/geom"
	"github.com/inamate/projmap/internal/surface"
	"github.com/inamate/projmap/internal/typeid"
)

// completionServer answers every chat completion with content.
func completionServer(t *testing.T, status int, content string) (*httptest.Server, *chatRequest) {
	t.Helper()
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("Authorization = %q", auth)
		}
		json.NewDecoder(r.Body).Decode(&got)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			w.Write([]byte(`{"error":{"message":"quota exceeded"}}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"model": "gpt-test",
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func TestGenerate(t *testing.T) {
	content := "```json\n" + `{"shapes":[
		{"name":"Left wall","points":[{"x":0,"y":0},{"x":0.5,"y":0},{"x":0.5,"y":1},{"x":-0.2,"y":1.4}],"color":"#ff0066"},
		{"name":"Logo","points":[{"x":0.6,"y":0.2},{"x":0.9,"y":0.2},{"x":0.75,"y":0.5}],"color":"teal"}
	]}` + "\n```"
	srv, got := completionServer(t, http.StatusOK, content)

	c := &Client{BaseURL: srv.URL + "/", APIKey: "sk-test", Model: "gpt-test"}
	res, err := c.Generate(context.Background(), Request{Prompt: "two walls", Count: 2})
	if err != nil {
		t.Fatalf("Generate() failed: %v", err)
	}
	if got.Model != "gpt-test" || len(got.Messages) != 2 || !strings.Contains(got.Messages[1].Content, "exactly 2 shapes") {
		t.Errorf("request = %+v", got)
	}
	if len(res.Shapes) != 2 {
		t.Fatalf("got %d shapes, want 2", len(res.Shapes))
	}
	if err := typeid.Validate(res.ID, typeid.PrefixLayout); err != nil {
		t.Errorf("layout id: %v", err)
	}
	wall := res.Shapes[0]
	if wall.Name != "Left wall" || wall.Style.Color != "#ff0066" {
		t.Errorf("wall = %+v", wall)
	}
	if wall.Points[3] != (geom.Point{X: 0, Y: 1}) {
		t.Errorf("point not clamped: %v", wall.Points[3])
	}
	if res.Shapes[1].Style.Color != "" {
		t.Errorf("non-hex color kept: %q", res.Shapes[1].Style.Color)
	}
}

func TestGenerateFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		content string
		want    error
	}{
		{"prose", http.StatusOK, "Sure! Here is a layout.", ErrMalformedResponse},
		{"no shapes key", http.StatusOK, `{"walls":[]}`, ErrMalformedResponse},
		{"empty list", http.StatusOK, `{"shapes":[]}`, ErrMalformedResponse},
		{"two points", http.StatusOK, `[{"name":"line","points":[{"x":0,"y":0},{"x":1,"y":1}]}]`, ErrMalformedResponse},
		{"http error", http.StatusTooManyRequests, "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := completionServer(t, tt.status, tt.content)
			c := &Client{BaseURL: srv.URL, APIKey: "sk-test"}
			res, err := c.Generate(context.Background(), Request{Prompt: "stage"})
			if err == nil {
				t.Fatal("Generate() returned no error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
			if tt.status != http.StatusOK && !strings.Contains(err.Error(), "quota exceeded") {
				t.Errorf("error = %v, want upstream message", err)
			}
			if len(res.Shapes) != 0 {
				t.Error("failed Generate() returned shapes")
			}
		})
	}
}

func TestGenerateNeedsKeyAndPrompt(t *testing.T) {
	if _, err := (&Client{}).Generate(context.Background(), Request{Prompt: "x"}); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("no key error = %v", err)
	}
	if _, err := (&Client{APIKey: "k"}).Generate(context.Background(), Request{Prompt: "  "}); !errors.Is(err, ErrEmptyPrompt) {
		t.Errorf("empty prompt error = %v", err)
	}
}

func TestParseLayoutBareArray(t *testing.T) {
	shapes, err := ParseLayout(`[{"name":"A","points":[{"x":0.1,"y":0.1},{"x":0.2,"y":0.1},{"x":0.2,"y":0.2}]}]`)
	if err != nil {
		t.Fatalf("ParseLayout() failed: %v", err)
	}
	if len(shapes) != 1 || shapes[0].Name != "A" {
		t.Errorf("shapes = %+v", shapes)
	}
}

type fakeGenerator struct {
	res Result
	err error
}

func (f fakeGenerator) Generate(context.Context, Request) (Result, error) { return f.res, f.err }

func TestHandler(t *testing.T) {
	var applied []surface.Surface
	apply := func(list []surface.Surface) []string {
		applied = list
		return []string{"surf_1"}
	}
	tri := []geom.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}}

	tests := []struct {
		name string
		gen  fakeGenerator
		body string
		code int
	}{
		{"ok", fakeGenerator{res: Result{ID: "lay_test", Shapes: []surface.Surface{{Name: "A", Points: tri}}}}, `{"prompt":"a"}`, http.StatusOK},
		{"bad body", fakeGenerator{}, `{`, http.StatusBadRequest},
		{"no key", fakeGenerator{err: ErrNoCredentials}, `{"prompt":"a"}`, http.StatusServiceUnavailable},
		{"malformed", fakeGenerator{err: ErrMalformedResponse}, `{"prompt":"a"}`, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			applied = nil
			r := mux.NewRouter()
			NewHandler(tt.gen, apply).Routes(r)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest("POST", "/assist", strings.NewReader(tt.body)))
			if rec.Code != tt.code {
				t.Errorf("status = %d, want %d", rec.Code, tt.code)
			}
			if tt.code == http.StatusOK && len(applied) != 1 {
				t.Errorf("applied %d records, want 1", len(applied))
			}
			if tt.code == http.StatusOK {
				var resp generateResponse
				if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
					t.Fatalf("decode response: %v", err)
				}
				if resp.Layout != "lay_test" || len(resp.Created) != 1 {
					t.Errorf("response = %+v", resp)
				}
			}
			if tt.code != http.StatusOK && applied != nil {
				t.Error("failed request applied records")
			}
		})
	}
}
