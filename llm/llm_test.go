package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sokcho-kim/docmask/mask"
)

func chatReply(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{
				"message":       map[string]any{"content": content},
				"finish_reason": "stop",
			},
		},
	})
	return string(b)
}

func newTestClassifier(t *testing.T, handler http.HandlerFunc) *Classifier {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL, Model: "test-model"})
	require.NoError(t, err)
	return c
}

func TestNewValidation(t *testing.T) {
	tcs := []struct {
		name string
		cfg  Config
	}{
		{name: "missing base url", cfg: Config{Model: "m"}},
		{name: "missing model", cfg: Config{BaseURL: "http://localhost"}},
		{name: "negative timeout", cfg: Config{BaseURL: "http://localhost", Model: "m", Timeout: -1}},
	}
	for _, tc := range tcs {
		_, err := New(tc.cfg)
		assert.Error(t, err, tc.name)
	}
}

func TestClassify(t *testing.T) {
	var gotReq chatRequest
	c := newTestClassifier(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		fmt.Fprint(w, chatReply(`{"email": ["a@x.com"], "rrn": ["123456-1234567"]}`))
	})

	got, err := c.Classify(context.Background(), "mail a@x.com rrn 123456-1234567",
		[]mask.Category{mask.CategoryEmail, mask.CategoryRRN})
	require.NoError(t, err)

	assert.Equal(t, map[mask.Category][]string{
		mask.CategoryEmail: {"a@x.com"},
		mask.CategoryRRN:   {"123456-1234567"},
	}, got)

	assert.Equal(t, "test-model", gotReq.Model)
	assert.Zero(t, gotReq.Temperature)
	require.Len(t, gotReq.Messages, 2)
	assert.Equal(t, "system", gotReq.Messages[0].Role)
	assert.Equal(t, "user", gotReq.Messages[1].Role)
	assert.Contains(t, gotReq.Messages[1].Content, "email")
	assert.Contains(t, gotReq.Messages[1].Content, "rrn")
	assert.Contains(t, gotReq.Messages[1].Content, "mail a@x.com")
}

func TestClassifyStripsThinkBlock(t *testing.T) {
	c := newTestClassifier(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatReply("<think>let me look for emails</think>{\"email\": [\"a@x.com\"]}"))
	})

	got, err := c.Classify(context.Background(), "text", []mask.Category{mask.CategoryEmail})
	require.NoError(t, err)
	assert.Equal(t, map[mask.Category][]string{mask.CategoryEmail: {"a@x.com"}}, got)
}

func TestClassifyStripsCodeFence(t *testing.T) {
	c := newTestClassifier(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatReply("```json\n{\"email\": [\"a@x.com\"]}\n```"))
	})

	got, err := c.Classify(context.Background(), "text", []mask.Category{mask.CategoryEmail})
	require.NoError(t, err)
	assert.Equal(t, map[mask.Category][]string{mask.CategoryEmail: {"a@x.com"}}, got)
}

func TestClassifyReasoningFallback(t *testing.T) {
	c := newTestClassifier(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := json.Marshal(map[string]any{
			"choices": []map[string]any{
				{
					"message": map[string]any{
						"content":   "",
						"reasoning": `the answer is {"email": ["a@x.com"]}`,
					},
					"finish_reason": "stop",
				},
			},
		})
		w.Write(b)
	})

	got, err := c.Classify(context.Background(), "text", []mask.Category{mask.CategoryEmail})
	require.NoError(t, err)
	assert.Equal(t, map[mask.Category][]string{mask.CategoryEmail: {"a@x.com"}}, got)
}

func TestClassifyDropsUnrequestedCategories(t *testing.T) {
	c := newTestClassifier(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatReply(`{"email": ["a@x.com"], "ssn": ["000-00-0000"], "phone": ["010-1234-5678"]}`))
	})

	got, err := c.Classify(context.Background(), "text", []mask.Category{mask.CategoryEmail})
	require.NoError(t, err)
	assert.Equal(t, map[mask.Category][]string{mask.CategoryEmail: {"a@x.com"}}, got)
}

func TestClassifyEmptyObject(t *testing.T) {
	c := newTestClassifier(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatReply("{}"))
	})

	got, err := c.Classify(context.Background(), "nothing sensitive", []mask.Category{mask.CategoryEmail})
	require.NoError(t, err, "an empty result from a healthy exchange is not a failure")
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

func TestClassifyBadStatus(t *testing.T) {
	c := newTestClassifier(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusInternalServerError)
	})

	_, err := c.Classify(context.Background(), "text", []mask.Category{mask.CategoryEmail})
	require.Error(t, err)

	var stErr StatusError
	assert.True(t, errors.As(err, &stErr))
	assert.Contains(t, err.Error(), "status=500")
}

func TestClassifyUnparseableOutput(t *testing.T) {
	c := newTestClassifier(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatReply("I could not find anything, sorry!"))
	})

	_, err := c.Classify(context.Background(), "text", []mask.Category{mask.CategoryEmail})
	require.Error(t, err)

	var pErr ParseError
	assert.True(t, errors.As(err, &pErr))
}

func TestClassifyNoChoices(t *testing.T) {
	c := newTestClassifier(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices": []}`)
	})

	_, err := c.Classify(context.Background(), "text", []mask.Category{mask.CategoryEmail})
	require.Error(t, err)
}

func TestClassifySendsAPIKey(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, chatReply("{}"))
	}))
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL, Model: "m", APIKey: "test-key"})
	require.NoError(t, err)

	_, err = c.Classify(context.Background(), "text", []mask.Category{mask.CategoryEmail})
	require.NoError(t, err)
	assert.Equal(t, "Bearer test-key", gotAuth)
}

func TestClassifySkipsEmptyInput(t *testing.T) {
	calls := 0
	c := newTestClassifier(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, chatReply("{}"))
	})

	got, err := c.Classify(context.Background(), "   \n\t", []mask.Category{mask.CategoryEmail})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = c.Classify(context.Background(), "real text", nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	assert.Zero(t, calls, "blank text and empty category sets never reach the model")
}

func TestClassifyBaseURLTrailingSlash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		fmt.Fprint(w, chatReply("{}"))
	}))
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL + "/", Model: "m"})
	require.NoError(t, err)

	_, err = c.Classify(context.Background(), "text", []mask.Category{mask.CategoryEmail})
	require.NoError(t, err)
}

func TestStripHelpers(t *testing.T) {
	tcs := []struct {
		name   string
		in     string
		expect string
	}{
		{
			name:   "unclosed think block",
			in:     "<think>still going",
			expect: "",
		},
		{
			name:   "think block in the middle",
			in:     "a<think>b</think>c",
			expect: "ac",
		},
		{
			name:   "no think block",
			in:     "plain",
			expect: "plain",
		},
	}
	for _, tc := range tcs {
		assert.Equal(t, tc.expect, stripThinkBlock(tc.in), tc.name)
	}

	assert.Equal(t, `{"a":1}`, stripCodeFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFence(`{"a":1}`))

	assert.Equal(t, `{"a":1}`, extractJSONObject(`noise {"a":1} noise`))
	assert.Equal(t, "no braces", extractJSONObject("no braces"))
}
