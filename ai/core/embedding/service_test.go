package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func embeddingServer(t *testing.T, reverse bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		items := make([]string, len(req.Input))
		for i := range req.Input {
			items[i] = fmt.Sprintf(`{"object":"embedding","index":%d,"embedding":[%d,0.5]}`, i, i)
		}
		if reverse {
			for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
				items[i], items[j] = items[j], items[i]
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"object":"list","model":%q,"data":[%s]}`, req.Model, strings.Join(items, ","))
	}))
}

func TestNewService(t *testing.T) {
	_, err := NewService(nil)
	assert.Error(t, err)

	_, err = NewService(&Config{})
	assert.Error(t, err)

	svc, err := NewService(&Config{Model: "BAAI/bge-m3", Dimensions: 1024})
	require.NoError(t, err)
	assert.Equal(t, 1024, svc.Dimensions())
	assert.Equal(t, "BAAI/bge-m3", svc.Model())
}

func TestService_Embed(t *testing.T) {
	srv := embeddingServer(t, false)
	defer srv.Close()

	svc, err := NewService(&Config{Model: "m", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	vec, err := svc.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0.5}, vec)
}

func TestService_EmbedBatchOrdersByIndex(t *testing.T) {
	srv := embeddingServer(t, true)
	defer srv.Close()

	svc, err := NewService(&Config{Model: "m", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	vecs, err := svc.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for i, v := range vecs {
		assert.InDelta(t, float64(i), float64(v[0]), 1e-6)
	}
}

func TestService_EmbedBatchErrors(t *testing.T) {
	svc, err := NewService(&Config{Model: "m", BaseURL: "http://127.0.0.1:1"})
	require.NoError(t, err)

	_, err = svc.EmbedBatch(context.Background(), nil)
	assert.Error(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer srv.Close()

	svc, err = NewService(&Config{Model: "m", BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = svc.Embed(context.Background(), "x")
	assert.Error(t, err)
}
