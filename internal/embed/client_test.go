package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type embeddingData struct {
	Object    string    `json:"object"`
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type embeddingsResponse struct {
	Object string          `json:"object"`
	Data   []embeddingData `json:"data"`
	Model  string          `json:"model"`
}

func embeddingServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(handler))
	t.Cleanup(server.Close)
	return server
}

func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:8080", "test-key", "text-embedding-3-small", 1536)
	if client == nil {
		t.Fatal("NewClient() returned nil")
	}
	if client.Model != "text-embedding-3-small" {
		t.Errorf("NewClient() Model = %v, want text-embedding-3-small", client.Model)
	}
	if client.ExpectedSize != 1536 {
		t.Errorf("NewClient() ExpectedSize = %v, want 1536", client.ExpectedSize)
	}
}

func TestClient_EmbedTexts(t *testing.T) {
	tests := []struct {
		name         string
		texts        []string
		expectedSize int
		serverResp   func(w http.ResponseWriter, r *http.Request)
		wantErr      bool
		wantCount    int
	}{
		{
			name:         "successful embedding",
			texts:        []string{"Hello", "World"},
			expectedSize: 8,
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("expected POST, got %s", r.Method)
				}
				if r.URL.Path != "/v1/embeddings" {
					t.Errorf("expected /v1/embeddings, got %s", r.URL.Path)
				}
				resp := embeddingsResponse{
					Object: "list",
					Data: []embeddingData{
						{Object: "embedding", Embedding: make([]float32, 8), Index: 0},
						{Object: "embedding", Embedding: make([]float32, 8), Index: 1},
					},
				}
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(resp)
			},
			wantCount: 2,
		},
		{
			name:         "empty input",
			texts:        []string{},
			expectedSize: 8,
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				t.Error("server should not be called for empty input")
			},
			wantErr: true,
		},
		{
			name:         "wrong embedding count",
			texts:        []string{"Hello", "World"},
			expectedSize: 8,
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				resp := embeddingsResponse{
					Object: "list",
					Data: []embeddingData{
						{Object: "embedding", Embedding: make([]float32, 8), Index: 0},
					},
				}
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(resp)
			},
			wantErr: true,
		},
		{
			name:         "wrong vector size",
			texts:        []string{"Hello"},
			expectedSize: 8,
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				resp := embeddingsResponse{
					Object: "list",
					Data: []embeddingData{
						{Object: "embedding", Embedding: make([]float32, 4), Index: 0},
					},
				}
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(resp)
			},
			wantErr: true,
		},
		{
			name:         "server error",
			texts:        []string{"Hello"},
			expectedSize: 8,
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":{"message":"internal server error"}}`))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := embeddingServer(t, tt.serverResp)

			client := NewClient(server.URL, "test-key", "test-model", tt.expectedSize)
			embeddings, err := client.EmbedTexts(context.Background(), tt.texts)

			if tt.wantErr {
				if err == nil {
					t.Error("EmbedTexts() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Errorf("EmbedTexts() unexpected error: %v", err)
				return
			}
			if len(embeddings) != tt.wantCount {
				t.Errorf("EmbedTexts() returned %d embeddings, want %d", len(embeddings), tt.wantCount)
			}
			for i, emb := range embeddings {
				if len(emb) != tt.expectedSize {
					t.Errorf("EmbedTexts() embedding[%d] size = %d, want %d", i, len(emb), tt.expectedSize)
				}
			}
		})
	}
}

func TestClient_EmbedTexts_OrdersByIndex(t *testing.T) {
	server := embeddingServer(t, func(w http.ResponseWriter, r *http.Request) {
		// Out-of-order data entries must land at their declared index
		resp := embeddingsResponse{
			Object: "list",
			Data: []embeddingData{
				{Object: "embedding", Embedding: []float32{2, 2}, Index: 1},
				{Object: "embedding", Embedding: []float32{1, 1}, Index: 0},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})

	client := NewClient(server.URL, "test-key", "test-model", 2)
	embeddings, err := client.EmbedQuery(context.Background(), "only used for the request")
	if err == nil && embeddings != nil {
		t.Fatal("EmbedQuery() with two data entries for one input should fail count validation")
	}

	vecs, err := client.EmbedTexts(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("EmbedTexts() error = %v", err)
	}
	if vecs[0][0] != 1 || vecs[1][0] != 2 {
		t.Errorf("EmbedTexts() order = [%v, %v], want index-ordered [1, 2]", vecs[0][0], vecs[1][0])
	}
}

func TestClient_EmbedQuery(t *testing.T) {
	server := embeddingServer(t, func(w http.ResponseWriter, r *http.Request) {
		resp := embeddingsResponse{
			Object: "list",
			Data: []embeddingData{
				{Object: "embedding", Embedding: []float32{1.5, 2.5, 3.5}, Index: 0},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})

	client := NewClient(server.URL, "test-key", "test-model", 3)
	vec, err := client.EmbedQuery(context.Background(), "budget planning")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	if len(vec) != 3 || vec[0] != 1.5 {
		t.Errorf("EmbedQuery() = %v, want [1.5 2.5 3.5]", vec)
	}
}
