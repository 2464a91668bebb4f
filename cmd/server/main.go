// Command server exposes the Recommender over HTTP: POST /api/recommend
// and GET /api/health. Wiring order and middleware stack follow the
// teacher's server/main.go (config -> stores/services -> handlers ->
// routes -> middleware -> cors -> ListenAndServe).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"rhythmai/config"
	"rhythmai/internal/crypto"
	"rhythmai/internal/embedder"
	"rhythmai/internal/emotion"
	"rhythmai/internal/memory"
	"rhythmai/internal/prototypes"
	"rhythmai/internal/recommender"
	"rhythmai/internal/sentiment"
	"rhythmai/internal/vectorstore"
	"rhythmai/internal/vectorstore/open"
	"rhythmai/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	emb := embedder.New(cfg.Embedding.ModelID, cfg.Store.Dim)

	store, err := open.Open(vectorstore.Kind(cfg.Store.Kind), cfg.Store.Path, cfg.Store.Dim)
	if err != nil {
		log.Fatal("Failed to open vector store:", err)
	}
	defer store.Close()

	protoCache := prototypes.New(cfg.DataDir+"/.cache", emb, prototypes.KeywordGroups)
	protoSet, err := protoCache.Load(context.Background())
	if err != nil {
		log.Fatal("Failed to build prototype cache:", err)
	}

	clf := sentiment.New(cfg.Emotion.ModelID)
	analyzer := emotion.New(clf, emb, protoSet)

	enc, err := crypto.New(cfg.Encryption.MasterKey)
	if err != nil {
		log.Fatal("Failed to construct encryptor:", err)
	}

	contextFor := func(userID string) *memory.ContextManager {
		return memory.NewContextManager(cfg.Memory.Dir, userID, cfg.Memory.MaxConversationLen, cfg.Memory.Window, enc)
	}

	rec := recommender.New(analyzer, emb, store, contextFor, recommender.DefaultOptions)

	router := setupRoutes(rec)
	handler := middleware.Recovery(router)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Printf("Server starting on %s", addr)
	if err := http.ListenAndServe(addr, c.Handler(handler)); err != nil {
		log.Fatal("Server failed to start:", err)
	}
}

func setupRoutes(rec *recommender.Recommender) *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/recommend", recommendHandler(rec)).Methods("POST")
	api.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	}).Methods("GET")

	return r
}

type recommendRequest struct {
	UserID    string `json:"user_id"`
	Text      string `json:"text"`
	K         int    `json:"k"`
	Randomize bool   `json:"randomize"`
}

func recommendHandler(rec *recommender.Recommender) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req recommendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.UserID == "" || req.Text == "" {
			http.Error(w, "user_id and text are required", http.StatusBadRequest)
			return
		}

		bundle := rec.Recommend(r.Context(), req.UserID, req.Text, req.K, req.Randomize)

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(bundle); err != nil {
			log.Printf("recommend handler: failed to encode response: %v", err)
		}
	}
}
