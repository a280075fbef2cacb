package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/conorfennell/prepcards/internal/cardstore"
	"github.com/conorfennell/prepcards/internal/config"
	"github.com/conorfennell/prepcards/internal/gitsource"
	"github.com/conorfennell/prepcards/internal/logger"
	"github.com/conorfennell/prepcards/internal/storage"
	"github.com/conorfennell/prepcards/internal/study"
	"github.com/conorfennell/prepcards/internal/sync"
)

var now = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

const cardsDoc = `{"cards": [
  {"id": 1, "category": "sql", "question": "LEFT JOIN?", "answer": "All left rows", "next_review": null},
  {"id": 2, "category": "python", "question": "GIL?", "answer": "Interpreter lock", "next_review": null},
  {"id": 3, "category": "python", "question": "Walrus?", "answer": "Assignment expression",
   "repetitions": 1, "interval": 1, "ease_factor": 2.5, "confidence": 4,
   "last_reviewed": "2026-03-10T08:00:00Z", "next_review": "2026-03-11T08:00:00Z"}
]}`

type testServer struct {
	*Server
	cardsPath string
	store     *cardstore.Store
	db        *storage.DB
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	cardsPath := filepath.Join(dir, "cards.json")
	if err := os.WriteFile(cardsPath, []byte(cardsDoc), 0o644); err != nil {
		t.Fatalf("write cards: %v", err)
	}
	store, err := cardstore.Open(config.CardsConfig{Path: cardsPath, DefaultEase: 2.5, Timezone: "UTC"}, logger.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	db, err := storage.Open(filepath.Join(dir, "progress.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	log := logger.Nop()
	svc := study.NewService(store, db, log)
	syncer := sync.New(db, store, gitsource.New(log), filepath.Join(dir, "repos"), log)
	srv, err := NewServer(svc, syncer, log)
	if err != nil {
		t.Fatalf("NewServer() failed: %v", err)
	}
	srv.now = func() time.Time { return now }
	return &testServer{Server: srv, cardsPath: cardsPath, store: store, db: db}
}

func (ts *testServer) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

type cardsResponse struct {
	Cards []struct {
		ID       int    `json:"id"`
		Category string `json:"category"`
	} `json:"cards"`
	Count int `json:"count"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

func TestListCards(t *testing.T) {
	ts := newTestServer(t)

	testCases := []struct {
		target string
		count  int
	}{
		{"/api/flashcards", 3},
		{"/api/flashcards?category=python", 2},
		{"/api/flashcards?category=go", 0},
	}
	for _, tc := range testCases {
		t.Run(tc.target, func(t *testing.T) {
			rec := ts.do(t, http.MethodGet, tc.target, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			var resp cardsResponse
			decode(t, rec, &resp)
			if resp.Count != tc.count || len(resp.Cards) != tc.count {
				t.Errorf("count = %d (%d cards), want %d", resp.Count, len(resp.Cards), tc.count)
			}
		})
	}
}

func TestDueCards(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/flashcards/due", "")
	var resp cardsResponse
	decode(t, rec, &resp)
	if resp.Count != 2 {
		t.Fatalf("due count = %d, want 2", resp.Count)
	}
	seen := map[int]bool{}
	for _, c := range resp.Cards {
		seen[c.ID] = true
	}
	if !seen[1] || !seen[2] {
		t.Errorf("Unexpected due cards: %+v", resp.Cards)
	}

	rec = ts.do(t, http.MethodGet, "/api/flashcards/due?category=python&limit=5", "")
	decode(t, rec, &resp)
	if resp.Count != 1 || resp.Cards[0].ID != 2 {
		t.Errorf("python due = %+v", resp)
	}

	rec = ts.do(t, http.MethodGet, "/api/flashcards/due?limit=-1", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("negative limit status = %d, want 400", rec.Code)
	}
}

func TestPostReview(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/flashcards/review", `{"card_id": 1, "quality": 5}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Success    bool      `json:"success"`
		NextReview time.Time `json:"next_review"`
	}
	decode(t, rec, &resp)
	if !resp.Success || !resp.NextReview.Equal(now.AddDate(0, 0, 1)) {
		t.Errorf("Unexpected response: %+v", resp)
	}

	card, err := ts.store.Get(1)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if card.Repetitions != 1 || card.Confidence != 5 {
		t.Errorf("Card not updated: %+v", card)
	}

	// The due list no longer contains the reviewed card.
	rec = ts.do(t, http.MethodGet, "/api/flashcards/due", "")
	var due cardsResponse
	decode(t, rec, &due)
	if due.Count != 1 {
		t.Errorf("due count after review = %d, want 1", due.Count)
	}
}

func TestPostReviewErrors(t *testing.T) {
	ts := newTestServer(t)
	before, err := os.ReadFile(ts.cardsPath)
	if err != nil {
		t.Fatalf("read document: %v", err)
	}

	testCases := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"malformed json", `{"card_id":`, http.StatusBadRequest, "invalid_body"},
		{"missing quality", `{"card_id": 1}`, http.StatusBadRequest, "invalid_body"},
		{"quality too high", `{"card_id": 1, "quality": 6}`, http.StatusBadRequest, "invalid_rating"},
		{"negative quality", `{"card_id": 1, "quality": -1}`, http.StatusBadRequest, "invalid_rating"},
		{"unknown card", `{"card_id": 42, "quality": 3}`, http.StatusNotFound, "not_found"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/flashcards/review", tc.body)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
			var resp errorResponse
			decode(t, rec, &resp)
			if resp.Error.Code != tc.code || resp.Error.Message == "" {
				t.Errorf("error = %+v, want code %q", resp.Error, tc.code)
			}
		})
	}

	after, err := os.ReadFile(ts.cardsPath)
	if err != nil {
		t.Fatalf("read document: %v", err)
	}
	if string(before) != string(after) {
		t.Error("Rejected reviews must not touch the document")
	}
}

func TestPostReviewPersistenceFailure(t *testing.T) {
	ts := newTestServer(t)
	if err := os.RemoveAll(filepath.Dir(ts.cardsPath)); err != nil {
		t.Fatalf("remove dir: %v", err)
	}

	rec := ts.do(t, http.MethodPost, "/api/flashcards/review", `{"card_id": 1, "quality": 4}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	card, err := ts.store.Get(1)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if card.NextReview != nil || card.Repetitions != 0 {
		t.Errorf("Card must be unchanged after a failed save: %+v", card)
	}
}

func TestReadEndpoints(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/flashcards/categories", "")
	var cats struct {
		Categories []string `json:"categories"`
	}
	decode(t, rec, &cats)
	if strings.Join(cats.Categories, ",") != "python,sql" {
		t.Errorf("categories = %v", cats.Categories)
	}

	rec = ts.do(t, http.MethodGet, "/api/flashcards/stats", "")
	var stats struct {
		Total    int `json:"total"`
		Due      int `json:"due"`
		Mastered int `json:"mastered"`
	}
	decode(t, rec, &stats)
	if stats.Total != 3 || stats.Due != 2 || stats.Mastered != 1 {
		t.Errorf("stats = %+v", stats)
	}

	ts.do(t, http.MethodPost, "/api/flashcards/review", `{"card_id": 2, "quality": 2}`)
	rec = ts.do(t, http.MethodGet, "/api/progress", "")
	var progress struct {
		Reviews struct {
			TotalReviews int            `json:"total_reviews"`
			ByCategory   map[string]int `json:"by_category"`
		} `json:"reviews"`
	}
	decode(t, rec, &progress)
	if progress.Reviews.TotalReviews != 1 || progress.Reviews.ByCategory["python"] != 1 {
		t.Errorf("progress = %+v", progress)
	}
}

func TestDeckPage(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "2 due") || !strings.Contains(body, `data-category="python"`) {
		t.Errorf("Unexpected deck page:\n%s", body)
	}

	rec = ts.do(t, http.MethodGet, "/static/app.js", "")
	if rec.Code != http.StatusOK {
		t.Errorf("static asset status = %d", rec.Code)
	}
}

func TestSourceRoutes(t *testing.T) {
	ts := newTestServer(t)
	decks := t.TempDir()
	if err := os.WriteFile(filepath.Join(decks, "sql.md"), []byte("Q: What is a CTE?\nA: A named subquery\n"), 0o644); err != nil {
		t.Fatalf("write deck: %v", err)
	}

	body, _ := json.Marshal(map[string]string{"path": decks})
	rec := ts.do(t, http.MethodPost, "/api/sources", string(body))
	if rec.Code != http.StatusCreated {
		t.Fatalf("add source status = %d, body %s", rec.Code, rec.Body.String())
	}
	var src storage.Source
	decode(t, rec, &src)

	rec = ts.do(t, http.MethodPost, "/api/sources", `{"path": ""}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty path status = %d, want 400", rec.Code)
	}

	rec = ts.do(t, http.MethodPost, "/api/sync", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("sync status = %d, body %s", rec.Code, rec.Body.String())
	}
	if n := len(ts.store.List("")); n != 4 {
		t.Errorf("cards after sync = %d, want 4", n)
	}

	rec = ts.do(t, http.MethodGet, "/api/sources", "")
	var list struct {
		Sources []storage.Source `json:"sources"`
	}
	decode(t, rec, &list)
	if len(list.Sources) != 1 || list.Sources[0].LastScanned == nil {
		t.Errorf("sources = %+v", list.Sources)
	}

	rec = ts.do(t, http.MethodDelete, "/api/sources/"+strconv.FormatInt(src.ID, 10), "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", rec.Code)
	}
	rec = ts.do(t, http.MethodDelete, "/api/sources/abc", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", rec.Code)
	}
}

func TestDeleteSourceErrors(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodDelete, "/api/sources/42", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown source status = %d, want 404", rec.Code)
	}

	if err := ts.db.Close(); err != nil {
		t.Fatalf("close db: %v", err)
	}
	rec = ts.do(t, http.MethodDelete, "/api/sources/1", "")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("database failure status = %d, want 500", rec.Code)
	}
	var resp errorResponse
	decode(t, rec, &resp)
	if resp.Error.Code != "internal" {
		t.Errorf("error code = %q, want internal", resp.Error.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/api/flashcards/review", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}
