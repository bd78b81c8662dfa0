package api

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
)

// assetRecord tracks one reserved slot inside the stub backend.
type assetRecord struct {
	projectID string
	filename  string
	mime      string
	declared  int64
	token     string
	data      []byte
	sha256    string
	received  bool
	finalized bool
}

// StubServer is an in-memory implementation of the Arciva upload and catalog
// protocol. It backs the api tests and the `arciva-import` development mode;
// it is not a substitute for the real backend.
type StubServer struct {
	mu       sync.Mutex
	assets   map[string]*assetRecord
	bySHA    map[string]string // sha256 -> first finalized asset id
	catalog  map[string][]CatalogEntry
	files    map[string][]byte
	maxBytes int64
}

// NewStubServer creates an empty stub backend. maxBytes bounds a single
// upload; zero means unbounded.
func NewStubServer(maxBytes int64) *StubServer {
	return &StubServer{
		assets:   make(map[string]*assetRecord),
		bySHA:    make(map[string]string),
		catalog:  make(map[string][]CatalogEntry),
		files:    make(map[string][]byte),
		maxBytes: maxBytes,
	}
}

// AddCatalogEntry seeds a remote catalog node under the given parent id.
// File entries should also register their bytes via AddCatalogFile.
func (s *StubServer) AddCatalogEntry(parentID string, entry CatalogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog[parentID] = append(s.catalog[parentID], entry)
}

// AddCatalogFile registers the byte content served for a catalog file id.
func (s *StubServer) AddCatalogFile(fileID string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[fileID] = data
}

// FinalizedAssets returns the ids of all committed assets, for assertions.
func (s *StubServer) FinalizedAssets() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0)
	for id, rec := range s.assets {
		if rec.finalized {
			ids = append(ids, id)
		}
	}
	return ids
}

// Handler returns the HTTP handler exposing the protocol endpoints.
func (s *StubServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/projects/{project}/uploads/init", s.handleInit)
	mux.HandleFunc("PUT /v1/uploads/{asset}", s.handleUpload)
	mux.HandleFunc("POST /v1/uploads/complete", s.handleComplete)
	mux.HandleFunc("GET /v1/projects/{project}/catalog", s.handleCatalog)
	mux.HandleFunc("GET /v1/catalog/files/{file}", s.handleCatalogFile)
	return mux
}

func (s *StubServer) handleInit(w http.ResponseWriter, r *http.Request) {
	var in uploadInitIn
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpError(w, http.StatusBadRequest, "malformed init payload")
		return
	}
	if in.Filename == "" || in.SizeBytes < 0 {
		httpError(w, http.StatusUnprocessableEntity, "invalid filename or size")
		return
	}
	if s.maxBytes > 0 && in.SizeBytes > s.maxBytes {
		httpError(w, http.StatusRequestEntityTooLarge, "file exceeds upload quota")
		return
	}

	rec := &assetRecord{
		projectID: r.PathValue("project"),
		filename:  in.Filename,
		mime:      in.Mime,
		declared:  in.SizeBytes,
		token:     uuid.New().String(),
	}
	id := uuid.New().String()

	s.mu.Lock()
	s.assets[id] = rec
	s.mu.Unlock()

	slog.Debug("stub: reserved upload slot", "asset", id, "filename", in.Filename, "size", in.SizeBytes)

	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(uploadInitOut{AssetID: id, UploadToken: rec.token, MaxBytes: in.SizeBytes})
}

func (s *StubServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("asset")

	s.mu.Lock()
	rec, ok := s.assets[id]
	s.mu.Unlock()

	if !ok {
		httpError(w, http.StatusNotFound, "asset not found")
		return
	}
	if r.Header.Get(uploadTokenHeader) != rec.token {
		httpError(w, http.StatusUnauthorized, "invalid upload token")
		return
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		httpError(w, http.StatusBadRequest, "interrupted byte stream")
		return
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		httpError(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}

	sum := sha256.Sum256(data)
	sha := hex.EncodeToString(sum[:])

	s.mu.Lock()
	rec.data = data
	rec.sha256 = sha
	rec.received = true
	_, duplicate := s.bySHA[sha]
	s.mu.Unlock()

	_ = json.NewEncoder(w).Encode(uploadFileOut{OK: true, Bytes: int64(len(data)), SHA256: sha, Duplicate: duplicate})
}

func (s *StubServer) handleComplete(w http.ResponseWriter, r *http.Request) {
	var in uploadCompleteIn
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httpError(w, http.StatusBadRequest, "malformed complete payload")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.assets[in.AssetID]
	if !ok {
		httpError(w, http.StatusBadRequest, "no upload in progress")
		return
	}
	if !rec.received {
		httpError(w, http.StatusBadRequest, "bytes not yet transferred")
		return
	}

	if existing, dup := s.bySHA[rec.sha256]; dup && existing != in.AssetID {
		if !in.IgnoreDuplicates {
			w.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(w).Encode(uploadCompleteOut{Status: string(FinalizeDuplicate), DuplicateAssetID: existing})
			return
		}
		// Duplicate adopted: the original asset survives, this slot is dropped.
		delete(s.assets, in.AssetID)
		_ = json.NewEncoder(w).Encode(uploadCompleteOut{Status: string(FinalizeDuplicate), AssetID: existing})
		return
	}

	rec.finalized = true
	s.bySHA[rec.sha256] = in.AssetID

	slog.Debug("stub: finalized asset", "asset", in.AssetID, "bytes", len(rec.data))

	_ = json.NewEncoder(w).Encode(uploadCompleteOut{Status: string(FinalizeQueued), AssetID: in.AssetID})
}

func (s *StubServer) handleCatalog(w http.ResponseWriter, r *http.Request) {
	parent := r.URL.Query().Get("parent")

	s.mu.Lock()
	entries := make([]CatalogEntry, len(s.catalog[parent]))
	copy(entries, s.catalog[parent])
	s.mu.Unlock()

	_ = json.NewEncoder(w).Encode(catalogListOut{Entries: entries})
}

func (s *StubServer) handleCatalogFile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("file")

	s.mu.Lock()
	data, ok := s.files[id]
	s.mu.Unlock()

	if !ok {
		httpError(w, http.StatusNotFound, "catalog file not found")
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(data)
}

func httpError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
