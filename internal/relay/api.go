package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/faanross/simulacra_ppm/internal/netpbm"
)

// MaxUpload bounds the carrier size accepted by the HTTP API.
const MaxUpload = 32 << 20

// API is the HTTP control surface of a relay.
type API struct {
	store     Store
	logger    *log.Logger
	startTime time.Time
}

// NewAPI creates the HTTP API over store. A nil logger disables logging.
func NewAPI(store Store, logger *log.Logger) *API {
	return &API{store: store, logger: logger, startTime: time.Now()}
}

// Handler returns the routes:
//
//	POST   /carriers?name=   publish a Netpbm carrier from the request body
//	GET    /carriers         list published carriers
//	DELETE /carriers/{id}    withdraw a carrier
//	GET    /status           store statistics
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /carriers", a.handleUpload)
	mux.HandleFunc("GET /carriers", a.handleList)
	mux.HandleFunc("DELETE /carriers/{id}", a.handleRemove)
	mux.HandleFunc("GET /status", a.handleStatus)
	return mux
}

// Publish validates data as a Netpbm image and stores it.
func Publish(store Store, name string, data []byte) (*Record, error) {
	if _, err := netpbm.Decode(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("%s is not a carrier: %w", name, err)
	}
	rec, err := NewRecord(name, data)
	if err != nil {
		return nil, err
	}
	if err := store.Put(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// handleUpload publishes the request body
func (a *API) handleUpload(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		name = "upload"
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxUpload))
	if err != nil {
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	}

	rec, err := Publish(a.store, name, data)
	switch {
	case errors.Is(err, ErrExists):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusBadRequest)
		a.logf("Upload of %s rejected: %v", name, err)
		return
	}

	a.logf("📤 Published %s as %s (%d chunks)", name, rec.ID, len(rec.Chunks))
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":     rec.ID,
		"chunks": len(rec.Chunks),
		"size":   rec.Size,
	})
}

// handleList returns carrier metadata without chunk data
func (a *API) handleList(w http.ResponseWriter, r *http.Request) {
	type entry struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		Size      int       `json:"size"`
		Chunks    int       `json:"chunks"`
		Fetches   int       `json:"fetches"`
		CreatedAt time.Time `json:"created_at"`
	}

	entries := []entry{}
	for _, rec := range a.store.List() {
		entries = append(entries, entry{
			ID:        rec.ID,
			Name:      rec.Name,
			Size:      rec.Size,
			Chunks:    len(rec.Chunks),
			Fetches:   rec.Fetches,
			CreatedAt: rec.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"carriers": entries,
		"count":    len(entries),
	})
}

func (a *API) handleRemove(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := a.store.Remove(id); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	a.logf("🗑️  Removed %s", id)
	w.WriteHeader(http.StatusNoContent)
}

// handleStatus returns server statistics
func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	uptime := time.Since(a.startTime)
	writeJSON(w, http.StatusOK, map[string]any{
		"uptime_seconds":  uptime.Seconds(),
		"uptime_readable": uptime.String(),
		"stats":           a.store.Stats(),
	})
}

func (a *API) logf(format string, args ...any) {
	if a.logger != nil {
		a.logger.Printf(format, args...)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// UploadResult is the API reply to a publish.
type UploadResult struct {
	ID     string `json:"id"`
	Chunks int    `json:"chunks"`
	Size   int    `json:"size"`
}

// Upload publishes data through the HTTP API at baseURL.
func Upload(ctx context.Context, baseURL, name string, data []byte) (UploadResult, error) {
	var result UploadResult

	u := strings.TrimSuffix(baseURL, "/") + "/carriers?name=" + url.QueryEscape(name)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(data))
	if err != nil {
		return result, err
	}
	req.Header.Set("Content-Type", "image/x-portable-anymap")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return result, fmt.Errorf("HTTP upload failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
	case http.StatusConflict:
		return result, fmt.Errorf("%s: %w", name, ErrExists)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return result, fmt.Errorf("server returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return result, fmt.Errorf("failed to parse response: %w", err)
	}
	return result, nil
}
