package adapthttp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"

	"fitlog/internal/domain"
)

// flexValue accepts a JSON string or a bare number, so clients may send
// either "steps": 1200 or "steps": "1200".
type flexValue string

func (f *flexValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case string(b) == "null":
		*f = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexValue(s)
	default:
		*f = flexValue(b)
	}
	return nil
}

// entryRequest also accepts sleep_hours, the export column name.
type entryRequest struct {
	Date            string    `json:"date"`
	Steps           flexValue `json:"steps"`
	Calories        flexValue `json:"calories"`
	SleepHours      flexValue `json:"sleepHours"`
	SleepHoursSnake flexValue `json:"sleep_hours"`
	Notes           string    `json:"notes"`
}

func (e entryRequest) sleep() string {
	if e.SleepHours != "" {
		return string(e.SleepHours)
	}
	return string(e.SleepHoursSnake)
}

func formSleep(r *http.Request) string {
	if v := r.FormValue("sleep_hours"); v != "" {
		return v
	}
	return r.FormValue("sleep")
}

// readEntryInput accepts a JSON body or a classic HTML form post.
func readEntryInput(r *http.Request) (domain.EntryInput, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/x-www-form-urlencoded" || ct == "multipart/form-data" {
		if err := r.ParseMultipartForm(1 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return domain.EntryInput{}, fmt.Errorf("%w: invalid form: %v", domain.ErrValidation, err)
		}
		return domain.NewEntryInput(
			r.FormValue("date"),
			r.FormValue("steps"),
			r.FormValue("calories"),
			formSleep(r),
			r.FormValue("notes"),
		), nil
	}

	var req entryRequest
	if err := parseJSON(r, &req); err != nil {
		return domain.EntryInput{}, err
	}
	return domain.NewEntryInput(req.Date, string(req.Steps), string(req.Calories), req.sleep(), req.Notes), nil
}

func dateRange(r *http.Request) domain.DateRange {
	q := r.URL.Query()
	return domain.DateRange{Start: q.Get("start"), End: q.Get("end")}
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r)
	items, err := s.entries.ListRange(r.Context(), user.ID, dateRange(r))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r)
	in, err := readEntryInput(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	ctx := r.Context()
	id, err := s.entries.Create(ctx, user.ID, in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	entry, err := s.entries.Get(ctx, id, user.ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r)
	id, err := pathID(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	entry, err := s.entries.Get(r.Context(), id, user.ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r)
	id, err := pathID(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	in, err := readEntryInput(r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	ctx := r.Context()
	if err := s.entries.Update(ctx, id, user.ID, in); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	entry, err := s.entries.Get(ctx, id, user.ID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r)
	// Unknown ids delete nothing, same as the service.
	if id, err := pathID(r); err == nil {
		if err := s.entries.Delete(r.Context(), id, user.ID); err != nil {
			s.writeServiceError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
