package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"photobooth/internal/domain"
	"photobooth/internal/middleware"
)

// pathID reads a UUID route parameter.
func (a *App) pathID(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		a.error(w, r, domain.Invalid("invalid "+name+" id"))
		return "", false
	}
	return id.String(), true
}

// EventsList returns events. Anonymous callers only ever see active ones.
func (a *App) EventsList(w http.ResponseWriter, r *http.Request) {
	svc, ok := a.tenants(w, r)
	if !ok {
		return
	}
	activeOnly, _ := strconv.ParseBool(r.URL.Query().Get("active_only"))
	if middleware.UserFromContext(r.Context()) == nil {
		activeOnly = true
	}
	events, err := svc.ListEvents(r.Context(), activeOnly)
	if err != nil {
		a.error(w, r, err)
		return
	}
	if events == nil {
		events = []domain.Event{}
	}
	a.json(w, http.StatusOK, events)
}

// EventBySlug returns the kiosk view of an event with its theme and prompts.
func (a *App) EventBySlug(w http.ResponseWriter, r *http.Request) {
	svc, ok := a.tenants(w, r)
	if !ok {
		return
	}
	anonymous := middleware.UserFromContext(r.Context()) == nil
	ev, err := svc.EventBySlug(r.Context(), chi.URLParam(r, "event"), anonymous)
	if err != nil {
		a.error(w, r, err)
		return
	}
	a.json(w, http.StatusOK, ev)
}

func (a *App) EventCreate(w http.ResponseWriter, r *http.Request) {
	svc, ok := a.tenants(w, r)
	if !ok {
		return
	}
	var in domain.EventInput
	if !a.decode(w, r, &in) {
		return
	}
	var createdBy string
	if u := middleware.UserFromContext(r.Context()); u != nil {
		createdBy = u.ID
	}
	ev, err := svc.CreateEvent(r.Context(), in, createdBy)
	if err != nil {
		a.error(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, ev)
}

func (a *App) EventUpdate(w http.ResponseWriter, r *http.Request) {
	svc, ok := a.tenants(w, r)
	if !ok {
		return
	}
	id, ok := a.pathID(w, r, "event")
	if !ok {
		return
	}
	var patch domain.EventPatch
	if !a.decode(w, r, &patch) {
		return
	}
	ev, err := svc.UpdateEvent(r.Context(), id, patch)
	if err != nil {
		a.error(w, r, err)
		return
	}
	a.json(w, http.StatusOK, ev)
}

func (a *App) EventDelete(w http.ResponseWriter, r *http.Request) {
	svc, ok := a.tenants(w, r)
	if !ok {
		return
	}
	id, ok := a.pathID(w, r, "event")
	if !ok {
		return
	}
	if err := svc.DeleteEvent(r.Context(), id); err != nil {
		a.error(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"message": "Event deleted successfully"})
}

func (a *App) ThemeGet(w http.ResponseWriter, r *http.Request) {
	svc, ok := a.tenants(w, r)
	if !ok {
		return
	}
	id, ok := a.pathID(w, r, "event")
	if !ok {
		return
	}
	theme, err := svc.Theme(r.Context(), id)
	if err != nil {
		a.error(w, r, err)
		return
	}
	a.json(w, http.StatusOK, theme)
}

// ThemePut creates or replaces the theme; omitted colors get the defaults.
func (a *App) ThemePut(w http.ResponseWriter, r *http.Request) {
	svc, ok := a.tenants(w, r)
	if !ok {
		return
	}
	id, ok := a.pathID(w, r, "event")
	if !ok {
		return
	}
	var in domain.ThemeInput
	if !a.decode(w, r, &in) {
		return
	}
	theme, err := svc.UpsertTheme(r.Context(), id, in)
	if err != nil {
		a.error(w, r, err)
		return
	}
	a.json(w, http.StatusOK, theme)
}

func (a *App) EventStats(w http.ResponseWriter, r *http.Request) {
	svc, ok := a.tenants(w, r)
	if !ok {
		return
	}
	id, ok := a.pathID(w, r, "event")
	if !ok {
		return
	}
	stats, err := svc.EventStats(r.Context(), id)
	if err != nil {
		a.error(w, r, err)
		return
	}
	a.json(w, http.StatusOK, stats)
}

func (a *App) DashboardStats(w http.ResponseWriter, r *http.Request) {
	svc, ok := a.tenants(w, r)
	if !ok {
		return
	}
	stats, err := svc.DashboardStats(r.Context())
	if err != nil {
		a.error(w, r, err)
		return
	}
	a.json(w, http.StatusOK, stats)
}
