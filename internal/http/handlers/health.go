package handlers

import (
	"net/http"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"options":      a.Catalog.Len(),
		"multi_tenant": a.Tenants != nil,
	})
}

// Options lists the catalog keys the kiosk can offer.
func (a *App) Options(w http.ResponseWriter, r *http.Request) {
	keys := a.Catalog.Keys()
	if keys == nil {
		keys = []string{}
	}
	a.json(w, http.StatusOK, map[string]any{"options": keys})
}
