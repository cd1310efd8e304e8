package handlers

import (
	"net/http"

	"photobooth/internal/domain"
)

// PromptsList returns every prompt of an event ordered for display.
func (a *App) PromptsList(w http.ResponseWriter, r *http.Request) {
	svc, ok := a.tenants(w, r)
	if !ok {
		return
	}
	eventID, ok := a.pathID(w, r, "event")
	if !ok {
		return
	}
	prompts, err := svc.Prompts(r.Context(), eventID)
	if err != nil {
		a.error(w, r, err)
		return
	}
	if prompts == nil {
		prompts = []domain.EventPrompt{}
	}
	a.json(w, http.StatusOK, prompts)
}

func (a *App) PromptGet(w http.ResponseWriter, r *http.Request) {
	svc, ok := a.tenants(w, r)
	if !ok {
		return
	}
	id, ok := a.pathID(w, r, "prompt")
	if !ok {
		return
	}
	p, err := svc.Prompt(r.Context(), id)
	if err != nil {
		a.error(w, r, err)
		return
	}
	a.json(w, http.StatusOK, p)
}

func (a *App) PromptCreate(w http.ResponseWriter, r *http.Request) {
	svc, ok := a.tenants(w, r)
	if !ok {
		return
	}
	eventID, ok := a.pathID(w, r, "event")
	if !ok {
		return
	}
	var in domain.PromptInput
	if !a.decode(w, r, &in) {
		return
	}
	p, err := svc.CreatePrompt(r.Context(), eventID, in)
	if err != nil {
		a.error(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, p)
}

func (a *App) PromptUpdate(w http.ResponseWriter, r *http.Request) {
	svc, ok := a.tenants(w, r)
	if !ok {
		return
	}
	id, ok := a.pathID(w, r, "prompt")
	if !ok {
		return
	}
	var patch domain.PromptPatch
	if !a.decode(w, r, &patch) {
		return
	}
	p, err := svc.UpdatePrompt(r.Context(), id, patch)
	if err != nil {
		a.error(w, r, err)
		return
	}
	a.json(w, http.StatusOK, p)
}

func (a *App) PromptDelete(w http.ResponseWriter, r *http.Request) {
	svc, ok := a.tenants(w, r)
	if !ok {
		return
	}
	id, ok := a.pathID(w, r, "prompt")
	if !ok {
		return
	}
	if err := svc.DeletePrompt(r.Context(), id); err != nil {
		a.error(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"message": "Prompt deleted successfully"})
}

// PromptDuplicate copies a prompt under the next free <key>_copyN key.
func (a *App) PromptDuplicate(w http.ResponseWriter, r *http.Request) {
	svc, ok := a.tenants(w, r)
	if !ok {
		return
	}
	id, ok := a.pathID(w, r, "prompt")
	if !ok {
		return
	}
	p, err := svc.DuplicatePrompt(r.Context(), id)
	if err != nil {
		a.error(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, p)
}
