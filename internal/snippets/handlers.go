// internal/snippets/handlers.go
package snippets

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"printhub/internal/analysis"
	"printhub/internal/assets"
	"printhub/internal/identity"
	"printhub/pkg/middleware"
	"printhub/pkg/problems"
)

// App is the HTTP surface over the orchestration layer.
// Keep it lean: shared deps only; request-scoped work uses context.
type App struct {
	svc   *Service
	rules *analysis.Client
	idp   *identity.Credentials
	log   *zap.SugaredLogger
}

func NewApp(svc *Service, rules *analysis.Client, idp *identity.Credentials, log *zap.SugaredLogger) *App {
	return &App{svc: svc, rules: rules, idp: idp, log: log}
}

// Routes mounts the snippet, rules, and user-directory endpoints.
func (a *App) Routes(r chi.Router) {
	r.Route("/snippets", func(sr chi.Router) {
		sr.Post("/", a.createSnippet)
		sr.Get("/", a.listSnippets)
		sr.Post("/format-all", a.formatAll)
		sr.Post("/lint-all", a.lintAll)
		sr.Get("/{id}", a.getSnippet)
		sr.Put("/{id}", a.updateSnippet)
		sr.Delete("/{id}", a.deleteSnippet)
		sr.Post("/{id}/share", a.shareSnippet)
	})
	r.Route("/rules", func(rr chi.Router) {
		rr.Get("/{kind}", a.getRules)
		rr.Put("/{kind}", a.saveRules)
	})
	r.Get("/users", a.searchUsers)
}

func (a *App) createSnippet(w http.ResponseWriter, r *http.Request) {
	user, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	var in CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Language) == "" {
		http.Error(w, "missing name or language", http.StatusBadRequest)
		return
	}
	sn, err := a.svc.Create(r.Context(), user, in)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, sn, http.StatusCreated)
}

func (a *App) getSnippet(w http.ResponseWriter, r *http.Request) {
	user, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	sn, err := a.svc.Get(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, sn, http.StatusOK)
}

func (a *App) updateSnippet(w http.ResponseWriter, r *http.Request) {
	user, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	var in struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	sn, err := a.svc.Update(r.Context(), user, chi.URLParam(r, "id"), in.Content)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, sn, http.StatusOK)
}

func (a *App) deleteSnippet(w http.ResponseWriter, r *http.Request) {
	user, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	if err := a.svc.Delete(r.Context(), user, chi.URLParam(r, "id")); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) shareSnippet(w http.ResponseWriter, r *http.Request) {
	user, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	var in struct {
		UserID string `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || strings.TrimSpace(in.UserID) == "" {
		http.Error(w, "missing userId", http.StatusBadRequest)
		return
	}
	if err := a.svc.Share(r.Context(), user, chi.URLParam(r, "id"), in.UserID); err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"ok": true}, http.StatusOK)
}

func (a *App) listSnippets(w http.ResponseWriter, r *http.Request) {
	user, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	list, err := a.svc.List(r.Context(), user)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, list, http.StatusOK)
}

// Bulk endpoints always answer 200 with a report, even when every item
// failed; failures live in the per-item records.
func (a *App) formatAll(w http.ResponseWriter, r *http.Request) {
	user, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, a.svc.FormatAll(r.Context(), user), http.StatusOK)
}

func (a *App) lintAll(w http.ResponseWriter, r *http.Request) {
	user, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, a.svc.LintAll(r.Context(), user), http.StatusOK)
}

func (a *App) getRules(w http.ResponseWriter, r *http.Request) {
	user, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	kind := analysis.RuleKind(chi.URLParam(r, "kind"))
	rules, err := a.rules.GetRules(r.Context(), kind, user)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, rules, http.StatusOK)
}

func (a *App) saveRules(w http.ResponseWriter, r *http.Request) {
	user, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	var in []analysis.Rule
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	kind := analysis.RuleKind(chi.URLParam(r, "kind"))
	rules, err := a.rules.SaveRules(r.Context(), kind, user, in)
	if err != nil {
		a.writeError(w, err)
		return
	}
	// The new rule set invalidates previous results for this user's snippets.
	a.svc.Reanalyze(r.Context(), user, kind)
	writeJSON(w, rules, http.StatusOK)
}

func (a *App) searchUsers(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requireUser(w, r); !ok {
		return
	}
	users, err := a.idp.SearchUsers(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, users, http.StatusOK)
}

func (a *App) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	user := middleware.UserFrom(r.Context())
	if user == "" {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return "", false
	}
	return user, true
}

// writeError maps service errors onto distinct HTTP shapes: not-found,
// forbidden, invalid content, and downstream trouble each look different
// to the caller.
func (a *App) writeError(w http.ResponseWriter, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, map[string]any{
			"type":    problems.Type("invalid-snippet"),
			"title":   "Snippet failed validation",
			"outcome": verr.Outcome,
		}, http.StatusBadRequest)
	case errors.Is(err, ErrNotFound) || errors.Is(err, assets.ErrNotFound):
		writeJSON(w, map[string]any{
			"type":  problems.Type("not-found"),
			"title": "Snippet not found",
		}, http.StatusNotFound)
	case errors.Is(err, ErrForbidden):
		writeJSON(w, map[string]any{
			"type":  problems.Type("forbidden"),
			"title": "Not allowed for this snippet",
		}, http.StatusForbidden)
	case errors.Is(err, analysis.ErrUnknownRuleKind):
		writeJSON(w, map[string]any{
			"type":  problems.Type("unknown-rule-kind"),
			"title": "Unknown rule kind",
		}, http.StatusBadRequest)
	case errors.Is(err, identity.ErrNotConfigured):
		writeJSON(w, map[string]any{
			"type":  problems.Type("directory-disabled"),
			"title": "User directory is not configured",
		}, http.StatusServiceUnavailable)
	default:
		a.log.Errorw("request failed", "err", err)
		writeJSON(w, map[string]any{
			"type":  problems.Type("downstream-unavailable"),
			"title": "A downstream service failed",
		}, http.StatusBadGateway)
	}
}

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
