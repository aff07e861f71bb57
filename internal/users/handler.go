package users

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/atlas-admin/atlas-admin/internal/platform/httpx"
	"github.com/atlas-admin/atlas-admin/internal/shared"
	"github.com/atlas-admin/atlas-admin/internal/tablequery"
	"github.com/atlas-admin/atlas-admin/internal/view"
)

const maxImportSize = 10 << 20 // 10 MiB upload cap

// Handler manages user management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	resolver  *Resolver
	templates *view.Engine
	csrf      *shared.CSRFManager
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, resolver *Resolver, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		resolver:  resolver,
		templates: templates,
		csrf:      csrf,
		validator: NewValidator(),
	}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/new", h.showCreateForm)
	r.Post("/", h.create)
	r.Get("/{id}/edit", h.showEditForm)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.destroy)
	r.Delete("/", h.bulkDestroy)

	r.Get("/template", h.template)
	r.Get("/export", h.export)
	r.Post("/import", h.importSpreadsheet)
}

type formErrors map[string]string

// listResponse is the JSON contract of the list endpoint.
type listResponse struct {
	Items   []User          `json:"items"`
	Meta    tablequery.Meta `json:"meta"`
	Filters FilterEcho      `json:"filters"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, echo, redirect, err := h.resolver.Resolve(r.Context(), r.URL.Query())
	if err != nil {
		h.logger.Error("list users failed", slog.Any("error", err))
		if wantsJSON(r) {
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			return
		}
		http.Error(w, "Failed to load users", http.StatusInternalServerError)
		return
	}
	if redirect != nil {
		http.Redirect(w, r, r.URL.Path+"?"+redirect.Query.Encode(), http.StatusFound)
		return
	}

	if wantsJSON(r) {
		httpx.JSON(w, http.StatusOK, listResponse{Items: page.Items, Meta: page.Meta, Filters: echo})
		return
	}
	h.render(w, r, "pages/users/list.html", h.listViewData(r, page, echo), http.StatusOK)
}

// listViewData builds the server-rendered table shell. Navigation targets
// are computed through the same controller the client uses, so links and
// hydration agree on reset and stripping semantics.
func (h *Handler) listViewData(r *http.Request, page *ResultPage, echo FilterEcho) map[string]any {
	ctrl := tablequery.NewController(
		map[string]string{
			tablequery.ParamPage:    "1",
			tablequery.ParamPerPage: strconv.Itoa(tablequery.DefaultPerPage),
		},
		tablequery.Options{BaseURL: r.URL.Path},
		func() *url.URL { return r.URL },
		nil,
	)

	sortLinks := make(map[string]string, len(ListSpec.SortColumns))
	for _, column := range ListSpec.SortColumns {
		next := column + ":asc"
		if echo.Sort != nil && *echo.Sort == next {
			next = column + ":desc"
		}
		sortLinks[column] = ctrl.SetSort(next).URL()
	}

	perPageLinks := make(map[int]string, len(tablequery.DefaultPerPageChoices))
	for _, choice := range tablequery.DefaultPerPageChoices {
		perPageLinks[choice] = ctrl.SetPerPage(choice).URL()
	}

	exportQuery := tablequery.Parse(r.URL.Query(), ListSpec).Values()
	data := map[string]any{
		"Users":        page.Items,
		"Meta":         page.Meta,
		"Filters":      echo,
		"SortLinks":    sortLinks,
		"PerPageLinks": perPageLinks,
		"ClearSearch":  ctrl.SetSearch("").URL(),
		"ExportURL":    r.URL.Path + "/export?" + exportQuery.Encode(),
	}
	if page.Meta.CurrentPage > 1 {
		data["PrevURL"] = ctrl.SetPage(page.Meta.CurrentPage - 1).URL()
	}
	if page.Meta.CurrentPage < page.Meta.LastPage {
		data["NextURL"] = ctrl.SetPage(page.Meta.CurrentPage + 1).URL()
	}
	return data
}

func (h *Handler) showCreateForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/users/form.html", map[string]any{"Errors": formErrors{}, "User": nil}, http.StatusOK)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeCreate(w, r)
	if !ok {
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.respondInvalid(w, r, "pages/users/form.html", ValidationMessages(err), map[string]any{"User": nil, "Form": req})
		return
	}

	user, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.respondMutationError(w, r, "pages/users/form.html", err, map[string]any{"User": nil, "Form": req})
		return
	}

	if wantsJSON(r) {
		httpx.JSON(w, http.StatusCreated, map[string]any{"user": user})
		return
	}
	h.redirectWithFlash(w, r, "/users", "success", "User created.")
}

func (h *Handler) showEditForm(w http.ResponseWriter, r *http.Request) {
	user, ok := h.loadUser(w, r)
	if !ok {
		return
	}
	h.render(w, r, "pages/users/form.html", map[string]any{"Errors": formErrors{}, "User": user}, http.StatusOK)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	req, decoded := h.decodeUpdate(w, r)
	if !decoded {
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.respondInvalid(w, r, "pages/users/form.html", ValidationMessages(err), map[string]any{"User": &User{ID: id}, "Form": req})
		return
	}

	user, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		h.respondMutationError(w, r, "pages/users/form.html", err, map[string]any{"User": &User{ID: id}, "Form": req})
		return
	}

	if wantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"user": user})
		return
	}
	h.redirectWithFlash(w, r, "/users", "success", "User updated.")
}

func (h *Handler) destroy(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.logger.Error("delete user failed", slog.Any("error", err), slog.Int64("id", id))
		if wantsJSON(r) {
			httpx.RespondError(w, err)
			return
		}
		h.redirectWithFlash(w, r, backURL(r), "error", shared.UserSafeMessage(err))
		return
	}
	if wantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"notice": shared.FlashMessage{Kind: "success", Message: "User deleted."}})
		return
	}
	h.redirectWithFlash(w, r, backURL(r), "success", "User deleted.")
}

type bulkDeleteRequest struct {
	IDs []int64 `json:"ids"`
}

func (h *Handler) bulkDestroy(w http.ResponseWriter, r *http.Request) {
	var req bulkDeleteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil && !wantsJSON(r) {
		// Form fallback: ids[] fields.
		if err := r.ParseForm(); err == nil {
			for _, raw := range r.PostForm["ids[]"] {
				if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
					req.IDs = append(req.IDs, id)
				}
			}
		}
	}

	if len(req.IDs) == 0 {
		notice := shared.FlashMessage{Kind: "error", Message: "No user selected."}
		if wantsJSON(r) {
			httpx.JSON(w, http.StatusOK, map[string]any{"deleted": 0, "notice": notice})
			return
		}
		h.redirectWithFlash(w, r, backURL(r), notice.Kind, notice.Message)
		return
	}

	deleted, err := h.service.BulkDelete(r.Context(), req.IDs)
	if err != nil {
		h.logger.Error("bulk delete users failed", slog.Any("error", err))
		if wantsJSON(r) {
			httpx.RespondError(w, err)
			return
		}
		h.redirectWithFlash(w, r, backURL(r), "error", shared.UserSafeMessage(err))
		return
	}

	notice := shared.FlashMessage{Kind: "success", Message: "Selected users deleted."}
	if wantsJSON(r) {
		httpx.JSON(w, http.StatusOK, map[string]any{"deleted": deleted, "notice": notice})
		return
	}
	h.redirectWithFlash(w, r, backURL(r), notice.Kind, notice.Message)
}

func (h *Handler) template(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+TemplateFilename+`"`)
	if err := WriteTemplate(w); err != nil {
		h.logger.Error("write template spreadsheet", slog.Any("error", err))
	}
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.ExportRows(r.Context(), r.URL.Query())
	if err != nil {
		h.logger.Error("export users failed", slog.Any("error", err))
		http.Error(w, "Failed to export users", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+ExportFilename+`"`)
	if err := WriteExport(w, rows); err != nil {
		h.logger.Error("write export spreadsheet", slog.Any("error", err))
	}
}

func (h *Handler) importSpreadsheet(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxImportSize); err != nil {
		h.redirectWithFlash(w, r, backURL(r), "error", "The uploaded file is invalid.")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		h.redirectWithFlash(w, r, backURL(r), "error", "An import file is required.")
		return
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".xlsx", ".xls":
	default:
		h.redirectWithFlash(w, r, backURL(r), "error", "The file must be a spreadsheet (xlsx or xls).")
		return
	}

	rows, err := ReadImport(file)
	if err != nil {
		h.logger.Warn("parse import spreadsheet", slog.Any("error", err))
		h.redirectWithFlash(w, r, backURL(r), "error", "The uploaded file could not be read.")
		return
	}

	result, err := h.service.Import(r.Context(), rows)
	if err != nil {
		h.logger.Error("import users failed", slog.Any("error", err))
		h.redirectWithFlash(w, r, backURL(r), "error", shared.UserSafeMessage(err))
		return
	}

	message := "Users imported successfully."
	if result.Skipped > 0 {
		message = "Imported " + strconv.Itoa(result.Created) + " users, skipped " + strconv.Itoa(result.Skipped) + " rows."
	}
	h.redirectWithFlash(w, r, backURL(r), "success", message)
}

// Decoding helpers

func (h *Handler) decodeCreate(w http.ResponseWriter, r *http.Request) (CreateUserRequest, bool) {
	var req CreateUserRequest
	if isJSONRequest(r) {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
			return req, false
		}
		return req, true
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return req, false
	}
	req = CreateUserRequest{
		Name:                 r.PostFormValue("name"),
		Email:                r.PostFormValue("email"),
		Role:                 r.PostFormValue("role"),
		Password:             r.PostFormValue("password"),
		PasswordConfirmation: r.PostFormValue("password_confirmation"),
	}
	return req, true
}

func (h *Handler) decodeUpdate(w http.ResponseWriter, r *http.Request) (UpdateUserRequest, bool) {
	var req UpdateUserRequest
	if isJSONRequest(r) {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
			return req, false
		}
		return req, true
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return req, false
	}
	req = UpdateUserRequest{
		Name:                 r.PostFormValue("name"),
		Email:                r.PostFormValue("email"),
		Role:                 r.PostFormValue("role"),
		Password:             r.PostFormValue("password"),
		PasswordConfirmation: r.PostFormValue("password_confirmation"),
	}
	return req, true
}

func (h *Handler) respondInvalid(w http.ResponseWriter, r *http.Request, tmpl string, errors map[string]string, data map[string]any) {
	if wantsJSON(r) {
		httpx.JSON(w, http.StatusUnprocessableEntity, map[string]any{"errors": errors})
		return
	}
	data["Errors"] = formErrors(errors)
	h.render(w, r, tmpl, data, http.StatusUnprocessableEntity)
}

func (h *Handler) respondMutationError(w http.ResponseWriter, r *http.Request, tmpl string, err error, data map[string]any) {
	if errors.Is(err, ErrEmailTaken) {
		h.respondInvalid(w, r, tmpl, map[string]string{"email": "The email has already been taken."}, data)
		return
	}
	if errors.Is(err, ErrNotFound) {
		if wantsJSON(r) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "user not found")
			return
		}
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}
	h.logger.Error("user mutation failed", slog.Any("error", err))
	if wantsJSON(r) {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	h.respondInvalid(w, r, tmpl, map[string]string{"general": shared.UserSafeMessage(err)}, data)
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		if wantsJSON(r) {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid user id")
		} else {
			http.Error(w, "Invalid user ID", http.StatusBadRequest)
		}
		return 0, false
	}
	return id, true
}

func (h *Handler) loadUser(w http.ResponseWriter, r *http.Request) (*User, bool) {
	id, ok := h.parseID(w, r)
	if !ok {
		return nil, false
	}
	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.logger.Error("get user failed", slog.Any("error", err), slog.Int64("id", id))
		http.Error(w, "User not found", http.StatusNotFound)
		return nil, false
	}
	return user, true
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, tmpl string, data map[string]any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       "Users",
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	w.WriteHeader(status)
	if err := h.templates.Render(w, tmpl, viewData); err != nil {
		h.logger.Error("template render failed", slog.Any("error", err), slog.String("template", tmpl))
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

func wantsJSON(r *http.Request) bool {
	if r.Header.Get("X-Requested-With") == "XMLHttpRequest" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func isJSONRequest(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Content-Type"), "application/json")
}

func backURL(r *http.Request) string {
	if ref := r.Header.Get("Referer"); ref != "" {
		if u, err := url.Parse(ref); err == nil && u.Path != "" {
			target := u.Path
			if u.RawQuery != "" {
				target += "?" + u.RawQuery
			}
			return target
		}
	}
	return "/users"
}
