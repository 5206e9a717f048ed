package console

import (
	"net/http"
	"strings"

	"github.com/mehmetcc/billadmin/internal/auth"
	"github.com/mehmetcc/billadmin/internal/httpx"
	"github.com/mehmetcc/billadmin/internal/nav"
)

type pageHandler struct {
	auth auth.Context
}

type healthResponse struct {
	Status  string `json:"status"`
	Session string `json:"session"`
}

type loginPage struct {
	Page     string `json:"page"`
	ReturnTo string `json:"returnTo"`
}

type resetPasswordPage struct {
	Page  string `json:"page"`
	Email string `json:"email,omitempty"`
	Token string `json:"token,omitempty"`
}

type viewResponse struct {
	View  string `json:"view"`
	Label string `json:"label"`
	Path  string `json:"path"`
}

func (p *pageHandler) Health(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, healthResponse{Status: "ok", Session: p.auth.State().String()})
}

// Login sends a signed-in user straight to where they were headed.
func (p *pageHandler) Login(w http.ResponseWriter, r *http.Request) {
	returnTo := localPath(r.URL.Query().Get("returnTo"))
	if p.auth.IsAuthenticated() {
		http.Redirect(w, r, returnTo, http.StatusFound)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, loginPage{Page: "login", ReturnTo: returnTo})
}

func (p *pageHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	httpx.WriteJSON(w, http.StatusOK, resetPasswordPage{
		Page:  "reset-password",
		Email: q.Get("email"),
		Token: q.Get("token"),
	})
}

func (p *pageHandler) Menu(menu []nav.Item) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, nav.Filter(menu, p.auth.Permissions()))
	}
}

func (p *pageHandler) View(item nav.Item) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, viewResponse{View: item.Key, Label: item.Label, Path: item.Path})
	}
}

// localPath keeps returnTo on this origin.
func localPath(returnTo string) string {
	if !strings.HasPrefix(returnTo, "/") || strings.HasPrefix(returnTo, "//") || strings.HasPrefix(returnTo, "/\\") {
		return "/"
	}
	return returnTo
}
