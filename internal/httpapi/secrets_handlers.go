package httpapi

import (
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"internship-digest/internal/config"
)

type SecretsHandler struct {
	CfgVal *atomic.Value // stores config.Config
	Set    func(account, url string) error
	Delete func(account string) error
}

type setWebhookReq struct {
	URL string `json:"url"`
}

func (h SecretsHandler) account() string {
	return h.CfgVal.Load().(config.Config).Notify.KeyringAccount
}

func (h SecretsHandler) SetWebhook(w http.ResponseWriter, r *http.Request) {
	var req setWebhookReq
	if !decodeJSON(w, r, &req) {
		return
	}
	u, err := url.Parse(strings.TrimSpace(req.URL))
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		WriteError(w, r, http.StatusBadRequest, "invalid_url", "url must be an absolute http(s) url")
		return
	}

	if err := h.Set(h.account(), u.String()); err != nil {
		WriteError(w, r, http.StatusBadRequest, "store_failed", "failed to store webhook url: "+err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h SecretsHandler) DeleteWebhook(w http.ResponseWriter, r *http.Request) {
	if err := h.Delete(h.account()); err != nil {
		WriteError(w, r, http.StatusBadRequest, "delete_failed", "failed to delete webhook url: "+err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
