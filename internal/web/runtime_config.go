package web

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tyemirov/timebank-admin/internal/authkit"
)

const runtimeConfigGlobal = "__TIMEBANK_ADMIN_CONFIG"

// RuntimeConfig holds the values login.js and dashboard.js read from
// window.__TIMEBANK_ADMIN_CONFIG. Empty fields fall back to the defaults the
// server mounts, and an empty BaseURL is derived from the request.
type RuntimeConfig struct {
	BaseURL       string
	LoginPath     string
	LoginEndpoint string
	DashboardPath string
}

type runtimeConfigPayload struct {
	BaseURL       string `json:"baseUrl"`
	LoginPath     string `json:"loginPath"`
	LoginEndpoint string `json:"loginEndpoint"`
	DashboardPath string `json:"dashboardPath"`
}

func (configuration RuntimeConfig) resolve(request *http.Request) runtimeConfigPayload {
	payload := runtimeConfigPayload{
		BaseURL:       strings.TrimSpace(configuration.BaseURL),
		LoginPath:     strings.TrimSpace(configuration.LoginPath),
		LoginEndpoint: strings.TrimSpace(configuration.LoginEndpoint),
		DashboardPath: strings.TrimSpace(configuration.DashboardPath),
	}
	if payload.BaseURL == "" {
		payload.BaseURL = requestOrigin(request)
	}
	if payload.LoginPath == "" {
		payload.LoginPath = authkit.DefaultLoginPath
	}
	if payload.LoginEndpoint == "" {
		payload.LoginEndpoint = "/api/auth/login"
	}
	if payload.DashboardPath == "" {
		payload.DashboardPath = "/"
	}
	return payload
}

// ServeRuntimeConfig answers /config.js with a frozen config object.
func ServeRuntimeConfig(contextGin *gin.Context, configuration RuntimeConfig) {
	encoded, encodeErr := json.Marshal(configuration.resolve(contextGin.Request))
	if encodeErr != nil {
		contextGin.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "web.runtime_config.encode_failed"})
		return
	}
	var script strings.Builder
	script.WriteString("(function(){window.")
	script.WriteString(runtimeConfigGlobal)
	script.WriteString("=Object.freeze(")
	script.Write(encoded)
	script.WriteString(");})();")

	contextGin.Header("Cache-Control", "no-store, no-cache, must-revalidate, private")
	contextGin.Header("Pragma", "no-cache")
	contextGin.Header("X-Content-Type-Options", "nosniff")
	contextGin.Data(http.StatusOK, "application/javascript; charset=utf-8", []byte(script.String()))
}

// requestOrigin honours X-Forwarded-Proto from the fronting proxy.
func requestOrigin(request *http.Request) string {
	if request == nil {
		return "https://localhost"
	}
	scheme := "http"
	switch {
	case request.Header.Get("X-Forwarded-Proto") != "":
		scheme = request.Header.Get("X-Forwarded-Proto")
	case request.TLS != nil:
		scheme = "https"
	}
	host := request.Host
	if host == "" {
		host = "localhost"
	}
	return scheme + "://" + host
}
