package authkit

import (
	"net/http"
	"strings"
)

func writeSessionCookie(writer http.ResponseWriter, configuration ServerConfig, accessToken string) {
	writeTokenCookie(writer, configuration, configuration.SessionCookieName, accessToken, int(configuration.SessionTTL.Seconds()))
}

func writeRefreshCookie(writer http.ResponseWriter, configuration ServerConfig, refreshToken string) {
	writeTokenCookie(writer, configuration, configuration.RefreshCookieName, refreshToken, int(configuration.RefreshTTL.Seconds()))
}

// writeTokenPair writes whichever halves of the pair are present.
func writeTokenPair(writer http.ResponseWriter, configuration ServerConfig, pair TokenPair) {
	if pair.AccessToken != "" {
		writeSessionCookie(writer, configuration, pair.AccessToken)
	}
	if pair.RefreshToken != "" {
		writeRefreshCookie(writer, configuration, pair.RefreshToken)
	}
}

func writeTokenCookie(writer http.ResponseWriter, configuration ServerConfig, name string, value string, maxAgeSeconds int) {
	http.SetCookie(writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   configuration.CookieDomain,
		MaxAge:   maxAgeSeconds,
		Secure:   configuration.Production,
		HttpOnly: true,
		SameSite: configuration.SameSiteMode,
	})
}

func clearCookie(writer http.ResponseWriter, configuration ServerConfig, name string) {
	http.SetCookie(writer, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   configuration.CookieDomain,
		MaxAge:   -1,
		Secure:   configuration.Production,
		HttpOnly: true,
		SameSite: configuration.SameSiteMode,
	})
}

func cookieValue(request *http.Request, name string) string {
	cookie, err := request.Cookie(name)
	if err != nil || cookie == nil {
		return ""
	}
	return strings.TrimSpace(cookie.Value)
}
