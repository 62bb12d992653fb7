package relay

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

func (r *Relay) registerRoutes() {
	r.echo.GET("/", r.handleRoot)
	r.echo.HEAD("/", r.handleRoot)
	r.echo.GET("/extension/status", r.handleExtensionStatus)

	r.echo.GET("/json/version", r.handleJSONVersion)
	r.echo.PUT("/json/version", r.handleJSONVersion)

	r.echo.GET("/json", r.handleJSONList)
	r.echo.GET("/json/list", r.handleJSONList)

	r.echo.GET("/json/activate/:id", r.handleJSONActivate)
	r.echo.PUT("/json/activate/:id", r.handleJSONActivate)
	r.echo.GET("/json/close/:id", r.handleJSONClose)
	r.echo.PUT("/json/close/:id", r.handleJSONClose)

	r.echo.GET("/extension", r.handleExtension)
	r.echo.GET("/cdp", r.handleCDP)
}

func (r *Relay) handleRoot(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (r *Relay) handleExtensionStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]bool{"connected": r.upstreamConnected()})
}

func (r *Relay) cdpWebSocketURL(c echo.Context) string {
	host := c.Request().Host
	if host == "" {
		host = fmt.Sprintf("%s:%d", r.Host, r.Port)
	}
	return fmt.Sprintf("ws://%s/cdp", host)
}

func (r *Relay) handleJSONVersion(c echo.Context) error {
	payload := map[string]any{
		"Browser":         "OpenBotX/extension-relay",
		"Protocol-Version": "1.3",
	}
	if r.upstreamConnected() {
		payload["webSocketDebuggerUrl"] = r.cdpWebSocketURL(c)
	}
	return c.JSON(http.StatusOK, payload)
}

func (r *Relay) handleJSONList(c echo.Context) error {
	cdpURL := r.cdpWebSocketURL(c)
	targets := r.targetsSnapshot()
	list := make([]map[string]any, 0, len(targets))
	for _, t := range targets {
		title, _ := t.Info["title"].(string)
		url, _ := t.Info["url"].(string)
		targetType, _ := t.Info["type"].(string)
		if targetType == "" {
			targetType = "page"
		}
		list = append(list, map[string]any{
			"id":                  t.TargetID,
			"type":                targetType,
			"title":               title,
			"description":         title,
			"url":                 url,
			"webSocketDebuggerUrl": cdpURL,
			"devtoolsFrontendUrl":  "/devtools/inspector.html?ws=" + strings.TrimPrefix(cdpURL, "ws://"),
		})
	}
	return c.JSON(http.StatusOK, list)
}

func (r *Relay) handleJSONActivate(c echo.Context) error {
	return r.bestEffortForward(c, "Target.activateTarget")
}

func (r *Relay) handleJSONClose(c echo.Context) error {
	return r.bestEffortForward(c, "Target.closeTarget")
}

// bestEffortForward always replies 200, forwarding method({targetId}) to the
// extension without surfacing failure to the HTTP caller.
func (r *Relay) bestEffortForward(c echo.Context, method string) error {
	targetID := strings.TrimSpace(c.Param("id"))
	if targetID == "" {
		return c.String(http.StatusBadRequest, "targetId required")
	}
	params := []byte(fmt.Sprintf(`{"targetId":%q}`, targetID))
	_, _ = r.sendToUpstream(c.Request().Context(), method, "", params)
	return c.String(http.StatusOK, "OK")
}
