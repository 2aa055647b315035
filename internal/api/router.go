package api

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	APIPathQueryNICs = "/api/nics"
	APIPathQueryNIC  = "/api/nics/:index"
	APIPathResolve   = "/api/arp"

	APIPathQuerySessions = "/api/sessions"
	APIPathAddSession    = "/api/sessions"
	APIPathQuerySession  = "/api/sessions/:session_id"
	APIPathStartSession  = "/api/sessions/:session_id/start"
	APIPathStopSession   = "/api/sessions/:session_id/stop"
	APIPathDeleteSession = "/api/sessions/:session_id"
	APIPathPopPackets    = "/api/sessions/:session_id/packets"
)

func SetNICRouter(g *gin.Engine, nic NICAPI) {
	w := httpNICWrapper{impl: nic}
	g.GET(APIPathQueryNICs, w.QueryNICs)
	g.GET(APIPathQueryNIC, w.QueryNIC)
	g.POST(APIPathResolve, w.Resolve)
}

func SetSessionRouter(g *gin.Engine, session SessionAPI) {
	w := httpSessionWrapper{impl: session}
	g.GET(APIPathQuerySessions, w.QuerySessions)
	g.POST(APIPathAddSession, w.AddSession)
	g.GET(APIPathQuerySession, w.QuerySession)
	g.POST(APIPathStartSession, w.StartSession)
	g.POST(APIPathStopSession, w.StopSession)
	g.DELETE(APIPathDeleteSession, w.DeleteSession)
	g.GET(APIPathPopPackets, w.PopPackets)
}

func InstantiateSessionAPIURL(apiPath string, sessionID uint64) string {
	return InstantiateAPIURL(apiPath, map[string]string{":session_id": strconv.FormatUint(sessionID, 10)})
}

func InstantiateAPIURL(apiPath string, params map[string]string) string {
	for k, v := range params {
		apiPath = strings.ReplaceAll(apiPath, k, v)
	}
	return strings.TrimSuffix(apiPath, "/")
}
