package controller

import (
	"ctfbot/auth"
	"strings"

	"github.com/gin-contrib/cache/persistence"
	"github.com/gin-gonic/gin"
)

type RouteInfo struct {
	Method        string
	Path          string
	HandlerFunc   gin.HandlerFunc
	Authenticated bool
}

// ApiDependencies are the services behind the dashboard api.
type ApiDependencies struct {
	CacheStore persistence.CacheStore
	CTFs       CTFLister
	Reports    ReportFetcher
	Calendar   Calendar
	Solves     *SolveHub
	Version    string
}

func SetRoutes(r *gin.Engine, deps ApiDependencies) {
	routes := make([]RouteInfo, 0)
	routes = append(routes, setupHealthController(deps.Version)...)
	routes = append(routes, setupCTFController(deps)...)
	routes = append(routes, setupSolveController(deps.Solves)...)
	api := r.Group("/api")
	for _, route := range routes {
		handlerfuncs := make([]gin.HandlerFunc, 0)
		if route.Authenticated {
			handlerfuncs = append(handlerfuncs, AuthMiddleware())
		}
		handlerfuncs = append(handlerfuncs, route.HandlerFunc)
		api.Handle(route.Method, route.Path, handlerfuncs...)
	}
}

func tokenFrom(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return c.Query("token")
}

// AuthMiddleware accepts a dashboard token from the Authorization header or the token query
// parameter. Routes under a server only accept tokens issued in that server.
func AuthMiddleware() gin.HandlerFunc {
	return func(r *gin.Context) {
		tokenString := tokenFrom(r)
		if tokenString == "" {
			r.JSON(401, gin.H{"error": "Unauthenticated"})
			r.Abort()
			return
		}
		claims, err := auth.ClaimsFromToken(tokenString)
		if err != nil {
			r.JSON(401, gin.H{"error": "Unauthenticated"})
			r.Abort()
			return
		}
		if serverId := r.Param("server_id"); serverId != "" && serverId != claims.ServerId {
			r.JSON(403, gin.H{"error": "Unauthorized"})
			r.Abort()
			return
		}
		r.Set("claims", claims)
		r.Next()
	}
}
