package apiserver

import "github.com/gin-gonic/gin"

// NewRouter builds a gin engine with the shared middleware stack, matching
// cmd/tarsy/main.go's gin.Default()/gin.SetMode construction.
func NewRouter(debug bool) *gin.Engine {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(SecurityHeaders())
	return r
}
