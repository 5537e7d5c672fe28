package httpx

import (
	"fmt"
	"net/http"

	"github.com/rs/cors"
)

// CORSConfig describes which browser origins may call the wallet API.
// Origins outside the allowlist receive responses without CORS headers:
// the request still completes, but a browser will block the result.
type CORSConfig struct {
	AllowOrigins     []string
	AllowCredentials bool
}

// corsMethods and corsHeaders are shared by all presets. The protocol only
// uses GET and POST plus preflight.
var (
	corsMethods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	corsHeaders = []string{"Content-Type", "Authorization"}
)

// DevelopmentCORS allows any origin. Only suitable while developing a DApp.
func DevelopmentCORS() CORSConfig {
	return CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowCredentials: true,
	}
}

// LocalhostCORS allows the common local web development ports on both
// localhost and 127.0.0.1. This is the default for a local wallet daemon.
func LocalhostCORS() CORSConfig {
	ports := []int{3000, 4200, 5000, 5173, 8000, 8080}
	origins := make([]string, 0, len(ports)*2)
	for _, p := range ports {
		origins = append(origins,
			fmt.Sprintf("http://localhost:%d", p),
			fmt.Sprintf("http://127.0.0.1:%d", p),
		)
	}
	return CORSConfig{
		AllowOrigins:     origins,
		AllowCredentials: true,
	}
}

// ProductionCORS allows only the given origins, with credentials enabled.
func ProductionCORS(origins []string) CORSConfig {
	return CORSConfig{
		AllowOrigins:     origins,
		AllowCredentials: true,
	}
}

// Middleware returns the CORS middleware enforcing c.
func (c CORSConfig) Middleware() Middleware {
	opts := cors.Options{
		AllowedOrigins:   c.AllowOrigins,
		AllowedMethods:   corsMethods,
		AllowedHeaders:   corsHeaders,
		AllowCredentials: c.AllowCredentials,
	}
	// rs/cors refuses credentials with a wildcard origin; reflect whatever
	// origin arrives instead, which is equivalent for development use.
	if len(c.AllowOrigins) == 1 && c.AllowOrigins[0] == "*" && c.AllowCredentials {
		opts.AllowedOrigins = nil
		opts.AllowOriginFunc = func(origin string) bool { return true }
	}
	return cors.New(opts).Handler
}
