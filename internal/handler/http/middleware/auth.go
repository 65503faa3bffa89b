package middleware

import (
	"net/http"

	"github.com/cmlabs-hris/payroll-dispatch/internal/handler/http/response"
	"github.com/cmlabs-hris/payroll-dispatch/internal/pkg/jwt"
	"github.com/go-chi/jwtauth/v5"
)

// AuthRequired rejects requests without a verified access token scoped to a company.
// It must run after jwtauth.Verifier.
func AuthRequired(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, _, err := jwtauth.FromContext(r.Context())
		if err != nil {
			response.Unauthorized(w, err.Error())
			return
		}

		if _, err := jwt.ClaimsFromToken(token); err != nil {
			response.Unauthorized(w, err.Error())
			return
		}

		next.ServeHTTP(w, r)
	})
}
