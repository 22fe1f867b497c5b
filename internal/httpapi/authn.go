package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Conrad-Tinio/CAPWA-Website/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

type rejectedTokenKey struct{}

// withSession turns the bearer token, if any, into the request's
// auth.Session. A token that is malformed or does not verify is dropped:
// the request continues anonymously and requireToken reports why.
func (a *API) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sess := &auth.Session{}
		if header := r.Header.Get(authHeader); strings.TrimSpace(header) != "" {
			token, err := extractBearerToken(header)
			switch {
			case err != nil:
				ctx = context.WithValue(ctx, rejectedTokenKey{}, err)
			case !a.desk.Sessions().Verify(token):
				ctx = context.WithValue(ctx, rejectedTokenKey{}, auth.ErrInvalidToken)
			default:
				sess = auth.NewSession(token)
			}
		}
		next.ServeHTTP(w, r.WithContext(auth.ContextWithSession(ctx, sess)))
	})
}

// requireToken rejects requests without a verified bearer token.
func requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.SessionFromContext(r.Context()).Token() != "" {
			next.ServeHTTP(w, r)
			return
		}
		rejected, _ := r.Context().Value(rejectedTokenKey{}).(error)
		switch {
		case errors.Is(rejected, auth.ErrInvalidToken):
			handleError(w, r, rejected)
		case rejected != nil:
			w.Header().Set("WWW-Authenticate", `Bearer realm="capwa"`)
			writeError(w, r, http.StatusUnauthorized, rejected.Error())
		default:
			w.Header().Set("WWW-Authenticate", `Bearer realm="capwa"`)
			writeError(w, r, http.StatusUnauthorized, "missing bearer token")
		}
	})
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if len(header) < len(bearer) || !strings.EqualFold(header[:len(bearer)], bearer) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func session(r *http.Request) *auth.Session {
	return auth.SessionFromContext(r.Context())
}
