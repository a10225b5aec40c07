package domain

import "net/http"

// Port is one storage surface for the attribution token.
type Port interface {
	Name() string
	Load(r *http.Request) (*Token, error)
	Save(w http.ResponseWriter, r *http.Request, token Token) error
	Delete(w http.ResponseWriter, r *http.Request) error
}

// Service is the attribution token store used by the storefront and intake handlers.
type Service interface {
	Persist(w http.ResponseWriter, r *http.Request, code, source string) (*Token, error)
	Read(w http.ResponseWriter, r *http.Request) *Token
	Clear(w http.ResponseWriter, r *http.Request)
	CaptureFromRequest(w http.ResponseWriter, r *http.Request) *Token
}
