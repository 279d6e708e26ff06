package controllers

import (
	"github.com/go-chi/chi/v5"
)

func chiRouteCtxKey() any {
	return chi.RouteCtxKey
}

func routeParams(pairs ...string) *chi.Context {
	routeCtx := chi.NewRouteContext()
	for i := 0; i+1 < len(pairs); i += 2 {
		routeCtx.URLParams.Add(pairs[i], pairs[i+1])
	}
	return routeCtx
}
