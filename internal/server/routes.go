package server

import (
	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	v1 "github.com/gosuda/vibetodo/internal/api/v1"
	"github.com/gosuda/vibetodo/internal/service"
	"github.com/gosuda/vibetodo/internal/transfer"
)

func registerAPIRoutes(api huma.API, svc *service.Service) {
	v1.Register(api, svc, transfer.NewExporter(svc), transfer.NewImporter(svc))
}

func registerUIRoutes(r chi.Router, s *Server) {
	r.Get("/", s.handleIndex)
	r.Post("/ui/tasks", s.handleCreate)
	r.Post("/ui/tasks/{id}/status", s.handleStatus)
	r.Post("/ui/tasks/{id}/time", s.handleTime)
	r.Post("/ui/tasks/{id}/delete", s.handleDelete)
}
