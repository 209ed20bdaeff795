package v1

import "github.com/danielgtaylor/huma/v2"

// Register mounts every v1 operation on api.
func Register(api huma.API, svc TaskService, exp Exporter, imp Importer) {
	RegisterTaskRoutes(api, svc)
	RegisterStatsRoutes(api, svc)
	RegisterTransferRoutes(api, exp, imp)
}
