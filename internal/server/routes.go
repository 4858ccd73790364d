package server

import (
	"github.com/signalnest/magpie/internal/server/middleware"
	"github.com/signalnest/magpie/internal/server/routes"

	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	// Entity routes
	apiRoutes.GET("/entities", routes.GetEntitiesHandler)
	apiRoutes.GET("/entities/:id", routes.GetEntityHandler)
	apiRoutes.GET("/entities/:id/confidence", routes.GetEntityConfidenceHandler)

	// Relationship routes
	apiRoutes.GET("/relationships", routes.GetRelationshipsHandler)
	apiRoutes.GET("/relationships/:id/confidence", routes.GetRelationshipConfidenceHandler)

	// Tag routes
	apiRoutes.GET("/tags", routes.GetTagsHandler)
	apiRoutes.GET("/tags/:tag/entities", routes.GetEntitiesByTagHandler)
	apiRoutes.GET("/entities/:id/tags", routes.GetEntityTagsHandler)
	apiRoutes.POST("/entities/:id/tags", routes.AddTagHandler)
	apiRoutes.DELETE("/entities/:id/tags/:tag", routes.RemoveTagHandler)

	// Enrichment routes
	apiRoutes.GET("/entities/:id/enrichment", routes.GetEnrichmentHandler)
	apiRoutes.PUT("/entities/:id/enrichment/:source", routes.UpsertEnrichmentHandler)

	// Ingest and validation routes
	apiRoutes.POST("/ingest", routes.IngestHandler)
	apiRoutes.GET("/validation/report", routes.GetValidationReportHandler)
	apiRoutes.GET("/stats", routes.GetStatsHandler)

	// Maintenance routes
	apiRoutes.POST("/maintenance/:job", routes.TriggerMaintenanceHandler)
	apiRoutes.GET("/maintenance/runs", routes.GetMaintenanceRunsHandler)
}
