package api

import (
	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	"github.com/emicklei/go-restful/v3"
	"github.com/povarna/generative-ai-agents/llm-bridge/internal/api/middleware"
	"github.com/povarna/generative-ai-agents/llm-bridge/internal/models"
	"github.com/povarna/generative-ai-agents/llm-bridge/internal/security"
)

// NewContainer returns a container with the middleware filters, the API
// routes and the OpenAPI document registered.
func NewContainer(handler *Handler) *restful.Container {
	container := restful.NewContainer()
	container.Filter(middleware.Logger)
	container.Filter(middleware.RecoverPanic)
	RegisterRoutes(container, handler)

	container.Add(restfulspec.NewOpenAPIService(restfulspec.Config{
		WebServices: container.RegisteredWebServices(),
		APIPath:     "/apidocs.json",
	}))
	return container
}

func RegisterRoutes(container *restful.Container, handler *Handler) {
	ws := new(restful.WebService)

	ws.
		Path("/api/v1").
		Consumes(restful.MIME_JSON).
		Produces(restful.MIME_JSON)

	// Health endpoint
	ws.
		Route(ws.GET("health").
			To(handler.Health).
			Doc("Health check").
			Metadata(restfulspec.KeyOpenAPITags, []string{"health"}).
			Writes(HealthResponse{}).
			Returns(200, "OK", HealthResponse{}))

	ws.
		Route(ws.POST("/ask/{provider}").
			To(handler.Ask).
			Doc("Validate a prompt and forward it to one model").
			Metadata(restfulspec.KeyOpenAPITags, []string{"bridge"}).
			Param(ws.PathParameter("provider", "Model provider (claude, gpt)").DataType("string")).
			Reads(models.AskRequest{}).
			Writes(models.AskResponse{}).
			Returns(200, "OK", models.AskResponse{}).
			Returns(400, "Bad Request", middleware.ErrorResponse{}).
			Returns(404, "Provider Not Configured", middleware.ErrorResponse{}).
			Returns(422, "Prompt Rejected", middleware.ErrorResponse{}).
			Returns(502, "Upstream Failure", middleware.ErrorResponse{}))

	ws.
		Route(ws.POST("/compare").
			To(handler.Compare).
			Doc("Validate a prompt and send it to every configured model").
			Metadata(restfulspec.KeyOpenAPITags, []string{"bridge"}).
			Reads(models.AskRequest{}).
			Writes(models.CompareResponse{}).
			Returns(200, "OK", models.CompareResponse{}).
			Returns(400, "Bad Request", middleware.ErrorResponse{}).
			Returns(404, "No Provider Configured", middleware.ErrorResponse{}).
			Returns(422, "Prompt Rejected", middleware.ErrorResponse{}))

	ws.
		Route(ws.GET("/security/status").
			To(handler.SecurityStatus).
			Doc("Effective security policy and pattern cache state").
			Metadata(restfulspec.KeyOpenAPITags, []string{"security"}).
			Writes(security.Status{}).
			Returns(200, "OK", security.Status{}))

	ws.
		Route(ws.POST("/security/cache/reset").
			To(handler.ResetCache).
			Doc("Drop every compiled pattern set").
			Metadata(restfulspec.KeyOpenAPITags, []string{"security"}).
			Consumes("*/*").
			Writes(security.Status{}).
			Returns(200, "OK", security.Status{}))

	container.Add(ws)
}
