package httpapi

import (
	_ "embed"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/swaggo/swag"
)

//go:embed openapi.json
var openAPIDoc string

type apiDoc struct{}

func (apiDoc) ReadDoc() string { return openAPIDoc }

func init() { swag.Register(swag.Name, apiDoc{}) }

// MountSwagger serves the Swagger UI and the embedded API document under /swagger.
func MountSwagger(r chi.Router) {
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
}
