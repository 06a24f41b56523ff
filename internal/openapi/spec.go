package openapi

import (
	"github.com/getkin/kin-openapi/openapi3"
)

// GenerateSpec builds the OpenAPI 3.1 document for pakd's public surface:
// the JWKS endpoint, session login, and personal API key management.
func GenerateSpec(baseURL, version string) *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       "pakd API",
			Description: "Personal API key issuance, listing, revocation, and JWKS publication.",
			Version:     version,
		},
		Servers: openapi3.Servers{
			{URL: baseURL},
		},
	}

	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{}
	components.SecuritySchemes = openapi3.SecuritySchemes{}
	doc.Components = &components

	doc.Components.SecuritySchemes["bearerAuth"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
		},
	}

	doc.Paths = openapi3.NewPaths()

	doc.Components.Schemas["ErrorResponse"] = &openapi3.SchemaRef{
		Value: objectSchema(openapi3.Schemas{
			"error": &openapi3.SchemaRef{
				Value: objectSchema(openapi3.Schemas{
					"code":    schemaOf("integer"),
					"message": schemaOf("string"),
				}).Value,
			},
		}).Value,
	}

	doc.Components.Schemas["APIKey"] = &openapi3.SchemaRef{
		Value: objectSchema(openapi3.Schemas{
			"id":           schemaOf("integer"),
			"label":        schemaOf("string"),
			"created_at":   dateTimeSchema(),
			"expires_at":   dateTimeSchema(),
			"revoked":      schemaOf("boolean"),
			"last_used_at": dateTimeSchema(),
		}).Value,
	}

	addJWKSPath(doc)
	addSessionPaths(doc)
	addAPIKeyPaths(doc)

	return doc
}

func addJWKSPath(doc *openapi3.T) {
	doc.Paths.Set("/.well-known/jwks.json", &openapi3.PathItem{
		Get: &openapi3.Operation{
			OperationID: "getJWKS",
			Summary:     "Published verification key set",
			Description: "Unauthenticated. Lists the RSA public keys usable to verify tokens issued by this service.",
			Tags:        []string{"jwks"},
			Responses:   jsonResponses(200, "JSON Web Key Set"),
		},
	})
}

func addSessionPaths(doc *openapi3.T) {
	doc.Paths.Set("/api/v1/auth/session", &openapi3.PathItem{
		Post: &openapi3.Operation{
			OperationID: "login",
			Summary:     "Log in with email and password",
			Tags:        []string{"auth"},
			RequestBody: jsonRequestBody(objectSchema(openapi3.Schemas{
				"email":    schemaOf("string"),
				"password": schemaOf("string"),
			})),
			Responses: jsonResponses(200, "Session token issued"),
		},
		Delete: &openapi3.Operation{
			OperationID: "logout",
			Summary:     "Invalidate the current session",
			Tags:        []string{"auth"},
			Security:    bearerSecurity(),
			Responses:   jsonResponses(200, "Session invalidated"),
		},
	})
}

func addAPIKeyPaths(doc *openapi3.T) {
	doc.Paths.Set("/api/v1/api-keys", &openapi3.PathItem{
		Get: &openapi3.Operation{
			OperationID: "listAPIKeys",
			Summary:     "List the caller's personal API keys",
			Description: "Returns active and revoked keys, newest first. The token hash is never exposed.",
			Tags:        []string{"api-keys"},
			Security:    bearerSecurity(),
			Responses:   jsonResponses(200, "Key metadata list"),
		},
		Post: &openapi3.Operation{
			OperationID: "createAPIKey",
			Summary:     "Issue a new personal API key",
			Description: "The plaintext token is returned once and cannot be retrieved again. Rate limited per caller.",
			Tags:        []string{"api-keys"},
			Security:    bearerSecurity(),
			RequestBody: jsonRequestBody(objectSchema(openapi3.Schemas{
				"label":           schemaOf("string"),
				"expires_in_days": schemaOf("integer"),
			})),
			Responses: jsonResponses(201, "Key created; token shown once"),
		},
	})

	doc.Paths.Set("/api/v1/api-keys/{id}", &openapi3.PathItem{
		Parameters: openapi3.Parameters{
			{Value: &openapi3.Parameter{
				Name:     "id",
				In:       "path",
				Required: true,
				Schema:   schemaOf("integer"),
			}},
		},
		Delete: &openapi3.Operation{
			OperationID: "revokeAPIKey",
			Summary:     "Revoke a personal API key",
			Description: "Permanent. Returns 404 for keys that do not exist or belong to another user.",
			Tags:        []string{"api-keys"},
			Security:    bearerSecurity(),
			Responses:   jsonResponses(200, "Key revoked"),
		},
	})
}

// ---------------------------------------------------------------------------
// Builders
// ---------------------------------------------------------------------------

func schemaOf(t string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{t}}}
}

func dateTimeSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: "date-time"}}
}

func objectSchema(props openapi3.Schemas) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{
		Type:       &openapi3.Types{"object"},
		Properties: props,
	}}
}

func jsonRequestBody(schema *openapi3.SchemaRef) *openapi3.RequestBodyRef {
	return &openapi3.RequestBodyRef{
		Value: &openapi3.RequestBody{
			Required: true,
			Content:  openapi3.NewContentWithJSONSchemaRef(schema),
		},
	}
}

func jsonResponses(successCode int, successDesc string) *openapi3.Responses {
	responses := openapi3.NewResponses()
	desc := successDesc
	responses.Set(statusString(successCode), &openapi3.ResponseRef{
		Value: &openapi3.Response{Description: &desc},
	})
	errDesc := "Error"
	responses.Set("default", &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &errDesc,
			Content: openapi3.NewContentWithJSONSchemaRef(&openapi3.SchemaRef{
				Ref: "#/components/schemas/ErrorResponse",
			}),
		},
	})
	return responses
}

func bearerSecurity() *openapi3.SecurityRequirements {
	reqs := openapi3.NewSecurityRequirements()
	reqs.With(openapi3.SecurityRequirement{"bearerAuth": {}})
	return reqs
}

func statusString(code int) string {
	switch code {
	case 200:
		return "200"
	case 201:
		return "201"
	default:
		return "200"
	}
}
