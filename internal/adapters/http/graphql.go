package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/samirrijal/geomap/internal/core/domain"
)

// buildSchema creates the GraphQL schema wired to our services. Struct
// fields resolve through their json tags.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	coordinateType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Coordinate",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lng": &graphql.Field{Type: graphql.Float},
		},
	})

	rdType := graphql.NewObject(graphql.ObjectConfig{
		Name: "RDPoint",
		Fields: graphql.Fields{
			"x": &graphql.Field{Type: graphql.Float},
			"y": &graphql.Field{Type: graphql.Float},
		},
	})

	locationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Location",
		Fields: graphql.Fields{
			"key":      &graphql.Field{Type: graphql.String},
			"title":    &graphql.Field{Type: graphql.String},
			"icon":     &graphql.Field{Type: graphql.String},
			"position": &graphql.Field{Type: coordinateType},
			"tooltip":  &graphql.Field{Type: graphql.String},
			"summary":  &graphql.Field{Type: graphql.String},
		},
	})

	providerType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Provider",
		Fields: graphql.Fields{
			"kind": &graphql.Field{Type: graphql.String},
			"name": &graphql.Field{Type: graphql.String},
		},
	})

	mapConfigType := graphql.NewObject(graphql.ObjectConfig{
		Name: "MapConfig",
		Fields: graphql.Fields{
			"id":            &graphql.Field{Type: graphql.String},
			"provider":      &graphql.Field{Type: providerType},
			"center":        &graphql.Field{Type: coordinateType},
			"zoom":          &graphql.Field{Type: graphql.Int},
			"height":        &graphql.Field{Type: graphql.Int},
			"locations":     &graphql.Field{Type: graphql.NewList(locationType)},
			"classLabel":    &graphql.Field{Type: graphql.String},
			"classIcon":     &graphql.Field{Type: graphql.String},
			"searchEnabled": &graphql.Field{Type: graphql.Boolean},
		},
	})

	attributeType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeolocationAttribute",
		Fields: graphql.Fields{
			"class":    &graphql.Field{Type: graphql.String},
			"code":     &graphql.Field{Type: graphql.String},
			"label":    &graphql.Field{Type: graphql.String},
			"width":    &graphql.Field{Type: graphql.Int},
			"height":   &graphql.Field{Type: graphql.Int},
			"display":  &graphql.Field{Type: graphql.Boolean},
			"editable": &graphql.Field{Type: graphql.Boolean},
		},
	})

	projectionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Projection",
		Fields: graphql.Fields{
			"wgs84": &graphql.Field{Type: coordinateType},
			"rd":    &graphql.Field{Type: rdType},
			"text":  &graphql.Field{Type: graphql.String},
		},
	})

	widgetMap := func(p graphql.ResolveParams) (domain.MapConfig, error) {
		w, err := deps.Widgets.Get(p.Context, p.Args["widget"].(string))
		if err != nil {
			return domain.MapConfig{}, err
		}
		return deps.Builder.BuildWidget(p.Context, w, p.Args["lang"].(string), false)
	}
	widgetArgs := graphql.FieldConfigArgument{
		"widget": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
		"lang":   &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: DefaultLanguage},
	}

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"mapConfig": &graphql.Field{
				Type:        mapConfigType,
				Description: "Render payload of a dashboard map",
				Args:        widgetArgs,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return widgetMap(p)
				},
			},
			"locations": &graphql.Field{
				Type:        graphql.NewList(locationType),
				Description: "Locations shown on a dashboard map",
				Args:        widgetArgs,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					cfg, err := widgetMap(p)
					if err != nil {
						return nil, err
					}
					return cfg.Locations, nil
				},
			},
			"geolocationAttributes": &graphql.Field{
				Type:        graphql.NewList(attributeType),
				Description: "Geolocation attributes of a class",
				Args: graphql.FieldConfigArgument{
					"class": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Registry.GeolocationAttributes(p.Context, p.Args["class"].(string))
				},
			},
			"project": &graphql.Field{
				Type:        projectionType,
				Description: "Rijksdriehoek projection of a WGS84 position",
				Args: graphql.FieldConfigArgument{
					"lat": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lng": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					pos, err := domain.NewCoordinate(p.Args["lat"].(float64), p.Args["lng"].(float64))
					if err != nil {
						return nil, err
					}
					rd := pos.ToRD()
					return map[string]interface{}{"wgs84": pos, "rd": rd, "text": rd.String()}, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
