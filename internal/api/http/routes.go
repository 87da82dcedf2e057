package httpapi

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/venue-context-aggregation/internal/common"
	"github.com/i474232898/venue-context-aggregation/internal/domain"
	"github.com/i474232898/venue-context-aggregation/internal/logging"
	"github.com/i474232898/venue-context-aggregation/internal/pipeline"
)

// CalendarTokenHeader carries the optional calendar access token.
const CalendarTokenHeader = "X-Calendar-Token"

const msgMissingCredential = "venue search is not configured: missing provider credential"

var validate = validator.New()

// Pipeline is the set of flows exposed over HTTP.
type Pipeline interface {
	Recommend(ctx context.Context, req pipeline.RecommendRequest) (pipeline.RecommendResponse, error)
	Context(ctx context.Context, req pipeline.ContextRequest) (pipeline.Bundle, error)
	Suggest(ctx context.Context, req pipeline.SuggestRequest) (pipeline.Suggestion, error)
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, p Pipeline) {
	v1 := app.Group("/api/v1")

	recommend := func(c *fiber.Ctx) error {
		var req recommendRequest
		if err := bind(c, &req); err != nil {
			return err
		}
		resp, err := p.Recommend(c.UserContext(), req.toPipeline())
		if err != nil {
			return mapError(c, err, "failed to build recommendations")
		}
		return c.JSON(resp)
	}
	v1.Get("/recommendations", recommend)
	v1.Post("/recommendations", recommend)

	contextHandler := func(c *fiber.Ctx) error {
		var req contextRequest
		if err := bind(c, &req); err != nil {
			return err
		}
		token := common.FirstNonEmpty(req.AccessToken, c.Get(CalendarTokenHeader))
		b, err := p.Context(c.UserContext(), pipeline.ContextRequest{
			Location:    location(req.Lat, req.Lng),
			Query:       req.Query,
			AccessToken: token,
		})
		if err != nil {
			return mapError(c, err, "failed to build context")
		}
		return c.JSON(b)
	}
	v1.Get("/context", contextHandler)
	v1.Post("/context", contextHandler)

	v1.Get("/suggestions", func(c *fiber.Ctx) error {
		var req suggestRequest
		if err := bind(c, &req); err != nil {
			return err
		}
		s, err := p.Suggest(c.UserContext(), pipeline.SuggestRequest{
			Location:    location(req.Lat, req.Lng),
			UserID:      req.UserID,
			AccessToken: c.Get(CalendarTokenHeader),
		})
		if err != nil {
			return mapError(c, err, "failed to build suggestions")
		}
		return c.JSON(s)
	})
}

// ErrorHandler renders every error as a JSON body.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "internal server error"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		msg = fe.Message
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": msg,
	})
}

func mapError(c *fiber.Ctx, err error, generic string) error {
	switch {
	case errors.Is(err, domain.ErrInvalidParameter):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrMissingCredential):
		logging.Ctx(c.UserContext()).Error().Err(err).Msg("base search unavailable")
		return fiber.NewError(fiber.StatusInternalServerError, msgMissingCredential)
	default:
		logging.Ctx(c.UserContext()).Error().Err(err).Str("path", c.Path()).Msg("request failed")
		return fiber.NewError(fiber.StatusInternalServerError, generic)
	}
}

// bind reads the request from the JSON body on POST and from the query
// string otherwise, then validates it. A body may carry its coordinates
// flat or under "location".
func bind(c *fiber.Ctx, out any) error {
	var err error
	if c.Method() == fiber.MethodPost {
		err = c.BodyParser(out)
	} else {
		err = c.QueryParser(out)
	}
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed request: "+err.Error())
	}
	if n, ok := out.(interface{ normalize() }); ok {
		n.normalize()
	}
	if err := validate.Struct(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}
