package controller

import (
	"errors"

	"content-pipeline-be/internal/dto"
	"content-pipeline-be/internal/pkg/serverutils"
	"content-pipeline-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IPipelineController interface {
	RegisterRoutes(r fiber.Router)
	ProcessTopic(ctx *fiber.Ctx) error
	Feedback(ctx *fiber.Ctx) error
	Health(ctx *fiber.Ctx) error
}

type pipelineController struct {
	pipelineService service.IPipelineService
}

func NewPipelineController(pipelineService service.IPipelineService) IPipelineController {
	return &pipelineController{
		pipelineService: pipelineService,
	}
}

func (c *pipelineController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/agents")
	h.Get("health", c.Health)
	h.Post("process-topic", c.ProcessTopic)
	h.Post("feedback", c.Feedback)
}

func (c *pipelineController) ProcessTopic(ctx *fiber.Ctx) error {
	var req dto.ProcessTopicRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.NewBadRequestError("invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.pipelineService.ProcessTopic(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Topic accepted, research ready", res))
}

func (c *pipelineController) Feedback(ctx *fiber.Ctx) error {
	var req dto.FeedbackRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.NewBadRequestError("invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.pipelineService.HandleFeedback(ctx.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			return serverutils.NewNotFoundError(err.Error())
		case errors.Is(err, service.ErrInvalidStage):
			return serverutils.NewConflictError(err.Error())
		default:
			return err
		}
	}

	return ctx.JSON(serverutils.SuccessResponse("Feedback applied", res))
}

func (c *pipelineController) Health(ctx *fiber.Ctx) error {
	return ctx.JSON(dto.HealthResponse{
		Status:  "healthy",
		Message: "Content pipeline is running",
	})
}
