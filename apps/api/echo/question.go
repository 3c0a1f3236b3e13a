package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mwalimu/shule/core/question"
	"github.com/mwalimu/shule/core/user"
)

type questionApi struct {
	svc      question.ServiceInterface
	validate *validator.Validate
}

func registerQuestionAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc question.ServiceInterface, validate *validator.Validate) {
	api := questionApi{
		svc:      svc,
		validate: validate,
	}

	qg := g.Group("/questions", jwt, adminMiddleware(user.RoleTeacher))
	qg.POST("", api.create)
	qg.GET("", api.query)
	qg.GET("/:id", api.retrieve)
	qg.PUT("/:id", api.update)
	qg.DELETE("/:id", api.destroy)
}

func (api *questionApi) create(ctx echo.Context) error {
	var data question.NewQuestion
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuestion")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	qst, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating question")
	}
	return ctx.JSON(http.StatusCreated, qst)
}

func (api *questionApi) query(ctx echo.Context) error {
	questions, err := api.svc.QueryAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying questions")
	}
	if questions == nil {
		questions = []question.Question{}
	}
	return ctx.JSON(http.StatusOK, questions)
}

func (api *questionApi) retrieve(ctx echo.Context) error {
	qst, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == question.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting question")
	}
	return ctx.JSON(http.StatusOK, qst)
}

func (api *questionApi) update(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()

	orig, err := api.svc.GetByID(reqCtx, ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == question.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting question")
	}

	var data question.UpdateQuestion
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateQuestion")
	}
	if err = data.Validate(api.validate, orig); err != nil {
		return err
	}

	qst, err := api.svc.Update(reqCtx, orig.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating question")
	}
	return ctx.JSON(http.StatusOK, qst)
}

func (api *questionApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		if errors.Cause(err) == question.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "deleting question")
	}
	return ctx.NoContent(http.StatusNoContent)
}
