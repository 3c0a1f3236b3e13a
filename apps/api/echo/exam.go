package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mwalimu/shule/core/exam"
	"github.com/mwalimu/shule/core/user"
)

type testApi struct {
	svc      exam.ServiceInterface
	validate *validator.Validate
}

func registerTestAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc exam.ServiceInterface, validate *validator.Validate) {
	api := testApi{
		svc:      svc,
		validate: validate,
	}

	tg := g.Group("/tests", jwt)

	// authoring is for teachers (and admins)
	ag := tg.Group("", adminMiddleware(user.RoleTeacher))
	ag.POST("", api.create)
	ag.GET("", api.query)
	ag.GET("/:id", api.retrieve)
	ag.PUT("/:id", api.update)
	ag.DELETE("/:id", api.destroy)

	// taking a test is for students (and admins)
	tg.PUT("/:id/submit", api.submit, adminMiddleware(user.RoleStudent))
}

func (api *testApi) create(ctx echo.Context) error {
	var data exam.NewTest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	t, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating test")
	}
	return ctx.JSON(http.StatusCreated, t)
}

func (api *testApi) query(ctx echo.Context) error {
	tests, err := api.svc.QueryAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying tests")
	}
	if tests == nil {
		tests = []exam.Test{}
	}
	return ctx.JSON(http.StatusOK, tests)
}

func (api *testApi) retrieve(ctx echo.Context) error {
	t, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == exam.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting test")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *testApi) update(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()

	orig, err := api.svc.GetByID(reqCtx, ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == exam.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting test")
	}

	var data exam.UpdateTest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTest")
	}
	if err = data.Validate(api.validate, orig); err != nil {
		return err
	}

	t, err := api.svc.Update(reqCtx, orig.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating test")
	}
	return ctx.JSON(http.StatusOK, t)
}

func (api *testApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		if errors.Cause(err) == exam.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "deleting test")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *testApi) submit(ctx echo.Context) error {
	var data exam.NewSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubmission")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if data.StudentID == "" {
		data.StudentID = claims.Subject
	}
	// students can only hand in their own work
	if !claims.IsAdmin && data.StudentID != claims.Subject {
		return errHttpForbidden
	}

	sub, err := api.svc.Submit(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		if errors.Cause(err) == exam.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "submitting test")
	}
	return ctx.JSON(http.StatusOK, sub)
}
