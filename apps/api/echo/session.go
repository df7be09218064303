package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/session"
)

type sessionApi struct {
	svc session.ServiceInterface
}

func registerSessionAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *server) {
	api := sessionApi{svc: s.deps.SessionSvc}

	sg := g.Group("/sessions", jwt)
	sg.POST("", api.request)
	sg.GET("", api.buckets)
	sg.GET("/:id", api.retrieve)
	sg.POST("/:id/accept", api.accept)
	sg.POST("/:id/reject", api.reject)
	sg.POST("/:id/withdraw", api.withdraw)
	sg.POST("/:id/cancel", api.cancel)
	sg.POST("/:id/feedback", api.leaveFeedback)
}

// Handlers

func (api *sessionApi) request(ctx echo.Context) error {
	var data session.NewSession
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSession")
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	// the caller is always the requester
	data.RequestedByID = claims.Subject
	if !(data.StudentID == claims.Subject || data.InstructorID == claims.Subject) {
		return errHttpForbidden
	}

	s, err := api.svc.Request(data)
	if err != nil {
		return errors.Wrap(err, "requesting session")
	}
	return ctx.JSON(http.StatusCreated, s)
}

// buckets returns the caller's sessions grouped into pending/upcoming/past.
func (api *sessionApi) buckets(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	b, err := api.svc.BucketsFor(claims.Subject)
	if err != nil {
		return errors.Wrap(err, "grouping sessions")
	}
	if b.Pending == nil {
		b.Pending = []session.Session{}
	}
	if b.Upcoming == nil {
		b.Upcoming = []session.Session{}
	}
	if b.Past == nil {
		b.Past = []session.Session{}
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *sessionApi) retrieve(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	s, err := api.svc.GetByID(ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding session by ID")
	}
	if !s.HasParty(claims.Subject) && !claims.IsAdmin {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *sessionApi) accept(ctx echo.Context) error {
	return api.transition(ctx, api.svc.Accept, "accepting session")
}

func (api *sessionApi) reject(ctx echo.Context) error {
	return api.transition(ctx, api.svc.Reject, "rejecting session")
}

func (api *sessionApi) withdraw(ctx echo.Context) error {
	return api.transition(ctx, api.svc.Withdraw, "withdrawing session")
}

func (api *sessionApi) cancel(ctx echo.Context) error {
	return api.transition(ctx, api.svc.Cancel, "canceling session")
}

func (api *sessionApi) transition(
	ctx echo.Context,
	op func(id, actorID string) (session.Session, error),
	wrap string,
) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	s, err := op(ctx.Param("id"), claims.Subject)
	if err != nil {
		return errors.Wrap(err, wrap)
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *sessionApi) leaveFeedback(ctx echo.Context) error {
	var data session.NewFeedback
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewFeedback")
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	s, err := api.svc.LeaveFeedback(ctx.Param("id"), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "saving session feedback")
	}
	return ctx.JSON(http.StatusOK, s)
}
