package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
	"github.com/trezcool/darasa/core/webinar"
)

type webinarApi struct {
	svc      webinar.ServiceInterface
	userSvc  user.ServiceInterface
	blobs    core.BlobStore
	validate *validator.Validate
}

func registerWebinarAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *server) {
	api := webinarApi{
		svc:      s.deps.WebinarSvc,
		userSvc:  s.deps.UserSvc,
		blobs:    s.deps.Blobs,
		validate: s.deps.Validate,
	}

	wg := g.Group("/webinars", jwt)
	wg.GET("", api.query)
	wg.POST("", api.create, staffMiddleware())
	wg.GET("/:id", api.retrieve)
	wg.PUT("/:id", api.update, staffMiddleware())
	wg.DELETE("/:id", api.destroy, staffMiddleware())
	wg.POST("/:id/register", api.register)
	wg.POST("/:id/recording", api.uploadRecording, staffMiddleware())
	wg.GET("/:id/recording", api.streamRecording)
	wg.POST("/:id/feedback", api.submitFeedback)
	wg.POST("/:id/quiz-score", api.recordQuizScore)
}

// Handlers

func (api *webinarApi) query(ctx echo.Context) error {
	ws, err := api.svc.QueryAll()
	if err != nil {
		return errors.Wrap(err, "querying webinars")
	}
	if ws == nil {
		ws = []webinar.Webinar{}
	}
	return ctx.JSON(http.StatusOK, ws)
}

func (api *webinarApi) create(ctx echo.Context) error {
	var data webinar.NewWebinar
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewWebinar")
	}
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	w, err := api.svc.Create(actor, data)
	if err != nil {
		return errors.Wrap(err, "creating webinar")
	}
	return ctx.JSON(http.StatusCreated, w)
}

func (api *webinarApi) retrieve(ctx echo.Context) error {
	w, err := api.svc.GetByID(ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding webinar by ID")
	}
	return ctx.JSON(http.StatusOK, w)
}

func (api *webinarApi) update(ctx echo.Context) error {
	var data webinar.NewWebinar
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewWebinar")
	}
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	w, err := api.svc.Update(actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating webinar")
	}
	return ctx.JSON(http.StatusOK, w)
}

func (api *webinarApi) destroy(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err := api.svc.Delete(actor, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting webinar")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *webinarApi) register(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	w, err := api.svc.Register(ctx.Param("id"), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "registering attendee")
	}
	return ctx.JSON(http.StatusOK, w)
}

// uploadRecording stores the uploaded file in the blob store and points the
// webinar at it via a blob:// ref.
func (api *webinarApi) uploadRecording(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	fh, err := ctx.FormFile("recording")
	if err != nil {
		return core.NewValidationError(nil,
			core.FieldError{Field: "recording", Error: "a recording file is required"})
	}
	src, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening upload")
	}
	defer src.Close()

	blobID := uuid.New().String()
	if err = api.blobs.SaveBlob(blobID, src); err != nil {
		return errors.Wrap(err, "saving recording blob")
	}

	w, err := api.svc.UploadRecording(actor, ctx.Param("id"), core.BlobRefScheme+blobID)
	if err != nil {
		// the webinar was not updated; do not leave the blob orphaned
		_ = api.blobs.DeleteBlob(blobID)
		return errors.Wrap(err, "saving recording ref")
	}
	return ctx.JSON(http.StatusOK, w)
}

func (api *webinarApi) streamRecording(ctx echo.Context) error {
	w, err := api.svc.GetByID(ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding webinar by ID")
	}
	blobID, ok := core.ParseBlobRef(w.RecordingURL)
	if !ok {
		return errHttpNotFound
	}
	rc, err := api.blobs.OpenBlob(blobID)
	if err != nil {
		return errHttpNotFound
	}
	defer rc.Close()
	return ctx.Stream(http.StatusOK, "application/octet-stream", rc)
}

func (api *webinarApi) submitFeedback(ctx echo.Context) error {
	var data webinar.NewFeedback
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewFeedback")
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	w, err := api.svc.SubmitFeedback(ctx.Param("id"), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "saving webinar feedback")
	}
	return ctx.JSON(http.StatusOK, w)
}

func (api *webinarApi) recordQuizScore(ctx echo.Context) error {
	var data QuizScoreRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to QuizScoreRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	if err := api.svc.RecordQuizScore(ctx.Param("id"), claims.Subject, data.Score); err != nil {
		return errors.Wrap(err, "recording quiz score")
	}
	return ctx.NoContent(http.StatusNoContent)
}

type QuizScoreRequest struct {
	Score int `json:"score" validate:"gte=0,lte=100"`
}

func (qr *QuizScoreRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(qr)
}
