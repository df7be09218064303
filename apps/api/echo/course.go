package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/user"
)

type courseApi struct {
	svc      course.ServiceInterface
	userSvc  user.ServiceInterface
	blobs    core.BlobStore
	validate *validator.Validate
}

func registerCourseAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *server) {
	api := courseApi{
		svc:      s.deps.CourseSvc,
		userSvc:  s.deps.UserSvc,
		blobs:    s.deps.Blobs,
		validate: s.deps.Validate,
	}

	cg := g.Group("/courses", jwt)
	cg.GET("", api.query)
	cg.POST("", api.save, staffMiddleware())
	cg.POST("/uploads", api.uploadVideo, staffMiddleware())
	cg.GET("/progress", api.myProgress)
	cg.GET("/:id", api.retrieve)
	cg.DELETE("/:id", api.destroy, staffMiddleware())
	cg.GET("/:id/quiz", api.retrieveQuiz)
	cg.POST("/:id/enroll", api.enroll)
	cg.POST("/:id/modules/:moduleID/complete", api.completeModule)
	cg.POST("/:id/quiz/complete", api.completeQuiz)
	cg.POST("/:id/rate", api.rate)
	cg.POST("/:id/complete", api.notifyCompletion)
	cg.POST("/:id/certificate", api.issueCertificate, staffMiddleware())
}

// Handlers

func (api *courseApi) query(ctx echo.Context) error {
	cs, err := api.svc.QueryAll()
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if cs == nil {
		cs = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, cs)
}

func (api *courseApi) save(ctx echo.Context) error {
	var data course.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	c, err := api.svc.Save(actor, data)
	if err != nil {
		return errors.Wrap(err, "saving course")
	}
	code := http.StatusCreated
	if data.ID != "" {
		code = http.StatusOK
	}
	return ctx.JSON(code, c)
}

// uploadVideo stores a module video in the blob store and returns its blob:// ref
// for use as module content.
func (api *courseApi) uploadVideo(ctx echo.Context) error {
	fh, err := ctx.FormFile("video")
	if err != nil {
		return core.NewValidationError(nil,
			core.FieldError{Field: "video", Error: "a video file is required"})
	}
	src, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening upload")
	}
	defer src.Close()

	blobID := uuid.New().String()
	if err = api.blobs.SaveBlob(blobID, src); err != nil {
		return errors.Wrap(err, "saving video blob")
	}
	return ctx.JSON(http.StatusCreated, echo.Map{"ref": core.BlobRefScheme + blobID})
}

func (api *courseApi) retrieve(ctx echo.Context) error {
	c, err := api.svc.GetByID(ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding course by ID")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *courseApi) destroy(ctx echo.Context) error {
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err := api.svc.Delete(actor, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) retrieveQuiz(ctx echo.Context) error {
	c, err := api.svc.GetByID(ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding course by ID")
	}
	q, err := api.svc.GetQuiz(c.QuizID)
	if err != nil {
		return errors.Wrap(err, "finding quiz")
	}
	return ctx.JSON(http.StatusOK, q)
}

func (api *courseApi) enroll(ctx echo.Context) error {
	var data course.NewEnrollment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEnrollment")
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	p, err := api.svc.Enroll(claims.Subject, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "enrolling")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *courseApi) completeModule(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	p, err := api.svc.CompleteModule(claims.Subject, ctx.Param("id"), ctx.Param("moduleID"))
	if err != nil {
		return errors.Wrap(err, "completing module")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *courseApi) completeQuiz(ctx echo.Context) error {
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

	p, err := api.svc.CompleteQuiz(claims.Subject, ctx.Param("id"), data.Score)
	if err != nil {
		return errors.Wrap(err, "completing quiz")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *courseApi) rate(ctx echo.Context) error {
	var data RatingRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RatingRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	c, err := api.svc.Rate(claims.Subject, ctx.Param("id"), data.Rating)
	if err != nil {
		return errors.Wrap(err, "rating course")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *courseApi) notifyCompletion(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if err := api.svc.NotifyCompletion(claims.Subject, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "notifying completion")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) issueCertificate(ctx echo.Context) error {
	var data CertificateRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CertificateRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	actor, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err := api.svc.IssueCertificate(actor, ctx.Param("id"), data.StudentID); err != nil {
		return errors.Wrap(err, "issuing certificate")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *courseApi) myProgress(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	ps, err := api.svc.ProgressFor(claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying progress")
	}
	if ps == nil {
		ps = []course.Progress{}
	}
	return ctx.JSON(http.StatusOK, ps)
}

type (
	RatingRequest struct {
		Rating int `json:"rating" validate:"required,rating"`
	}

	CertificateRequest struct {
		StudentID string `json:"student_id" validate:"required"`
	}
)

func (rr *RatingRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(rr)
}

func (cr *CertificateRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(cr)
}
