package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"interview-service/internal/models"
	"interview-service/internal/service"
)

// QuestionGenerator is implemented by *service.QuestionService.
type QuestionGenerator interface {
	Generate(ctx context.Context, topic string) (*models.Question, error)
}

// ReportManager is implemented by *service.ReportService.
type ReportManager interface {
	Save(ctx context.Context, req models.SaveReportRequest) ([]int64, error)
	Profile(ctx context.Context, email string) ([]models.ReportView, error)
	Delete(ctx context.Context, id int64) error
}

// Authenticator is implemented by *service.AuthService.
type Authenticator interface {
	Signup(ctx context.Context, req models.SignupRequest) (*models.User, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.User, error)
}

// Pinger reports database health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps groups everything the handlers call into.
type Deps struct {
	Questions   QuestionGenerator
	Submissions VideoProcessor
	Reports     ReportManager
	Auth        Authenticator
	DB          Pinger
	// ModelInfo describes the configured completion provider for /health.
	ModelInfo func() map[string]interface{}
	// MaxUploadBytes caps the submit-video request body; 0 means no limit.
	MaxUploadBytes int64
}

// Handler handles HTTP requests
type Handler struct {
	deps   Deps
	logger *zap.Logger
}

// NewHandler creates a new API handler
func NewHandler(deps Deps, logger *zap.Logger) *Handler {
	registerValidators()
	return &Handler{deps: deps, logger: logger}
}

var validatorsOnce sync.Once

func registerValidators() {
	validatorsOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			v.RegisterValidation("topic", func(fl validator.FieldLevel) bool {
				return service.ValidTopic(fl.Field().String())
			})
		}
	})
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api")
	{
		api.GET("/get-random-question/:topic", h.GetRandomQuestion)
		api.POST("/submit-video", h.SubmitVideo)

		api.POST("/save_report", h.SaveReport)
		api.GET("/profile/:email", h.Profile)
		api.DELETE("/report/:id", h.DeleteReport)
		api.DELETE("/report/:id/delete/", h.DeleteReport)

		api.POST("/signup", h.Signup)
		api.POST("/login", h.Login)
	}

	// the recorder page posts answers to the root path
	r.POST("/", h.SubmitVideo)

	r.POST("/events", h.LogEvent)
	r.POST("/heartbeat", h.Heartbeat)

	r.GET("/health", h.HealthCheck)
}

type topicParams struct {
	Topic string `uri:"topic" binding:"required,topic"`
}

// GetRandomQuestion generates a fresh question for a topic.
func (h *Handler) GetRandomQuestion(c *gin.Context) {
	var params topicParams
	if err := c.ShouldBindUri(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid topic"})
		return
	}

	q, err := h.deps.Questions.Generate(c.Request.Context(), params.Topic)
	if err != nil {
		h.logger.Error("Failed to generate question", zap.String("topic", params.Topic), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to generate question"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": q.ID, "question": q.Text})
}

// SaveReport stores a batch of evaluated answers for a user.
func (h *Handler) SaveReport(c *gin.Context) {
	var req models.SaveReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	ids, err := h.deps.Reports.Save(c.Request.Context(), req)
	switch {
	case errors.Is(err, service.ErrEmailMissing):
		c.JSON(http.StatusBadRequest, gin.H{"message": "Email missing"})
		return
	case errors.Is(err, service.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
		return
	case err != nil:
		h.logger.Error("Failed to save reports", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Saved", "created_ids": ids})
}

// Profile lists a user's saved reports, newest first.
func (h *Handler) Profile(c *gin.Context) {
	views, err := h.deps.Reports.Profile(c.Request.Context(), c.Param("email"))
	if err != nil {
		h.logger.Error("Failed to load profile", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to load reports"})
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *Handler) DeleteReport(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid report ID"})
		return
	}

	err = h.deps.Reports.Delete(c.Request.Context(), id)
	if errors.Is(err, service.ErrReportNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Not found"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to delete report", zap.Int64("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to delete report"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Deleted"})
}

// Signup accepts form data or JSON.
func (h *Handler) Signup(c *gin.Context) {
	var req models.SignupRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	_, err := h.deps.Auth.Signup(c.Request.Context(), req)
	if errors.Is(err, service.ErrUserAlreadyExists) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Email already registered"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Signup failed"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Success"})
}

func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid credentials"})
		return
	}

	user, err := h.deps.Auth.Login(c.Request.Context(), req)
	if errors.Is(err, service.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid credentials"})
		return
	}
	if err != nil {
		h.logger.Error("Login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Login failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Login successful",
		"email":    user.Email,
		"username": user.Username,
	})
}

// HealthCheck reports model and database status
func (h *Handler) HealthCheck(c *gin.Context) {
	status := http.StatusOK
	resp := gin.H{"status": "healthy"}

	if h.deps.ModelInfo != nil {
		resp["model"] = h.deps.ModelInfo()
	}

	if h.deps.DB != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.deps.DB.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			resp["status"] = "unhealthy"
			resp["database"] = err.Error()
		} else {
			resp["database"] = "ok"
		}
	}

	c.JSON(status, resp)
}
