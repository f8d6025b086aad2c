package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pcs-platform/edocs-service/internal/application"
	"github.com/pcs-platform/edocs-service/internal/config"
	"github.com/pcs-platform/edocs-service/internal/domain"
	infraMongo "github.com/pcs-platform/edocs-service/internal/infrastructure/mongodb"
	"github.com/pcs-platform/edocs-service/internal/infrastructure/odex"
	"github.com/pcs-platform/edocs-service/internal/rules"
	apperrors "github.com/pcs-platform/edocs-service/pkg/errors"
	"github.com/pcs-platform/edocs-service/pkg/logging"
	"github.com/pcs-platform/edocs-service/pkg/metrics"
	"github.com/pcs-platform/edocs-service/pkg/middleware"
	"github.com/pcs-platform/edocs-service/pkg/mongodb"
	"github.com/pcs-platform/edocs-service/pkg/resilience"
)

const serviceName = "edocs-service"

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logCfg := logging.DefaultConfig(serviceName)
	logCfg.Level = logging.LogLevel(cfg.Logging.Level)
	logCfg.Environment = cfg.Logging.Environment
	logger := logging.New(logCfg)
	logger.SetDefault()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	mongoCfg := mongodb.DefaultConfig()
	mongoCfg.URI = cfg.MongoDB.URI
	mongoCfg.Database = cfg.MongoDB.Database
	mongoCfg.MaxPoolSize = cfg.MongoDB.MaxPoolSize
	mongoCfg.MinPoolSize = cfg.MongoDB.MinPoolSize

	mongoClient, err := mongodb.NewClient(ctx, mongoCfg)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to MongoDB")
		os.Exit(1)
	}
	defer mongoClient.Close(context.Background())

	repo := infraMongo.NewSubmissionRepository(mongoClient.Database())
	if err := repo.EnsureIndexes(ctx); err != nil {
		logger.WithError(err).Error("Failed to ensure indexes")
		os.Exit(1)
	}

	breaker := resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig("odex"), logger.Logger)
	carrier := odex.NewClient(&odex.Config{
		BaseURL: cfg.ODeX.BaseURL,
		HashKey: cfg.ODeX.HashKey,
		Timeout: cfg.ODeX.Timeout,
	}, breaker, logger)

	m := metrics.New(metrics.DefaultConfig(serviceName))

	svc := application.NewSubmissionService(repo, carrier, logger, m)

	if cfg.Logging.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	middleware.Setup(router, middleware.DefaultConfig(serviceName, logger.Logger))
	router.Use(m.GinMiddleware())
	router.NoRoute(middleware.NoRoute())
	router.NoMethod(middleware.NoMethod())

	router.GET("/health", middleware.HealthCheck(serviceName))
	router.GET("/ready", middleware.ReadinessCheck(serviceName, func() error {
		checkCtx, checkCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer checkCancel()
		return mongoClient.HealthCheck(checkCtx)
	}))
	router.GET("/metrics", gin.WrapH(m.Handler()))

	v1 := router.Group("/api/v1")
	{
		vgm := v1.Group("/vgm")
		{
			vgm.POST("/submissions", submitHandler(svc, domain.ModuleVGM))
			vgm.POST("/drafts", draftHandler(svc, domain.ModuleVGM))
			vgm.POST("/access-info", lookupHandler(carrier, odex.EndpointVGMAccessInfo))
		}

		form13 := v1.Group("/form13")
		{
			form13.POST("/submissions", submitHandler(svc, domain.ModuleForm13))
			form13.POST("/drafts", draftHandler(svc, domain.ModuleForm13))
			form13.POST("/vessel-info", lookupHandler(carrier, odex.EndpointForm13VesselInfo))
			form13.POST("/pod-info", lookupHandler(carrier, odex.EndpointForm13PODInfo))
		}

		submissions := v1.Group("/submissions")
		{
			submissions.GET("", listHandler(svc))
			submissions.GET("/:id", getHandler(svc))
			submissions.POST("/:id/resubmit", resubmitHandler(svc))
			submissions.POST("/:id/edit", editHandler(svc))
			submissions.POST("/:id/cancel", cancelHandler(svc))
			submissions.POST("/:id/refresh-status", refreshStatusHandler(svc))
		}

		v1.POST("/requirements/resolve", resolveHandler(svc))
		v1.POST("/validate", validateHandler(svc))
		v1.GET("/masterdata", masterDataHandler())
		v1.GET("/carrier/breaker", func(c *gin.Context) {
			c.JSON(http.StatusOK, resilience.StatusOf(breaker))
		})
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("HTTP server failed")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server stopped")
}

func submitHandler(svc *application.SubmissionService, moduleName string) gin.HandlerFunc {
	return middleware.WrapHandler(func(c *gin.Context) error {
		var shipment domain.ShipmentContext
		if err := c.ShouldBindJSON(&shipment); err != nil {
			return apperrors.ErrBadRequest(err.Error())
		}

		dto, err := svc.Submit(c.Request.Context(), application.SubmitCommand{
			ModuleName: moduleName,
			Shipment:   &shipment,
			Headers:    middleware.PropagationHeaders(c),
		})
		if err != nil {
			return err
		}

		c.JSON(http.StatusOK, dto)
		return nil
	})
}

func draftHandler(svc *application.SubmissionService, moduleName string) gin.HandlerFunc {
	return middleware.WrapHandler(func(c *gin.Context) error {
		var shipment domain.ShipmentContext
		if err := c.ShouldBindJSON(&shipment); err != nil {
			return apperrors.ErrBadRequest(err.Error())
		}

		dto, err := svc.SaveDraft(c.Request.Context(), application.SaveDraftCommand{
			ModuleName: moduleName,
			Shipment:   &shipment,
		})
		if err != nil {
			return err
		}

		c.JSON(http.StatusOK, dto)
		return nil
	})
}

type resubmitRequest struct {
	Body map[string]any `json:"body"`
}

func resubmitHandler(svc *application.SubmissionService) gin.HandlerFunc {
	return middleware.WrapHandler(func(c *gin.Context) error {
		var req resubmitRequest
		if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
			return apperrors.ErrBadRequest(err.Error())
		}

		dto, err := svc.Resubmit(c.Request.Context(), application.ResubmitCommand{
			RecordID: c.Param("id"),
			Body:     req.Body,
			Headers:  middleware.PropagationHeaders(c),
		})
		if err != nil {
			return err
		}

		c.JSON(http.StatusOK, dto)
		return nil
	})
}

type editRequest struct {
	Overrides map[string]any `json:"overrides" binding:"required"`
}

func editHandler(svc *application.SubmissionService) gin.HandlerFunc {
	return middleware.WrapHandler(func(c *gin.Context) error {
		var req editRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return apperrors.ErrBadRequest(err.Error())
		}

		dto, err := svc.Edit(c.Request.Context(), application.EditCommand{
			RecordID:  c.Param("id"),
			Overrides: req.Overrides,
			Headers:   middleware.PropagationHeaders(c),
		})
		if err != nil {
			return err
		}

		c.JSON(http.StatusOK, dto)
		return nil
	})
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func cancelHandler(svc *application.SubmissionService) gin.HandlerFunc {
	return middleware.WrapHandler(func(c *gin.Context) error {
		var req cancelRequest
		if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
			return apperrors.ErrBadRequest(err.Error())
		}

		dto, err := svc.Cancel(c.Request.Context(), c.Param("id"), req.Reason)
		if err != nil {
			return err
		}

		c.JSON(http.StatusOK, dto)
		return nil
	})
}

func refreshStatusHandler(svc *application.SubmissionService) gin.HandlerFunc {
	return middleware.WrapHandler(func(c *gin.Context) error {
		dto, err := svc.RefreshStatus(c.Request.Context(), c.Param("id"))
		if err != nil {
			return err
		}

		c.JSON(http.StatusOK, dto)
		return nil
	})
}

func getHandler(svc *application.SubmissionService) gin.HandlerFunc {
	return middleware.WrapHandler(func(c *gin.Context) error {
		dto, err := svc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			return err
		}

		c.JSON(http.StatusOK, dto)
		return nil
	})
}

type listQueryParams struct {
	Module      string `form:"module" binding:"omitempty,oneof=VGM_SUBMISSION FORM13_SUBMISSION"`
	BookingNo   string `form:"bookNo"`
	ContainerNo string `form:"cntnrNo"`
	Status      string `form:"status"`
	From        string `form:"from" binding:"omitempty,datetime=2006-01-02"`
	To          string `form:"to" binding:"omitempty,datetime=2006-01-02"`
	Page        int    `form:"page" binding:"omitempty,min=1"`
	PageSize    int    `form:"pageSize" binding:"omitempty,min=1,max=100"`
}

func listHandler(svc *application.SubmissionService) gin.HandlerFunc {
	return middleware.WrapHandler(func(c *gin.Context) error {
		var params listQueryParams
		if err := c.ShouldBindQuery(&params); err != nil {
			return apperrors.ErrBadRequest(err.Error())
		}

		query := application.ListQuery{
			ModuleName:  params.Module,
			BookingNo:   params.BookingNo,
			ContainerNo: params.ContainerNo,
			Status:      params.Status,
			Page:        params.Page,
			PageSize:    params.PageSize,
		}

		if params.From != "" {
			from, _ := time.Parse("2006-01-02", params.From)
			query.From = &from
		}
		if params.To != "" {
			to, _ := time.Parse("2006-01-02", params.To)
			to = to.Add(24*time.Hour - time.Nanosecond)
			query.To = &to
		}

		dto, err := svc.List(c.Request.Context(), query)
		if err != nil {
			return err
		}

		c.JSON(http.StatusOK, dto)
		return nil
	})
}

func resolveHandler(svc *application.SubmissionService) gin.HandlerFunc {
	return middleware.WrapHandler(func(c *gin.Context) error {
		var shipment domain.ShipmentContext
		if err := c.ShouldBindJSON(&shipment); err != nil {
			return apperrors.ErrBadRequest(err.Error())
		}

		c.JSON(http.StatusOK, svc.ResolveRequirements(&shipment))
		return nil
	})
}

func validateHandler(svc *application.SubmissionService) gin.HandlerFunc {
	return middleware.WrapHandler(func(c *gin.Context) error {
		var shipment domain.ShipmentContext
		if err := c.ShouldBindJSON(&shipment); err != nil {
			return apperrors.ErrBadRequest(err.Error())
		}

		errs := svc.ValidateOnly(&shipment)
		c.JSON(http.StatusOK, gin.H{
			"valid":  errs.Valid(),
			"errors": errs,
		})
		return nil
	})
}

// lookupHandler proxies reference lookups (vessel, POD, access info)
// straight to the carrier.
func lookupHandler(carrier *odex.Client, endpoint string) gin.HandlerFunc {
	return middleware.WrapHandler(func(c *gin.Context) error {
		var body map[string]any
		if err := c.ShouldBindJSON(&body); err != nil {
			return apperrors.ErrBadRequest(err.Error())
		}

		result, err := carrier.Forward(c.Request.Context(), endpoint, body, nil)
		if err != nil {
			return apperrors.ErrServiceUnavailable("ODeX")
		}

		c.JSON(result.StatusCode, result.Data)
		return nil
	})
}

func masterDataHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"containerSizes": rules.ContainerSizes,
			"cargoTypes":     rules.CargoTypes,
			"origins":        rules.Origins,
			"vgmMethods":     rules.VGMMethods,
			"weightUoms":     rules.WeightUOMs,
			"ports":          rules.Ports,
			"imoClasses":     rules.IMOClasses,
		})
	}
}
