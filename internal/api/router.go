package api

import (
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/balakodigital/crm-notifier/internal/api/handlers"
	"github.com/balakodigital/crm-notifier/internal/client"
	"github.com/balakodigital/crm-notifier/internal/observability"
	"github.com/balakodigital/crm-notifier/internal/repository"
	"github.com/balakodigital/crm-notifier/internal/service"
)

func SetupRouter(
	db *sqlx.DB,
	dispatcher handlers.TaskDispatcher,
	gateway client.WhatsAppGateway,
	location *time.Location,
	logger *zap.Logger,
) http.Handler {
	mux := http.NewServeMux()

	contactRepo := repository.NewContactRepository(db)
	opportunityRepo := repository.NewOpportunityRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	messageRepo := repository.NewWhatsAppMessageRepository(db)

	whatsappService := service.NewWhatsAppService(
		gateway,
		contactRepo,
		messageRepo,
		logger,
	)

	crmService := service.NewCRMService(
		contactRepo,
		opportunityRepo,
		taskRepo,
		messageRepo,
		location,
	)

	cronHandler := handlers.NewCronHandler(dispatcher)
	whatsappHandler := handlers.NewWhatsAppHandler(whatsappService)
	crmHandler := handlers.NewCRMHandler(crmService)

	mux.HandleFunc("GET /api/cron/check-tasks", cronHandler.CheckTasks)
	// GET patterns also match HEAD
	mux.HandleFunc("HEAD /api/cron/check-tasks", cronHandler.MethodNotAllowed)
	mux.HandleFunc("/api/cron/check-tasks", cronHandler.MethodNotAllowed)

	mux.HandleFunc("POST /api/whatsapp/send", whatsappHandler.Send)
	mux.HandleFunc("GET /api/whatsapp/status", whatsappHandler.Status)

	mux.HandleFunc("GET /api/crm/contacts", crmHandler.ListContacts)
	mux.HandleFunc("GET /api/crm/opportunities", crmHandler.ListOpportunities)
	mux.HandleFunc("GET /api/crm/tasks", crmHandler.ListTasks)
	mux.HandleFunc("GET /api/dashboard/summary", crmHandler.DashboardSummary)

	mux.HandleFunc("GET /healthz", handlers.Health)
	mux.Handle("GET /metrics", promhttp.Handler())

	return observability.RequestIDMiddleware(logger, identityMiddleware(mux))
}
