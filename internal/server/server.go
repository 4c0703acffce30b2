package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/opsdesk/internal/accounting"
	accountingdomain "github.com/smallbiznis/opsdesk/internal/accounting/domain"
	"github.com/smallbiznis/opsdesk/internal/catalog"
	catalogdomain "github.com/smallbiznis/opsdesk/internal/catalog/domain"
	"github.com/smallbiznis/opsdesk/internal/config"
	"github.com/smallbiznis/opsdesk/internal/customer"
	customerdomain "github.com/smallbiznis/opsdesk/internal/customer/domain"
	"github.com/smallbiznis/opsdesk/internal/dashboard"
	dashboarddomain "github.com/smallbiznis/opsdesk/internal/dashboard/domain"
	"github.com/smallbiznis/opsdesk/internal/invoice"
	invoicedomain "github.com/smallbiznis/opsdesk/internal/invoice/domain"
	"github.com/smallbiznis/opsdesk/internal/lead"
	leaddomain "github.com/smallbiznis/opsdesk/internal/lead/domain"
	"github.com/smallbiznis/opsdesk/internal/observability"
	obsmiddleware "github.com/smallbiznis/opsdesk/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/opsdesk/internal/observability/metrics"
	obstracing "github.com/smallbiznis/opsdesk/internal/observability/tracing"
	"github.com/smallbiznis/opsdesk/internal/organization"
	organizationdomain "github.com/smallbiznis/opsdesk/internal/organization/domain"
	"github.com/smallbiznis/opsdesk/internal/overdue"
	overduedomain "github.com/smallbiznis/opsdesk/internal/overdue/domain"
	"github.com/smallbiznis/opsdesk/internal/staff"
	staffdomain "github.com/smallbiznis/opsdesk/internal/staff/domain"
	"github.com/smallbiznis/opsdesk/internal/work"
	workdomain "github.com/smallbiznis/opsdesk/internal/work/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	accounting.Module,
	catalog.Module,
	customer.Module,
	dashboard.Module,
	invoice.Module,
	lead.Module,
	organization.Module,
	overdue.Module,
	staff.Module,
	work.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine *gin.Engine
	cfg    config.Config
	db     *gorm.DB
	genID  *snowflake.Node

	accountingSvc   accountingdomain.Service
	catalogSvc      catalogdomain.Service
	customerSvc     customerdomain.Service
	dashboardSvc    dashboarddomain.Service
	invoiceSvc      invoicedomain.Service
	leadSvc         leaddomain.Service
	organizationSvc organizationdomain.Service
	overdueSvc      overduedomain.Service
	staffSvc        staffdomain.Service
	workSvc         workdomain.Service
}

type ServerParams struct {
	fx.In

	Gin   *gin.Engine
	Cfg   config.Config
	DB    *gorm.DB
	GenID *snowflake.Node

	AccountingSvc   accountingdomain.Service
	CatalogSvc      catalogdomain.Service
	CustomerSvc     customerdomain.Service
	DashboardSvc    dashboarddomain.Service
	InvoiceSvc      invoicedomain.Service
	LeadSvc         leaddomain.Service
	OrganizationSvc organizationdomain.Service
	OverdueSvc      overduedomain.Service
	StaffSvc        staffdomain.Service
	WorkSvc         workdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		db:              p.DB,
		genID:           p.GenID,
		accountingSvc:   p.AccountingSvc,
		catalogSvc:      p.CatalogSvc,
		customerSvc:     p.CustomerSvc,
		dashboardSvc:    p.DashboardSvc,
		invoiceSvc:      p.InvoiceSvc,
		leadSvc:         p.LeadSvc,
		organizationSvc: p.OrganizationSvc,
		overdueSvc:      p.OverdueSvc,
		staffSvc:        p.StaffSvc,
		workSvc:         p.WorkSvc,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	// Organizations sit outside org scoping: they are the tenants.
	orgs := s.engine.Group("/api/orgs")
	{
		orgs.GET("", s.ListOrganizations)
		orgs.POST("", s.CreateOrganization)
		orgs.GET("/:id", s.GetOrganizationByID)
	}

	api := s.engine.Group("/api")
	api.Use(s.OrgContext())

	// -------- Dashboard --------
	api.GET("/dashboard", s.GetDashboard)

	// -------- Overdue --------
	api.GET("/overdue", s.GetOverdueReport)
	api.PUT("/works/:id/overdue-reason", s.SetOverdueReason)

	// -------- Works --------
	api.GET("/works", s.ListWorks)
	api.POST("/works", s.CreateWork)
	api.GET("/works/:id", s.GetWorkByID)
	api.PATCH("/works/:id", s.UpdateWork)
	api.DELETE("/works/:id", s.DeleteWork)
	api.POST("/works/:id/status", s.UpdateWorkStatus)
	api.GET("/works/:id/periods", s.ListWorkPeriods)
	api.GET("/works/:id/tasks", s.ListWorkTasks)
	api.POST("/works/:id/tasks", s.CreateWorkTask)

	// -------- Periods --------
	api.POST("/periods/:id/status", s.UpdatePeriodStatus)
	api.GET("/periods/:id/tasks", s.ListPeriodTasks)
	api.POST("/periods/:id/tasks", s.CreatePeriodTask)

	// -------- Tasks --------
	api.POST("/tasks/:kind/:id/status", s.UpdateTaskStatus)
	api.DELETE("/tasks/:kind/:id", s.DeleteTask)

	// -------- Leads --------
	api.GET("/leads", s.ListLeads)
	api.POST("/leads", s.CreateLead)
	api.GET("/leads/pipeline", s.GetLeadPipeline)
	api.GET("/leads/:id", s.GetLeadByID)
	api.PATCH("/leads/:id", s.UpdateLead)
	api.DELETE("/leads/:id", s.DeleteLead)
	api.POST("/leads/:id/convert", s.ConvertLead)

	// -------- Customers --------
	api.GET("/customers", s.ListCustomers)
	api.POST("/customers", s.CreateCustomer)
	api.GET("/customers/:id", s.GetCustomerByID)
	api.PATCH("/customers/:id", s.UpdateCustomer)
	api.DELETE("/customers/:id", s.DeleteCustomer)

	// -------- Service catalog --------
	api.GET("/services", s.ListServices)
	api.POST("/services", s.CreateService)
	api.GET("/services/:id", s.GetServiceByID)
	api.PATCH("/services/:id", s.UpdateService)
	api.DELETE("/services/:id", s.DeleteService)

	// -------- Staff --------
	api.GET("/staff", s.ListStaff)
	api.POST("/staff", s.CreateStaff)
	api.GET("/staff/:id", s.GetStaffByID)
	api.PATCH("/staff/:id", s.UpdateStaff)
	api.POST("/staff/resolve", s.ResolveStaff)

	// -------- Invoices --------
	api.GET("/invoices", s.ListInvoices)
	api.POST("/invoices", s.CreateInvoice)
	api.GET("/invoices/:id", s.GetInvoiceByID)
	api.PATCH("/invoices/:id", s.UpdateInvoice)
	api.POST("/invoices/:id/send", s.MarkInvoiceSent)
	api.POST("/invoices/:id/pay", s.MarkInvoicePaid)
	api.POST("/invoices/:id/cancel", s.CancelInvoice)
	api.GET("/receivables", s.GetReceivables)

	// -------- Accounting masters --------
	api.GET("/accounting/groups", s.ListAccountGroups)
	api.POST("/accounting/groups", s.CreateAccountGroup)
	api.PATCH("/accounting/groups/:id", s.UpdateAccountGroup)
	api.DELETE("/accounting/groups/:id", s.DeleteAccountGroup)
	api.GET("/accounting/accounts", s.ListLedgerAccounts)
	api.POST("/accounting/accounts", s.CreateLedgerAccount)
	api.GET("/accounting/accounts/:id", s.GetLedgerAccountByID)
	api.PATCH("/accounting/accounts/:id", s.UpdateLedgerAccount)
	api.DELETE("/accounting/accounts/:id", s.DeleteLedgerAccount)
}
