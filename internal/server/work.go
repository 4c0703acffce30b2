package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	workdomain "github.com/smallbiznis/opsdesk/internal/work/domain"
)

type createWorkRequest struct {
	Title         string   `json:"title"`
	CustomerID    string   `json:"customer_id"`
	ServiceID     string   `json:"service_id"`
	AssignedTo    string   `json:"assigned_to"`
	Priority      string   `json:"priority"`
	DueDate       string   `json:"due_date"`
	Recurring     bool     `json:"recurring"`
	Frequency     string   `json:"frequency"`
	TaskTemplates []string `json:"task_templates"`
	Notes         string   `json:"notes"`
}

type updateWorkRequest struct {
	Title         string   `json:"title"`
	AssignedTo    string   `json:"assigned_to"`
	Priority      string   `json:"priority"`
	DueDate       string   `json:"due_date"`
	TaskTemplates []string `json:"task_templates"`
	Notes         string   `json:"notes"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type createTaskRequest struct {
	Title      string `json:"title"`
	Priority   string `json:"priority"`
	DueDate    string `json:"due_date"`
	AssignedTo string `json:"assigned_to"`
}

func (s *Server) CreateWork(c *gin.Context) {
	var req createWorkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	dueDate, err := parseOptionalTime(req.DueDate, true)
	if err != nil {
		AbortWithError(c, newValidationError("due_date", "invalid_due_date", "invalid due_date"))
		return
	}

	resp, err := s.workSvc.CreateWork(c.Request.Context(), workdomain.CreateWorkRequest{
		Title:         strings.TrimSpace(req.Title),
		CustomerID:    strings.TrimSpace(req.CustomerID),
		ServiceID:     strings.TrimSpace(req.ServiceID),
		AssignedTo:    strings.TrimSpace(req.AssignedTo),
		Priority:      strings.TrimSpace(req.Priority),
		DueDate:       dueDate,
		Recurring:     req.Recurring,
		Frequency:     strings.TrimSpace(req.Frequency),
		TaskTemplates: req.TaskTemplates,
		Notes:         strings.TrimSpace(req.Notes),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListWorks(c *gin.Context) {
	recurring, err := parseOptionalBool(c.Query("recurring"))
	if err != nil {
		AbortWithError(c, newValidationError("recurring", "invalid_recurring", "invalid recurring"))
		return
	}

	resp, err := s.workSvc.ListWorks(c.Request.Context(), workdomain.ListWorkRequest{
		Status:     strings.TrimSpace(c.Query("status")),
		CustomerID: strings.TrimSpace(c.Query("customer_id")),
		AssignedTo: strings.TrimSpace(c.Query("assigned_to")),
		Recurring:  recurring,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetWorkByID(c *gin.Context) {
	resp, err := s.workSvc.GetWork(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateWork(c *gin.Context) {
	var req updateWorkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	dueDate, err := parseOptionalTime(req.DueDate, true)
	if err != nil {
		AbortWithError(c, newValidationError("due_date", "invalid_due_date", "invalid due_date"))
		return
	}

	resp, err := s.workSvc.UpdateWork(c.Request.Context(), workdomain.UpdateWorkRequest{
		ID:            strings.TrimSpace(c.Param("id")),
		Title:         strings.TrimSpace(req.Title),
		AssignedTo:    strings.TrimSpace(req.AssignedTo),
		Priority:      strings.TrimSpace(req.Priority),
		DueDate:       dueDate,
		TaskTemplates: req.TaskTemplates,
		Notes:         strings.TrimSpace(req.Notes),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteWork(c *gin.Context) {
	if err := s.workSvc.DeleteWork(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) UpdateWorkStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.workSvc.UpdateWorkStatus(c.Request.Context(), strings.TrimSpace(c.Param("id")), strings.TrimSpace(req.Status))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListWorkPeriods(c *gin.Context) {
	resp, err := s.workSvc.ListPeriods(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdatePeriodStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.workSvc.UpdatePeriodStatus(c.Request.Context(), strings.TrimSpace(c.Param("id")), strings.TrimSpace(req.Status))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListWorkTasks(c *gin.Context) {
	resp, err := s.workSvc.ListWorkTasks(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreateWorkTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	dueDate, err := parseOptionalTime(req.DueDate, true)
	if err != nil {
		AbortWithError(c, newValidationError("due_date", "invalid_due_date", "invalid due_date"))
		return
	}

	resp, err := s.workSvc.CreateWorkTask(c.Request.Context(), workdomain.CreateTaskRequest{
		WorkID:     strings.TrimSpace(c.Param("id")),
		Title:      strings.TrimSpace(req.Title),
		Priority:   strings.TrimSpace(req.Priority),
		DueDate:    dueDate,
		AssignedTo: strings.TrimSpace(req.AssignedTo),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListPeriodTasks(c *gin.Context) {
	resp, err := s.workSvc.ListPeriodTasks(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CreatePeriodTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	dueDate, err := parseOptionalTime(req.DueDate, true)
	if err != nil {
		AbortWithError(c, newValidationError("due_date", "invalid_due_date", "invalid due_date"))
		return
	}

	resp, err := s.workSvc.CreatePeriodTask(c.Request.Context(), workdomain.CreateTaskRequest{
		PeriodID:   strings.TrimSpace(c.Param("id")),
		Title:      strings.TrimSpace(req.Title),
		Priority:   strings.TrimSpace(req.Priority),
		DueDate:    dueDate,
		AssignedTo: strings.TrimSpace(req.AssignedTo),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateTaskStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	kind := strings.TrimSpace(c.Param("kind"))
	id := strings.TrimSpace(c.Param("id"))
	if err := s.workSvc.UpdateTaskStatus(c.Request.Context(), kind, id, strings.TrimSpace(req.Status)); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"id": id, "status": strings.TrimSpace(req.Status)}})
}

func (s *Server) DeleteTask(c *gin.Context) {
	kind := strings.TrimSpace(c.Param("kind"))
	id := strings.TrimSpace(c.Param("id"))
	if err := s.workSvc.DeleteTask(c.Request.Context(), kind, id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func isWorkValidationError(err error) bool {
	switch err {
	case workdomain.ErrInvalidOrganization,
		workdomain.ErrInvalidTitle,
		workdomain.ErrInvalidCustomer,
		workdomain.ErrInvalidService,
		workdomain.ErrInvalidPriority,
		workdomain.ErrInvalidStatus,
		workdomain.ErrInvalidFrequency,
		workdomain.ErrInvalidID,
		workdomain.ErrInvalidPeriod,
		workdomain.ErrInvalidTaskKind,
		workdomain.ErrRecurringWorkTask:
		return true
	default:
		return false
	}
}
