package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"calendar-booking-backend/internal/model"
	"calendar-booking-backend/internal/schedule"
)

// Admin handlers mutate a calendar's scheduling configuration. Every write
// invalidates the calendar's cached snapshot so availability reflects the
// change on the next request.

type calendarRequest struct {
	Name                       string `json:"name" binding:"required"`
	Description                string `json:"description"`
	Status                     string `json:"status" binding:"omitempty,oneof=open closed"`
	MinDaysInAdvance           int    `json:"min_days_in_advance" binding:"min=0"`
	MaxDaysInAdvance           int    `json:"max_days_in_advance" binding:"min=0"`
	AllowCancellations         bool   `json:"allow_cancellations"`
	CancelDaysInAdvance        int    `json:"cancel_days_in_advance" binding:"min=0"`
	RefundPaymentAutomatically bool   `json:"refund_payment_automatically"`
	RemindersEnabled           bool   `json:"reminders_enabled"`
	ReminderHoursInAdvance     int    `json:"reminder_hours_in_advance" binding:"min=0"`
	PaymentMethods             string `json:"payment_methods"`
}

func (r calendarRequest) apply(cal *model.Calendar) {
	cal.Name = r.Name
	cal.Description = r.Description
	cal.Status = model.CalendarStatus(r.Status)
	if cal.Status == "" {
		cal.Status = model.CalendarOpen
	}
	cal.MinDaysInAdvance = r.MinDaysInAdvance
	cal.MaxDaysInAdvance = r.MaxDaysInAdvance
	if cal.MaxDaysInAdvance == 0 {
		cal.MaxDaysInAdvance = 365
	}
	cal.AllowCancellations = r.AllowCancellations
	cal.CancelDaysInAdvance = r.CancelDaysInAdvance
	cal.RefundPaymentAutomatically = r.RefundPaymentAutomatically
	cal.RemindersEnabled = r.RemindersEnabled
	cal.ReminderHoursInAdvance = r.ReminderHoursInAdvance
	cal.PaymentMethods = r.PaymentMethods
}

// CreateCalendar handles POST /api/calendars.
func (h *Handler) CreateCalendar(c *gin.Context) {
	orgID, _, ok := identity(c)
	if !ok {
		return
	}
	var req calendarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cal := model.Calendar{OrganizationID: orgID}
	req.apply(&cal)
	if err := h.store.DB().WithContext(c.Request.Context()).Create(&cal).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create calendar"})
		return
	}
	c.JSON(http.StatusCreated, cal)
}

// UpdateCalendar handles PUT /api/calendars/{calendar_id}.
func (h *Handler) UpdateCalendar(c *gin.Context) {
	orgID, _, ok := identity(c)
	if !ok {
		return
	}
	calendarID, ok := pathID(c, "calendar_id")
	if !ok {
		return
	}
	var req calendarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cal, found := h.loadCalendar(c, orgID, calendarID)
	if !found {
		return
	}
	req.apply(cal)
	if err := h.store.DB().WithContext(c.Request.Context()).Save(cal).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update calendar"})
		return
	}
	h.store.Invalidate(calendarID)
	c.JSON(http.StatusOK, cal)
}

// DeleteCalendar handles DELETE /api/calendars/{calendar_id}. A calendar
// with dependent bookings is never deleted.
func (h *Handler) DeleteCalendar(c *gin.Context) {
	orgID, _, ok := identity(c)
	if !ok {
		return
	}
	calendarID, ok := pathID(c, "calendar_id")
	if !ok {
		return
	}
	if _, found := h.loadCalendar(c, orgID, calendarID); !found {
		return
	}

	db := h.store.DB().WithContext(c.Request.Context())
	var bookings int64
	if err := db.Model(&model.Booking{}).Where("calendar_id = ?", calendarID).Count(&bookings).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check dependent bookings"})
		return
	}
	if bookings > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "calendar has dependent bookings and cannot be deleted"})
		return
	}

	for _, m := range []any{&model.ScheduleRule{}, &model.TimeSlotConfiguration{}, &model.BlockedPeriod{}, &model.SlotLedger{}} {
		if err := db.Where("calendar_id = ?", calendarID).Delete(m).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete calendar"})
			return
		}
	}
	if err := db.Delete(&model.Calendar{}, calendarID).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete calendar"})
		return
	}
	h.store.Invalidate(calendarID)
	c.Status(http.StatusNoContent)
}

type scheduleRuleRequest struct {
	Action    string  `json:"action" binding:"required,oneof=open close special_hours"`
	Order     int     `json:"order"`
	StartDate string  `json:"start_date" binding:"required"`
	EndDate   *string `json:"end_date"`
	OpenTime  string  `json:"open_time"`
	CloseTime string  `json:"close_time"`
}

// CreateScheduleRule handles POST /api/calendars/{calendar_id}/schedule-rules.
func (h *Handler) CreateScheduleRule(c *gin.Context) {
	orgID, _, ok := identity(c)
	if !ok {
		return
	}
	calendarID, ok := pathID(c, "calendar_id")
	if !ok {
		return
	}
	var req scheduleRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, found := h.loadCalendar(c, orgID, calendarID); !found {
		return
	}

	start, err := schedule.ParseDate(req.StartDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start_date must be YYYY-MM-DD"})
		return
	}
	var end *time.Time
	if req.EndDate != nil {
		parsed, err := schedule.ParseDate(*req.EndDate)
		if err != nil || parsed.Before(start) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "end_date must be YYYY-MM-DD and not before start_date"})
			return
		}
		end = &parsed
	}
	if model.RuleAction(req.Action) == model.RuleSpecialHours {
		if err := validateClockWindow(req.OpenTime, req.CloseTime); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	rule := model.ScheduleRule{
		CalendarID: calendarID,
		Action:     model.RuleAction(req.Action),
		Order:      req.Order,
		StartDate:  start,
		EndDate:    end,
		OpenTime:   req.OpenTime,
		CloseTime:  req.CloseTime,
	}
	if err := h.store.DB().WithContext(c.Request.Context()).Create(&rule).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create schedule rule"})
		return
	}
	h.store.Invalidate(calendarID)
	c.JSON(http.StatusCreated, rule)
}

type durationOptionRequest struct {
	DurationMinutes int     `json:"duration_minutes" binding:"required,min=1"`
	Price           float64 `json:"price" binding:"min=0"`
	Label           string  `json:"label"`
	Order           int     `json:"order"`
}

type slotConfigurationRequest struct {
	DaysOfWeek         []int                   `json:"days_of_week" binding:"required,min=1,dive,min=0,max=6"`
	StartTime          string                  `json:"start_time" binding:"required"`
	EffectiveDateStart string                  `json:"effective_date_start" binding:"required"`
	EffectiveDateEnd   *string                 `json:"effective_date_end"`
	RecurrenceWeeks    int                     `json:"recurrence_weeks" binding:"min=0"`
	PlacesAvailable    int                     `json:"places_available" binding:"required,min=1"`
	MinPlacesRequired  int                     `json:"min_places_required" binding:"min=0"`
	Order              int                     `json:"order"`
	DurationOptions    []durationOptionRequest `json:"duration_options" binding:"required,min=1,dive"`
}

// CreateSlotConfiguration handles
// POST /api/calendars/{calendar_id}/slot-configurations.
func (h *Handler) CreateSlotConfiguration(c *gin.Context) {
	orgID, _, ok := identity(c)
	if !ok {
		return
	}
	calendarID, ok := pathID(c, "calendar_id")
	if !ok {
		return
	}
	var req slotConfigurationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, found := h.loadCalendar(c, orgID, calendarID); !found {
		return
	}

	if _, err := schedule.ParseClock(req.StartTime); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start_time must be HH:MM"})
		return
	}
	start, err := schedule.ParseDate(req.EffectiveDateStart)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "effective_date_start must be YYYY-MM-DD"})
		return
	}
	var end *time.Time
	if req.EffectiveDateEnd != nil {
		parsed, err := schedule.ParseDate(*req.EffectiveDateEnd)
		if err != nil || parsed.Before(start) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "effective_date_end must be YYYY-MM-DD and not before effective_date_start"})
			return
		}
		end = &parsed
	}

	days := make([]time.Weekday, len(req.DaysOfWeek))
	for i, d := range req.DaysOfWeek {
		days[i] = time.Weekday(d)
	}
	recurrence := req.RecurrenceWeeks
	if recurrence <= 0 {
		recurrence = 1
	}
	minPlaces := req.MinPlacesRequired
	if minPlaces <= 0 {
		minPlaces = 1
	}

	cfg := model.TimeSlotConfiguration{
		CalendarID:         calendarID,
		DaysOfWeek:         model.NewDaysOfWeek(days...),
		StartTime:          req.StartTime,
		EffectiveDateStart: start,
		EffectiveDateEnd:   end,
		RecurrenceWeeks:    recurrence,
		PlacesAvailable:    req.PlacesAvailable,
		MinPlacesRequired:  minPlaces,
		Order:              req.Order,
	}
	for _, opt := range req.DurationOptions {
		cfg.DurationOptions = append(cfg.DurationOptions, model.DurationOption{
			DurationMinutes: opt.DurationMinutes,
			Price:           opt.Price,
			Label:           opt.Label,
			Order:           opt.Order,
		})
	}

	if err := h.store.DB().WithContext(c.Request.Context()).Create(&cfg).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create slot configuration"})
		return
	}
	h.store.Invalidate(calendarID)
	c.JSON(http.StatusCreated, cfg)
}

type blockedPeriodRequest struct {
	Reason     string  `json:"reason"`
	StartDate  *string `json:"start_date"`
	EndDate    *string `json:"end_date"`
	DaysOfWeek []int   `json:"days_of_week" binding:"omitempty,dive,min=0,max=6"`
	StartTime  string  `json:"start_time"`
	EndTime    string  `json:"end_time"`
}

// CreateBlockedPeriod handles
// POST /api/calendars/{calendar_id}/blocked-periods.
func (h *Handler) CreateBlockedPeriod(c *gin.Context) {
	orgID, _, ok := identity(c)
	if !ok {
		return
	}
	calendarID, ok := pathID(c, "calendar_id")
	if !ok {
		return
	}
	var req blockedPeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, found := h.loadCalendar(c, orgID, calendarID); !found {
		return
	}

	period := model.BlockedPeriod{CalendarID: calendarID, Reason: req.Reason}

	recurring := len(req.DaysOfWeek) > 0
	if recurring {
		if err := validateClockWindow(req.StartTime, req.EndTime); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		days := make([]time.Weekday, len(req.DaysOfWeek))
		for i, d := range req.DaysOfWeek {
			days[i] = time.Weekday(d)
		}
		period.DaysOfWeek = model.NewDaysOfWeek(days...)
		period.StartTime = req.StartTime
		period.EndTime = req.EndTime
	} else {
		if req.StartDate == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "either days_of_week or start_date is required"})
			return
		}
		start, err := schedule.ParseDate(*req.StartDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "start_date must be YYYY-MM-DD"})
			return
		}
		period.StartDate = &start
		if req.EndDate != nil {
			end, err := schedule.ParseDate(*req.EndDate)
			if err != nil || end.Before(start) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "end_date must be YYYY-MM-DD and not before start_date"})
				return
			}
			period.EndDate = &end
		}
	}

	if err := h.store.DB().WithContext(c.Request.Context()).Create(&period).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create blocked period"})
		return
	}
	h.store.Invalidate(calendarID)
	c.JSON(http.StatusCreated, period)
}

func (h *Handler) loadCalendar(c *gin.Context, orgID, calendarID int64) (*model.Calendar, bool) {
	var cal model.Calendar
	err := h.store.DB().WithContext(c.Request.Context()).
		Where("id = ? AND organization_id = ?", calendarID, orgID).
		First(&cal).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "calendar not found"})
		return nil, false
	}
	return &cal, true
}

func validateClockWindow(start, end string) error {
	s, err := schedule.ParseClock(start)
	if err != nil {
		return err
	}
	e, err := schedule.ParseClock(end)
	if err != nil {
		return err
	}
	if e <= s {
		return schedule.ErrInvertedWindow
	}
	return nil
}
