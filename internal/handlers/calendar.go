package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/revulabs/revu/backend/internal/services"
	"github.com/revulabs/revu/backend/pkg/response"
)

type CalendarHandler struct {
	calendarService *services.BusinessCalendarService
}

func NewCalendarHandler(calendarService *services.BusinessCalendarService) *CalendarHandler {
	return &CalendarHandler{calendarService: calendarService}
}

// Countries lists the business calendars available for digest scheduling.
// GET /api/calendar/countries
func (h *CalendarHandler) Countries(c *gin.Context) {
	response.Success(c, h.calendarService.SupportedCountries())
}
