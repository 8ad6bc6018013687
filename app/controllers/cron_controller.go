package controllers

import (
	"errors"
	"net/http"

	"github.com/driftmarket/driftmarket/app/services"
	"github.com/driftmarket/driftmarket/pkg/response"
)

// cronSweepCap bounds how many orders one cron invocation may process.
const cronSweepCap = 100

// CronController serves endpoints hit by the external cron scheduler.
type CronController struct {
	sweep *services.SweepService
}

func NewCronController(sweep *services.SweepService) *CronController {
	return &CronController{sweep: sweep}
}

// RetryFailedEmails handles GET /api/cron/retry-failed-emails.
func (c *CronController) RetryFailedEmails(w http.ResponseWriter, r *http.Request) {
	result, err := c.sweep.Run(r.Context(), cronSweepCap, "cron")
	if err != nil {
		if errors.Is(err, services.ErrSweepRunning) {
			response.Conflict(w, err.Error())
			return
		}
		response.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(w, result)
}
