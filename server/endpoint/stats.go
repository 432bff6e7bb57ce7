package endpoint

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/floq/errors"
	"github.com/kbukum/floq/observability"
)

// StatsProvider returns the current counters of every observed task.
type StatsProvider func() []observability.TaskStats

// Stats serves the per-task and per-stage counters. A "task" query
// parameter narrows the response to one task.
func Stats(provider StatsProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		tasks := provider()
		if tasks == nil {
			tasks = []observability.TaskStats{}
		}
		if name := c.Query("task"); name != "" {
			for _, t := range tasks {
				if t.Task == name {
					c.JSON(http.StatusOK, gin.H{"tasks": []observability.TaskStats{t}})
					return
				}
			}
			appErr := errors.NotFound("task", name)
			c.JSON(appErr.HTTPStatus, appErr.ToResponse())
			return
		}
		c.JSON(http.StatusOK, gin.H{"tasks": tasks})
	}
}
