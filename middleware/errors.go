package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"marvelalbum/monitoring"
	"marvelalbum/utils"
)

// ErrorHandler renders the last error a handler attached with c.Error.
// Server errors carry a "detail" field unless release is set.
func ErrorHandler(release bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		appErr := utils.AsAppError(c.Errors.Last().Err)
		fields := logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": appErr.Status,
			"code":   appErr.Code,
		}
		if appErr.Err != nil {
			fields["error"] = appErr.Err.Error()
		}

		if appErr.Status >= 500 {
			monitoring.ErrorsTotal.WithLabelValues(appErr.Code, c.FullPath()).Inc()
			utils.Log.WithFields(fields).Error(appErr.Message)
		} else {
			utils.Log.WithFields(fields).Debug(appErr.Message)
		}

		if c.Writer.Written() {
			return
		}

		body := gin.H{"error": appErr.Message}
		if !release && appErr.Status >= 500 && appErr.Err != nil {
			body["detail"] = appErr.Err.Error()
		}
		c.AbortWithStatusJSON(appErr.Status, body)
	}
}
