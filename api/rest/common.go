package rest

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/modforge/audit"
	mw "github.com/kasuganosora/modforge/middleware"
)

// record writes one audit entry for the current request. a may be nil.
func record(c *gin.Context, a audit.Logger, start time.Time, e audit.AuditEntry) {
	if a == nil {
		return
	}
	e.TraceID = mw.GetTraceID(c)
	if e.PlayerID == "" {
		e.PlayerID = mw.GetPlayerID(c)
	}
	e.IP = c.ClientIP()
	e.DurationMs = int(time.Since(start).Milliseconds())
	a.Log(e)
}

func errMsg(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
