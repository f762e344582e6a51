// SPDX-License-Identifier: ice License 1.0

package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rcrowley/go-metrics"

	"github.com/ice-blockchain/pushgate/registry"
)

func NewStatusHandler(reg *registry.Registry) gin.HandlerFunc {
	h := &statusHandler{registry: reg}

	return h.Status
}

func (h *statusHandler) Status(gCtx *gin.Context) {
	res := &statusResponse{
		Connections: h.registry.ConnectionCount(),
		Topics:      h.registry.TopicCount(),
		Metrics:     make(map[string]int64),
	}
	h.registry.Metrics().Each(func(name string, metric any) {
		switch m := metric.(type) {
		case metrics.Counter:
			res.Metrics[name] = m.Count()
		case metrics.Gauge:
			res.Metrics[name] = m.Value()
		}
	})
	gCtx.JSON(http.StatusOK, res)
}
