// SPDX-License-Identifier: ice License 1.0

package http

import (
	"crypto/subtle"
	"log"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"

	"github.com/ice-blockchain/pushgate/model"
	"github.com/ice-blockchain/pushgate/push"
)

// NewPushHandler exposes the push gateway to services that cannot link it in.
// Requests must carry `Authorization: Bearer <apiKey>`; with an empty apiKey every request is refused.
func NewPushHandler(gateway *push.Gateway, apiKey string) gin.HandlerFunc {
	h := &pushHandler{gateway: gateway, apiKey: apiKey}

	return h.Push
}

func (h *pushHandler) Push(gCtx *gin.Context) {
	if !h.authorized(gCtx.GetHeader("Authorization")) {
		gCtx.JSON(http.StatusUnauthorized, httpErr("Unauthorized"))

		return
	}
	var req pushRequest
	if err := gCtx.ShouldBindJSON(&req); err != nil {
		gCtx.JSON(http.StatusBadRequest, httpErr("invalid push request: "+err.Error()))

		return
	}
	var publisher push.Publisher = h.gateway
	if req.MessageType != "" {
		publisher = h.gateway.WithMessageType(req.MessageType)
	}
	var data any
	if len(req.Data) > 0 {
		data = req.Data
	}
	outcome, err := publisher.Publish(gCtx.Request.Context(), req.Key, data)
	switch {
	case err == nil:
		gCtx.JSON(http.StatusOK, outcome)
	case errors.Is(err, push.ErrEmptyTopic), errors.Is(err, model.ErrMalformedJSON):
		gCtx.JSON(http.StatusBadRequest, httpErr(err.Error()))
	default:
		log.Printf("ERROR:%v", errors.Wrapf(err, "push to %v failed", req.Key))
		gCtx.JSON(http.StatusInternalServerError, httpErr("oops, error occurred!"))
	}
}

func (h *pushHandler) authorized(header string) bool {
	if h.apiKey == "" || !strings.HasPrefix(header, bearerPrefix) {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(strings.TrimPrefix(header, bearerPrefix)), []byte(h.apiKey)) == 1
}

func httpErr(message string) any {
	return &errorResponse{Message: message}
}
