package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/marketplace-backend/internal/http/middleware"
	"github.com/yungbote/marketplace-backend/internal/http/response"
	"github.com/yungbote/marketplace-backend/internal/platform/ctxutil"
)

var errMissingAccount = errors.New("no authenticated account")

// caller returns the authenticated RequestData or writes a 401.
func caller(c *gin.Context) (*ctxutil.RequestData, bool) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.AccountID == uuid.Nil {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", errMissingAccount)
		return nil, false
	}
	return rd, true
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param(name)))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_"+name, err)
		return uuid.Nil, false
	}
	return id, true
}

func idempotencyKey(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader(middleware.HeaderIdempotencyKey))
}

// bindStrictJSON decodes one JSON object into dst and rejects fields dst does
// not declare. It writes the 400 itself.
func bindStrictJSON(c *gin.Context, dst any) bool {
	if c.Request.Body == nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", errors.New("request body is required"))
		return false
	}
	dec := json.NewDecoder(c.Request.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return false
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", fmt.Errorf("request body must hold a single JSON object"))
		return false
	}
	return true
}
