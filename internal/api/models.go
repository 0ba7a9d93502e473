package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/openbridge-ai/geminibridge/internal/logging"
)

// listModels handles /v1/models. The upstream document keys its models map
// by model id; the handler reshapes it into the OpenAI list format.
func (s *Server) listModels(c *gin.Context) {
	raw, err := s.upstream.ListModels(c.Request.Context())
	if err != nil {
		logging.WithRequestLog(c.Request.Context()).Errorf("list models failed: %v", err)
		status, message := errorStatus(err)
		c.JSON(status, apiError(message, "upstream_error"))
		return
	}

	created := time.Now().Unix()
	out := `{"object":"list","data":[]}`
	gjson.GetBytes(raw, "models").ForEach(func(key, _ gjson.Result) bool {
		item := `{"id":"","object":"model","created":0,"owned_by":"google"}`
		item, _ = sjson.Set(item, "id", key.String())
		item, _ = sjson.Set(item, "created", created)
		out, _ = sjson.SetRaw(out, "data.-1", item)
		return true
	})
	c.Data(http.StatusOK, "application/json", []byte(out))
}
