package tool

import (
	"maps"

	"github.com/gin-gonic/gin"
)

// FastReturnError is the body of every non-2xx response.
func FastReturnError(msg string) gin.H {
	return gin.H{
		"error": msg,
	}
}

func FastReturnSuccessWithData(data any) gin.H {
	return gin.H{
		"status": "ok",
		"data":   data,
	}
}

// FastReturnErrorWithData adds extra fields, e.g. the accepted values of a bad parameter.
func FastReturnErrorWithData(msg string, data map[string]any) gin.H {
	resp := gin.H{
		"error": msg,
	}
	maps.Copy(resp, data)
	return resp
}
