// Package apiresp writes the JSON envelope every captcha API reply uses.
package apiresp

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/malcolmseyd/captcha/internal/config"
)

// Code tells clients why a request failed without parsing Message.
type Code int

const (
	CodeOK Code = iota
	CodeBadParam
	CodeBadRequest
	CodeBadToken
	CodeGone
)

// Response is the reply body. Param names the offending option for
// CodeBadParam.
type Response struct {
	Code    Code   `json:"code"`
	Message string `json:"message,omitempty"`
	Param   string `json:"param,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Code: CodeOK, Data: data})
}

func Fail(c *gin.Context, httpStatus int, code Code, msg string) {
	c.AbortWithStatusJSON(httpStatus, Response{Code: code, Message: msg})
}

// BadOption answers 400. A *config.Error is reported as CodeBadParam with
// the option it concerns, anything else as CodeBadRequest.
func BadOption(c *gin.Context, err error) {
	var ce *config.Error
	if errors.As(err, &ce) {
		c.AbortWithStatusJSON(http.StatusBadRequest, Response{Code: CodeBadParam, Message: ce.Message, Param: ce.Param})
		return
	}
	Fail(c, http.StatusBadRequest, CodeBadRequest, err.Error())
}
