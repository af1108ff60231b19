// Package handler 提供 HTTP 请求处理器
package handler

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"toolkitforseo-api/internal/application/credit"
	"toolkitforseo-api/internal/application/tools"
	"toolkitforseo-api/internal/infrastructure/llm"
	"toolkitforseo-api/internal/interfaces/http/dto"
	"toolkitforseo-api/internal/workflow/node"
	apperrors "toolkitforseo-api/pkg/errors"
	"toolkitforseo-api/pkg/logger"
)

// toAppError 将领域错误归类为应用错误，未识别的错误一律视为内部错误
func toAppError(err error) *apperrors.AppError {
	var (
		insufficient *credit.InsufficientCreditsError
		inputErr     *tools.InputError
		vendorErr    *llm.VendorError
		configErr    *llm.ConfigurationError
	)
	switch {
	case errors.As(err, &insufficient):
		return apperrors.New(apperrors.CodeInsufficientCredits, insufficient.Error())
	case errors.Is(err, credit.ErrNoActiveSubscription):
		return apperrors.New(apperrors.CodeInsufficientCredits, apperrors.ErrSubscriptionNotFound.Message)
	case errors.Is(err, credit.ErrUnknownTool), errors.Is(err, tools.ErrUnknownTool):
		return apperrors.ErrToolNotFound
	case errors.Is(err, credit.ErrInvalidCredits):
		return apperrors.New(apperrors.CodeInvalidParam, "Credits must be a non-negative integer")
	case errors.As(err, &inputErr):
		return apperrors.New(apperrors.CodeInvalidParam, inputErr.Error())
	case apperrors.IsAppError(err):
		return apperrors.AsAppError(err)
	case node.IsParseError(err):
		return apperrors.Wrap(err, apperrors.CodeParseFailed, "model reply could not be parsed")
	case errors.As(err, &vendorErr):
		return apperrors.Wrap(err, apperrors.CodeLLMProviderError, "vendor call failed")
	case errors.As(err, &configErr):
		return apperrors.Wrap(err, apperrors.CodeConfiguration, "vendor misconfigured")
	default:
		return apperrors.ErrInternalError.WithError(err)
	}
}

// respondError 写入错误响应，5xx 只返回通用信息，细节仅记录在日志中
func respondError(c *gin.Context, err error) {
	appErr := toAppError(err)
	status := appErr.HTTPStatus
	if status >= http.StatusInternalServerError {
		logger.Error(c.Request.Context(), "request failed", err,
			"path", c.FullPath(),
			"code", string(appErr.Code),
		)
		dto.InternalError(c)
		return
	}
	dto.Error(c, status, appErr.Message)
}

// UseJSONFieldNames 让绑定校验错误使用 json/form 标签中的字段名
func UseJSONFieldNames() {
	tagNameOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
				if name != "" && name != "-" {
					return name
				}
			}
			return f.Name
		})
	})
}

var tagNameOnce sync.Once

// respondBindError 请求体超过上限返回 413，其余绑定错误返回 400
func respondBindError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		dto.Error(c, http.StatusRequestEntityTooLarge, "Request body too large")
		return
	}
	dto.BadRequest(c, bindingMessage(err))
}

// bindingMessage 把绑定校验错误转为面向调用方的提示
func bindingMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Tag() == "required" {
			return "Missing required field: " + fe.Field()
		}
		return "Invalid value for field: " + fe.Field()
	}
	return "Invalid request"
}
