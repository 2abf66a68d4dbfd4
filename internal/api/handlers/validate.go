package handlers

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// fieldMessages holds the user-facing text per failed field, keyed
// "Field.tag" for a specific rule or "Field" for any rule of that field
var fieldMessages = map[string]string{
	"Username.required":         "账号不能为空",
	"Username":                  "账号必须是4位数字",
	"Password.required":         "密码不能为空",
	"Password":                  "密码必须是6位数字和小写字母",
	"ProjectID.required":        "项目ID不能为空",
	"Amount.required":           "投资金额不能为空",
	"InvestorUsername.required": "投资人账号不能为空",
	"AccessToken.required":      "accessToken不能为空",
	"ExpiresIn":                 "expiresIn必须大于0",
}

// validateRequest checks the validate tags of req and returns the message
// of the first failed field, or "" when req is valid
func validateRequest(req interface{}) string {
	err := validate.Struct(req)
	if err == nil {
		return ""
	}

	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return "请求格式错误"
	}

	fe := errs[0]
	if msg, ok := fieldMessages[fe.StructField()+"."+fe.Tag()]; ok {
		return msg
	}
	if msg, ok := fieldMessages[fe.StructField()]; ok {
		return msg
	}
	return fe.Field() + " 格式错误"
}
