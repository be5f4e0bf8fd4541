package response

import "marketplace-api/internal/domain"

type Resp struct {
	Code    int                 `json:"code"`
	Message string              `json:"message"`
	Data    interface{}         `json:"data,omitempty"`
	Errors  []domain.FieldError `json:"errors,omitempty"`
	Role    string              `json:"role,omitempty"`
}

// New 构造函数
func New(code int, msg string, data interface{}) Resp {
	return Resp{Code: code, Message: msg, Data: data}
}

// OK 成功响应（保证 data 不为 null）
func OK(data interface{}) Resp {
	if data == nil {
		data = struct{}{}
	}
	return New(CodeOK, CodeMsgMap[CodeOK], data)
}

// Error 失败响应（可以传自定义 msg 覆盖默认）
func Error(code int, customMsg string) Resp {
	msg := CodeMsgMap[code]
	if customMsg != "" {
		msg = customMsg
	}
	return New(code, msg, nil)
}

// Fields 附带字段级错误
func (r Resp) Fields(fe []domain.FieldError) Resp {
	r.Errors = fe
	return r
}

// WithRole 403 时附带调用者角色
func (r Resp) WithRole(role string) Resp {
	r.Role = role
	return r
}
