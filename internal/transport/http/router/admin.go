package router

import "github.com/gin-gonic/gin"

// NewAdminEngine 管理端：/admin/v1 前缀，各 Action 自行要求 admin 角色
func NewAdminEngine(d Deps, reg *Registry) *gin.Engine {
	r := d.base()
	admin := r.Group("/admin/v1")
	reg.MountAllAdmin(admin)
	return r
}
