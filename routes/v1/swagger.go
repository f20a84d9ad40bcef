package v1

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"github.com/viberl/BlindTasting-sub000/docs"
)

// RegisterSwaggerRoutes serves the API documentation UI
func RegisterSwaggerRoutes(r *gin.RouterGroup) {
	docs.SwaggerInfo.BasePath = r.BasePath()
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}
