package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bookstore/internal/model"
)

// listBooks 书目列表。
func listBooks(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var list []model.Book
		if err := d.DB.WithContext(c.Request.Context()).Find(&list).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": list})
	}
}

// createBook 管理员上架书目。
func createBook(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Title     string `json:"title" binding:"required"`
			Author    string `json:"author"`
			Publisher string `json:"publisher"`
			Price     int64  `json:"price" binding:"required,min=1"`
			Stock     int64  `json:"stock" binding:"min=0"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": 400, "msg": err.Error()})
			return
		}
		b := &model.Book{
			Title:     req.Title,
			Author:    req.Author,
			Publisher: req.Publisher,
			Price:     req.Price,
			Stock:     req.Stock,
		}
		if err := d.DB.WithContext(c.Request.Context()).Create(b).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"code": 500, "msg": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"code": 0, "data": b})
	}
}
