package controller

import (
	"github.com/gin-gonic/gin"
)

// NewRouter wires the handlers onto a gin engine.
func NewRouter(rag *RAGController, study *StudyController) *gin.Engine {
	router := gin.Default()

	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, "+SessionHeader)
		c.Header("Access-Control-Expose-Headers", SessionHeader)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "Study Buddy API",
			"version": "1.0.0",
		})
	})

	apiV1 := router.Group("/api/v1")
	{
		apiV1.POST("/materials", rag.ProcessMaterial)
		apiV1.POST("/materials/pdf", rag.ProcessPDF)
		apiV1.POST("/query", rag.QueryRAG)
		apiV1.GET("/notes", rag.GetAllNotes)
		apiV1.DELETE("/sessions/:id", rag.EndSession)

		apiV1.GET("/tasks", study.ListTasks)
		apiV1.POST("/tasks", study.AddTask)
		apiV1.PATCH("/tasks/:index", study.ToggleTask)
		apiV1.POST("/moods", study.RecordMood)
		apiV1.GET("/moods/summary", study.MoodSummary)
	}

	return router
}
