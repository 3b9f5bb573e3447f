package http

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func SetupRouter(roomController *RoomController, subjectController *SubjectController, allowOrigins []string) *gin.Engine {
	router := gin.Default()
	config := cors.DefaultConfig()
	if len(allowOrigins) > 0 {
		config.AllowOrigins = allowOrigins
	} else {
		config.AllowOrigins = []string{"http://localhost:3000"}
	}
	config.AllowCredentials = true
	config.AllowHeaders = []string{
		"Authorization",
		"Content-Type",
		"Origin",
		"Accept",
	}
	config.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}
	router.Use(cors.New(config))
	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	api := router.Group("/api")

	if subjectController != nil {
		subjects := api.Group("/subjects")
		subjects.GET("", subjectController.ListSubjects)
	}

	if roomController != nil {
		rooms := api.Group("/rooms")
		rooms.GET("", roomController.ListRooms)
		rooms.POST("/create", roomController.CreateRoom)
		rooms.GET("/current", roomController.CurrentRoom)
		rooms.POST("/:roomID/join", roomController.JoinRoom)
		rooms.POST("/leave", roomController.LeaveRoom)
		rooms.GET("/:roomID/participants", roomController.ListParticipants)

		media := api.Group("/media")
		media.POST("/audio/toggle", roomController.ToggleAudio)
		media.POST("/video/toggle", roomController.ToggleVideo)
		media.POST("/screen/start", roomController.StartScreenShare)
		media.POST("/screen/stop", roomController.StopScreenShare)
		media.POST("/subject", roomController.SetSubject)
	}

	return router
}
