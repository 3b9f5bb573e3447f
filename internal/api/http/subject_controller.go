package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/luciandrev/estudia_rooms/internal/api/http/converter"
	"github.com/luciandrev/estudia_rooms/internal/service"
)

type SubjectController struct {
	subjects service.SubjectInteractor
}

func NewSubjectController(subjects service.SubjectInteractor) *SubjectController {
	return &SubjectController{subjects: subjects}
}

func (c *SubjectController) ListSubjects(ctx *gin.Context) {
	subjects, err := c.subjects.ListSubjects(ctx.Request.Context())
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"subjects": converter.SubjectsToApi(subjects)})
}
